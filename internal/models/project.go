package models

import (
	"fmt"
	"time"
)

// DefaultFPS is used when a project does not specify a frame rate.
const DefaultFPS = 30

// Resolution is the output canvas size in pixels.
type Resolution struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Project is an editing document: a timeline of elements plus output settings.
// It is persisted as a single JSON document.
type Project struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"owner_id"`
	Name         string            `json:"name"`
	Elements     []TimelineElement `json:"elements"`
	Resolution   Resolution        `json:"resolution"`
	FPS          float64           `json:"fps"`
	LastSyncedAt *time.Time        `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// NewProject creates a new Project with default output settings.
func NewProject(name, ownerID string) *Project {
	now := time.Now()
	return &Project{
		OwnerID:    ownerID,
		Name:       name,
		Elements:   []TimelineElement{},
		Resolution: Resolution{Width: 1920, Height: 1080},
		FPS:        DefaultFPS,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Clone returns a deep copy suitable for handing to a background writer.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	c := *p
	c.Elements = make([]TimelineElement, len(p.Elements))
	for i := range p.Elements {
		c.Elements[i] = p.Elements[i].Clone()
	}
	if p.LastSyncedAt != nil {
		t := *p.LastSyncedAt
		c.LastSyncedAt = &t
	}
	return &c
}

// Element returns the index of the element with the given id, or -1.
func (p *Project) Element(id string) int {
	for i := range p.Elements {
		if p.Elements[i].ID == id {
			return i
		}
	}
	return -1
}

// NextSeq returns the insertion sequence number for a new element.
func (p *Project) NextSeq() int64 {
	var maxSeq int64
	for i := range p.Elements {
		if p.Elements[i].Seq > maxSeq {
			maxSeq = p.Elements[i].Seq
		}
	}
	return maxSeq + 1
}

// Validate checks output settings and element id uniqueness.
func (p *Project) Validate() error {
	if p.FPS <= 0 {
		return fmt.Errorf("fps must be positive")
	}
	if p.Resolution.Width <= 0 || p.Resolution.Height <= 0 {
		return fmt.Errorf("resolution must be positive")
	}
	seen := make(map[string]struct{}, len(p.Elements))
	for i := range p.Elements {
		el := &p.Elements[i]
		if err := el.Validate(); err != nil {
			return fmt.Errorf("element %d: %w", i, err)
		}
		if _, dup := seen[el.ID]; dup {
			return fmt.Errorf("duplicate element id: %s", el.ID)
		}
		seen[el.ID] = struct{}{}
	}
	return nil
}
