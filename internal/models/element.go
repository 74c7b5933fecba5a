package models

import (
	"errors"
	"fmt"
)

// ElementKind discriminates the payload carried by a TimelineElement.
type ElementKind string

const (
	KindText  ElementKind = "text"
	KindMedia ElementKind = "media"
)

// Align is the horizontal anchoring of a text element.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// ParseAlign converts a string to Align, defaulting to left.
func ParseAlign(s string) Align {
	switch s {
	case "center":
		return AlignCenter
	case "right":
		return AlignRight
	default:
		return AlignLeft
	}
}

// TimelineElement is one item on the timeline. Exactly one of Text or Media
// is set, matching Kind.
type TimelineElement struct {
	ID            string      `json:"id"`
	Kind          ElementKind `json:"type"`
	PositionStart float64     `json:"positionStart"`
	PositionEnd   float64     `json:"positionEnd"`
	ZIndex        int         `json:"zIndex"`
	Opacity       int         `json:"opacity"`
	Seq           int64       `json:"seq"` // insertion order within the project
	Text          *TextProps  `json:"text,omitempty"`
	Media         *MediaProps `json:"media,omitempty"`
}

// TextProps holds the text variant's payload.
type TextProps struct {
	Content         string `json:"content"`
	Align           Align  `json:"align"`
	Font            string `json:"font,omitempty"`
	FontSize        int    `json:"fontSize,omitempty"`
	Color           string `json:"color,omitempty"`
	BackgroundColor string `json:"backgroundColor,omitempty"`
	X               int    `json:"x"`
	Y               int    `json:"y"`
}

// MediaProps holds the media overlay variant's payload.
type MediaProps struct {
	Source      string  `json:"source"`
	X           int     `json:"x"`
	Y           int     `json:"y"`
	Width       int     `json:"width,omitempty"`
	Height      int     `json:"height,omitempty"`
	StartOffset float64 `json:"startOffset,omitempty"` // seconds into the source
	Volume      int     `json:"volume"`
}

// Clone returns a deep copy of the element.
func (e TimelineElement) Clone() TimelineElement {
	c := e
	if e.Text != nil {
		t := *e.Text
		c.Text = &t
	}
	if e.Media != nil {
		m := *e.Media
		c.Media = &m
	}
	return c
}

// Validate checks that the tag and payload agree and the common fields are sane.
// A zero or inverted time window is accepted; it is clamped at render time.
func (e *TimelineElement) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.Opacity < 0 || e.Opacity > 100 {
		return fmt.Errorf("opacity must be between 0 and 100, got %d", e.Opacity)
	}
	if e.PositionStart < 0 {
		return errors.New("positionStart must not be negative")
	}
	switch e.Kind {
	case KindText:
		if e.Text == nil || e.Media != nil {
			return errors.New("text element requires text properties only")
		}
	case KindMedia:
		if e.Media == nil || e.Text != nil {
			return errors.New("media element requires media properties only")
		}
		if e.Media.Source == "" {
			return errors.New("media source is required")
		}
	default:
		return fmt.Errorf("unknown element type: %q", e.Kind)
	}
	return nil
}
