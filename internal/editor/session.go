// Package editor holds the in-memory editing sessions. A session owns one
// project; every mutation is forwarded to its autosave scheduler.
package editor

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/autosave"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
)

var errSessionClosed = errors.New("editing session closed")

// Settings is a partial update of project output settings.
type Settings struct {
	Name       *string            `json:"name,omitempty"`
	FPS        *float64           `json:"fps,omitempty"`
	Resolution *models.Resolution `json:"resolution,omitempty"`
}

// SyncState reports how far the durable copy lags the session.
type SyncState struct {
	SessionID    string     `json:"session_id"`
	ProjectID    string     `json:"project_id"`
	State        string     `json:"state"`
	Dirty        bool       `json:"dirty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	Saves        int64      `json:"saves"`
	Failures     int64      `json:"failures"`
	LastError    string     `json:"last_error,omitempty"`
}

// Session is one user's editing session on one project.
type Session struct {
	id       string
	userID   string
	openedAt time.Time

	mu      sync.RWMutex
	project *models.Project
	dirty   bool
	closed  bool

	sched *autosave.Scheduler
}

func newSession(userID string, project *models.Project) *Session {
	return &Session{
		id:       uuid.New().String(),
		userID:   userID,
		openedAt: time.Now(),
		project:  project,
	}
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// UserID returns the owning account.
func (s *Session) UserID() string { return s.userID }

// OpenedAt returns when the session started.
func (s *Session) OpenedAt() time.Time { return s.openedAt }

// ProjectID returns the edited project's id.
func (s *Session) ProjectID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.ID
}

// currentProject is the scheduler's identity check: it returns "" once the
// session is closed.
func (s *Session) currentProject() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ""
	}
	return s.project.ID
}

// markSynced records a save as authoritative unless the session moved on.
func (s *Session) markSynced(snapshot *models.Project, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.project.ID != snapshot.ID {
		return
	}
	s.project.LastSyncedAt = &at
	if !s.project.UpdatedAt.After(snapshot.UpdatedAt) {
		s.dirty = false
	}
}

// Snapshot returns a deep copy of the project.
func (s *Session) Snapshot() *models.Project {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.project.Clone()
}

// AddElement appends an element. An empty id is generated; the insertion
// sequence is always assigned by the session.
func (s *Session) AddElement(el models.TimelineElement) (models.TimelineElement, error) {
	const op = "add element"
	el = el.Clone()
	if el.ID == "" {
		el.ID = uuid.New().String()
	}

	return el, s.mutate(op, func(p *models.Project) error {
		if p.Element(el.ID) >= 0 {
			return apperr.Newf(apperr.KindInvalidInput, op, "duplicate element id: %s", el.ID)
		}
		el.Seq = p.NextSeq()
		if err := el.Validate(); err != nil {
			return apperr.New(apperr.KindInvalidInput, op, err)
		}
		p.Elements = append(p.Elements, el)
		return nil
	})
}

// UpdateElement replaces an element's fields, keeping its id and sequence.
func (s *Session) UpdateElement(id string, el models.TimelineElement) (models.TimelineElement, error) {
	const op = "update element"
	el = el.Clone()

	return el, s.mutate(op, func(p *models.Project) error {
		idx := p.Element(id)
		if idx < 0 {
			return apperr.Newf(apperr.KindNotFound, op, "element not found: %s", id)
		}
		el.ID = id
		el.Seq = p.Elements[idx].Seq
		if err := el.Validate(); err != nil {
			return apperr.New(apperr.KindInvalidInput, op, err)
		}
		p.Elements[idx] = el
		return nil
	})
}

// RemoveElement deletes an element.
func (s *Session) RemoveElement(id string) error {
	const op = "remove element"
	return s.mutate(op, func(p *models.Project) error {
		idx := p.Element(id)
		if idx < 0 {
			return apperr.Newf(apperr.KindNotFound, op, "element not found: %s", id)
		}
		p.Elements = append(p.Elements[:idx], p.Elements[idx+1:]...)
		return nil
	})
}

// UpdateSettings applies a partial settings update.
func (s *Session) UpdateSettings(in Settings) (*models.Project, error) {
	const op = "update settings"
	err := s.mutate(op, func(p *models.Project) error {
		next := *p
		if in.Name != nil {
			if *in.Name == "" {
				return apperr.Newf(apperr.KindInvalidInput, op, "name must not be empty")
			}
			next.Name = *in.Name
		}
		if in.FPS != nil {
			next.FPS = *in.FPS
		}
		if in.Resolution != nil {
			next.Resolution = *in.Resolution
		}
		if err := next.Validate(); err != nil {
			return apperr.New(apperr.KindInvalidInput, op, err)
		}
		p.Name, p.FPS, p.Resolution = next.Name, next.FPS, next.Resolution
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.Snapshot(), nil
}

// mutate applies fn under the session lock, then hands the new snapshot to
// the scheduler. Nothing is forwarded when fn fails.
func (s *Session) mutate(op string, fn func(p *models.Project) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return apperr.New(apperr.KindNotFound, op, errSessionClosed)
	}
	if err := fn(s.project); err != nil {
		s.mu.Unlock()
		return err
	}
	s.project.UpdatedAt = time.Now()
	s.dirty = true
	snapshot := s.project.Clone()
	s.mu.Unlock()

	if s.sched != nil {
		s.sched.Notify(autosave.Event{Kind: autosave.EventMutation, Snapshot: snapshot})
	}
	return nil
}

// Render resolves the current project.
func (s *Session) Render(r *timeline.Resolver) timeline.Composition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return r.Compose(s.project)
}

// SyncState reports the autosave state of the session.
func (s *Session) SyncState() SyncState {
	s.mu.RLock()
	st := SyncState{
		SessionID: s.id,
		ProjectID: s.project.ID,
		Dirty:     s.dirty,
	}
	if s.project.LastSyncedAt != nil {
		t := *s.project.LastSyncedAt
		st.LastSyncedAt = &t
	}
	s.mu.RUnlock()

	st.State = autosave.StateIdle.String()
	if s.sched != nil {
		st.State = s.sched.State().String()
		stats := s.sched.Stats()
		st.Saves = stats.Saves
		st.Failures = stats.Failures
		if stats.LastError != nil {
			st.LastError = stats.LastError.Error()
		}
	}
	return st
}

// close marks the session ended and tears down its scheduler. A pending
// save is dropped; an in-flight save completes but is not marked synced.
func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	if s.sched != nil {
		s.sched.Close()
	}
}
