// Package session exposes the caller's editing session over HTTP. Every
// mutation lands in memory first; persistence is left to the session's
// autosave scheduler.
package session

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/api/projects"
	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/editor"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
)

// Sessions is the session registry.
type Sessions interface {
	Open(ctx context.Context, userID, projectID string) (*editor.Session, error)
	Get(userID string) (*editor.Session, error)
	Close(userID string) error
}

// ElementRequest is the body of element create and update calls.
type ElementRequest struct {
	ID            string             `json:"id,omitempty"`
	Type          models.ElementKind `json:"type"`
	PositionStart float64            `json:"positionStart"`
	PositionEnd   float64            `json:"positionEnd"`
	ZIndex        int                `json:"zIndex"`
	Opacity       *int               `json:"opacity,omitempty"`
	Text          *models.TextProps  `json:"text,omitempty"`
	Media         *models.MediaProps `json:"media,omitempty"`
}

// Element converts the request into a timeline element. Opacity defaults to
// fully opaque and an unknown alignment falls back to left.
func (r ElementRequest) Element() models.TimelineElement {
	el := models.TimelineElement{
		ID:            r.ID,
		Kind:          r.Type,
		PositionStart: r.PositionStart,
		PositionEnd:   r.PositionEnd,
		ZIndex:        r.ZIndex,
		Opacity:       100,
		Text:          r.Text,
		Media:         r.Media,
	}
	if r.Opacity != nil {
		el.Opacity = *r.Opacity
	}
	if el.Text != nil {
		el.Text.Align = models.ParseAlign(string(el.Text.Align))
	}
	return el
}

// View is the full state of a session.
type View struct {
	Sync    editor.SyncState `json:"sync"`
	Project *models.Project  `json:"project"`
}

type Handler struct {
	sessions Sessions
	resolver *timeline.Resolver
}

func NewHandler(sessions Sessions, resolver *timeline.Resolver) *Handler {
	return &Handler{sessions: sessions, resolver: resolver}
}

// Open starts editing the project in the URL, replacing any session the
// caller already has.
func (h *Handler) Open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.sessions.Open(ctx, middleware.GetUserID(ctx), chi.URLParam(r, "id"))
	if err != nil {
		respond.Err(w, "open session", err)
		return
	}
	respond.Created(w, view(sess))
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r, "get session")
	if !ok {
		return
	}
	respond.OK(w, view(sess))
}

// Close ends the caller's session. A save that has not started is dropped.
func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Close(middleware.GetUserID(r.Context())); err != nil {
		respond.Err(w, "close session", err)
		return
	}
	respond.NoContent(w)
}

func (h *Handler) AddElement(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeElement(w, r)
	if !ok {
		return
	}
	sess, ok := h.current(w, r, "add element")
	if !ok {
		return
	}

	el, err := sess.AddElement(req.Element())
	if err != nil {
		respond.Err(w, "add element", err)
		return
	}
	respond.Created(w, el)
}

func (h *Handler) UpdateElement(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeElement(w, r)
	if !ok {
		return
	}
	sess, ok := h.current(w, r, "update element")
	if !ok {
		return
	}

	el, err := sess.UpdateElement(chi.URLParam(r, "elementID"), req.Element())
	if err != nil {
		respond.Err(w, "update element", err)
		return
	}
	respond.OK(w, el)
}

func (h *Handler) RemoveElement(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.current(w, r, "remove element")
	if !ok {
		return
	}
	if err := sess.RemoveElement(chi.URLParam(r, "elementID")); err != nil {
		respond.Err(w, "remove element", err)
		return
	}
	respond.NoContent(w)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req editor.Settings
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if req.Name != nil {
		if err := projects.ValidateName(*req.Name); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
	}
	if req.FPS != nil {
		if err := projects.ValidateFPS(*req.FPS); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
	}
	if req.Resolution != nil {
		if err := projects.ValidateResolution(*req.Resolution); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
	}

	sess, ok := h.current(w, r, "update settings")
	if !ok {
		return
	}
	p, err := sess.UpdateSettings(req)
	if err != nil {
		respond.Err(w, "update settings", err)
		return
	}
	respond.OK(w, p)
}

// Render resolves the in-memory project, including edits not yet saved.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	frame, err := projects.ParseFrame(r.URL.Query().Get("frame"))
	if err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}
	sess, ok := h.current(w, r, "render session")
	if !ok {
		return
	}
	respond.OK(w, projects.Compose(h.resolver, sess.Snapshot(), frame))
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request, op string) (*editor.Session, bool) {
	sess, err := h.sessions.Get(middleware.GetUserID(r.Context()))
	if err != nil {
		respond.Err(w, op, err)
		return nil, false
	}
	return sess, true
}

func decodeElement(w http.ResponseWriter, r *http.Request) (ElementRequest, bool) {
	var req ElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return req, false
	}
	return req, true
}

func view(sess *editor.Session) View {
	return View{Sync: sess.SyncState(), Project: sess.Snapshot()}
}
