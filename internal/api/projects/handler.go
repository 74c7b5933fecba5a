package projects

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/storage"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
)

// SessionCloser ends editing sessions bound to a project.
type SessionCloser interface {
	CloseProject(projectID string)
}

// ProjectSummary is the list view of a project.
type ProjectSummary struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"owner_id"`
	Name         string            `json:"name"`
	FPS          float64           `json:"fps"`
	Resolution   models.Resolution `json:"resolution"`
	ElementCount int               `json:"element_count"`
	LastSyncedAt *time.Time        `json:"last_synced_at,omitempty"`
	CreatedAt    string            `json:"created_at"`
	UpdatedAt    string            `json:"updated_at"`
}

// CreateRequest is the request body for creating a project.
type CreateRequest struct {
	Name       string             `json:"name"`
	FPS        *float64           `json:"fps,omitempty"`
	Resolution *models.Resolution `json:"resolution,omitempty"`
}

// RenderResponse is a resolved composition, optionally narrowed to a frame.
type RenderResponse struct {
	timeline.Composition
	Frame *int `json:"frame,omitempty"`
}

type Handler struct {
	projects storage.ProjectRepository
	sessions SessionCloser
	resolver *timeline.Resolver
}

func NewHandler(projects storage.ProjectRepository, sessions SessionCloser, resolver *timeline.Resolver) *Handler {
	return &Handler{projects: projects, sessions: sessions, resolver: resolver}
}

// List returns the caller's projects; admins see every project.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		projects []*models.Project
		err      error
	)
	if middleware.GetRole(ctx) == models.RoleAdmin {
		projects, err = h.projects.List(ctx)
	} else {
		projects, err = h.projects.ListByOwner(ctx, middleware.GetUserID(ctx))
	}
	if err != nil {
		respond.Err(w, "list projects", err)
		return
	}

	resp := make([]ProjectSummary, len(projects))
	for i, p := range projects {
		resp[i] = toSummary(p)
	}
	respond.OK(w, resp)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	if err := ValidateName(req.Name); err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	p := models.NewProject(strings.TrimSpace(req.Name), middleware.GetUserID(ctx))
	p.ID = uuid.New().String()
	if req.FPS != nil {
		if err := ValidateFPS(*req.FPS); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
		p.FPS = *req.FPS
	}
	if req.Resolution != nil {
		if err := ValidateResolution(*req.Resolution); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
		p.Resolution = *req.Resolution
	}

	if err := h.projects.Create(ctx, p); err != nil {
		respond.Err(w, "create project", err)
		return
	}

	log.Printf("project created: %s (%s) by %s", p.Name, p.ID, p.OwnerID)
	respond.Created(w, p)
}

// Get returns the stored project document.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r, "get project")
	if !ok {
		return
	}
	respond.OK(w, p)
}

// Delete removes a project and ends any editing session on it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	p, ok := h.load(w, r, "delete project")
	if !ok {
		return
	}

	h.sessions.CloseProject(p.ID)
	if err := h.projects.Delete(r.Context(), p.ID); err != nil {
		respond.Err(w, "delete project", err)
		return
	}

	log.Printf("project deleted: %s (%s)", p.Name, p.ID)
	respond.NoContent(w)
}

// Render resolves the stored project into render instructions. The frame
// rate may be overridden with ?fps= and the output narrowed with ?frame=.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fps float64
	if raw := q.Get("fps"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			respond.JSONError(w, respond.NewValidationError("fps must be a number"))
			return
		}
		if err := ValidateFPS(v); err != nil {
			respond.JSONError(w, respond.NewValidationError(err.Error()))
			return
		}
		fps = v
	}
	frame, err := ParseFrame(q.Get("frame"))
	if err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	p, ok := h.load(w, r, "render project")
	if !ok {
		return
	}
	if fps > 0 {
		p.FPS = fps
	}

	respond.OK(w, Compose(h.resolver, p, frame))
}

// Compose resolves p and, when frame is set, keeps only the instructions
// visible at that frame.
func Compose(resolver *timeline.Resolver, p *models.Project, frame *int) RenderResponse {
	c := resolver.Compose(p)
	if frame != nil {
		c.Instructions = c.Frame(*frame)
	}
	return RenderResponse{Composition: c, Frame: frame}
}

// ParseFrame parses the optional ?frame= query value.
func ParseFrame(raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return nil, errors.New("frame must be a non-negative integer")
	}
	return &v, nil
}

// load fetches the project named in the URL. Projects of other accounts are
// reported as missing unless the caller is an admin.
func (h *Handler) load(w http.ResponseWriter, r *http.Request, op string) (*models.Project, bool) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	p, err := h.projects.Load(ctx, id)
	if err != nil {
		respond.Err(w, op, err)
		return nil, false
	}
	if p.OwnerID != middleware.GetUserID(ctx) && middleware.GetRole(ctx) != models.RoleAdmin {
		respond.Err(w, op, apperr.Newf(apperr.KindNotFound, op, "project not found: %s", id))
		return nil, false
	}
	return p, true
}

func toSummary(p *models.Project) ProjectSummary {
	return ProjectSummary{
		ID:           p.ID,
		OwnerID:      p.OwnerID,
		Name:         p.Name,
		FPS:          p.FPS,
		Resolution:   p.Resolution,
		ElementCount: len(p.Elements),
		LastSyncedAt: p.LastSyncedAt,
		CreatedAt:    p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.Format(time.RFC3339),
	}
}
