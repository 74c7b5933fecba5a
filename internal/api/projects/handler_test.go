package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/good-yellow-bee/clipforge/internal/api/auth"
	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/timeline"
)

type mockProjectRepository struct {
	projects  map[string]*models.Project
	listError error
}

func newMockRepo(projects ...*models.Project) *mockProjectRepository {
	m := &mockProjectRepository{projects: make(map[string]*models.Project)}
	for _, p := range projects {
		m.projects[p.ID] = p
	}
	return m
}

func (m *mockProjectRepository) Create(ctx context.Context, p *models.Project) error {
	m.projects[p.ID] = p.Clone()
	return nil
}

func (m *mockProjectRepository) Load(ctx context.Context, id string) (*models.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "load project", "project not found: %s", id)
	}
	return p.Clone(), nil
}

func (m *mockProjectRepository) Save(ctx context.Context, p *models.Project, ownerID string) error {
	m.projects[p.ID] = p.Clone()
	return nil
}

func (m *mockProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*models.Project, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	var out []*models.Project
	for _, p := range m.projects {
		if p.OwnerID == ownerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProjectRepository) List(ctx context.Context) ([]*models.Project, error) {
	if m.listError != nil {
		return nil, m.listError
	}
	out := make([]*models.Project, 0, len(m.projects))
	for _, p := range m.projects {
		out = append(out, p)
	}
	return out, nil
}

func (m *mockProjectRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.projects[id]; !ok {
		return apperr.Newf(apperr.KindNotFound, "delete project", "project not found: %s", id)
	}
	delete(m.projects, id)
	return nil
}

type mockSessions struct {
	closed []string
}

func (m *mockSessions) CloseProject(projectID string) {
	m.closed = append(m.closed, projectID)
}

func testProject(id, owner string) *models.Project {
	p := models.NewProject("Launch teaser", owner)
	p.ID = id
	p.Elements = []models.TimelineElement{
		{ID: "title", Kind: models.KindText, PositionStart: 0, PositionEnd: 2, Opacity: 100, Seq: 1,
			Text: &models.TextProps{Content: "Hello", Align: models.AlignCenter}},
		{ID: "clip", Kind: models.KindMedia, PositionStart: 0, PositionEnd: 4, Opacity: 100, Seq: 2,
			Media: &models.MediaProps{Source: "s3://bucket/clip.mp4", Volume: 100}},
	}
	return p
}

func asUser(r *http.Request, id string, role models.Role) *http.Request {
	claims := &auth.Claims{UserID: id, Username: id, Role: role}
	return r.WithContext(middleware.WithClaims(r.Context(), claims))
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestList_ScopedToOwner(t *testing.T) {
	repo := newMockRepo(testProject("p1", "u1"), testProject("p2", "u2"))
	h := NewHandler(repo, &mockSessions{}, timeline.NewResolver(0))

	w := httptest.NewRecorder()
	h.List(w, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), "u1", models.RoleEditor))

	var resp struct {
		Data []ProjectSummary `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].ID != "p1" {
		t.Fatalf("got %+v, want only p1", resp.Data)
	}
	if resp.Data[0].ElementCount != 2 {
		t.Errorf("element_count = %d, want 2", resp.Data[0].ElementCount)
	}

	w = httptest.NewRecorder()
	h.List(w, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), "admin", models.RoleAdmin))
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 2 {
		t.Errorf("admin sees %d projects, want 2", len(resp.Data))
	}
}

func TestList_StorageDown(t *testing.T) {
	repo := newMockRepo()
	repo.listError = apperr.New(apperr.KindStorageUnavailable, "list", context.DeadlineExceeded)
	h := NewHandler(repo, &mockSessions{}, timeline.NewResolver(0))

	w := httptest.NewRecorder()
	h.List(w, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/projects", nil), "u1", models.RoleEditor))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", w.Code)
	}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantCode int
		wantFPS  float64
	}{
		{"defaults", `{"name":"Promo"}`, http.StatusCreated, models.DefaultFPS},
		{"custom fps", `{"name":"Promo","fps":24,"resolution":{"width":1080,"height":1920}}`, http.StatusCreated, 24},
		{"empty name", `{"name":"  "}`, http.StatusBadRequest, 0},
		{"zero fps", `{"name":"Promo","fps":0}`, http.StatusBadRequest, 0},
		{"huge fps", `{"name":"Promo","fps":1000}`, http.StatusBadRequest, 0},
		{"bad resolution", `{"name":"Promo","resolution":{"width":0,"height":10}}`, http.StatusBadRequest, 0},
		{"bad json", `not json`, http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMockRepo()
			h := NewHandler(repo, &mockSessions{}, timeline.NewResolver(0))

			req := asUser(httptest.NewRequest(http.MethodPost, "/api/v1/projects", bytes.NewBufferString(tt.body)), "u1", models.RoleEditor)
			w := httptest.NewRecorder()
			h.Create(w, req)

			if w.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantCode, w.Body.String())
			}
			if tt.wantCode != http.StatusCreated {
				if len(repo.projects) != 0 {
					t.Error("project stored on invalid input")
				}
				return
			}
			var resp struct {
				Data models.Project `json:"data"`
			}
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if resp.Data.OwnerID != "u1" || resp.Data.FPS != tt.wantFPS {
				t.Errorf("got owner=%q fps=%v", resp.Data.OwnerID, resp.Data.FPS)
			}
			if _, ok := repo.projects[resp.Data.ID]; !ok {
				t.Error("project not stored")
			}
		})
	}
}

func TestGet_ForeignProjectIsNotFound(t *testing.T) {
	repo := newMockRepo(testProject("p1", "u1"))
	h := NewHandler(repo, &mockSessions{}, timeline.NewResolver(0))

	tests := []struct {
		user     string
		role     models.Role
		wantCode int
	}{
		{"u1", models.RoleEditor, http.StatusOK},
		{"u2", models.RoleEditor, http.StatusNotFound},
		{"root", models.RoleAdmin, http.StatusOK},
	}
	for _, tt := range tests {
		req := withID(asUser(httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1", nil), tt.user, tt.role), "p1")
		w := httptest.NewRecorder()
		h.Get(w, req)
		if w.Code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.user, w.Code, tt.wantCode)
		}
	}

	req := withID(asUser(httptest.NewRequest(http.MethodGet, "/api/v1/projects/nope", nil), "u1", models.RoleEditor), "nope")
	w := httptest.NewRecorder()
	h.Get(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing: status = %d, want 404", w.Code)
	}
}

func TestDelete_ClosesSessions(t *testing.T) {
	repo := newMockRepo(testProject("p1", "u1"))
	sessions := &mockSessions{}
	h := NewHandler(repo, sessions, timeline.NewResolver(0))

	req := withID(asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/projects/p1", nil), "u2", models.RoleEditor), "p1")
	w := httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusNotFound || len(sessions.closed) != 0 {
		t.Fatalf("foreign delete: status = %d, closed = %v", w.Code, sessions.closed)
	}

	req = withID(asUser(httptest.NewRequest(http.MethodDelete, "/api/v1/projects/p1", nil), "u1", models.RoleEditor), "p1")
	w = httptest.NewRecorder()
	h.Delete(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
	if len(sessions.closed) != 1 || sessions.closed[0] != "p1" {
		t.Errorf("closed = %v, want [p1]", sessions.closed)
	}
	if _, ok := repo.projects["p1"]; ok {
		t.Error("project still stored")
	}
}

func TestRender(t *testing.T) {
	repo := newMockRepo(testProject("p1", "u1"))
	h := NewHandler(repo, &mockSessions{}, timeline.NewResolver(0))

	render := func(query string) (*httptest.ResponseRecorder, RenderResponse) {
		req := withID(asUser(httptest.NewRequest(http.MethodGet, "/api/v1/projects/p1/render"+query, nil), "u1", models.RoleEditor), "p1")
		w := httptest.NewRecorder()
		h.Render(w, req)
		var resp struct {
			Data RenderResponse `json:"data"`
		}
		if w.Code == http.StatusOK {
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
		}
		return w, resp.Data
	}

	w, got := render("")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got.FPS != 30 || got.TotalFrames != 120 || len(got.Instructions) != 2 {
		t.Errorf("got fps=%v total=%d n=%d, want 30/120/2", got.FPS, got.TotalFrames, len(got.Instructions))
	}

	_, got = render("?fps=10")
	if got.TotalFrames != 40 {
		t.Errorf("fps=10 total = %d, want 40", got.TotalFrames)
	}
	if got.Instructions[0].ElementID != "title" || got.Instructions[0].DurationFrames != 20 {
		t.Errorf("first instruction = %+v", got.Instructions[0])
	}

	_, got = render("?fps=10&frame=25")
	if len(got.Instructions) != 1 || got.Instructions[0].ElementID != "clip" {
		t.Errorf("frame 25 = %+v, want only clip", got.Instructions)
	}
	if got.Frame == nil || *got.Frame != 25 {
		t.Errorf("frame = %v, want 25", got.Frame)
	}

	for _, q := range []string{"?fps=abc", "?fps=-1", "?fps=NaN", "?frame=-2", "?frame=x"} {
		if w, _ := render(q); w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, w.Code)
		}
	}
}
