// Package health serves liveness and readiness for the editing backend.
package health

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// checkTimeout bounds each readiness checker.
const checkTimeout = 5 * time.Second

// Checker defines the interface for health checkers.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// SessionReporter exposes the editing sessions held in memory.
type SessionReporter interface {
	Count() int
	Failing() int
}

// Handler serves /health, /health/live and /health/ready.
type Handler struct {
	version string
	started time.Time

	mu       sync.RWMutex
	checkers []Checker
	sessions SessionReporter
}

// NewHandler creates a new health handler reporting version.
func NewHandler(version string) *Handler {
	return &Handler{
		version: version,
		started: time.Now(),
	}
}

// RegisterChecker adds a dependency checker.
func (h *Handler) RegisterChecker(c Checker) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checkers = append(h.checkers, c)
}

// SetSessions makes /health report the number of open editing sessions.
func (h *Handler) SetSessions(r SessionReporter) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessions = r
}

// CheckResult is the outcome of one readiness checker.
type CheckResult struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Version  string                 `json:"version,omitempty"`
	Uptime   string                 `json:"uptime,omitempty"`
	Sessions *int                   `json:"sessions,omitempty"`
	Checks   map[string]CheckResult `json:"checks,omitempty"`
}

// Health reports that the process is up, with its version, uptime and the
// number of editing sessions it holds.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Version: h.version,
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	}
	h.mu.RLock()
	if h.sessions != nil {
		n := h.sessions.Count()
		resp.Sessions = &n
	}
	h.mu.RUnlock()
	writeJSON(w, http.StatusOK, resp)
}

// Live answers 200 while the process can serve requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "live"})
}

// Ready runs every registered checker concurrently and answers 200 only if
// all of them pass.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	checkers := make([]Checker, len(h.checkers))
	copy(checkers, h.checkers)
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]CheckResult, len(checkers))
		g       errgroup.Group
	)
	for _, c := range checkers {
		g.Go(func() error {
			res := runCheck(r.Context(), c)
			mu.Lock()
			results[c.Name()] = res
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	resp := HealthResponse{Status: "ready", Version: h.version, Checks: results}
	status := http.StatusOK
	for _, res := range results {
		if res.Status != "ok" {
			resp.Status = "not_ready"
			status = http.StatusServiceUnavailable
			break
		}
	}
	writeJSON(w, status, resp)
}

func runCheck(ctx context.Context, c Checker) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := c.Check(ctx)
	res := CheckResult{Status: "ok", LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		log.Printf("readiness check %s failed after %dms: %v", c.Name(), res.LatencyMS, err)
		res.Status = "failing"
		res.Error = err.Error()
	}
	return res
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("health: encode response: %v", err)
	}
}
