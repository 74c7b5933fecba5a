// Package autosave persists editing sessions in the background.
//
// A Scheduler collapses bursts of mutations into one save, keeps at most one
// save in flight and never lets an older snapshot overwrite a newer one.
package autosave

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/metrics"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

// State is the scheduler's position in its save cycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateSaving
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateSaving:
		return "saving"
	default:
		return "unknown"
	}
}

// EventKind distinguishes user edits from internally generated state loads.
type EventKind int

const (
	// EventMutation is a user edit that should eventually be persisted.
	EventMutation EventKind = iota
	// EventRehydrate is a load from storage; it never triggers a save.
	EventRehydrate
)

// Event is one state change observed by the scheduler.
type Event struct {
	Kind     EventKind
	Snapshot *models.Project
}

// SaveRequest is one debounced persistence attempt.
type SaveRequest struct {
	ProjectID string
	Snapshot  *models.Project
	IssuedAt  time.Time
}

// Saver writes a project snapshot to durable storage.
type Saver interface {
	SaveProject(ctx context.Context, project *models.Project, ownerID string) error
}

// Config holds scheduler timing.
type Config struct {
	Delay       time.Duration `yaml:"delay"`
	SaveTimeout time.Duration `yaml:"save_timeout"`
}

// DefaultConfig returns the default timing.
func DefaultConfig() Config {
	return Config{
		Delay:       time.Second,
		SaveTimeout: 10 * time.Second,
	}
}

// Stats counts scheduler outcomes.
type Stats struct {
	Saves      int64
	Failures   int64
	Skipped    int64 // project switched before the save started
	Stale      int64 // project switched while the save was running
	Superseded int64
	Ignored    int64
	LastSaved  time.Time
	LastError  error
}

// Options configure a Scheduler.
type Options struct {
	Config Config
	Saver  Saver
	// OwnerID is the account the snapshots are saved for.
	OwnerID string
	// CurrentProject returns the id of the project currently being edited,
	// or "" once the session has ended.
	CurrentProject func() string
	// OnSaved is called after a save that is still current. Optional.
	OnSaved func(snapshot *models.Project, savedAt time.Time)
	Verbose bool
}

// Scheduler is the per-session debounced save pipeline.
type Scheduler struct {
	cfg     Config
	saver   Saver
	owner   string
	current func() string
	onSaved func(*models.Project, time.Time)
	verbose bool
	now     func() time.Time

	mu       sync.Mutex
	state    State
	pending  *SaveRequest
	timer    *time.Timer
	gen      uint64
	deferred bool
	closed   bool
	stats    Stats

	wg sync.WaitGroup
}

// New creates an idle scheduler.
func New(opts Options) *Scheduler {
	cfg := opts.Config
	def := DefaultConfig()
	if cfg.Delay <= 0 {
		cfg.Delay = def.Delay
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}
	current := opts.CurrentProject
	if current == nil {
		current = func() string { return "" }
	}
	return &Scheduler{
		cfg:     cfg,
		saver:   opts.Saver,
		owner:   opts.OwnerID,
		current: current,
		onSaved: opts.OnSaved,
		verbose: opts.Verbose,
		now:     time.Now,
	}
}

// Notify feeds an event into the scheduler. Mutations open or restart the
// debounce window with the event's snapshot; rehydrate events are ignored.
// Notify never blocks on storage.
func (s *Scheduler) Notify(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if ev.Kind == EventRehydrate {
		s.stats.Ignored++
		return
	}
	if ev.Snapshot == nil {
		return
	}

	if s.pending != nil {
		s.stats.Superseded++
		metrics.AutosaveSupersededTotal.Inc()
	}
	s.pending = &SaveRequest{
		ProjectID: ev.Snapshot.ID,
		Snapshot:  ev.Snapshot,
		IssuedAt:  s.now(),
	}
	if s.state == StateIdle {
		s.state = StatePending
	}
	s.armLocked()
}

// armLocked (re)starts the debounce timer. Timers from earlier generations
// fire into a no-op.
func (s *Scheduler) armLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
	gen := s.gen
	s.timer = time.AfterFunc(s.cfg.Delay, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || gen != s.gen {
		return
	}
	s.timer = nil

	if s.state == StateSaving {
		s.deferred = true
		return
	}
	req := s.pending
	s.pending = nil
	if req == nil {
		s.state = StateIdle
		return
	}

	s.state = StateSaving
	s.wg.Add(1)
	go s.run(req)
}

func (s *Scheduler) run(req *SaveRequest) {
	defer s.wg.Done()
	defer s.finish()

	if s.current() != req.ProjectID {
		s.count(func(st *Stats) { st.Skipped++ })
		metrics.AutosaveSavesTotal.WithLabelValues("skipped").Inc()
		if s.verbose {
			log.Printf("autosave: skip save of %s: project no longer current", req.ProjectID)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SaveTimeout)
	defer cancel()

	start := time.Now()
	err := s.saver.SaveProject(ctx, req.Snapshot, s.owner)
	metrics.AutosaveSaveDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		err = apperr.New(apperr.KindPersistenceFailure, "save project "+req.ProjectID, err)
		s.count(func(st *Stats) {
			st.Failures++
			st.LastError = err
		})
		metrics.AutosaveSavesTotal.WithLabelValues("failure").Inc()
		log.Printf("autosave error: %v", err)
		return
	}

	savedAt := s.now()
	if s.current() != req.ProjectID {
		s.count(func(st *Stats) { st.Stale++ })
		metrics.AutosaveSavesTotal.WithLabelValues("stale").Inc()
		return
	}

	s.count(func(st *Stats) {
		st.Saves++
		st.LastSaved = savedAt
		st.LastError = nil
	})
	metrics.AutosaveSavesTotal.WithLabelValues("success").Inc()
	if s.onSaved != nil {
		s.onSaved(req.Snapshot, savedAt)
	}
}

// finish leaves the Saving state. A snapshot recorded during the save stays
// pending; if its timer already fired, the window is reopened.
func (s *Scheduler) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pending == nil {
		s.state = StateIdle
		s.deferred = false
		return
	}
	s.state = StatePending
	if s.deferred {
		s.deferred = false
		s.armLocked()
	}
}

func (s *Scheduler) count(fn func(*Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
}

// State returns the current state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Stats returns a copy of the outcome counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close cancels any pending save and waits for an in-flight save to finish.
// Events after Close are dropped.
func (s *Scheduler) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.gen++
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.pending = nil
	}
	s.mu.Unlock()

	s.wg.Wait()
}
