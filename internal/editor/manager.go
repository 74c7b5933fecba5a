package editor

import (
	"context"
	"log"
	"sync"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/autosave"
	"github.com/good-yellow-bee/clipforge/internal/metrics"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

// ProjectStore loads and saves whole project documents.
type ProjectStore interface {
	Load(ctx context.Context, id string) (*models.Project, error)
	Save(ctx context.Context, project *models.Project, ownerID string) error
}

// StoreSaver adapts a ProjectStore to the autosave Saver interface.
type StoreSaver struct {
	Store ProjectStore
}

// SaveProject implements autosave.Saver.
func (s StoreSaver) SaveProject(ctx context.Context, project *models.Project, ownerID string) error {
	return s.Store.Save(ctx, project, ownerID)
}

// Manager tracks one active editing session per account.
type Manager struct {
	store   ProjectStore
	saver   autosave.Saver
	cfg     autosave.Config
	verbose bool

	mu       sync.Mutex
	sessions map[string]*Session
	opening  map[string]*sync.Mutex // per-user Open serialisation
}

// NewManager creates a session manager persisting through store.
func NewManager(store ProjectStore, cfg autosave.Config, verbose bool) *Manager {
	return &Manager{
		store:    store,
		saver:    StoreSaver{Store: store},
		cfg:      cfg,
		verbose:  verbose,
		sessions: make(map[string]*Session),
		opening:  make(map[string]*sync.Mutex),
	}
}

// Open loads a project into a new session for userID. Opens for one user
// are serialised. A previous session on the same project is closed before
// the load, so a save it has in flight lands first and is what gets loaded.
// A session on another project is closed only once the new one is ready.
// Projects of other accounts are reported as not found.
func (m *Manager) Open(ctx context.Context, userID, projectID string) (*Session, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	m.mu.Lock()
	prev := m.sessions[userID]
	if prev != nil && prev.ProjectID() == projectID {
		delete(m.sessions, userID)
	} else {
		prev = nil
	}
	m.mu.Unlock()

	if prev != nil {
		prev.close()
		metrics.EditorSessionsActive.Dec()
	}

	project, err := m.store.Load(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != userID {
		return nil, apperr.Newf(apperr.KindNotFound, "open session", "project not found: %s", projectID)
	}

	sess := newSession(userID, project)
	sess.sched = autosave.New(autosave.Options{
		Config:         m.cfg,
		Saver:          m.saver,
		OwnerID:        userID,
		CurrentProject: sess.currentProject,
		OnSaved:        sess.markSynced,
		Verbose:        m.verbose,
	})
	sess.sched.Notify(autosave.Event{Kind: autosave.EventRehydrate, Snapshot: project.Clone()})

	m.mu.Lock()
	replaced := m.sessions[userID]
	m.sessions[userID] = sess
	m.mu.Unlock()

	if replaced != nil {
		replaced.close()
	} else {
		metrics.EditorSessionsActive.Inc()
	}
	if m.verbose {
		log.Printf("editor: user %s opened project %s (session %s)", userID, projectID, sess.id)
	}
	return sess, nil
}

func (m *Manager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	lock, ok := m.opening[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.opening[userID] = lock
	}
	return lock
}

// Get returns the user's active session.
func (m *Manager) Get(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[userID]
	if !ok {
		return nil, apperr.Newf(apperr.KindNotFound, "get session", "no active editing session")
	}
	return sess, nil
}

// Close ends the user's active session.
func (m *Manager) Close(userID string) error {
	m.mu.Lock()
	sess, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()

	if !ok {
		return apperr.Newf(apperr.KindNotFound, "close session", "no active editing session")
	}
	sess.close()
	metrics.EditorSessionsActive.Dec()
	return nil
}

// CloseProject ends every session editing projectID, for example after the
// project was deleted.
func (m *Manager) CloseProject(projectID string) {
	m.mu.Lock()
	var closing []*Session
	for userID, sess := range m.sessions {
		if sess.ProjectID() == projectID {
			closing = append(closing, sess)
			delete(m.sessions, userID)
		}
	}
	m.mu.Unlock()

	for _, sess := range closing {
		sess.close()
		metrics.EditorSessionsActive.Dec()
	}
}

// CloseAll ends every session and waits for in-flight saves.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range sessions {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.close()
		}(sess)
	}
	wg.Wait()
	metrics.EditorSessionsActive.Sub(float64(len(sessions)))
}

// Failing returns the number of active sessions whose last save failed.
func (m *Manager) Failing() int {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	failing := 0
	for _, sess := range sessions {
		if sess.SyncState().LastError != "" {
			failing++
		}
	}
	return failing
}

// Count returns the number of active sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
