package auth

import (
	"context"
	"sync"
	"time"
)

type lockoutEntry struct {
	failures  int
	expiresAt time.Time // zero while not locked
}

// LockoutTracker locks a username after repeated failed logins. State is
// kept in memory and lost on restart.
type LockoutTracker struct {
	mu        sync.Mutex
	entries   map[string]*lockoutEntry
	threshold int
	duration  time.Duration
	now       func() time.Time
}

// NewLockoutTracker creates a tracker that locks after threshold failures
// for duration.
func NewLockoutTracker(threshold int, duration time.Duration) *LockoutTracker {
	return &LockoutTracker{
		entries:   make(map[string]*lockoutEntry),
		threshold: threshold,
		duration:  duration,
		now:       time.Now,
	}
}

// RecordFailure counts a failed attempt and reports whether key is now locked.
func (t *LockoutTracker) RecordFailure(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	entry, ok := t.entries[key]
	if !ok {
		entry = &lockoutEntry{}
		t.entries[key] = entry
	}

	if !entry.expiresAt.IsZero() {
		if now.Before(entry.expiresAt) {
			return true
		}
		*entry = lockoutEntry{}
	}

	entry.failures++
	if entry.failures >= t.threshold {
		entry.expiresAt = now.Add(t.duration)
		return true
	}
	return false
}

// IsLocked reports whether key is currently locked.
func (t *LockoutTracker) IsLocked(key string) bool {
	return t.RemainingLockoutTime(key) > 0
}

// RemainingLockoutTime returns how long key stays locked.
func (t *LockoutTracker) RemainingLockoutTime(key string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[key]
	if !ok || entry.expiresAt.IsZero() {
		return 0
	}
	if remaining := entry.expiresAt.Sub(t.now()); remaining > 0 {
		return remaining
	}
	return 0
}

// ClearFailures forgets key after a successful login.
func (t *LockoutTracker) ClearFailures(key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, key)
}

// Run prunes expired lockouts until ctx is canceled.
func (t *LockoutTracker) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.prune()
		}
	}
}

func (t *LockoutTracker) prune() {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for key, entry := range t.entries {
		if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
			delete(t.entries, key)
		}
	}
}
