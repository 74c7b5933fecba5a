package auth

import (
	"testing"
	"time"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time            { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLockout(threshold int, d time.Duration) (*LockoutTracker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	tracker := NewLockoutTracker(threshold, d)
	tracker.now = clock.now
	return tracker, clock
}

func TestLockoutTracker_Basic(t *testing.T) {
	tracker, _ := newTestLockout(3, time.Minute)

	if tracker.IsLocked("editor") {
		t.Error("user should not be locked initially")
	}
	tracker.RecordFailure("editor")
	if tracker.RecordFailure("editor") {
		t.Error("second failure should not lock (threshold=3)")
	}
	if !tracker.RecordFailure("editor") {
		t.Error("third failure should lock")
	}
	if !tracker.IsLocked("editor") {
		t.Error("user should be locked after 3 failures")
	}
	if tracker.IsLocked("someone-else") {
		t.Error("lockout must be per key")
	}
}

func TestLockoutTracker_Expires(t *testing.T) {
	tracker, clock := newTestLockout(2, time.Minute)

	tracker.RecordFailure("editor")
	tracker.RecordFailure("editor")
	if got := tracker.RemainingLockoutTime("editor"); got != time.Minute {
		t.Errorf("remaining = %v, want 1m", got)
	}

	clock.advance(time.Minute)
	if tracker.IsLocked("editor") {
		t.Error("lockout should have expired")
	}

	// Counting starts over after expiry.
	if tracker.RecordFailure("editor") {
		t.Error("first failure after expiry should not lock")
	}
}

func TestLockoutTracker_ClearFailures(t *testing.T) {
	tracker, _ := newTestLockout(2, time.Hour)

	tracker.RecordFailure("editor")
	tracker.ClearFailures("editor")
	tracker.RecordFailure("editor")
	if tracker.IsLocked("editor") {
		t.Error("user should not be locked after clear and 1 failure")
	}
}

func TestLockoutTracker_Prune(t *testing.T) {
	tracker, clock := newTestLockout(1, time.Minute)

	tracker.RecordFailure("a")
	clock.advance(2 * time.Minute)
	tracker.RecordFailure("b")
	tracker.prune()

	if _, ok := tracker.entries["a"]; ok {
		t.Error("expired entry should be pruned")
	}
	if _, ok := tracker.entries["b"]; !ok {
		t.Error("active lockout should be kept")
	}
}
