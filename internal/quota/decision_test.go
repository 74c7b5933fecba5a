package quota

import (
	"math"
	"testing"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

var now = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func TestEvaluate_FreeExhausted(t *testing.T) {
	counter := models.UsageCounter{Resource: models.ResourceAIGenerations, Count: 3, ResetAt: now.AddDate(0, 0, -5)}

	d, _ := Evaluate(counter, 3, models.TierFree, ResetMonthly, now)
	if d.CanProceed {
		t.Error("CanProceed should be false")
	}
	if d.Remaining != 0 {
		t.Errorf("Remaining = %d, want 0", d.Remaining)
	}
	if d.RemainingValue() != int64(0) {
		t.Errorf("RemainingValue = %v, want 0", d.RemainingValue())
	}
	if d.Reset {
		t.Error("counter should not reset within the month")
	}
}

func TestEvaluate_PremiumUnlimited(t *testing.T) {
	counter := models.UsageCounter{Count: 3, ResetAt: now.AddDate(0, 0, -5)}

	d, _ := Evaluate(counter, 3, models.TierPremium, ResetMonthly, now)
	if !d.CanProceed {
		t.Error("premium should proceed")
	}
	if !d.Unlimited || d.RemainingValue() != Unlimited {
		t.Errorf("RemainingValue = %v, want %q", d.RemainingValue(), Unlimited)
	}
}

func TestEvaluate_UnderLimit(t *testing.T) {
	counter := models.UsageCounter{Count: 1, ResetAt: now.AddDate(0, 0, -1)}

	d, _ := Evaluate(counter, 3, models.TierFree, ResetMonthly, now)
	if !d.CanProceed || d.Remaining != 2 || d.EffectiveUsage != 1 {
		t.Errorf("decision = %+v", d)
	}
	if d.NextResetAt == nil || !d.NextResetAt.Equal(counter.ResetAt.AddDate(0, 1, 0)) {
		t.Errorf("NextResetAt = %v", d.NextResetAt)
	}
}

func TestEvaluate_LazyMonthlyReset(t *testing.T) {
	counter := models.UsageCounter{Count: 3, ResetAt: now.AddDate(0, 0, -40)}

	d, updated := Evaluate(counter, 3, models.TierFree, ResetMonthly, now)
	if !d.Reset {
		t.Fatal("counter 40 days old should reset")
	}
	if d.EffectiveUsage != 0 || !d.CanProceed || d.Remaining != 3 {
		t.Errorf("decision = %+v", d)
	}
	if updated.Count != 0 || !updated.ResetAt.Equal(now) {
		t.Errorf("updated counter = %+v", updated)
	}
}

func TestEvaluate_ResetNever(t *testing.T) {
	counter := models.UsageCounter{Count: 3, ResetAt: now.AddDate(-1, 0, 0)}

	d, updated := Evaluate(counter, 3, models.TierFree, ResetNever, now)
	if d.Reset || updated.Count != 3 || d.CanProceed {
		t.Errorf("decision = %+v, counter = %+v", d, updated)
	}
	if d.NextResetAt != nil {
		t.Error("ResetNever has no next reset")
	}
}

func TestExpired_CalendarMonth(t *testing.T) {
	tests := []struct {
		name    string
		resetAt time.Time
		now     time.Time
		want    bool
	}{
		// March 31 minus one month normalises to March 3 (Feb 31).
		{"end of month normalisation", time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC), now, true},
		{"exactly one month", time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC), false},
		{"one month and a second", time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 15, 0, 0, 1, 0, time.UTC), true},
		{"thirty days in a 31-day month", time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC), false},
		{"forty days", now.AddDate(0, 0, -40), now, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.resetAt, tt.now); got != tt.want {
				t.Errorf("Expired = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdmitUpload(t *testing.T) {
	limit := StorageLimit{CeilingBytes: 5 * gib, MaxItemBytes: 500 * mib}
	nearlyFullRatio := 4.9
	nearlyFull := int64(nearlyFullRatio * float64(gib))

	tests := []struct {
		name      string
		used      int64
		requested int64
		tier      models.Tier
		wantOK    bool
		reason    string
	}{
		{"aggregate exceeded", nearlyFull, 200 * mib, models.TierFree, false, ReasonStorageFull},
		{"fits", 1 * gib, 200 * mib, models.TierFree, true, ""},
		{"exactly at ceiling", 5*gib - 100, 100, models.TierFree, true, ""},
		{"one byte over", 5*gib - 100, 101, models.TierFree, false, ReasonStorageFull},
		{"item too large", 0, 600 * mib, models.TierFree, false, ReasonItemTooLarge},
		{"premium bypasses aggregate", 50 * gib, 200 * mib, models.TierPremium, true, ""},
		{"premium still has item ceiling", 0, 600 * mib, models.TierPremium, false, ReasonItemTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := AdmitUpload(tt.used, tt.requested, limit, tt.tier)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.CanUpload != tt.wantOK {
				t.Errorf("CanUpload = %v, want %v", d.CanUpload, tt.wantOK)
			}
			if d.Reason != tt.reason {
				t.Errorf("Reason = %q, want %q", d.Reason, tt.reason)
			}
		})
	}
}

func TestAdmitUpload_HugeRequestWithoutItemCeiling(t *testing.T) {
	limit := StorageLimit{CeilingBytes: 5 * gib}
	d, err := AdmitUpload(gib, math.MaxInt64, limit, models.TierFree)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.CanUpload {
		t.Error("request near MaxInt64 was admitted")
	}
	if d.Reason != ReasonStorageFull {
		t.Errorf("Reason = %q, want %q", d.Reason, ReasonStorageFull)
	}
}

func TestAdmitUpload_NegativeSize(t *testing.T) {
	_, err := AdmitUpload(0, -1, StorageLimit{CeilingBytes: gib}, models.TierFree)
	if !apperr.Is(err, apperr.KindInvalidInput) {
		t.Errorf("err = %v, want invalid input", err)
	}
}
