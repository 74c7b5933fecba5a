package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/metrics"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

const (
	gib = int64(1) << 30
	mib = int64(1) << 20
)

// Limits are the numeric limits for free accounts. Premium accounts bypass
// the generation limit and the aggregate storage ceiling.
type Limits struct {
	FreeGenerations  int64 `yaml:"free_generations"`
	FreeStorageBytes int64 `yaml:"free_storage_bytes"`
	MaxUploadBytes   int64 `yaml:"max_upload_bytes"`
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		FreeGenerations:  3,
		FreeStorageBytes: 5 * gib,
		MaxUploadBytes:   500 * mib,
	}
}

// Validate checks the limits for errors.
func (l Limits) Validate() error {
	if l.FreeGenerations < 0 {
		return fmt.Errorf("free_generations must not be negative")
	}
	if l.FreeStorageBytes <= 0 {
		return fmt.Errorf("free_storage_bytes must be positive")
	}
	if l.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}
	return nil
}

// TierSource resolves an account's billing tier. A missing profile is
// reported as an apperr NotFound and treated as free.
type TierSource interface {
	GetTier(ctx context.Context, userID string) (models.Tier, error)
}

// UsageStore reads and replaces usage counters. Get returns nil when the
// account has no counter yet.
type UsageStore interface {
	Get(ctx context.Context, userID string, resource models.Resource) (*models.UsageCounter, error)
	Put(ctx context.Context, counter *models.UsageCounter) error
}

// ObjectLister is the authoritative listing of an account's stored objects.
type ObjectLister interface {
	List(ctx context.Context, ownerID string) ([]*models.StoredObject, error)
}

// Tracker applies the pure decision functions to stored state.
type Tracker struct {
	tiers   TierSource
	usage   UsageStore
	objects ObjectLister

	mu     sync.RWMutex
	limits Limits
	now    func() time.Time

	// consumeMu serialises check-then-increment within this process.
	consumeMu sync.Mutex
}

// NewTracker creates a tracker. Zero limits fall back to DefaultLimits.
func NewTracker(tiers TierSource, usage UsageStore, objects ObjectLister, limits Limits) *Tracker {
	if limits == (Limits{}) {
		limits = DefaultLimits()
	}
	return &Tracker{
		tiers:   tiers,
		usage:   usage,
		objects: objects,
		limits:  limits,
		now:     time.Now,
	}
}

// SetClock replaces the time source.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
}

// Limits returns the current limits.
func (t *Tracker) Limits() Limits {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.limits
}

// SetLimits replaces the limits of a running tracker.
func (t *Tracker) SetLimits(l Limits) error {
	if err := l.Validate(); err != nil {
		return apperr.New(apperr.KindInvalidInput, "set limits", err)
	}
	t.mu.Lock()
	t.limits = l
	t.mu.Unlock()
	return nil
}

func (t *Tracker) clock() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.now()
}

// Tier resolves the account tier, defaulting to free when no profile exists.
func (t *Tracker) Tier(ctx context.Context, userID string) (models.Tier, error) {
	tier, err := t.tiers.GetTier(ctx, userID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return models.TierFree, nil
		}
		return "", apperr.New(apperr.KindStorageUnavailable, "get tier", err)
	}
	return tier, nil
}

// CheckGeneration reports the AI generation allowance. An expired counter is
// reset and persisted before the decision is returned.
func (t *Tracker) CheckGeneration(ctx context.Context, userID string) (Decision, error) {
	d, _, err := t.checkGeneration(ctx, userID)
	record(models.ResourceAIGenerations, d.CanProceed, err)
	return d, err
}

// ConsumeGeneration checks the allowance and, when admitted, records one
// generation. An exhausted quota returns CanProceed=false and no error.
func (t *Tracker) ConsumeGeneration(ctx context.Context, userID string) (Decision, error) {
	t.consumeMu.Lock()
	defer t.consumeMu.Unlock()

	d, counter, err := t.checkGeneration(ctx, userID)
	if err != nil || !d.CanProceed {
		record(models.ResourceAIGenerations, false, err)
		return d, err
	}

	counter.Count = d.EffectiveUsage + 1
	if err := t.usage.Put(ctx, &counter); err != nil {
		err = apperr.New(apperr.KindStorageUnavailable, "record generation", err)
		record(models.ResourceAIGenerations, false, err)
		return d, err
	}

	d.EffectiveUsage = counter.Count
	if !d.Unlimited {
		d.Remaining = 0
		if remaining := d.Limit - d.EffectiveUsage; remaining > 0 {
			d.Remaining = remaining
		}
	}
	record(models.ResourceAIGenerations, true, nil)
	return d, nil
}

func (t *Tracker) checkGeneration(ctx context.Context, userID string) (Decision, models.UsageCounter, error) {
	tier, err := t.Tier(ctx, userID)
	if err != nil {
		return Decision{}, models.UsageCounter{}, err
	}

	now := t.clock()
	stored, err := t.usage.Get(ctx, userID, models.ResourceAIGenerations)
	if err != nil {
		return Decision{}, models.UsageCounter{}, apperr.New(apperr.KindStorageUnavailable, "get usage", err)
	}
	counter := models.UsageCounter{UserID: userID, Resource: models.ResourceAIGenerations, ResetAt: now}
	if stored != nil {
		counter = *stored
	}

	d, counter := Evaluate(counter, t.Limits().FreeGenerations, tier, ResetMonthly, now)
	if d.Reset {
		if err := t.usage.Put(ctx, &counter); err != nil {
			return Decision{}, models.UsageCounter{}, apperr.New(apperr.KindStorageUnavailable, "reset usage", err)
		}
		metrics.QuotaResetsTotal.Inc()
	}
	return d, counter, nil
}

// StorageUsage sums the sizes of every stored object the account owns.
// It re-lists on every call so the total is never stale.
func (t *Tracker) StorageUsage(ctx context.Context, userID string) (int64, error) {
	objects, err := t.objects.List(ctx, userID)
	if err != nil {
		return 0, apperr.New(apperr.KindStorageUnavailable, "list objects", err)
	}
	var used int64
	for _, o := range objects {
		if o.SizeBytes > 0 {
			used += o.SizeBytes
		}
	}
	return used, nil
}

// CheckUpload decides whether requestedBytes may be uploaded.
func (t *Tracker) CheckUpload(ctx context.Context, userID string, requestedBytes int64) (UploadDecision, error) {
	if requestedBytes < 0 {
		return UploadDecision{}, apperr.Newf(apperr.KindInvalidInput, "check upload", "requested size must not be negative: %d", requestedBytes)
	}

	tier, err := t.Tier(ctx, userID)
	if err != nil {
		record(resourceStorage, false, err)
		return UploadDecision{}, err
	}
	used, err := t.StorageUsage(ctx, userID)
	if err != nil {
		record(resourceStorage, false, err)
		return UploadDecision{}, err
	}

	l := t.Limits()
	d, err := AdmitUpload(used, requestedBytes, StorageLimit{CeilingBytes: l.FreeStorageBytes, MaxItemBytes: l.MaxUploadBytes}, tier)
	record(resourceStorage, d.CanUpload, err)
	return d, err
}

const resourceStorage models.Resource = "storage_bytes"

func record(resource models.Resource, allowed bool, err error) {
	result := "denied"
	switch {
	case err != nil:
		result = "error"
	case allowed:
		result = "allowed"
	}
	metrics.QuotaChecksTotal.WithLabelValues(string(resource), result).Inc()
}
