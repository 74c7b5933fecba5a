// Package quota decides whether an account may consume a metered resource.
//
// Two resources share one contract: AI generations are count-based with a
// lazy calendar-month reset, storage is capacity-based and recomputed from
// the authoritative object listing on every check. Exhaustion is a normal
// Decision, never an error.
package quota

import (
	"time"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
	"github.com/good-yellow-bee/clipforge/internal/models"
)

// ResetPolicy controls how a count-based counter is reset.
type ResetPolicy int

const (
	// ResetNever keeps the counter until it is replaced explicitly.
	ResetNever ResetPolicy = iota
	// ResetMonthly zeroes the counter once a calendar month has passed since ResetAt.
	ResetMonthly
)

// Unlimited is the label reported as remaining for premium accounts.
const Unlimited = "unlimited"

// Decision is the outcome of a count-based check.
type Decision struct {
	Resource       models.Resource `json:"resource"`
	Tier           models.Tier     `json:"tier"`
	EffectiveUsage int64           `json:"effective_usage"`
	Limit          int64           `json:"limit"`
	Remaining      int64           `json:"-"`
	Unlimited      bool            `json:"unlimited"`
	CanProceed     bool            `json:"can_proceed"`
	Reset          bool            `json:"reset"`
	ResetAt        time.Time       `json:"reset_at"`
	NextResetAt    *time.Time      `json:"next_reset_at,omitempty"`
}

// RemainingValue is Remaining, or "unlimited" for premium accounts.
func (d Decision) RemainingValue() any {
	if d.Unlimited {
		return Unlimited
	}
	return d.Remaining
}

// Expired reports whether a counter last reset at resetAt is due for a
// monthly reset at now. Months are calendar months, not 30-day windows.
func Expired(resetAt, now time.Time) bool {
	return resetAt.Before(now.AddDate(0, -1, 0))
}

// Evaluate decides a count-based check. When the policy resets the counter,
// the returned counter carries Count 0 and ResetAt now and Decision.Reset is
// set; the caller must persist it before acting on the decision.
func Evaluate(counter models.UsageCounter, limit int64, tier models.Tier, policy ResetPolicy, now time.Time) (Decision, models.UsageCounter) {
	if policy == ResetMonthly && Expired(counter.ResetAt, now) {
		counter.Count = 0
		counter.ResetAt = now
		d := decide(counter, limit, tier, policy)
		d.Reset = true
		return d, counter
	}
	return decide(counter, limit, tier, policy), counter
}

func decide(counter models.UsageCounter, limit int64, tier models.Tier, policy ResetPolicy) Decision {
	usage := counter.Count
	if usage < 0 {
		usage = 0
	}
	d := Decision{
		Resource:       counter.Resource,
		Tier:           tier,
		EffectiveUsage: usage,
		Limit:          limit,
		ResetAt:        counter.ResetAt,
	}
	if policy == ResetMonthly {
		next := counter.ResetAt.AddDate(0, 1, 0)
		d.NextResetAt = &next
	}

	if tier.IsPremium() {
		d.Unlimited = true
		d.CanProceed = true
		return d
	}

	if remaining := limit - usage; remaining > 0 {
		d.Remaining = remaining
	}
	d.CanProceed = usage < limit
	return d
}

// StorageLimit is the capacity policy for one tier.
type StorageLimit struct {
	CeilingBytes int64 `json:"ceiling_bytes"`
	MaxItemBytes int64 `json:"max_item_bytes"`
}

// Upload rejection reasons.
const (
	ReasonItemTooLarge = "item_too_large"
	ReasonStorageFull  = "storage_full"
)

// UploadDecision is the outcome of a capacity-based check.
type UploadDecision struct {
	Tier           models.Tier `json:"tier"`
	UsedBytes      int64       `json:"used_bytes"`
	RequestedBytes int64       `json:"requested_bytes"`
	CeilingBytes   int64       `json:"ceiling_bytes"`
	MaxItemBytes   int64       `json:"max_item_bytes"`
	RemainingBytes int64       `json:"-"`
	Unlimited      bool        `json:"unlimited"`
	CanUpload      bool        `json:"can_upload"`
	Reason         string      `json:"reason,omitempty"`
}

// RemainingValue is RemainingBytes, or "unlimited" for premium accounts.
func (d UploadDecision) RemainingValue() any {
	if d.Unlimited {
		return Unlimited
	}
	return d.RemainingBytes
}

// AdmitUpload decides whether requested more bytes fit. The per-item ceiling
// applies to every tier; the aggregate ceiling counts the pending request and
// is bypassed for premium accounts. Both must pass.
func AdmitUpload(usedBytes, requestedBytes int64, limit StorageLimit, tier models.Tier) (UploadDecision, error) {
	if requestedBytes < 0 {
		return UploadDecision{}, apperr.Newf(apperr.KindInvalidInput, "admit upload", "requested size must not be negative: %d", requestedBytes)
	}
	if usedBytes < 0 {
		usedBytes = 0
	}

	d := UploadDecision{
		Tier:           tier,
		UsedBytes:      usedBytes,
		RequestedBytes: requestedBytes,
		CeilingBytes:   limit.CeilingBytes,
		MaxItemBytes:   limit.MaxItemBytes,
		Unlimited:      tier.IsPremium(),
	}
	if remaining := limit.CeilingBytes - usedBytes; remaining > 0 {
		d.RemainingBytes = remaining
	}

	itemOK := limit.MaxItemBytes <= 0 || requestedBytes <= limit.MaxItemBytes
	aggregateOK := d.Unlimited || requestedBytes <= limit.CeilingBytes-usedBytes

	switch {
	case !itemOK:
		d.Reason = ReasonItemTooLarge
	case !aggregateOK:
		d.Reason = ReasonStorageFull
	default:
		d.CanUpload = true
	}
	return d, nil
}
