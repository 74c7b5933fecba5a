package models

import "time"

// Resource names a metered, count-based resource.
type Resource string

const (
	ResourceAIGenerations Resource = "ai_generations"
)

// UsageCounter is the per-account usage record for one metered resource.
// Resetting replaces Count and ResetAt; it never increments.
type UsageCounter struct {
	UserID   string    `json:"user_id"`
	Resource Resource  `json:"resource"`
	Count    int64     `json:"count"`
	ResetAt  time.Time `json:"reset_at"`
}

// StoredObject is the metadata of an uploaded file. The bytes live in
// object storage; only the size matters for quota accounting.
type StoredObject struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Key       string    `json:"key"`
	SizeBytes int64     `json:"size_bytes"`
	CreatedAt time.Time `json:"created_at"`
}
