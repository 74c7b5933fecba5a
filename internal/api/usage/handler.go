// Package usage exposes the account's generation and storage budgets.
package usage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/clipforge/internal/api/middleware"
	"github.com/good-yellow-bee/clipforge/internal/api/respond"
	"github.com/good-yellow-bee/clipforge/internal/models"
	"github.com/good-yellow-bee/clipforge/internal/quota"
	"github.com/good-yellow-bee/clipforge/internal/storage"
)

// Tracker is the quota decision source.
type Tracker interface {
	CheckGeneration(ctx context.Context, userID string) (quota.Decision, error)
	ConsumeGeneration(ctx context.Context, userID string) (quota.Decision, error)
	CheckUpload(ctx context.Context, userID string, requestedBytes int64) (quota.UploadDecision, error)
}

// GenerationResponse is a generation decision with its remaining budget.
type GenerationResponse struct {
	quota.Decision
	Remaining any `json:"remaining"`
}

// StorageResponse is a storage decision with human readable sizes.
type StorageResponse struct {
	quota.UploadDecision
	Remaining any    `json:"remaining"`
	Used      string `json:"used"`
	Ceiling   string `json:"ceiling"`
	MaxItem   string `json:"max_item"`
}

// SummaryResponse is the body of GET /quota.
type SummaryResponse struct {
	Generations GenerationResponse `json:"generations"`
	Storage     StorageResponse    `json:"storage"`
}

// UploadCheckRequest accepts size_bytes as a JSON number or a numeric string.
type UploadCheckRequest struct {
	SizeBytes json.RawMessage `json:"size_bytes"`
}

// UploadRequest records an object that passed the storage check.
type UploadRequest struct {
	Key       string          `json:"key"`
	SizeBytes json.RawMessage `json:"size_bytes"`
}

// UploadResponse is the stored object and the decision that admitted it.
type UploadResponse struct {
	Object  *models.StoredObject `json:"object"`
	Storage StorageResponse      `json:"storage"`
}

type Handler struct {
	tracker Tracker
	objects storage.ObjectRepository
}

func NewHandler(tracker Tracker, objects storage.ObjectRepository) *Handler {
	return &Handler{tracker: tracker, objects: objects}
}

// Summary reports both budgets without consuming anything.
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	gen, err := h.tracker.CheckGeneration(ctx, userID)
	if err != nil {
		respond.Err(w, "quota summary", err)
		return
	}
	st, err := h.tracker.CheckUpload(ctx, userID, 0)
	if err != nil {
		respond.Err(w, "quota summary", err)
		return
	}

	respond.OK(w, SummaryResponse{
		Generations: generationResponse(gen),
		Storage:     storageResponse(st),
	})
}

// Generate consumes one AI generation. An exhausted budget is answered with
// 429 and the decision in the error details.
func (h *Handler) Generate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	d, err := h.tracker.ConsumeGeneration(ctx, middleware.GetUserID(ctx))
	if err != nil {
		respond.Err(w, "consume generation", err)
		return
	}
	if !d.CanProceed {
		respond.JSONError(w, respond.NewQuotaExceeded("generation limit reached", generationResponse(d)))
		return
	}
	respond.OK(w, generationResponse(d))
}

// CheckUpload reports whether an upload of size_bytes would be admitted.
func (h *Handler) CheckUpload(w http.ResponseWriter, r *http.Request) {
	var req UploadCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	size, err := ParseSize(req.SizeBytes)
	if err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	d, err := h.tracker.CheckUpload(ctx, middleware.GetUserID(ctx), size)
	if err != nil {
		respond.Err(w, "check upload", err)
		return
	}
	respond.OK(w, storageResponse(d))
}

// Upload admits an object against the storage budget and records its
// metadata. Rejections carry the decision in the error details.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.JSONError(w, respond.NewBadRequest("invalid request body"))
		return
	}
	key := strings.TrimSpace(req.Key)
	if key == "" {
		respond.JSONError(w, respond.NewValidationError("key is required"))
		return
	}
	size, err := ParseSize(req.SizeBytes)
	if err != nil {
		respond.JSONError(w, respond.NewValidationError(err.Error()))
		return
	}

	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	d, err := h.tracker.CheckUpload(ctx, userID, size)
	if err != nil {
		respond.Err(w, "upload", err)
		return
	}
	if !d.CanUpload {
		respond.JSONError(w, respond.NewQuotaExceeded(uploadDenial(d.Reason), storageResponse(d)))
		return
	}

	obj := &models.StoredObject{
		ID:        uuid.New().String(),
		OwnerID:   userID,
		Key:       key,
		SizeBytes: size,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.objects.Create(ctx, obj); err != nil {
		respond.Err(w, "upload", err)
		return
	}

	log.Printf("object stored: %s (%s) for %s", obj.Key, humanize.IBytes(uint64(size)), userID)
	respond.Created(w, UploadResponse{Object: obj, Storage: storageResponse(d)})
}

var errSize = errors.New("size_bytes must be a whole number of bytes")

// ParseSize reads a byte count given as a JSON number or a numeric string.
func ParseSize(raw json.RawMessage) (int64, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, errors.New("size_bytes is required")
	}
	s := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &s); err != nil {
			return 0, errSize
		}
		s = strings.TrimSpace(s)
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errSize
	}
	return n, nil
}

func uploadDenial(reason string) string {
	if reason == quota.ReasonItemTooLarge {
		return "file exceeds the per-upload size limit"
	}
	return "storage limit reached"
}

func generationResponse(d quota.Decision) GenerationResponse {
	return GenerationResponse{Decision: d, Remaining: d.RemainingValue()}
}

func storageResponse(d quota.UploadDecision) StorageResponse {
	return StorageResponse{
		UploadDecision: d,
		Remaining:      d.RemainingValue(),
		Used:           humanize.IBytes(uint64(d.UsedBytes)),
		Ceiling:        humanize.IBytes(uint64(d.CeilingBytes)),
		MaxItem:        humanize.IBytes(uint64(d.MaxItemBytes)),
	}
}
