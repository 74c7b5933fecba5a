package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/good-yellow-bee/clipforge/internal/apperr"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"not found", apperr.Newf(apperr.KindNotFound, "load project", "project not found: p1"), http.StatusNotFound, CodeNotFound, "project not found: p1"},
		{"invalid input", apperr.Newf(apperr.KindInvalidInput, "add element", "id is required"), http.StatusBadRequest, CodeValidationFailed, "id is required"},
		{"unauthenticated", apperr.New(apperr.KindUnauthenticated, "auth", nil), http.StatusUnauthorized, CodeUnauthorized, ""},
		{"quota", apperr.Newf(apperr.KindQuotaExceeded, "generate", "limit reached"), http.StatusTooManyRequests, CodeQuotaExceeded, "limit reached"},
		{"storage", apperr.New(apperr.KindStorageUnavailable, "get tier", errors.New("database is locked")), http.StatusServiceUnavailable, CodeStorageUnavailable, "Storage temporarily unavailable"},
		{"persistence", apperr.New(apperr.KindPersistenceFailure, "save", errors.New("disk full")), http.StatusServiceUnavailable, CodeStorageUnavailable, ""},
		{"wrapped", fmt.Errorf("handler: %w", apperr.Newf(apperr.KindNotFound, "op", "gone")), http.StatusNotFound, CodeNotFound, "gone"},
		{"unclassified", errors.New("boom"), http.StatusInternalServerError, CodeInternalError, "Internal server error"},
		{"api error", NewConflict("exists"), http.StatusConflict, CodeConflict, "exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromError(tt.err)
			if got.Status != tt.wantStatus || got.Code != tt.wantCode {
				t.Errorf("FromError() = %d %s, want %d %s", got.Status, got.Code, tt.wantStatus, tt.wantCode)
			}
			if tt.wantMsg != "" && got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}

func TestErr_WritesEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Err(rec, "test", apperr.Newf(apperr.KindNotFound, "op", "missing"))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	var resp Response
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != CodeNotFound || resp.Data != nil {
		t.Errorf("envelope = %+v", resp)
	}
}

func TestJSON_DataEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	Created(rec, map[string]string{"id": "x"})

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}
	var resp struct {
		Data map[string]string `json:"data"`
	}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp.Data["id"] != "x" {
		t.Errorf("data = %v", resp.Data)
	}
}
