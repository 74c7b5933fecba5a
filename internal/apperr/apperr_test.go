package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("disk gone")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", base, KindUnknown},
		{"classified", New(KindStorageUnavailable, "load project", base), KindStorageUnavailable},
		{"wrapped", fmt.Errorf("outer: %w", New(KindNotFound, "get tier", nil)), KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	base := errors.New("boom")
	err := New(KindPersistenceFailure, "save project", base)

	if !errors.Is(err, base) {
		t.Error("errors.Is should find the cause")
	}
	if err.Error() != "save project: boom" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestIsFault(t *testing.T) {
	if IsFault(nil) {
		t.Error("nil is not a fault")
	}
	if IsFault(New(KindQuotaExceeded, "consume", nil)) {
		t.Error("quota exhaustion is not a fault")
	}
	if IsFault(New(KindInvalidInput, "parse", nil)) {
		t.Error("invalid input is not a fault")
	}
	if !IsFault(New(KindStorageUnavailable, "list", errors.New("x"))) {
		t.Error("storage unavailable is a fault")
	}
	if !IsFault(errors.New("unclassified")) {
		t.Error("unclassified errors are faults")
	}
}
