package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(CodeValidation, "validation failed", http.StatusUnprocessableEntity)

	if err.Code != CodeValidation {
		t.Errorf("expected code %s, got %s", CodeValidation, err.Code)
	}
	if err.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %s", err.Message)
	}
	if err.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected status %d, got %d", http.StatusUnprocessableEntity, err.HTTPStatus)
	}
}

func TestWrap(t *testing.T) {
	originalErr := errors.New("database connection failed")
	wrapped := Wrap(originalErr, CodeInternal, "internal error", http.StatusInternalServerError)

	if wrapped.Err != originalErr {
		t.Errorf("expected wrapped error to contain original error")
	}
	if !errors.Is(wrapped, originalErr) {
		t.Errorf("expected errors.Is to unwrap to original error")
	}
}

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name: "without underlying error",
			appErr: &AppError{
				Code:    CodeNotFound,
				Message: "booking not found",
			},
			expected: "NOT_FOUND: booking not found",
		},
		{
			name: "with underlying error",
			appErr: &AppError{
				Code:    CodeInternal,
				Message: "internal error",
				Err:     errors.New("database connection failed"),
			},
			expected: "INTERNAL_ERROR: internal error (caused by: database connection failed)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestStateTransition(t *testing.T) {
	err := StateTransition("cannot complete booking without staff", ReasonStaffRequired)

	if err.Code != CodeStateTransition {
		t.Errorf("expected code %s, got %s", CodeStateTransition, err.Code)
	}
	if err.Details["reason"] != ReasonStaffRequired {
		t.Errorf("expected reason %s, got %v", ReasonStaffRequired, err.Details["reason"])
	}
	if err.HTTPStatus != http.StatusConflict {
		t.Errorf("expected status %d, got %d", http.StatusConflict, err.HTTPStatus)
	}
}

func TestConflictWithSuggestions(t *testing.T) {
	suggestions := []string{"11:00", "11:15"}
	err := ConflictWithSuggestions("slot overlaps an existing booking", suggestions)

	if err.Code != CodeConflict {
		t.Errorf("expected code %s, got %s", CodeConflict, err.Code)
	}
	got, ok := err.Details["suggestions"].([]string)
	if !ok || len(got) != 2 {
		t.Errorf("expected suggestions to be carried in details, got %v", err.Details)
	}
}

func TestAsAppError(t *testing.T) {
	plain := errors.New("boom")
	appErr, ok := AsAppError(plain)

	if ok {
		t.Errorf("expected plain error not to be recognized as an AppError")
	}
	if appErr.Code != CodeInternal {
		t.Errorf("expected plain error to map to %s, got %s", CodeInternal, appErr.Code)
	}

	original := NotFound("Booking")
	unwrapped, ok := AsAppError(original)
	if !ok || unwrapped != original {
		t.Errorf("expected AsAppError to return the original AppError unchanged")
	}

	wrapped := fmt.Errorf("outer: %w", original)
	unwrapped, ok = AsAppError(wrapped)
	if !ok || unwrapped != original {
		t.Errorf("expected AsAppError to unwrap a wrapped AppError")
	}
}
