package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"finance/internal/core"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"category not found", fmt.Errorf("wrap: %w", core.ErrCategoryNotFound), http.StatusNotFound, CodeCategoryNotFound},
		{"transaction not found", core.ErrTransactionNotFound, http.StatusNotFound, CodeTransactionNotFound},
		{"constraint violation", fmt.Errorf("create user: %w", core.ErrConstraintViolation), http.StatusBadRequest, CodeConstraintViolation},
		{"validation", &core.ValidationError{Field: "amount", Err: core.ErrInvalidAmount}, http.StatusBadRequest, CodeValidationFailed},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, CodeInternal},
		{"passthrough", Unauthorized("missing token"), http.StatusUnauthorized, CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Map(tt.err)
			if got.Status != tt.status || got.Code != tt.code {
				t.Fatalf("Map(%v) = %d %s, want %d %s", tt.err, got.Status, got.Code, tt.status, tt.code)
			}
		})
	}
}

func TestMap_InternalHidesCause(t *testing.T) {
	e := Map(errors.New("password=hunter2"))
	if e.Message != internalMessage {
		t.Fatalf("expected generic message, got %q", e.Message)
	}
	if !strings.Contains(e.Error(), "hunter2") {
		t.Fatalf("cause should stay available for logs: %q", e.Error())
	}
}

func TestWrite(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/transactions/7", nil)

	Write(rec, req, fmt.Errorf("find: %w", core.ErrTransactionNotFound))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %q", ct)
	}
	var got body
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.StatusCode != 404 || got.Code != CodeTransactionNotFound || got.Error != "Not Found" {
		t.Fatalf("unexpected body %+v", got)
	}
}
