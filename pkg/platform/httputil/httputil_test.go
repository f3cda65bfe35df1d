package httputil

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("unreachable store maps to service unavailable", func(t *testing.T) {
		w := httptest.NewRecorder()
		cause := fmt.Errorf("find shipment: %w", sentinel.ErrUnavailable)
		WriteError(w, dErrors.Wrap(cause, dErrors.CodeInternal, "failed to load shipment"))

		if w.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}
		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body.Error != "service_unavailable" || body.Description != "" {
			t.Fatalf("unexpected body %+v", body)
		}
	})

	t.Run("illegal transition maps to conflict", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeIllegalTransition, "cannot move DELIVERED to CANCELLED"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
	})

	t.Run("validation error lists every violation", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{
			{Field: "receiver.name", Message: "is required"},
			{Field: "receiver.postal_code", Message: "is required"},
		}))

		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if len(body.Violations) != 2 {
			t.Fatalf("expected 2 violations, got %d", len(body.Violations))
		}
	})
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("rejects unknown fields", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a","extra":1}`))
		var p payload
		if err := DecodeJSON(r, &p); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request, got %v", err)
		}
	})

	t.Run("rejects empty body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		if err := DecodeJSON(r, &p); !dErrors.HasCode(err, dErrors.CodeBadRequest) {
			t.Fatalf("expected bad_request, got %v", err)
		}
	})

	t.Run("decodes a single object", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"box"}`))
		var p payload
		if err := DecodeJSON(r, &p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if p.Name != "box" {
			t.Fatalf("expected name box, got %q", p.Name)
		}
	})
}

type sizeRequest struct {
	Size string `json:"size"`
}

func (r *sizeRequest) Normalize() { r.Size = strings.ToLower(strings.TrimSpace(r.Size)) }

func (r *sizeRequest) Validate() error {
	if r.Size == "" {
		return dErrors.WithViolations(dErrors.CodeValidation, []dErrors.FieldViolation{{Field: "size", Message: "is required"}})
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("normalizes a valid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"size":" LARGE "}`))
		req, ok := DecodeAndPrepare[sizeRequest](w, r, logger, context.Background(), "req-1")
		if !ok {
			t.Fatalf("expected success, got status %d", w.Code)
		}
		if req.Size != "large" {
			t.Fatalf("expected normalized size, got %q", req.Size)
		}
	})

	t.Run("writes violations on invalid body", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"size":"  "}`))
		if _, ok := DecodeAndPrepare[sizeRequest](w, r, logger, context.Background(), "req-2"); ok {
			t.Fatal("expected failure")
		}
		if w.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(resp.Violations) != 1 || resp.Violations[0].Field != "size" {
			t.Fatalf("unexpected violations: %+v", resp.Violations)
		}
	})
}
