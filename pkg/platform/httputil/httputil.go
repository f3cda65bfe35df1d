// Package httputil holds the JSON response helpers shared by handlers.
package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "boxinator/pkg/domain-errors"
	"boxinator/pkg/platform/sentinel"
)

// maxBodyBytes caps request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

// ErrorResponse is the wire shape of every error reply.
type ErrorResponse struct {
	Error       string                   `json:"error"`
	Description string                   `json:"error_description,omitempty"`
	Violations  []dErrors.FieldViolation `json:"violations,omitempty"`
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error to its status code. Internal errors never
// expose their message. An internal error caused by an unreachable store is
// reported as service_unavailable.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	internal := code == dErrors.CodeInternal
	if internal && errors.Is(err, sentinel.ErrUnavailable) {
		code = dErrors.CodeUnavailable
	}
	resp := ErrorResponse{Error: string(code)}
	if !internal {
		if de, ok := dErrors.As(err); ok {
			resp.Description = de.Message
		}
		resp.Violations = dErrors.ViolationsOf(err)
	}
	WriteJSON(w, dErrors.ToHTTPStatus(code), resp)
}

// DecodeJSON decodes the request body into dst, rejecting unknown fields and
// trailing data.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return dErrors.New(dErrors.CodeBadRequest, "request body is required")
		}
		return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid request body")
	}
	if dec.More() {
		return dErrors.New(dErrors.CodeBadRequest, "request body must contain a single JSON object")
	}
	return nil
}

// Preparable is a request body that normalizes and validates itself.
type Preparable interface {
	Normalize()
	Validate() error
}

// DecodeAndPrepare decodes, normalizes and validates a request body of type T.
// On failure it writes the error response and returns false.
func DecodeAndPrepare[T any, PT interface {
	*T
	Preparable
}](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	if err := DecodeJSON(r, &req); err != nil {
		logger.WarnContext(ctx, "invalid request body",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	p := PT(&req)
	p.Normalize()
	if err := p.Validate(); err != nil {
		logger.WarnContext(ctx, "request validation failed",
			"request_id", requestID,
			"error", err,
		)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
