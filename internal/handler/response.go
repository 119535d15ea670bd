package handler

// Every error response has the same shape:
//
//	{"error": "exhausted", "message": "promo code WELCOME has no uses left"}
//
// "error" is a stable machine-readable code, "message" is for humans.

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/secretum/internal/apperror"
)

// maxBodyBytes caps request bodies; every request here is a few small fields.
const maxBodyBytes = 1 << 16

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// errorKinds maps each domain error kind to its status and code.
var errorKinds = []struct {
	kind   error
	status int
	code   string
}{
	{apperror.ErrValidation, http.StatusBadRequest, "validation_error"},
	{apperror.ErrAuthMissing, http.StatusUnauthorized, "auth_missing"},
	{apperror.ErrAuthInvalid, http.StatusUnauthorized, "auth_invalid"},
	{apperror.ErrNotFound, http.StatusNotFound, "not_found"},
	{apperror.ErrConflict, http.StatusConflict, "conflict"},
	{apperror.ErrExhausted, http.StatusGone, "exhausted"},
	{apperror.ErrInactive, http.StatusUnprocessableEntity, "inactive"},
	{apperror.ErrUpstream, http.StatusBadGateway, "upstream_error"},
}

// writeJSON sends a JSON response with the given status code. Headers must be
// set before WriteHeader; anything set afterwards is dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// Services wrap *apperror.AppError with context (fmt.Errorf("...: %w")), so
// errors.Is and errors.As walk the chain to find the kind and the message.
// Anything that is not an AppError is a 500 whose details stay in the log.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		for _, k := range errorKinds {
			if errors.Is(err, k.kind) {
				writeJSON(w, k.status, ErrorResponse{
					Error:   k.code,
					Message: appErr.Message,
					Field:   appErr.Field,
				})
				return
			}
		}
	}

	// Never expose internal error text: it may contain SQL or file paths.
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

// decodeJSON reads a single JSON object from the request body into dst.
// Malformed or oversized bodies become a validation error.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("body", "request body is required")
		}
		return apperror.ValidationFailed("body", "request body must be a valid JSON object")
	}
	return nil
}
