// Package respond writes the JSON envelopes used by every HTTP handler:
// {"data": ...} on success and {"error": "...", "fields": {...}} on failure.
package respond

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/zenGate-Global/palmyra-tenancy/platform/go/apperr"
	platformlogging "github.com/zenGate-Global/palmyra-tenancy/platform/go/logging"
)

const maxBodyBytes = 1 << 20

type envelope struct {
	Data any `json:"data"`
}

type problem struct {
	Error  string             `json:"error"`
	Fields apperr.FieldErrors `json:"fields,omitempty"`
}

// JSON writes v as-is with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Data wraps v in the success envelope.
func Data(w http.ResponseWriter, status int, v any) {
	JSON(w, status, envelope{Data: v})
}

// NoContent writes a 204.
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Error classifies err, logs it by severity and writes the failure envelope.
// The request-scoped logger is preferred over fallback.
func Error(w http.ResponseWriter, r *http.Request, fallback *zap.Logger, op string, err error) {
	status := apperr.HTTPStatus(err)

	logger := platformlogging.OrDefault(r.Context(), fallback)

	fields := []zap.Field{
		zap.String("operation", op),
		zap.Int("status", status),
		zap.Error(err),
	}
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("operation failed", fields...)
	case status == http.StatusNotFound:
		logger.Info("resource not found", fields...)
	default:
		logger.Warn("request rejected", fields...)
	}

	JSON(w, status, problem{Error: apperr.PublicMessage(err), Fields: apperr.Fields(err)})
}

// Decode reads a JSON body into v. Malformed payloads become validation errors.
func Decode(w http.ResponseWriter, r *http.Request, v any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperr.NewValidation(map[string]string{"body": "request body is required"})
		case errors.As(err, &maxErr):
			return apperr.NewValidation(map[string]string{"body": fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit)})
		default:
			return apperr.NewValidation(map[string]string{"body": "invalid JSON: " + err.Error()})
		}
	}
	return nil
}
