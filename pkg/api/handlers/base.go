// Package handlers implements the REST endpoints of the vault.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// RetryAfterSeconds is advertised with 503 responses.
const RetryAfterSeconds = "5"

// maxJSONBody bounds request documents. Manifests of 100k hashes fit.
const maxJSONBody = 16 << 20

// BaseHandler provides common functionality for all API handlers
type BaseHandler struct{}

// sendJSON sends a JSON response with the given status code and data
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Debug("Failed to write response: %v", err)
	}
}

// sendSuccess wraps data in a success envelope.
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, statusCode int, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.sendFailure(w, http.StatusInternalServerError, models.CodeInternal, "failed to encode response")
		return
	}
	h.sendJSON(w, statusCode, models.Response{Success: true, Data: raw})
}

// sendFailure sends an error envelope.
func (h *BaseHandler) sendFailure(w http.ResponseWriter, statusCode int, code, message string) {
	h.sendJSON(w, statusCode, models.Response{
		Success: false,
		Error:   &models.ErrorBody{Code: code, Message: message},
	})
}

// sendError maps a vault error onto its status code.
func (h *BaseHandler) sendError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", RetryAfterSeconds)
	}
	if status == http.StatusInternalServerError {
		logger.Error("%s %s: %v", r.Method, r.URL.Path, err)
		h.sendFailure(w, status, code, "internal error")
		return
	}
	h.sendFailure(w, status, code, err.Error())
}

// StatusFor returns the HTTP status and envelope code of err.
func StatusFor(err error) (int, string) {
	code, ok := metadata.CodeOf(err)
	if !ok {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return http.StatusBadRequest, models.CodeValidation
		}
		return http.StatusInternalServerError, models.CodeInternal
	}

	switch code {
	case metadata.ErrValidation:
		return http.StatusBadRequest, models.CodeValidation
	case metadata.ErrNotFound:
		return http.StatusNotFound, models.CodeNotFound
	case metadata.ErrConflict:
		return http.StatusConflict, models.CodeConflict
	case metadata.ErrForbidden:
		return http.StatusForbidden, models.CodeForbidden
	case metadata.ErrStorageUnavailable:
		return http.StatusServiceUnavailable, models.CodeStorageUnavailable
	}
	return http.StatusInternalServerError, models.CodeInternal
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func (h *BaseHandler) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return metadata.NewValidationError("", "invalid request body: %v", err)
	}
	return nil
}
