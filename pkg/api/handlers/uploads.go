package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/upload"
)

// UploadHandler handles upload session endpoints
type UploadHandler struct {
	BaseHandler
	uploads      *upload.Manager
	maxChunkSize int64
}

// NewUploadHandler creates a new upload handler. Chunk bodies larger than
// maxChunkSize are rejected.
func NewUploadHandler(uploads *upload.Manager, maxChunkSize int64) *UploadHandler {
	return &UploadHandler{uploads: uploads, maxChunkSize: maxChunkSize}
}

// InitSession handles POST /uploads
func (h *UploadHandler) InitSession(w http.ResponseWriter, r *http.Request) {
	var req upload.InitRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	session, err := h.uploads.InitSession(r.Context(), req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusCreated, models.InitUploadResponse{
		SessionID: session.ID,
		ExpiresAt: session.ExpiresAt,
	})
}

// Progress handles GET /uploads/{id}
func (h *UploadHandler) Progress(w http.ResponseWriter, r *http.Request) {
	progress, err := h.uploads.Progress(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, progress)
}

// Cancel handles DELETE /uploads/{id}
func (h *UploadHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.uploads.Cancel(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckMissing handles POST /uploads/{id}/check
func (h *UploadHandler) CheckMissing(w http.ResponseWriter, r *http.Request) {
	missing, err := h.uploads.CheckMissing(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if missing == nil {
		missing = []string{}
	}
	h.sendSuccess(w, http.StatusOK, models.MissingResponse{Missing: missing})
}

// UploadChunk handles PUT /uploads/{id}/chunks/{hash}. The body is the raw
// chunk.
func (h *UploadHandler) UploadChunk(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")

	if r.ContentLength > h.maxChunkSize {
		h.sendError(w, r, metadata.NewValidationError(hash, "chunk of %d bytes exceeds the %d byte limit",
			r.ContentLength, h.maxChunkSize))
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxChunkSize))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = metadata.NewValidationError(hash, "chunk exceeds the %d byte limit", h.maxChunkSize)
		}
		h.sendError(w, r, err)
		return
	}

	if err := h.uploads.UploadChunk(r.Context(), chi.URLParam(r, "id"), hash, data); err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, models.ChunkResponse{Hash: hash, Size: int64(len(data))})
}

// Finalize handles POST /uploads/{id}/finalize
func (h *UploadHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	var req upload.FinalizeRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	version, err := h.uploads.Finalize(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusCreated, version)
}

// ListSessions handles GET /repositories/{repositoryId}/uploads
func (h *UploadHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.uploads.ListSessions(r.Context(), chi.URLParam(r, "repositoryId"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []*metadata.Session{}
	}
	h.sendSuccess(w, http.StatusOK, sessions)
}
