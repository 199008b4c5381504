package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovault/pkg/cas"
)

// ChunkHandler exposes raw chunk reads for collaborators that verify or
// seal version bytes
type ChunkHandler struct {
	BaseHandler
	chunks *cas.Store
}

// NewChunkHandler creates a new chunk handler
func NewChunkHandler(chunks *cas.Store) *ChunkHandler {
	return &ChunkHandler{chunks: chunks}
}

// GetChunk handles GET /chunks/{hash}
func (h *ChunkHandler) GetChunk(w http.ResponseWriter, r *http.Request) {
	data, err := h.chunks.Get(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// HeadChunk handles HEAD /chunks/{hash}
func (h *ChunkHandler) HeadChunk(w http.ResponseWriter, r *http.Request) {
	chunk, err := h.chunks.Stat(r.Context(), chi.URLParam(r, "hash"))
	if err != nil {
		status, _ := StatusFor(err)
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Length", strconv.FormatInt(chunk.Size, 10))
	w.Header().Set("X-Ref-Count", strconv.FormatInt(chunk.RefCount, 10))
	w.WriteHeader(http.StatusOK)
}
