package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/versions"
)

// VersionHandler handles version history and content endpoints
type VersionHandler struct {
	BaseHandler
	graph *versions.Graph
	ns    *namespace.Manager
}

// NewVersionHandler creates a new version handler
func NewVersionHandler(graph *versions.Graph, ns *namespace.Manager) *VersionHandler {
	return &VersionHandler{graph: graph, ns: ns}
}

// ListVersions handles GET /files/{nodeId}/versions
func (h *VersionHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	list := []*metadata.Version{}
	for v, err := range h.graph.ListVersions(r.Context(), chi.URLParam(r, "nodeId")) {
		if err != nil {
			h.sendError(w, r, err)
			return
		}
		list = append(list, v)
	}
	h.sendSuccess(w, http.StatusOK, list)
}

// Checkout handles POST /files/{nodeId}/checkout
func (h *VersionHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req models.CheckoutRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}
	if req.VersionID == "" {
		h.sendError(w, r, metadata.NewValidationError("", "versionId is required"))
		return
	}

	node, err := h.graph.Checkout(r.Context(), chi.URLParam(r, "nodeId"), req.VersionID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, node)
}

// FileContent handles GET /files/{nodeId}/content, streaming the current
// version.
func (h *VersionHandler) FileContent(w http.ResponseWriter, r *http.Request) {
	node, err := h.ns.GetNode(r.Context(), chi.URLParam(r, "nodeId"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if node.IsDir() {
		h.sendError(w, r, metadata.NewValidationError(node.Path, "not a file"))
		return
	}
	if node.CurrentVersionID == "" {
		h.sendError(w, r, metadata.NewNotFoundError(node.Path, "file has no committed version"))
		return
	}
	h.stream(w, r, node.CurrentVersionID)
}

// GetVersion handles GET /versions/{id}
func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	version, err := h.graph.GetVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, version)
}

// GetByFingerprint handles GET /versions/by-fingerprint/{fingerprint}
func (h *VersionHandler) GetByFingerprint(w http.ResponseWriter, r *http.Request) {
	version, err := h.graph.GetByFingerprint(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, version)
}

// ListChunks handles GET /versions/{id}/chunks
func (h *VersionHandler) ListChunks(w http.ResponseWriter, r *http.Request) {
	version, err := h.graph.GetVersion(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	manifest := version.Manifest
	if manifest == nil {
		manifest = []metadata.ChunkRef{}
	}
	h.sendSuccess(w, http.StatusOK, manifest)
}

// Lock handles POST /versions/{id}/lock
func (h *VersionHandler) Lock(w http.ResponseWriter, r *http.Request) {
	version, err := h.graph.Lock(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, version)
}

// VersionContent handles GET /versions/{id}/content
func (h *VersionHandler) VersionContent(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, chi.URLParam(r, "id"))
}

// stream writes the bytes of a version. Once the body has started, a chunk
// failure can only abort the connection.
func (h *VersionHandler) stream(w http.ResponseWriter, r *http.Request, versionID string) {
	version, body, err := h.graph.OpenContent(r.Context(), versionID)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	defer func() { _ = body.Close() }()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(version.Size, 10))
	w.Header().Set("X-Version-Id", version.ID)
	w.Header().Set("X-Version-Sequence", strconv.FormatUint(version.Sequence, 10))
	w.Header().Set("ETag", `"`+version.Fingerprint+`"`)
	w.WriteHeader(http.StatusOK)

	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, body); err != nil {
		logger.Warn("Streaming version %s aborted: %v", version.ID, err)
		panic(http.ErrAbortHandler)
	}
}
