package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// NodeHandler handles namespace endpoints
type NodeHandler struct {
	BaseHandler
	ns *namespace.Manager
}

// NewNodeHandler creates a new node handler
func NewNodeHandler(ns *namespace.Manager) *NodeHandler {
	return &NodeHandler{ns: ns}
}

// CreateNode handles POST /nodes
func (h *NodeHandler) CreateNode(w http.ResponseWriter, r *http.Request) {
	var req namespace.CreateNodeRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	node, err := h.ns.CreateNode(r.Context(), req)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusCreated, node)
}

// GetNode handles GET /nodes/{id}
func (h *NodeHandler) GetNode(w http.ResponseWriter, r *http.Request) {
	node, err := h.ns.GetNode(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, node)
}

// MoveNode handles POST /nodes/{id}/move
func (h *NodeHandler) MoveNode(w http.ResponseWriter, r *http.Request) {
	var req models.MoveRequest
	if err := h.decode(r, &req); err != nil {
		h.sendError(w, r, err)
		return
	}

	node, err := h.ns.Move(r.Context(), chi.URLParam(r, "id"), req.NewParentID, req.NewName)
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, node)
}

// DeleteNode handles DELETE /nodes/{id}
func (h *NodeHandler) DeleteNode(w http.ResponseWriter, r *http.Request) {
	if err := h.ns.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListChildren handles GET /nodes/{id}/children?order=insertion|name
func (h *NodeHandler) ListChildren(w http.ResponseWriter, r *http.Request) {
	order, err := namespace.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	children := []*metadata.Node{}
	for node, err := range h.ns.ListChildren(r.Context(), chi.URLParam(r, "id"), namespace.ListOptions{Order: order}) {
		if err != nil {
			h.sendError(w, r, err)
			return
		}
		children = append(children, node)
	}
	h.sendSuccess(w, http.StatusOK, children)
}

// ListRoot handles GET /repositories/{repositoryId}/children
func (h *NodeHandler) ListRoot(w http.ResponseWriter, r *http.Request) {
	order, err := namespace.ParseOrder(r.URL.Query().Get("order"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}

	opts := namespace.ListOptions{Order: order, RepositoryID: chi.URLParam(r, "repositoryId")}
	children := []*metadata.Node{}
	for node, err := range h.ns.ListChildren(r.Context(), "", opts) {
		if err != nil {
			h.sendError(w, r, err)
			return
		}
		children = append(children, node)
	}
	h.sendSuccess(w, http.StatusOK, children)
}

// ResolvePath handles GET /repositories/{repositoryId}/resolve?path=
func (h *NodeHandler) ResolvePath(w http.ResponseWriter, r *http.Request) {
	node, err := h.ns.ResolvePath(r.Context(), chi.URLParam(r, "repositoryId"), r.URL.Query().Get("path"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	h.sendSuccess(w, http.StatusOK, node)
}

// ListRepository handles GET /repositories/{repositoryId}/nodes
func (h *NodeHandler) ListRepository(w http.ResponseWriter, r *http.Request) {
	nodes, err := h.ns.ListRepository(r.Context(), chi.URLParam(r, "repositoryId"))
	if err != nil {
		h.sendError(w, r, err)
		return
	}
	if nodes == nil {
		nodes = []*metadata.Node{}
	}
	h.sendSuccess(w, http.StatusOK, nodes)
}
