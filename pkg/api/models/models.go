// Package models holds the JSON bodies of the REST API, shared by the
// server handlers and the client SDK.
package models

import (
	"encoding/json"
	"time"
)

// Response is the envelope of every JSON response.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed request.
type ErrorBody struct {
	// Code is the error class: validation, not_found, conflict, forbidden,
	// storage_unavailable, rate_limited or internal
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes carried in ErrorBody.Code.
const (
	CodeValidation         = "validation"
	CodeNotFound           = "not_found"
	CodeConflict           = "conflict"
	CodeForbidden          = "forbidden"
	CodeStorageUnavailable = "storage_unavailable"
	CodeRateLimited        = "rate_limited"
	CodeInternal           = "internal"
)

// MoveRequest is the body of POST /nodes/{id}/move.
type MoveRequest struct {
	// NewParentID is the target directory; empty moves to the repository
	// root level
	NewParentID string `json:"newParentId"`

	// NewName renames the node; empty keeps the current name
	NewName string `json:"newName,omitempty"`
}

// CheckoutRequest is the body of POST /files/{nodeId}/checkout.
type CheckoutRequest struct {
	VersionID string `json:"versionId"`
}

// InitUploadResponse is returned by POST /uploads.
type InitUploadResponse struct {
	SessionID string    `json:"sessionId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MissingResponse is returned by POST /uploads/{id}/check.
type MissingResponse struct {
	Missing []string `json:"missing"`
}

// ChunkResponse is returned by PUT /uploads/{id}/chunks/{hash}.
type ChunkResponse struct {
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}
