package client

import (
	"context"
	"io"
	"net/http"
	"net/url"

	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/upload"
)

// ============================================================================
// Namespace
// ============================================================================

func (c *Client) CreateNode(ctx context.Context, req namespace.CreateNodeRequest) (*metadata.Node, error) {
	var node metadata.Node
	if err := c.do(ctx, http.MethodPost, "/nodes", req, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (c *Client) GetNode(ctx context.Context, nodeID string) (*metadata.Node, error) {
	var node metadata.Node
	if err := c.do(ctx, http.MethodGet, "/nodes/"+url.PathEscape(nodeID), nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

// Move reparents and/or renames a node. An empty newParentID targets the
// repository root level; an empty newName keeps the name.
func (c *Client) Move(ctx context.Context, nodeID, newParentID, newName string) (*metadata.Node, error) {
	var node metadata.Node
	err := c.do(ctx, http.MethodPost, "/nodes/"+url.PathEscape(nodeID)+"/move",
		models.MoveRequest{NewParentID: newParentID, NewName: newName}, &node)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (c *Client) Delete(ctx context.Context, nodeID string) error {
	return c.do(ctx, http.MethodDelete, "/nodes/"+url.PathEscape(nodeID), nil, nil)
}

// ListChildren lists a directory. An empty order means insertion order.
func (c *Client) ListChildren(ctx context.Context, nodeID string, order namespace.Order) ([]*metadata.Node, error) {
	var nodes []*metadata.Node
	path := "/nodes/" + url.PathEscape(nodeID) + "/children?order=" + url.QueryEscape(string(order))
	if err := c.do(ctx, http.MethodGet, path, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ListRoot lists the repository root level.
func (c *Client) ListRoot(ctx context.Context, repositoryID string, order namespace.Order) ([]*metadata.Node, error) {
	var nodes []*metadata.Node
	path := "/repositories/" + url.PathEscape(repositoryID) + "/children?order=" + url.QueryEscape(string(order))
	if err := c.do(ctx, http.MethodGet, path, nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (c *Client) ResolvePath(ctx context.Context, repositoryID, path string) (*metadata.Node, error) {
	var node metadata.Node
	p := "/repositories/" + url.PathEscape(repositoryID) + "/resolve?path=" + url.QueryEscape(path)
	if err := c.do(ctx, http.MethodGet, p, nil, &node); err != nil {
		return nil, err
	}
	return &node, nil
}

func (c *Client) ListRepository(ctx context.Context, repositoryID string) ([]*metadata.Node, error) {
	var nodes []*metadata.Node
	if err := c.do(ctx, http.MethodGet, "/repositories/"+url.PathEscape(repositoryID)+"/nodes", nil, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// ============================================================================
// Upload sessions
// ============================================================================

func (c *Client) InitUpload(ctx context.Context, req upload.InitRequest) (*models.InitUploadResponse, error) {
	var resp models.InitUploadResponse
	if err := c.do(ctx, http.MethodPost, "/uploads", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) CheckMissing(ctx context.Context, sessionID string) ([]string, error) {
	var resp models.MissingResponse
	if err := c.do(ctx, http.MethodPost, "/uploads/"+url.PathEscape(sessionID)+"/check", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Missing, nil
}

// UploadChunk sends one chunk. It does not retry; Push does.
func (c *Client) UploadChunk(ctx context.Context, sessionID, hash string, data []byte) error {
	return c.do(ctx, http.MethodPut, "/uploads/"+url.PathEscape(sessionID)+"/chunks/"+hash, data, nil)
}

func (c *Client) Finalize(ctx context.Context, sessionID string, req upload.FinalizeRequest) (*metadata.Version, error) {
	var v metadata.Version
	if err := c.do(ctx, http.MethodPost, "/uploads/"+url.PathEscape(sessionID)+"/finalize", req, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Progress(ctx context.Context, sessionID string) (*upload.Progress, error) {
	var p upload.Progress
	if err := c.do(ctx, http.MethodGet, "/uploads/"+url.PathEscape(sessionID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) CancelUpload(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/uploads/"+url.PathEscape(sessionID), nil, nil)
}

func (c *Client) ListUploads(ctx context.Context, repositoryID string) ([]*metadata.Session, error) {
	var sessions []*metadata.Session
	if err := c.do(ctx, http.MethodGet, "/repositories/"+url.PathEscape(repositoryID)+"/uploads", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// ============================================================================
// Versions
// ============================================================================

func (c *Client) ListVersions(ctx context.Context, fileID string) ([]*metadata.Version, error) {
	var list []*metadata.Version
	if err := c.do(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/versions", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *Client) Checkout(ctx context.Context, fileID, versionID string) (*metadata.Node, error) {
	var node metadata.Node
	err := c.do(ctx, http.MethodPost, "/files/"+url.PathEscape(fileID)+"/checkout",
		models.CheckoutRequest{VersionID: versionID}, &node)
	if err != nil {
		return nil, err
	}
	return &node, nil
}

func (c *Client) GetVersion(ctx context.Context, versionID string) (*metadata.Version, error) {
	var v metadata.Version
	if err := c.do(ctx, http.MethodGet, "/versions/"+url.PathEscape(versionID), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) GetByFingerprint(ctx context.Context, fingerprint string) (*metadata.Version, error) {
	var v metadata.Version
	if err := c.do(ctx, http.MethodGet, "/versions/by-fingerprint/"+url.PathEscape(fingerprint), nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (c *Client) Lock(ctx context.Context, versionID string) (*metadata.Version, error) {
	var v metadata.Version
	if err := c.do(ctx, http.MethodPost, "/versions/"+url.PathEscape(versionID)+"/lock", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// OpenVersion streams the bytes of a version. The caller closes the reader.
func (c *Client) OpenVersion(ctx context.Context, versionID string) (io.ReadCloser, error) {
	resp, err := c.send(ctx, http.MethodGet, "/versions/"+url.PathEscape(versionID)+"/content", nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetChunk reads one raw chunk.
func (c *Client) GetChunk(ctx context.Context, hash string) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/chunks/"+hash, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	return io.ReadAll(resp.Body)
}

// Health reports the server's store checks. A degraded server returns its
// report together with an *APIError carrying status 503.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/health", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var health models.HealthResponse
	if err := decodeData(resp.Body, &health); err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return &health, &APIError{
			Status:  resp.StatusCode,
			Code:    models.CodeStorageUnavailable,
			Message: health.Status,
		}
	}
	return &health, nil
}
