// Package client is the Go SDK of the vault's REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/restic/chunker"

	"github.com/marmos91/dittovault/pkg/api/models"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

const (
	kiB = 1024
	miB = 1024 * kiB

	// DefaultMinChunkSize is the smallest chunk the chunker cuts, except
	// for a file's last chunk.
	DefaultMinChunkSize = 512 * kiB

	// DefaultMaxChunkSize is the largest chunk the chunker cuts.
	DefaultMaxChunkSize = 8 * miB

	// DefaultPolynomial is the Rabin polynomial shared by every client.
	// Chunk boundaries, and therefore deduplication across clients, depend
	// on it; changing it makes every existing chunk unreachable by new
	// pushes.
	DefaultPolynomial = chunker.Pol(0x3DA3358B4DC173)
)

// Config configures a Client.
type Config struct {
	// BaseURL is the server root, e.g. "http://localhost:8080"
	BaseURL string

	// HTTPClient defaults to a client with a 5 minute timeout
	HTTPClient *http.Client

	// Concurrency bounds parallel chunk uploads (default: 4)
	Concurrency int

	// MinChunkSize and MaxChunkSize bound content-defined chunks
	MinChunkSize uint
	MaxChunkSize uint

	// Polynomial overrides DefaultPolynomial
	Polynomial chunker.Pol

	// UploadRetries is the number of attempts for a chunk upload answered
	// with 429 or 503 (default: 3)
	UploadRetries int
}

// Client talks to one vault server.
//
// Thread Safety: Safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	config Config
}

// New creates a client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.MinChunkSize == 0 {
		cfg.MinChunkSize = DefaultMinChunkSize
	}
	if cfg.MaxChunkSize == 0 {
		cfg.MaxChunkSize = DefaultMaxChunkSize
	}
	if cfg.MinChunkSize > cfg.MaxChunkSize {
		return nil, fmt.Errorf("min chunk size %d exceeds max %d", cfg.MinChunkSize, cfg.MaxChunkSize)
	}
	if cfg.Polynomial == 0 {
		cfg.Polynomial = DefaultPolynomial
	}
	if cfg.UploadRetries <= 0 {
		cfg.UploadRetries = 3
	}

	return &Client{
		base:   strings.TrimRight(cfg.BaseURL, "/"),
		http:   cfg.HTTPClient,
		config: cfg,
	}, nil
}

// APIError is a failed API call. It unwraps to a metadata.StoreError of the
// matching class, so metadata.IsNotFound and friends work on it.
type APIError struct {
	Status  int
	Code    string
	Message string

	// RetryAfter is the server's Retry-After hint, if any
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

func (e *APIError) Unwrap() error {
	var code metadata.ErrorCode
	switch e.Code {
	case models.CodeValidation:
		code = metadata.ErrValidation
	case models.CodeNotFound:
		code = metadata.ErrNotFound
	case models.CodeConflict:
		code = metadata.ErrConflict
	case models.CodeForbidden:
		code = metadata.ErrForbidden
	case models.CodeStorageUnavailable:
		code = metadata.ErrStorageUnavailable
	default:
		return nil
	}
	return &metadata.StoreError{Code: code, Message: e.Message}
}

// retryable reports whether the server asked the caller to come back later.
func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

// do sends a request and decodes the envelope's data into out (when not
// nil). body is JSON-encoded unless it is a []byte.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := decodeData(resp.Body, out); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	return nil
}

// decodeData unwraps the response envelope into out.
func decodeData(r io.Reader, out any) error {
	var env models.Response
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode response data: %w", err)
	}
	return nil
}

// send performs the request and turns non-2xx answers into *APIError. The
// caller closes the body of a successful response.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var (
		reader      io.Reader
		contentType string
	)
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
		contentType = "application/octet-stream"
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+"/api/v1"+path, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer func() { _ = resp.Body.Close() }()
	return nil, decodeError(resp)
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: models.CodeInternal, Message: http.StatusText(resp.StatusCode)}
	if secs, err := time.ParseDuration(resp.Header.Get("Retry-After") + "s"); err == nil {
		apiErr.RetryAfter = secs
	}

	var env models.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&env); err == nil && env.Error != nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		return apiErr
	}

	// HEAD and some proxies answer without a body
	switch resp.StatusCode {
	case http.StatusNotFound:
		apiErr.Code = models.CodeNotFound
	case http.StatusServiceUnavailable:
		apiErr.Code = models.CodeStorageUnavailable
	case http.StatusTooManyRequests:
		apiErr.Code = models.CodeRateLimited
	}
	return apiErr
}
