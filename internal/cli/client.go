package cli

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

	"github.com/hashicorp/go-retryablehttp"
	"github.com/hyperjump/playground/internal/models"
	"github.com/hyperjump/playground/internal/provider"
	"go.uber.org/zap"
)

// DefaultServerURL is the address the CLI talks to when --server is unset.
const DefaultServerURL = "http://localhost:8000"

// APIError is a non-success response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client calls the playground HTTP API.
type Client struct {
	base string
	http *retryablehttp.Client
}

// NewClient returns a client for the server at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultServerURL
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: provider.NewHTTPClient(2, timeout, logger),
	}
}

// Health fetches the server health document.
func (c *Client) Health(ctx context.Context) (*models.HealthResponse, error) {
	var out models.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ask runs a RAG query.
func (c *Client) Ask(ctx context.Context, req models.RAGRequest) (*models.RAGResponse, error) {
	var out models.RAGResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/rag/query", req, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Collections lists collections, or searches them when query is non-empty.
func (c *Client) Collections(ctx context.Context, query string) ([]models.CollectionInfo, error) {
	path := "/api/v1/rag/collections"
	if query != "" {
		path += "/search?q=" + url.QueryEscape(query)
	}
	var out []models.CollectionInfo
	if err := c.do(ctx, http.MethodGet, path, nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// WatchAdd registers dir with the server's inbox.
func (c *Client) WatchAdd(ctx context.Context, dir string, sync bool) error {
	body := map[string]interface{}{"path": dir, "sync": sync}
	return c.do(ctx, http.MethodPost, "/api/v1/watch/directories", body, http.StatusCreated, nil)
}

// WatchRemove stops watching dir.
func (c *Client) WatchRemove(ctx context.Context, dir string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/watch/directories?path="+url.QueryEscape(dir), nil, http.StatusOK, nil)
}

// WatchList returns the watched directories.
func (c *Client) WatchList(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/watch/directories", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

func (c *Client) do(ctx context.Context, method, path string, body interface{}, want int, out interface{}) error {
	var payload interface{}
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.base+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return &APIError{Status: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts {"error": ...} from a response body, falling back to
// the raw text.
func errorMessage(data []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &e) == nil && e.Error != "" {
		return e.Error
	}
	return Truncate(string(bytes.TrimSpace(data)), 200)
}
