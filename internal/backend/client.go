// Package backend is the HTTP client for the assignments API: bulk upload,
// AI task creation, assignment CRUD and the health probe.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hiroki-koketsu/upahead/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultBaseURL = "http://localhost:3000/api"

	// DefaultAssignmentsLimit is the page size of Assignments when limit <= 0.
	DefaultAssignmentsLimit = 100
)

// TokenSource yields the bearer token of the signed-in user.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client talks to the backend API.
type Client struct {
	baseURL string
	tokens  TokenSource
	http    *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client for baseURL (DefaultBaseURL when empty).
func New(baseURL string, tokens TokenSource, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		http: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   60 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root the client sends requests to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Upload sends a spreadsheet as the multipart field "file" to
// POST /assignments/upload.
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*model.ImportResult, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	var result model.ImportResult
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/assignments/upload",
		body:        &body,
		contentType: mw.FormDataContentType(),
		auth:        true,
		fallback:    uploadFallback,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateFromPrompt asks the AI endpoint to turn prompt into assignments.
func (c *Client) CreateFromPrompt(ctx context.Context, prompt string) (*model.AIResult, error) {
	payload, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return nil, err
	}

	var result model.AIResult
	err = c.do(ctx, request{
		method:      http.MethodPost,
		path:        "/assignments/ai-create",
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		auth:        true,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Assignments lists up to limit assignments of the signed-in user.
func (c *Client) Assignments(ctx context.Context, limit int) ([]model.Assignment, error) {
	if limit <= 0 {
		limit = DefaultAssignmentsLimit
	}

	var out []model.Assignment
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/assignments?limit=" + strconv.Itoa(limit),
		auth:   true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AssignmentStats returns the signed-in user's assignment counts.
func (c *Client) AssignmentStats(ctx context.Context) (*model.AssignmentStats, error) {
	var stats model.AssignmentStats
	if err := c.do(ctx, request{method: http.MethodGet, path: "/assignments/stats", auth: true}, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// UpdateAssignment writes upd to assignment id and returns the result.
func (c *Client) UpdateAssignment(ctx context.Context, id string, upd model.AssignmentUpdate) (*model.Assignment, error) {
	payload, err := json.Marshal(upd)
	if err != nil {
		return nil, err
	}

	var out model.Assignment
	err = c.do(ctx, request{
		method:      http.MethodPut,
		path:        "/assignments/" + url.PathEscape(id),
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		auth:        true,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteAssignment removes assignment id.
func (c *Client) DeleteAssignment(ctx context.Context, id string) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/assignments/" + url.PathEscape(id),
		auth:   true,
	}, nil)
}

// Health probes GET /health on the API origin. It needs no token.
func (c *Client) Health(ctx context.Context) (*model.Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.origin()+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health: %w: %w", model.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("backend is not available (HTTP %d): %w", resp.StatusCode, model.ErrRemoteUnavailable)
	}

	var h model.Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &h, nil
}

func (c *Client) origin() string {
	return strings.TrimSuffix(c.baseURL, "/api")
}

type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	auth        bool
	fallback    func(*http.Response) string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return err
	}
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")

	if r.auth {
		if c.tokens == nil {
			return model.ErrNotAuthenticated
		}
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", r.method, r.path, model.ErrRemoteUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp, r.fallback)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && err != io.EOF {
		return fmt.Errorf("decode %s response: %w", r.path, err)
	}
	return nil
}
