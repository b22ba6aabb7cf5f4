// Package client talks to the remote flow API: the task catalog, flow
// documents and flow runs. Requests are not retried; failures are returned
// to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rendis/flowedit/pkg/schema"
)

const (
	defaultTimeout         = 30 * time.Second
	defaultMaxResponseBody = 10 * 1024 * 1024 // 10MB
)

// Config configures a Client.
type Config struct {
	BaseURL         string
	Timeout         time.Duration // 0 = 30s
	MaxResponseBody int64         // 0 = 10MB
	HTTPClient      *http.Client  // nil = a client with Timeout
}

// Client is an HTTP client for the flow API. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	http    *http.Client
	maxBody int64
}

// New creates a Client for the API rooted at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "api base url is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "invalid api base url %q", cfg.BaseURL).WithCause(err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxResponseBody <= 0 {
		cfg.MaxResponseBody = defaultMaxResponseBody
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{base: base, http: cfg.HTTPClient, maxBody: cfg.MaxResponseBody}, nil
}

// APIError is a non-2xx response from the flow API.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

// Tasks returns the task catalog.
func (c *Client) Tasks(ctx context.Context) ([]schema.Task, error) {
	var tasks []schema.Task
	if err := c.do(ctx, http.MethodGet, "/tasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Flows returns every flow.
func (c *Client) Flows(ctx context.Context) ([]schema.FlowAPI, error) {
	var flows []schema.FlowAPI
	if err := c.do(ctx, http.MethodGet, "/flows", nil, &flows); err != nil {
		return nil, err
	}
	return flows, nil
}

// Flow returns one flow, or nil when the API reports it missing.
func (c *Client) Flow(ctx context.Context, id string) (*schema.FlowAPI, error) {
	var flow schema.FlowAPI
	err := c.do(ctx, http.MethodGet, "/flows/"+url.PathEscape(id), nil, &flow)
	if IsStatus(err, http.StatusNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &flow, nil
}

// CreateFlow creates an empty flow and returns it with its assigned id.
func (c *Client) CreateFlow(ctx context.Context, name, description string) (*schema.FlowAPI, error) {
	body := map[string]any{"name": name, "description": nil}
	if description != "" {
		body["description"] = description
	}
	var flow schema.FlowAPI
	if err := c.do(ctx, http.MethodPost, "/flows", body, &flow); err != nil {
		return nil, err
	}
	return &flow, nil
}

// UpdateFlow replaces a flow. The id travels in the path only and the
// errors list is left for the API to recompute.
func (c *Client) UpdateFlow(ctx context.Context, flow schema.FlowAPI) (*schema.FlowAPI, error) {
	if flow.ID == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "flow id is required")
	}
	id := flow.ID

	data, err := json.Marshal(flow)
	if err != nil {
		return nil, fmt.Errorf("marshal flow: %w", err)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("marshal flow: %w", err)
	}
	delete(body, "id")
	delete(body, "errors")

	var updated schema.FlowAPI
	if err := c.do(ctx, http.MethodPut, "/flows/"+url.PathEscape(id), body, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// RunFlow starts an execution with the given inputs and returns its id.
func (c *Client) RunFlow(ctx context.Context, id string, inputs map[string]schema.Value) (string, error) {
	if inputs == nil {
		inputs = map[string]schema.Value{}
	}
	var executionID string
	if err := c.do(ctx, http.MethodPost, "/flows/"+url.PathEscape(id)+"/run", inputs, &executionID); err != nil {
		return "", err
	}
	return executionID, nil
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Status == status
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeTransport, "%s %s failed", method, path).WithCause(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeTransport, "read %s %s", method, path).WithCause(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(data))}
		code := schema.ErrCodeTransport
		switch resp.StatusCode {
		case http.StatusNotFound:
			code = schema.ErrCodeNotFound
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			code = schema.ErrCodeValidation
		}
		return schema.NewError(code, apiErr.Error()).WithCause(apiErr)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return schema.NewErrorf(schema.ErrCodeTransport, "decode %s %s", method, path).WithCause(err)
	}
	return nil
}
