// Package client talks to the Automation API over HTTP.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"automationdash/internal/core"

	"github.com/google/uuid"
)

const defaultTimeout = 15 * time.Second

// Client is an Automation API client. It never retries; failed calls return
// an *APIError for HTTP failures or a wrapped transport error.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL, token string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("api url is empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	c := &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: defaultTimeout},
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ListAutomations returns one page of automations, optionally filtered by status.
func (c *Client) ListAutomations(ctx context.Context, q core.AutomationQuery) (*core.AutomationPage, error) {
	params := url.Values{}
	if q.Status != nil {
		params.Set("status", string(*q.Status))
	}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))

	var page core.AutomationPage
	if err := c.do(ctx, "list automations", http.MethodGet, "/v1/automations", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAutomation loads a single automation.
func (c *Client) GetAutomation(ctx context.Context, id string) (*core.Automation, error) {
	var a core.Automation
	if err := c.do(ctx, "get automation", http.MethodGet, automationPath(id), nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAutomation creates an automation from payload.
func (c *Client) CreateAutomation(ctx context.Context, payload core.Payload) (*core.Automation, error) {
	var a core.Automation
	if err := c.do(ctx, "create automation", http.MethodPost, "/v1/automations", nil, payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAutomation applies a partial update.
func (c *Client) UpdateAutomation(ctx context.Context, id string, payload core.Payload) (*core.Automation, error) {
	var a core.Automation
	if err := c.do(ctx, "update automation", http.MethodPatch, automationPath(id), nil, payload, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteAutomation removes an automation.
func (c *Client) DeleteAutomation(ctx context.Context, id string) error {
	return c.do(ctx, "delete automation", http.MethodDelete, automationPath(id), nil, nil, nil)
}

// PauseAutomation pauses an active automation.
func (c *Client) PauseAutomation(ctx context.Context, id string) (*core.Automation, error) {
	var a core.Automation
	if err := c.do(ctx, "pause automation", http.MethodPost, automationPath(id)+"/pause", nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// ResumeAutomation resumes a paused automation.
func (c *Client) ResumeAutomation(ctx context.Context, id string) (*core.Automation, error) {
	var a core.Automation
	if err := c.do(ctx, "resume automation", http.MethodPost, automationPath(id)+"/resume", nil, nil, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// TriggerAutomation starts a run immediately.
func (c *Client) TriggerAutomation(ctx context.Context, id string) (*core.Execution, error) {
	var e core.Execution
	if err := c.do(ctx, "trigger automation", http.MethodPost, automationPath(id)+"/trigger", nil, nil, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ListExecutions returns one page of an automation's run history, most recent first.
func (c *Client) ListExecutions(ctx context.Context, automationID string, limit, offset int) (*core.ExecutionPage, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var page core.ExecutionPage
	if err := c.do(ctx, "list executions", http.MethodGet, automationPath(automationID)+"/executions", params, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

func automationPath(id string) string {
	return "/v1/automations/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := parseAPIError(op, resp)
		c.logger.Debug("api error", "op", op, "status", resp.StatusCode, "request_id", req.Header.Get("X-Request-ID"))
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
