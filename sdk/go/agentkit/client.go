// Package agentkit is a thin HTTP client for the agentkitd REST API.
package agentkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"
)

// DefaultHTTPTimeout is used by clients created without a custom http.Client.
// Submitting transactions synchronously can take a while, so it is longer than a typical API call.
const DefaultHTTPTimeout = 60 * time.Second

// Client wraps the agentkitd HTTP API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// Action is the read-only description of a registered action.
type Action struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Similes     []string        `json:"similes,omitempty"`
	Examples    json.RawMessage `json:"examples,omitempty"`
	Schema      map[string]any  `json:"schema"`
}

// PluginInfo describes an attached plugin.
type PluginInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// ToolListing is the tool set projected into one adapter format.
type ToolListing struct {
	Format  string          `json:"format"`
	Tools   json.RawMessage `json:"tools"`
	Count   int             `json:"count"`
	Dropped []string        `json:"dropped,omitempty"`
}

// TaskRequest submits an asynchronous action invocation. A non-empty ID makes the submission idempotent.
type TaskRequest struct {
	ID         string         `json:"id,omitempty"`
	Action     string         `json:"action"`
	Arguments  any            `json:"arguments,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	MaxRetries int            `json:"max_retries,omitempty"`
}

// Task is a queued action invocation.
type Task struct {
	ID         string          `json:"id"`
	Action     string          `json:"action"`
	Arguments  json.RawMessage `json:"arguments"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
	Status     string          `json:"status"`
	Attempts   int             `json:"attempts"`
	MaxRetries int             `json:"max_retries"`
	Terminal   bool            `json:"terminal,omitempty"`
	LastError  string          `json:"last_error,omitempty"`
	ErrorCode  string          `json:"error_code,omitempty"`
	Result     json.RawMessage `json:"result,omitempty"`
	CreatedAt  int64           `json:"created_at"`
	UpdatedAt  int64           `json:"updated_at"`
}

// Done reports whether the task reached a final state.
func (t Task) Done() bool {
	switch t.Status {
	case "succeeded":
		return true
	case "failed":
		return t.Terminal || t.Attempts >= t.MaxRetries
	default:
		return false
	}
}

// TaskStats aggregates the tasks matched by a listing.
type TaskStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// TaskList is the response of ListTasks.
type TaskList struct {
	Tasks []Task    `json:"tasks"`
	Stats TaskStats `json:"stats"`
}

// TaskFilter narrows ListTasks. Zero values are omitted.
type TaskFilter struct {
	Limit     int
	Offset    int
	Statuses  []string
	Action    string
	Query     string
	Ascending bool
}

func (f TaskFilter) values() url.Values {
	q := url.Values{}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		q.Set("offset", strconv.Itoa(f.Offset))
	}
	if len(f.Statuses) > 0 {
		q.Set("status", strings.Join(f.Statuses, ","))
	}
	if f.Action != "" {
		q.Set("action", f.Action)
	}
	if f.Query != "" {
		q.Set("q", f.Query)
	}
	if f.Ascending {
		q.Set("order", "asc")
	}
	return q
}

// ChatStep is one tool call made while answering a prompt.
type ChatStep struct {
	Tool      string `json:"tool"`
	Arguments string `json:"arguments"`
	Result    string `json:"result"`
	OK        bool   `json:"ok"`
}

// ChatReply is the model's final answer.
type ChatReply struct {
	Content      string     `json:"content"`
	FinishReason string     `json:"finish_reason,omitempty"`
	Steps        []ChatStep `json:"steps"`
}

// APIError is the {"status":"error"} body returned by the server.
type APIError struct {
	StatusCode int               `json:"-"`
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("agentkit api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("agentkit api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient creates a client for the API rooted at rawURL. When httpClient is
// nil, a client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url: %q", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the configured bearer token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Actions lists every registered action.
func (c *Client) Actions(ctx context.Context) ([]Action, error) {
	var out struct {
		Actions []Action `json:"actions"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/actions", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Actions, nil
}

// Plugins lists the attached plugins.
func (c *Client) Plugins(ctx context.Context) ([]PluginInfo, error) {
	var out struct {
		Plugins []PluginInfo `json:"plugins"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/plugins", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Plugins, nil
}

// Tools returns the tool listing in format ("mcp", "eino" or "openai"; empty means mcp).
func (c *Client) Tools(ctx context.Context, format string) (ToolListing, error) {
	q := url.Values{}
	if format != "" {
		q.Set("format", format)
	}
	var out ToolListing
	err := c.do(ctx, http.MethodGet, "/api/v1/tools", q, nil, &out)
	return out, err
}

// Invoke runs an action synchronously and decodes its result into out when out is non-nil.
func (c *Client) Invoke(ctx context.Context, name string, args any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	return c.do(ctx, http.MethodPost, "/api/v1/actions/"+url.PathEscape(name), nil, args, out)
}

// InvokeSignOnly runs an action with submission disabled, so transactions come back signed but unsent.
func (c *Client) InvokeSignOnly(ctx context.Context, name string, args any, out any) error {
	if args == nil {
		args = map[string]any{}
	}
	q := url.Values{"sign_only": []string{"true"}}
	return c.do(ctx, http.MethodPost, "/api/v1/actions/"+url.PathEscape(name), q, args, out)
}

// SubmitTask queues an asynchronous invocation.
func (c *Client) SubmitTask(ctx context.Context, req TaskRequest) (Task, error) {
	if strings.TrimSpace(req.Action) == "" {
		return Task{}, errors.New("agentkit: action is required")
	}
	var out Task
	err := c.do(ctx, http.MethodPost, "/api/v1/tasks", nil, req, &out)
	return out, err
}

// GetTask fetches a task by identifier.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// ListTasks lists tasks matching filter.
func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) (TaskList, error) {
	var out TaskList
	err := c.do(ctx, http.MethodGet, "/api/v1/tasks", filter.values(), nil, &out)
	return out, err
}

// WaitTask polls GetTask every interval until the task is done or ctx ends.
func (c *Client) WaitTask(ctx context.Context, id string, interval time.Duration) (Task, error) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		t, err := c.GetTask(ctx, id)
		if err != nil {
			return Task{}, err
		}
		if t.Done() {
			return t, nil
		}
		select {
		case <-ctx.Done():
			return t, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Chat sends a single prompt to the agent's model loop.
func (c *Client) Chat(ctx context.Context, prompt string) (ChatReply, error) {
	var out ChatReply
	err := c.do(ctx, http.MethodPost, "/api/v1/chat", nil, map[string]string{"prompt": prompt}, &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
