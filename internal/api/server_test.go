package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"AgentKit-Chain/internal/adapter/openaitool"
	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/internal/chat"
	"AgentKit-Chain/internal/config"
	xerrors "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/internal/observability/metrics"
	"AgentKit-Chain/internal/plugins/account"
	"AgentKit-Chain/internal/plugins/plugintest"
	"AgentKit-Chain/internal/task"
)

func newAgent(t *testing.T) *agent.Agent {
	t.Helper()
	ag := plugintest.NewAgent(t, plugintest.NewConn(), false)
	if err := ag.Use(account.New); err != nil {
		t.Fatalf("attach wallet plugin: %v", err)
	}
	return ag
}

func serve(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func TestHandleTaskDetailSuccess(t *testing.T) {
	store := task.NewMemoryStore()
	svc := task.NewService(store, task.NewMemoryQueue(8), 3)
	server := NewServer(":0", newAgent(t), WithTaskService(svc))

	sample := &task.Task{
		ID:         "task-success",
		Action:     "get_wallet_address",
		Arguments:  json.RawMessage(`{}`),
		Status:     task.StatusPending,
		MaxRetries: 3,
	}
	if err := store.Create(context.Background(), sample); err != nil {
		t.Fatalf("create sample task: %v", err)
	}
	if err := store.MarkSucceeded(context.Background(), sample.ID, json.RawMessage(`{"address":"abc"}`)); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	rec := serve(t, server.Handler(), http.MethodGet, "/api/v1/tasks/task-success", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status code: got %d want %d", rec.Code, http.StatusOK)
	}
	var got task.Task
	decodeBody(t, rec, &got)
	if got.ID != sample.ID || got.Status != task.StatusSucceeded {
		t.Fatalf("unexpected task: %+v", got)
	}
	if string(got.Result) != `{"address":"abc"}` {
		t.Fatalf("unexpected task result: %s", got.Result)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing request id header")
	}
}

func TestHandleTaskDetailErrors(t *testing.T) {
	server := NewServer(":0", newAgent(t), WithTaskService(task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3)))
	h := server.Handler()

	t.Run("invalid method", func(t *testing.T) {
		rec := serve(t, h, http.MethodDelete, "/api/v1/tasks/task-1", "")
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := serve(t, h, http.MethodGet, "/api/v1/tasks/missing", "")
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
		var payload xerrors.Payload
		decodeBody(t, rec, &payload)
		if payload.Code != task.CodeTaskNotFound {
			t.Fatalf("unexpected payload: %+v", payload)
		}
	})

	t.Run("disabled", func(t *testing.T) {
		rec := serve(t, NewServer(":0", newAgent(t)).Handler(), http.MethodGet, "/api/v1/tasks/x", "")
		if rec.Code != http.StatusServiceUnavailable {
			t.Fatalf("expected status %d, got %d", http.StatusServiceUnavailable, rec.Code)
		}
	})
}

func TestCreateAndListTasks(t *testing.T) {
	ag := newAgent(t)
	svc := task.NewService(task.NewMemoryStore(), task.NewMemoryQueue(8), 3, task.WithCatalog(ag))
	h := NewServer(":0", ag, WithTaskService(svc)).Handler()

	rec := serve(t, h, http.MethodPost, "/api/v1/tasks", `{"id":"t-1","action":"get_wallet_address"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = serve(t, h, http.MethodPost, "/api/v1/tasks", `{"action":"mint_nft"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown action must be rejected, got %d", rec.Code)
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/tasks?status=pending&action=get_wallet_address", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list tasks: %d %s", rec.Code, rec.Body.String())
	}
	var listing struct {
		Tasks []task.Task    `json:"tasks"`
		Stats task.TaskStats `json:"stats"`
	}
	decodeBody(t, rec, &listing)
	if len(listing.Tasks) != 1 || listing.Tasks[0].ID != "t-1" || listing.Stats.Pending != 1 {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/tasks?status=lost", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("invalid status filter must be rejected, got %d", rec.Code)
	}
}

func TestInvokeAction(t *testing.T) {
	m := metrics.New()
	h := NewServer(":0", newAgent(t), WithMetrics(m)).Handler()

	rec := serve(t, h, http.MethodPost, "/api/v1/actions/get_wallet_address", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("invoke: %d %s", rec.Code, rec.Body.String())
	}
	var out map[string]any
	decodeBody(t, rec, &out)
	if out["address"] != plugintest.Address {
		t.Fatalf("unexpected output: %+v", out)
	}

	rec = serve(t, h, http.MethodPost, "/api/v1/actions/sign_message", `{"encoding":"hex"}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected schema validation failure, got %d: %s", rec.Code, rec.Body.String())
	}
	var payload xerrors.Payload
	decodeBody(t, rec, &payload)
	if payload.Status != "error" || payload.Code != xerrors.CodeSchemaValidation {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	rec = serve(t, h, http.MethodPost, "/api/v1/actions/mint_nft", `{}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown action, got %d", rec.Code)
	}

	rec = serve(t, h, http.MethodGet, "/metrics", "")
	body := rec.Body.String()
	if !strings.Contains(body, `agentkit_tool_calls_total{action="get_wallet_address",adapter="http",status="success"} 1`) {
		t.Fatalf("tool call not recorded:\n%s", body)
	}
	if !strings.Contains(body, `agentkit_http_requests_total{code="200",handler="invoke",method="POST"} 1`) {
		t.Fatalf("http request not recorded:\n%s", body)
	}
}

func TestListActionsAndTools(t *testing.T) {
	h := NewServer(":0", newAgent(t)).Handler()

	rec := serve(t, h, http.MethodGet, "/api/v1/actions", "")
	var actions struct {
		Count   int          `json:"count"`
		Actions []actionView `json:"actions"`
	}
	decodeBody(t, rec, &actions)
	if actions.Count != 3 || actions.Actions[0].Name != "get_wallet_address" {
		t.Fatalf("unexpected actions: %+v", actions)
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/actions/sign_message", "")
	var view actionView
	decodeBody(t, rec, &view)
	if view.Schema["type"] != "object" || len(view.Examples) != 2 {
		t.Fatalf("unexpected action view: %+v", view)
	}

	for _, format := range []string{"mcp", "eino", "openai"} {
		rec = serve(t, h, http.MethodGet, "/api/v1/tools?format="+format, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s tools: %d %s", format, rec.Code, rec.Body.String())
		}
		var listing struct {
			Format string `json:"format"`
			Count  int    `json:"count"`
		}
		decodeBody(t, rec, &listing)
		if listing.Format != format || listing.Count != 3 {
			t.Fatalf("unexpected %s listing: %+v", format, listing)
		}
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/tools?format=xml", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown format, got %d", rec.Code)
	}

	rec = serve(t, h, http.MethodGet, "/api/v1/plugins", "")
	if !strings.Contains(rec.Body.String(), `"id":"`+account.ID+`"`) {
		t.Fatalf("unexpected plugins: %s", rec.Body.String())
	}
}

func TestTokenScopes(t *testing.T) {
	h := NewServer(":0", newAgent(t), WithAuth(config.AuthConfig{Tokens: []config.TokenConfig{
		{Name: "reader", Token: "read-token", Scopes: []string{ScopeRead}},
		{Name: "operator", Token: "op-token", Scopes: []string{ScopeRead, ScopeInvoke}},
	}})).Handler()

	if rec := serve(t, h, http.MethodGet, "/api/v1/actions", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/v1/actions", "", "Authorization", "Bearer nope"); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/api/v1/actions", "", "Authorization", "Bearer read-token"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for reader, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodPost, "/api/v1/actions/get_wallet_address", "", "Authorization", "Bearer read-token"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for reader invoke, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodPost, "/api/v1/actions/get_wallet_address", "", "Authorization", "bearer op-token"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for operator invoke, got %d", rec.Code)
	}
	if rec := serve(t, h, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health check must stay public, got %d", rec.Code)
	}
}

type cannedClient struct{}

func (cannedClient) Generate(_ context.Context, req llm.Request) (*llm.Response, error) {
	last := req.Messages[len(req.Messages)-1]
	if last.Role == llm.RoleTool {
		return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: "address: " + last.Content}, FinishReason: "stop"}, nil
	}
	return &llm.Response{Message: llm.Message{
		Role:      llm.RoleAssistant,
		ToolCalls: []llm.ToolCall{{ID: "1", Name: "get_wallet_address", Arguments: "{}"}},
	}}, nil
}

func TestChat(t *testing.T) {
	ag := newAgent(t)
	tools, err := openaitool.New(ag, ag.Actions())
	if err != nil {
		t.Fatalf("toolset: %v", err)
	}
	runner, err := chat.NewRunner(cannedClient{}, tools, chat.Config{MaxSteps: 3})
	if err != nil {
		t.Fatalf("runner: %v", err)
	}
	h := NewServer(":0", ag, WithChatRunner(runner)).Handler()

	rec := serve(t, h, http.MethodPost, "/api/v1/chat", `{"prompt":"what is my address?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("chat: %d %s", rec.Code, rec.Body.String())
	}
	var reply chat.Reply
	decodeBody(t, rec, &reply)
	if len(reply.Steps) != 1 || !strings.Contains(reply.Content, plugintest.Address) {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	rec = serve(t, h, http.MethodPost, "/api/v1/chat", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty chat request must be rejected, got %d", rec.Code)
	}
}
