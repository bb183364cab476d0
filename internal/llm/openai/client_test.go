package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"AgentKit-Chain/internal/llm"
)

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatalf("expected error when api key is missing")
	}
}

func TestGenerateToolCalls(t *testing.T) {
	var captured struct {
		Authorization string
		Body          map[string]any
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.Authorization = r.Header.Get("Authorization")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&captured.Body); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"content": nil,
					"tool_calls": []map[string]any{{
						"id":   "call_1",
						"type": "function",
						"function": map[string]any{
							"name":      "get_balance",
							"arguments": `{"mint":null}`,
						},
					}},
				},
			}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "test", BaseURL: srv.URL, Timeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.httpClient = srv.Client()

	resp, err := client.Generate(context.Background(), llm.Request{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "what is my balance?"}},
		Tools: []llm.ToolDefinition{{
			Name:       "get_balance",
			Parameters: map[string]any{"type": "object"},
			Strict:     true,
		}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.FinishReason != "tool_calls" || len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if call := resp.Message.ToolCalls[0]; call.ID != "call_1" || call.Name != "get_balance" || call.Arguments != `{"mint":null}` {
		t.Fatalf("unexpected tool call: %+v", call)
	}

	if captured.Authorization != "Bearer test" {
		t.Fatalf("unexpected authorization header: %s", captured.Authorization)
	}
	tools, ok := captured.Body["tools"].([]any)
	if !ok || len(tools) != 1 {
		t.Fatalf("tools not sent: %#v", captured.Body["tools"])
	}
	fn := tools[0].(map[string]any)["function"].(map[string]any)
	if fn["name"] != "get_balance" || fn["strict"] != true {
		t.Fatalf("unexpected tool payload: %#v", fn)
	}
}

func TestGenerateReplaysToolMessages(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]any{"content": " 1.5 SOL "}, "finish_reason": "stop"}},
		})
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp, err := client.Generate(context.Background(), llm.Request{Messages: []llm.Message{
		{Role: llm.RoleUser, Content: "balance?"},
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{ID: "c1", Name: "get_balance", Arguments: "{}"}}},
		{Role: llm.RoleTool, ToolCallID: "c1", Content: `{"balance":1.5}`},
	}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message.Content != "1.5 SOL" {
		t.Fatalf("unexpected content: %q", resp.Message.Content)
	}

	messages := body["messages"].([]any)
	assistant := messages[1].(map[string]any)
	if assistant["content"] != nil {
		t.Fatalf("assistant tool-call message should carry null content: %#v", assistant)
	}
	tool := messages[2].(map[string]any)
	if tool["tool_call_id"] != "c1" || !strings.Contains(tool["content"].(string), "1.5") {
		t.Fatalf("unexpected tool message: %#v", tool)
	}
}

func TestGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.Generate(context.Background(), llm.Request{}); err == nil || !strings.Contains(err.Error(), "429") {
		t.Fatalf("expected status error, got %v", err)
	}
}
