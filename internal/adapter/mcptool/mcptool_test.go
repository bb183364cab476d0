package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/schema"
)

func transfer(name, description string) *action.Action {
	return action.MustNew(action.Action{
		Name:        name,
		Description: description,
		Similes:     []string{"send"},
		Schema: schema.Object(
			schema.F("to", schema.String().Describe("recipient")),
			schema.F("amount", schema.Number()),
			schema.F("mint", schema.String().Optional()),
		),
		Handler: func(_ context.Context, _ action.Agent, in action.Input) (any, error) {
			if in.Float("amount") > 100 {
				return nil, fmt.Errorf("insufficient funds")
			}
			return map[string]any{"status": "success", "amount": in.Float("amount")}, nil
		},
	})
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	switch c := res.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	default:
		t.Fatalf("unexpected content %T", c)
		return ""
	}
}

func call(t *testing.T, ts *Toolset, name string, args any) *mcp.CallToolResult {
	t.Helper()
	for _, tool := range ts.Tools() {
		if tool.Tool.Name != name {
			continue
		}
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := tool.Handler(context.Background(), req)
		require.NoError(t, err)
		return res
	}
	t.Fatalf("tool %s not found", name)
	return nil
}

func TestSchemaPassesThrough(t *testing.T) {
	ts, err := New(nil, []*action.Action{transfer("transfer", "Transfer tokens.")})
	require.NoError(t, err)
	require.Len(t, ts.Tools(), 1)

	tool := ts.Tools()[0].Tool
	var got map[string]any
	require.NoError(t, json.Unmarshal(tool.RawInputSchema, &got))
	assert.Equal(t, "object", got["type"])
	assert.ElementsMatch(t, []any{"to", "amount"}, got["required"])
	assert.Contains(t, tool.Description, "Similar: send")
}

func TestDescriptionTruncatedOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("€", 600)
	ts, err := New(nil, []*action.Action{transfer("transfer", long)})
	require.NoError(t, err)
	desc := ts.Tools()[0].Tool.Description
	assert.LessOrEqual(t, len(desc), adapter.MaxDescriptionBytes)
	assert.True(t, utf8.ValidString(desc))
}

func TestHandlerResults(t *testing.T) {
	ts, err := New(nil, []*action.Action{transfer("transfer", "Transfer tokens.")})
	require.NoError(t, err)

	ok := call(t, ts, "transfer", map[string]any{"to": "abc", "amount": 1.5})
	assert.False(t, ok.IsError)
	assert.JSONEq(t, `{"status":"success","amount":1.5}`, text(t, ok))

	failed := call(t, ts, "transfer", map[string]any{"to": "abc", "amount": 500})
	assert.True(t, failed.IsError)
	assert.Contains(t, text(t, failed), `"status":"error"`)
	assert.Contains(t, text(t, failed), "insufficient funds")

	invalid := call(t, ts, "transfer", map[string]any{"amount": "lots"})
	assert.True(t, invalid.IsError)
	assert.Contains(t, text(t, invalid), "SCHEMA_VALIDATION")
}

func TestProjectionCap(t *testing.T) {
	actions := make([]*action.Action, 0, 130)
	for i := 0; i < 130; i++ {
		actions = append(actions, transfer(fmt.Sprintf("transfer_%d", i), "Transfer tokens."))
	}
	ts, err := New(nil, actions)
	require.NoError(t, err)
	assert.Len(t, ts.Tools(), action.MaxProjected)
	assert.Len(t, ts.Dropped(), 3)

	srv := NewServer("agentkit", "test", ts)
	assert.NotNil(t, srv)
}

func TestProjectionWarnsOnlyOverCap(t *testing.T) {
	for _, n := range []int{action.MaxProjected, action.MaxProjected + 1} {
		actions := make([]*action.Action, 0, n)
		for i := 0; i < n; i++ {
			actions = append(actions, transfer(fmt.Sprintf("transfer_%d", i), "Transfer tokens."))
		}
		path := filepath.Join(t.TempDir(), "app.log")
		require.NoError(t, logger.Init(logger.Config{OutputPaths: []string{path}}))
		ts, err := New(nil, actions)
		require.NoError(t, err)
		require.NoError(t, logger.Sync())
		require.NoError(t, logger.Init(logger.Config{}))

		raw, err := os.ReadFile(path)
		require.NoError(t, err)
		warned := strings.Count(string(raw), "tool projection truncated")
		assert.Len(t, ts.Tools(), action.MaxProjected)
		assert.Equal(t, n > action.MaxProjected, warned == 1, "n=%d warnings=%d", n, warned)
		assert.LessOrEqual(t, warned, 1)
	}
}
