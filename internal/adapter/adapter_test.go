package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "AgentKit-Chain/internal/errors"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/schema"
)

type callRecorder struct {
	statuses []string
}

func (c *callRecorder) ObserveTool(_, _ string, status string, _ time.Duration) {
	c.statuses = append(c.statuses, status)
}

func testAction(handler action.Handler) *action.Action {
	return action.MustNew(action.Action{
		Name:        "get_balance",
		Description: "Get the balance of a wallet.",
		Schema:      schema.Object(schema.F("mint", schema.String().Optional())),
		Handler:     handler,
	})
}

func TestInvokeSuccess(t *testing.T) {
	rec := &callRecorder{}
	tr := NewTrampoline("test", nil, WithObserver(rec))
	a := testAction(func(_ context.Context, _ action.Agent, in action.Input) (any, error) {
		return map[string]any{"status": "success", "mint": in.String("mint")}, nil
	})

	res := tr.Invoke(context.Background(), a, []byte(`{"mint":"So11111111111111111111111111111111111111112"}`))
	require.True(t, res.OK())
	assert.JSONEq(t, `{"status":"success","mint":"So11111111111111111111111111111111111111112"}`, res.JSON())
	assert.Equal(t, []string{"success"}, rec.statuses)
}

func TestInvokeConvertsFailures(t *testing.T) {
	rec := &callRecorder{}
	tr := NewTrampoline("test", nil, WithObserver(rec))

	failing := testAction(func(context.Context, action.Agent, action.Input) (any, error) {
		return nil, errors.New("rpc: connection refused")
	})
	res := tr.Invoke(context.Background(), failing, nil)
	require.False(t, res.OK())
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.JSON()), &payload))
	assert.Equal(t, "error", payload["status"])
	assert.Equal(t, "rpc: connection refused", payload["message"])

	invalid := tr.Invoke(context.Background(), failing, []byte(`{"mint":7}`))
	require.False(t, invalid.OK())
	assert.Equal(t, errs.CodeSchemaValidation, invalid.Error.Code)

	panicking := testAction(func(context.Context, action.Agent, action.Input) (any, error) {
		panic("nil wallet")
	})
	res = tr.Invoke(context.Background(), panicking, nil)
	require.False(t, res.OK())
	assert.Contains(t, res.Error.Message, "nil wallet")

	assert.Len(t, rec.statuses, 3)
	assert.Equal(t, string(errs.CodeSchemaValidation), rec.statuses[1])
}

func TestInvokeValue(t *testing.T) {
	tr := NewTrampoline("test", nil)
	a := testAction(func(_ context.Context, _ action.Agent, in action.Input) (any, error) {
		return in.String("mint"), nil
	})
	res := tr.InvokeValue(context.Background(), a, map[string]any{"mint": "abc"})
	require.True(t, res.OK())
	assert.Equal(t, "abc", res.JSON())
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", MaxDescriptionBytes))

	s := strings.Repeat("a", 1022) + "€€"
	out := Truncate(s, MaxDescriptionBytes)
	assert.LessOrEqual(t, len(out), MaxDescriptionBytes)
	assert.True(t, utf8.ValidString(out))
	assert.Equal(t, strings.Repeat("a", 1022), out)

	for limit := 0; limit < 12; limit++ {
		got := Truncate("日本語テキスト", limit)
		assert.True(t, utf8.ValidString(got), "limit %d", limit)
		assert.LessOrEqual(t, len(got), limit)
	}
}
