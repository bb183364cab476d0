package action

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"AgentKit-Chain/pkg/logger"
	"AgentKit-Chain/pkg/schema"
)

func echo(_ context.Context, _ Agent, in Input) (any, error) {
	return map[string]any(in), nil
}

func transferDef(name string) Action {
	return Action{
		Name:        name,
		Description: "Transfer tokens to another address.",
		Similes:     []string{"send tokens", "pay"},
		Examples: []Example{{
			Input:       map[string]any{"to": "8x2dR8Mpzuz2YqyZyZjUbYWKSWesBo5jMx2Q9Y86udVk", "amount": 1},
			Output:      map[string]any{"status": "success"},
			Explanation: "Send 1 SOL",
		}},
		Schema: schema.Object(
			schema.F("to", schema.String()),
			schema.F("amount", schema.Number()),
			schema.F("mint", schema.String().Optional()),
		),
		Handler: echo,
	}
}

func TestNewValidatesDefinition(t *testing.T) {
	_, err := New(transferDef("transfer"))
	require.NoError(t, err)

	bad := transferDef("has space")
	_, err = New(bad)
	assert.ErrorIs(t, err, ErrInvalidAction)

	noHandler := transferDef("transfer")
	noHandler.Handler = nil
	_, err = New(noHandler)
	assert.ErrorIs(t, err, ErrInvalidAction)

	scalar := transferDef("transfer")
	scalar.Schema = schema.String()
	_, err = New(scalar)
	assert.ErrorIs(t, err, ErrNotRecord)

	array := transferDef("transfer")
	array.Schema = schema.Array(schema.String())
	_, err = New(array)
	assert.ErrorIs(t, err, ErrNotRecord)
}

func TestNewRejectsExampleThatDoesNotValidate(t *testing.T) {
	def := transferDef("transfer")
	def.Examples = []Example{{Input: map[string]any{"to": 5}}}
	_, err := New(def)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidAction)
	assert.Contains(t, err.Error(), "example 0")
}

func TestRunParsesBeforeHandler(t *testing.T) {
	called := false
	def := transferDef("transfer")
	def.Handler = func(_ context.Context, _ Agent, in Input) (any, error) {
		called = true
		return in.Float("amount"), nil
	}
	a := MustNew(def)

	_, err := a.Run(context.Background(), nil, []byte(`{"to":"x"}`))
	require.ErrorIs(t, err, schema.ErrValidation)
	assert.False(t, called)

	out, err := a.Run(context.Background(), nil, []byte(`{"to":"x","amount":2.5}`))
	require.NoError(t, err)
	assert.Equal(t, 2.5, out)
}

func TestInputAccessors(t *testing.T) {
	in := Input{"s": "v", "i": int64(3), "f": 1.5, "b": true, "nil": nil,
		"addr": "8x2dR8Mpzuz2YqyZyZjUbYWKSWesBo5jMx2Q9Y86udVk"}
	assert.Equal(t, "v", in.String("s"))
	assert.Equal(t, int64(3), in.Int("i"))
	assert.Equal(t, 3.0, in.Float("i"))
	assert.True(t, in.Bool("b"))
	assert.False(t, in.Has("nil"))
	assert.False(t, in.Has("missing"))

	pk, err := in.PublicKey("addr")
	require.NoError(t, err)
	assert.Equal(t, "8x2dR8Mpzuz2YqyZyZjUbYWKSWesBo5jMx2Q9Y86udVk", pk.String())
	_, err = in.PublicKey("s")
	assert.Error(t, err)

	var target struct {
		S string `json:"s"`
		I int    `json:"i"`
	}
	require.NoError(t, in.Decode(&target))
	assert.Equal(t, "v", target.S)
	assert.Equal(t, 3, target.I)
}

func manyActions(t *testing.T, n int) []*Action {
	t.Helper()
	out := make([]*Action, 0, n)
	for i := 0; i < n; i++ {
		a, err := New(transferDef(fmt.Sprintf("action_%03d", i)))
		require.NoError(t, err)
		out = append(out, a)
	}
	return out
}

func TestProjectCap(t *testing.T) {
	for _, n := range []int{0, 1, MaxProjected, MaxProjected + 1, 200} {
		p := Project(manyActions(t, n))
		assert.LessOrEqual(t, len(p.Actions), MaxProjected)
		assert.Equal(t, n > MaxProjected, p.Truncated(), "n=%d", n)
		if n > MaxProjected {
			assert.Equal(t, "action_126", p.Actions[MaxProjected-1].Name)
			assert.Equal(t, "action_127", p.Dropped[0])
			assert.Len(t, p.Dropped, n-MaxProjected)
		}
	}
}

// truncationWarnings runs fn with the application log going to a temp file
// and counts the projection warnings written.
func truncationWarnings(t *testing.T, fn func()) int {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, logger.Init(logger.Config{OutputPaths: []string{path}}))
	t.Cleanup(func() { _ = logger.Init(logger.Config{}) })

	fn()
	require.NoError(t, logger.Sync())
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Count(string(raw), "tool projection truncated")
}

func TestProjectWarnsOnlyOverCap(t *testing.T) {
	for _, n := range []int{0, MaxProjected - 1, MaxProjected, MaxProjected + 1, 300} {
		actions := manyActions(t, n)
		want := 0
		if n > MaxProjected {
			want = 1
		}
		got := truncationWarnings(t, func() { Project(actions) })
		assert.Equal(t, want, got, "n=%d", n)
	}
}

func TestDescribe(t *testing.T) {
	a := MustNew(transferDef("transfer"))
	text := Describe(a)
	assert.True(t, strings.HasPrefix(text, "Transfer tokens to another address."))
	assert.Contains(t, text, "Similar: send tokens, pay")
	assert.Contains(t, text, `1. Input: {"amount":1,"to":"8x2dR8Mpzuz2YqyZyZjUbYWKSWesBo5jMx2Q9Y86udVk"}`)
	assert.Contains(t, text, "Explanation: Send 1 SOL")
}

func TestRegistryIsAtomic(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Add(MustNew(transferDef("a")), MustNew(transferDef("b"))))

	err := r.Add(MustNew(transferDef("c")), MustNew(transferDef("a")))
	assert.ErrorIs(t, err, ErrDuplicateAction)
	_, err = r.Get("c")
	assert.ErrorIs(t, err, ErrActionNotFound)

	err = r.Add(MustNew(transferDef("d")), MustNew(transferDef("d")))
	assert.ErrorIs(t, err, ErrDuplicateAction)
	assert.Equal(t, 2, r.Len())

	names := []string{}
	for _, a := range r.List() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"a", "b"}, names)

	found, err := Find(r.List(), "b")
	require.NoError(t, err)
	assert.Equal(t, "b", found.Name)
}
