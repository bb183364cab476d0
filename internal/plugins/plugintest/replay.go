package plugintest

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"testing"

	"AgentKit-Chain/internal/agent"
	"AgentKit-Chain/pkg/action"
)

// ReplayExamples invokes every documented example of the named action on ag
// and compares the output with the documented one after a JSON round trip.
//
// A documented string of the form "<name>" is a placeholder: it matches any
// non-empty value. Placeholders are only used for values that depend on
// signatures over a fresh blockhash.
func ReplayExamples(t *testing.T, ag *agent.Agent, name string) {
	t.Helper()
	act, err := ag.Action(name)
	if err != nil {
		t.Fatalf("lookup %s: %v", name, err)
	}
	if len(act.Examples) == 0 {
		t.Fatalf("%s documents no examples", name)
	}
	for i, ex := range act.Examples {
		raw, err := json.Marshal(ex.Input)
		if err != nil {
			t.Fatalf("%s example %d: encode input: %v", name, i, err)
		}
		out, err := ag.Invoke(context.Background(), name, raw)
		if err != nil {
			t.Fatalf("%s example %d: invoke: %v", name, i, err)
		}
		if err := matchExample(ex, out); err != nil {
			t.Errorf("%s example %d (%s): %v", name, i, ex.Explanation, err)
		}
	}
}

func matchExample(ex action.Example, out any) error {
	want, err := roundTrip(ex.Output)
	if err != nil {
		return fmt.Errorf("encode documented output: %w", err)
	}
	got, err := roundTrip(out)
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return match("$", want, got)
}

func roundTrip(v any) (any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	err = json.Unmarshal(raw, &out)
	return out, err
}

func match(path string, want, got any) error {
	if s, ok := want.(string); ok && isPlaceholder(s) {
		if got == nil || reflect.DeepEqual(got, "") {
			return fmt.Errorf("%s: want %s, got empty value", path, s)
		}
		return nil
	}
	switch w := want.(type) {
	case map[string]any:
		g, ok := got.(map[string]any)
		if !ok {
			return fmt.Errorf("%s: want object, got %T", path, got)
		}
		if wk, gk := keys(w), keys(g); !reflect.DeepEqual(wk, gk) {
			return fmt.Errorf("%s: want keys %v, got %v", path, wk, gk)
		}
		for k, v := range w {
			if err := match(path+"."+k, v, g[k]); err != nil {
				return err
			}
		}
		return nil
	case []any:
		g, ok := got.([]any)
		if !ok || len(g) != len(w) {
			return fmt.Errorf("%s: want %d items, got %v", path, len(w), got)
		}
		for i := range w {
			if err := match(fmt.Sprintf("%s[%d]", path, i), w[i], g[i]); err != nil {
				return err
			}
		}
		return nil
	}
	if !reflect.DeepEqual(want, got) {
		return fmt.Errorf("%s: want %v, got %v", path, want, got)
	}
	return nil
}

func isPlaceholder(s string) bool {
	return len(s) > 2 && strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">")
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
