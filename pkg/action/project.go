package action

import (
	"encoding/json"
	"fmt"
	"strings"

	"AgentKit-Chain/pkg/logger"
)

// MaxProjected is the number of actions any tool projection exposes. Hosts
// cap tool lists at 128; one slot stays free for host-side tools.
const MaxProjected = 127

// Projection is the ordered subset of actions handed to an adapter.
type Projection struct {
	Actions []*Action
	Dropped []string
}

// Truncated reports whether actions were left out.
func (p Projection) Truncated() bool { return len(p.Dropped) > 0 }

// Project keeps the first MaxProjected actions and warns iff more were given.
func Project(actions []*Action) Projection {
	if len(actions) <= MaxProjected {
		return Projection{Actions: actions}
	}
	dropped := make([]string, 0, len(actions)-MaxProjected)
	for _, a := range actions[MaxProjected:] {
		dropped = append(dropped, a.Name)
	}
	logger.Named("action").Warn("tool projection truncated",
		"limit", MaxProjected,
		"registered", len(actions),
		"dropped", len(dropped),
		"first_dropped", dropped[0])
	return Projection{Actions: actions[:MaxProjected], Dropped: dropped}
}

// Describe renders the description shown to a model: the description, the
// similes and the examples.
func Describe(a *Action) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.Description))
	if len(a.Similes) > 0 {
		b.WriteString("\n\nSimilar: ")
		b.WriteString(strings.Join(a.Similes, ", "))
	}
	if len(a.Examples) > 0 {
		b.WriteString("\n\nExamples:")
		for i, ex := range a.Examples {
			fmt.Fprintf(&b, "\n%d. Input: %s\n   Output: %s", i+1, compact(ex.Input), compact(ex.Output))
			if ex.Explanation != "" {
				fmt.Fprintf(&b, "\n   Explanation: %s", ex.Explanation)
			}
		}
	}
	return b.String()
}

func compact(v any) string {
	if v == nil {
		return "{}"
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(raw)
}
