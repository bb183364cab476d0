// Package toolspec renders the tool list an adapter would publish, without
// starting a host. The CLI and the HTTP API use it to show what a model will
// see for a given format.
package toolspec

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"AgentKit-Chain/internal/adapter/einotool"
	"AgentKit-Chain/internal/adapter/mcptool"
	"AgentKit-Chain/internal/adapter/openaitool"
	"AgentKit-Chain/internal/llm"
	"AgentKit-Chain/pkg/action"
)

// Format selects a projection.
type Format string

const (
	FormatMCP    Format = mcptool.Name
	FormatEino   Format = einotool.Name
	FormatOpenAI Format = openaitool.Name
)

// Formats lists the supported projections.
var Formats = []Format{FormatMCP, FormatEino, FormatOpenAI}

// ParseFormat accepts a format name case-insensitively. Empty means MCP.
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FormatMCP, nil
	}
	for _, f := range Formats {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown tool format %q (want mcp, eino or openai)", s)
}

// EinoTool is the serialisable part of an eino tool description.
type EinoTool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
}

// Listing is what a projection publishes.
type Listing struct {
	Format  Format   `json:"format"`
	Tools   any      `json:"tools"`
	Count   int      `json:"count"`
	Dropped []string `json:"dropped,omitempty"`
}

// Render builds the projection for format over actions. Handlers are bound
// to agent but never run.
func Render(ctx context.Context, format Format, agent action.Agent, actions []*action.Action) (*Listing, error) {
	switch format {
	case FormatMCP:
		set, err := mcptool.New(agent, actions)
		if err != nil {
			return nil, err
		}
		tools := make([]mcp.Tool, 0, len(set.Tools()))
		for _, t := range set.Tools() {
			tools = append(tools, t.Tool)
		}
		return &Listing{Format: format, Tools: tools, Count: len(tools), Dropped: set.Dropped()}, nil
	case FormatEino:
		built, err := einotool.New(agent, actions)
		if err != nil {
			return nil, err
		}
		projection := action.Project(actions)
		tools := make([]EinoTool, 0, len(built))
		for i, t := range built {
			info, err := t.Info(ctx)
			if err != nil {
				return nil, err
			}
			params, err := einotool.Params(projection.Actions[i].Schema)
			if err != nil {
				return nil, err
			}
			tools = append(tools, EinoTool{Name: info.Name, Description: info.Desc, Parameters: params})
		}
		return &Listing{Format: format, Tools: tools, Count: len(tools), Dropped: projection.Dropped}, nil
	case FormatOpenAI:
		set, err := openaitool.New(agent, actions)
		if err != nil {
			return nil, err
		}
		defs := set.Definitions()
		if defs == nil {
			defs = []llm.ToolDefinition{}
		}
		return &Listing{Format: format, Tools: defs, Count: len(defs), Dropped: set.Dropped()}, nil
	default:
		return nil, fmt.Errorf("unknown tool format %q", format)
	}
}
