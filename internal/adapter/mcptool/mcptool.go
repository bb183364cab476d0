// Package mcptool projects actions into Model Context Protocol tools. The
// action schema is published as-is in its JSON Schema rendering.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/schema"
)

// Name identifies this projection in logs and metrics.
const Name = "mcp"

// Toolset is the MCP projection of an action list.
type Toolset struct {
	tools      []server.ServerTool
	projection action.Projection
}

// New builds one MCP tool per projected action.
func New(agent action.Agent, actions []*action.Action, opts ...adapter.Option) (*Toolset, error) {
	projection := action.Project(actions)
	trampoline := adapter.NewTrampoline(Name, agent, opts...)

	tools := make([]server.ServerTool, 0, len(projection.Actions))
	for _, a := range projection.Actions {
		raw, err := json.Marshal(schema.JSONSchema(a.Schema))
		if err != nil {
			return nil, fmt.Errorf("render schema for %s: %w", a.Name, err)
		}
		tools = append(tools, server.ServerTool{
			Tool:    mcp.NewToolWithRawSchema(a.Name, adapter.Truncate(action.Describe(a), adapter.MaxDescriptionBytes), raw),
			Handler: handler(trampoline, a),
		})
	}
	return &Toolset{tools: tools, projection: projection}, nil
}

func handler(t *adapter.Trampoline, a *action.Action) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := t.InvokeValue(ctx, a, req.GetRawArguments())
		if !res.OK() {
			return mcp.NewToolResultError(res.JSON()), nil
		}
		return mcp.NewToolResultText(res.JSON()), nil
	}
}

// Tools returns the server tools in projection order.
func (s *Toolset) Tools() []server.ServerTool {
	return append([]server.ServerTool(nil), s.tools...)
}

// Dropped lists actions left out by the projection cap.
func (s *Toolset) Dropped() []string { return s.projection.Dropped }

// NewServer registers the toolset on a fresh MCP server.
func NewServer(name, version string, tools *Toolset) *server.MCPServer {
	srv := server.NewMCPServer(name, version, server.WithToolCapabilities(false), server.WithRecovery())
	srv.AddTools(tools.Tools()...)
	return srv
}
