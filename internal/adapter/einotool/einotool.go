// Package einotool projects actions into eino invokable tools. eino describes
// parameters as a map of named fields, so every action schema must be an
// object; anything else is rejected when the toolset is built.
package einotool

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	einoschema "github.com/cloudwego/eino/schema"

	"AgentKit-Chain/internal/adapter"
	"AgentKit-Chain/pkg/action"
	"AgentKit-Chain/pkg/schema"
)

// Name identifies this projection in logs and metrics.
const Name = "eino"

// Tool adapts one action to tool.InvokableTool.
type Tool struct {
	action     *action.Action
	info       *einoschema.ToolInfo
	trampoline *adapter.Trampoline
}

var _ tool.InvokableTool = (*Tool)(nil)

// New builds the toolset. A non-object action schema fails here rather than
// on first call.
func New(agent action.Agent, actions []*action.Action, opts ...adapter.Option) ([]tool.BaseTool, error) {
	projection := action.Project(actions)
	trampoline := adapter.NewTrampoline(Name, agent, opts...)

	tools := make([]tool.BaseTool, 0, len(projection.Actions))
	for _, a := range projection.Actions {
		params, err := Params(a.Schema)
		if err != nil {
			return nil, fmt.Errorf("action %s: %w", a.Name, err)
		}
		tools = append(tools, &Tool{
			action: a,
			info: &einoschema.ToolInfo{
				Name:        a.Name,
				Desc:        adapter.Truncate(action.Describe(a), adapter.MaxDescriptionBytes),
				ParamsOneOf: einoschema.NewParamsOneOfByParams(params),
			},
			trampoline: trampoline,
		})
	}
	return tools, nil
}

// Info returns the eino description of the action.
func (t *Tool) Info(context.Context) (*einoschema.ToolInfo, error) {
	return t.info, nil
}

// InvokableRun runs the action. Failures come back as an error payload with
// a nil error so the reasoning loop keeps going.
func (t *Tool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	return t.trampoline.Invoke(ctx, t.action, []byte(argumentsInJSON)).JSON(), nil
}

// Params converts a record schema into eino parameter descriptions.
func Params(n *schema.Node) (map[string]*einoschema.ParameterInfo, error) {
	if n == nil || !schema.IsRecord(n) {
		kind := schema.Kind("none")
		if n != nil {
			kind = schema.Core(n).Kind()
		}
		return nil, fmt.Errorf("%w: eino tools take named fields, got %s", action.ErrNotRecord, kind)
	}
	return fields(schema.Core(n)), nil
}

func fields(obj *schema.Node) map[string]*einoschema.ParameterInfo {
	out := make(map[string]*einoschema.ParameterInfo, len(obj.Fields()))
	for _, f := range obj.Fields() {
		info := param(f.Schema)
		info.Required = !schema.IsOptional(f.Schema)
		out[f.Name] = info
	}
	return out
}

func param(n *schema.Node) *einoschema.ParameterInfo {
	core := schema.Core(n)
	info := &einoschema.ParameterInfo{Desc: n.Description()}
	switch core.Kind() {
	case schema.KindString:
		info.Type = einoschema.String
	case schema.KindNumber:
		info.Type = einoschema.Number
	case schema.KindInteger:
		info.Type = einoschema.Integer
	case schema.KindBoolean:
		info.Type = einoschema.Boolean
	case schema.KindEnum:
		info.Type = einoschema.String
		info.Enum = core.Values()
	case schema.KindLiteral:
		info.Type = einoschema.String
		info.Enum = []string{schema.LiteralString(core.LiteralValue())}
	case schema.KindArray:
		info.Type = einoschema.Array
		info.ElemInfo = param(core.Elem())
	case schema.KindObject:
		info.Type = einoschema.Object
		info.SubParams = fields(core)
	default:
		// Map and Any have no field list; eino accepts a bare object.
		info.Type = einoschema.Object
	}
	return info
}
