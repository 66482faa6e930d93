// Package builtin implements tools executed natively in-process rather
// than dispatched to an MCP server, grounded on
// original_source/fuxi-quant-agent/src/tool.rs's builtin module
// (get_current_time_tool/execute_get_current_time/execute_builtin/
// all_builtin_tools).
package builtin

import (
	"encoding/json"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

// Registry resolves built-in tool calls by name. Agent controllers try
// Registry before falling back to the MCP dispatch path.
type Registry struct {
	handlers map[string]func(args json.RawMessage) (interface{}, error)
	tools    []tool.Tool
}

func NewRegistry() *Registry {
	r := &Registry{handlers: make(map[string]func(args json.RawMessage) (interface{}, error))}
	r.register(currentTimeTool(), executeGetCurrentTime)
	return r
}

func (r *Registry) register(t tool.Tool, fn func(json.RawMessage) (interface{}, error)) {
	r.tools = append(r.tools, t)
	r.handlers[t.Name] = fn
}

// Tools lists every built-in tool's schema, for splicing into a
// dialect's system prompt alongside MCP-discovered tools.
func (r *Registry) Tools() []tool.Tool {
	return r.tools
}

// Has reports whether name is a built-in tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Execute runs a built-in tool call, returning a ToolResult rather than
// an error so the caller can always feed it back to the model.
func (r *Registry) Execute(call tool.ToolCall) tool.ToolResult {
	fn, ok := r.handlers[call.Name]
	if !ok {
		return tool.ToolResult{Name: call.Name, Error: "unknown builtin tool: " + call.Name}
	}
	out, err := fn(call.Arguments)
	if err != nil {
		return tool.ToolResult{Name: call.Name, Error: err.Error()}
	}
	content, err := json.Marshal(out)
	if err != nil {
		return tool.ToolResult{Name: call.Name, Error: err.Error()}
	}
	return tool.ToolResult{Name: call.Name, Content: content}
}
