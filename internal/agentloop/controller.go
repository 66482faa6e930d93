// Package agentloop wires a chat.Session to the two tool-execution
// paths a call can resolve to: the in-process builtin registry first,
// then the MCP manager. Migrated and renamed from the teacher's
// internal/agent package, fused with
// original_source/fuxi-quant-agent/src/agent.rs's chat_with_tools loop
// (the teacher's RunToolLoop supplies the "builtin dispatch, then
// fallback" registry shape; agent.rs supplies the streaming/leak-
// suppression shape chat.Session already implements).
package agentloop

import (
	"github.com/fuxihub/fuxiquant-go/internal/chat"
	"github.com/fuxihub/fuxiquant-go/internal/mcp"
	"github.com/fuxihub/fuxiquant-go/internal/tool"
	"github.com/fuxihub/fuxiquant-go/internal/tool/builtin"
)

// Controller runs one conversation, resolving tool calls through
// Builtins before falling back to MCP.
type Controller struct {
	session  *chat.Session
	builtins *builtin.Registry
	mcp      *mcp.Manager
}

// Config assembles everything needed to construct a Controller.
type Config struct {
	Engine         chat.Engine
	Dialect        tool.Dialect
	SystemPrompt   string
	EnableThinking bool
	MaxToolRounds  int
	Builtins       *builtin.Registry
	MCP            *mcp.Manager
}

// New builds a Controller whose tool list is the union of the builtin
// registry's tools and every MCP server's (qualified) tools.
func New(cfg Config) *Controller {
	if cfg.Builtins == nil {
		cfg.Builtins = builtin.NewRegistry()
	}

	tools := append([]tool.Tool{}, cfg.Builtins.Tools()...)
	if cfg.MCP != nil {
		tools = append(tools, cfg.MCP.Tools()...)
	}

	session := chat.New(cfg.Engine, chat.Config{
		SystemPrompt:   cfg.SystemPrompt,
		EnableThinking: cfg.EnableThinking,
		Tools:          tools,
		Dialect:        cfg.Dialect,
		MaxToolRounds:  cfg.MaxToolRounds,
	})

	return &Controller{session: session, builtins: cfg.Builtins, mcp: cfg.MCP}
}

// Reset starts a fresh conversation.
func (c *Controller) Reset() { c.session.Reset() }

// Run drives one user turn through the tool-calling loop to completion,
// dispatching every parsed call through execute before returning the
// caller-visible final answer.
func (c *Controller) Run(message string, onEvent func(chat.StreamEvent)) (string, error) {
	return c.session.ChatWithTools(message, onEvent, c.execute)
}

// execute tries the builtin registry first, then MCP; a call matching
// neither path is skipped (ok=false) rather than fed back to the model as
// a synthesized error, per the ToolExecutor contract in chat.Session.
func (c *Controller) execute(call tool.ToolCall) (tool.ToolResult, bool) {
	if c.builtins != nil && c.builtins.Has(call.Name) {
		return c.builtins.Execute(call), true
	}
	if c.mcp != nil && c.mcp.Has(call.Name) {
		return c.mcp.Call(call), true
	}
	return tool.ToolResult{}, false
}
