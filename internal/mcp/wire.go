// Package mcp implements a client for the Model Context Protocol:
// spawning a server as a child process, speaking line-delimited JSON-RPC
// 2.0 over its stdio, and exposing its tools under a qualified
// "{server}-{tool}" name alongside built-in tools. Grounded on the
// JSON-RPC tool shapes github.com/mark3labs/mcp-go/mcp defines (seen
// server-side in other_examples' kite-mcp-server), implemented here as
// the client half the corpus never demonstrates — the framing itself
// (os/exec + bufio.Scanner, one JSON object per line) is hand-written.
package mcp

import "encoding/json"

const jsonRPCVersion = "2.0"

type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  interface{}     `json:"params,omitempty"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string { return e.Message }

type initializeParams struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	Capabilities    map[string]interface{} `json:"capabilities"`
	ClientInfo      clientInfo             `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type initializeResult struct {
	ProtocolVersion string                 `json:"protocolVersion"`
	ServerInfo      clientInfo             `json:"serverInfo"`
	Capabilities    map[string]interface{} `json:"capabilities"`
}

// Tool mirrors mcp-go's mcp.Tool wire shape: name, description, and a
// JSON-Schema input description.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"inputSchema"`
}

type ToolInputSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Required   []string               `json:"required,omitempty"`
}

type listToolsResult struct {
	Tools []Tool `json:"tools"`
}

type callToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
}

// CallToolResult mirrors mcp-go's mcp.CallToolResult: a list of content
// blocks plus an error flag (MCP reports tool errors within a normal
// result, not as a JSON-RPC error, so callers must check IsError).
type CallToolResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is a single piece of tool output; only the "text" type
// is produced by the tools this client targets.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}
