package mcp

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"sync/atomic"
)

// Connection is one MCP server reached over a child process's stdio.
type Connection struct {
	Name string

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Scanner

	nextID  int64
	writeMu sync.Mutex

	pending   map[int64]chan rpcResponse
	pendingMu sync.Mutex

	tools []Tool
}

// dial spawns command with args, wires its stdio, and performs the
// initialize -> notifications/initialized handshake. The reader loop
// runs for the lifetime of the connection; call Close to tear it down.
// Unexported: external callers go through Manager's Connect, which
// spawns every configured server concurrently.
func dial(name, command string, args []string, env []string) (*Connection, error) {
	cmd := exec.Command(command, args...)
	if len(env) > 0 {
		cmd.Env = env
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mcp: stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("mcp: start %s: %w", command, err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	c := &Connection{
		Name:    name,
		cmd:     cmd,
		stdin:   stdin,
		stdout:  scanner,
		pending: make(map[int64]chan rpcResponse),
	}
	go c.readLoop()

	if err := c.initialize(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.notify("notifications/initialized", nil); err != nil {
		c.Close()
		return nil, err
	}

	tools, err := c.listTools()
	if err != nil {
		c.Close()
		return nil, err
	}
	c.tools = tools

	return c, nil
}

func (c *Connection) readLoop() {
	for c.stdout.Scan() {
		line := c.stdout.Bytes()
		if len(line) == 0 {
			continue
		}
		var resp rpcResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			continue
		}
		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
		if ok {
			ch <- resp
			close(ch)
		}
	}
}

func (c *Connection) call(method string, params interface{}) (json.RawMessage, error) {
	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan rpcResponse, 1)

	c.pendingMu.Lock()
	c.pending[id] = ch
	c.pendingMu.Unlock()

	req := rpcRequest{JSONRPC: jsonRPCVersion, ID: id, Method: method, Params: params}
	if err := c.writeLine(req); err != nil {
		return nil, err
	}

	resp := <-ch
	if resp.Error != nil {
		return nil, fmt.Errorf("mcp: %s: %s", c.Name, resp.Error.Message)
	}
	return resp.Result, nil
}

func (c *Connection) notify(method string, params interface{}) error {
	req := rpcRequest{JSONRPC: jsonRPCVersion, Method: method, Params: params}
	return c.writeLine(req)
}

func (c *Connection) writeLine(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = c.stdin.Write(b)
	return err
}

func (c *Connection) initialize() error {
	params := initializeParams{
		ProtocolVersion: "2024-11-05",
		Capabilities:    map[string]interface{}{},
		ClientInfo:      clientInfo{Name: "fuxiquant", Version: "0.1.0"},
	}
	raw, err := c.call("initialize", params)
	if err != nil {
		return fmt.Errorf("mcp: initialize %s: %w", c.Name, err)
	}
	var result initializeResult
	return json.Unmarshal(raw, &result)
}

func (c *Connection) listTools() ([]Tool, error) {
	raw, err := c.call("tools/list", map[string]interface{}{})
	if err != nil {
		return nil, fmt.Errorf("mcp: tools/list %s: %w", c.Name, err)
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// CallTool invokes a tool by its unqualified (server-local) name.
func (c *Connection) CallTool(name string, arguments map[string]interface{}) (*CallToolResult, error) {
	raw, err := c.call("tools/call", callToolParams{Name: name, Arguments: arguments})
	if err != nil {
		return nil, fmt.Errorf("mcp: tools/call %s/%s: %w", c.Name, name, err)
	}
	var result CallToolResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Tools returns the tool list cached at connect time.
func (c *Connection) Tools() []Tool { return c.tools }

// Close terminates the child process.
func (c *Connection) Close() error {
	c.stdin.Close()
	if c.cmd.Process != nil {
		return c.cmd.Process.Kill()
	}
	return nil
}
