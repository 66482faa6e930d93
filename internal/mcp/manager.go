package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

// ServerSpec configures one MCP server to launch.
type ServerSpec struct {
	Name    string
	Command string
	Args    []string
	Env     []string
}

// Manager owns every connected MCP server and routes qualified tool
// calls ("{server}-{tool}") to the right Connection. Each server's
// initialize/tools-list handshake runs independently so one slow or
// failing server never blocks the others.
type Manager struct {
	connections  map[string]*Connection
	toolToServer map[string]string
	mu           sync.RWMutex
}

const qualifiedSep = "-"

// Connect launches every server in specs concurrently and returns a
// Manager over whichever connect successfully; failures are returned
// joined but do not prevent the Manager from serving the servers that
// did connect.
func Connect(specs []ServerSpec) (*Manager, error) {
	m := &Manager{
		connections:  make(map[string]*Connection),
		toolToServer: make(map[string]string),
	}

	var mu sync.Mutex
	var g errgroup.Group
	var errs []error

	for _, spec := range specs {
		spec := spec
		g.Go(func() error {
			conn, err := dial(spec.Name, spec.Command, spec.Args, spec.Env)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("mcp: server %q: %w", spec.Name, err))
				return nil
			}
			m.connections[spec.Name] = conn
			for _, t := range conn.Tools() {
				m.toolToServer[qualifiedName(spec.Name, t.Name)] = spec.Name
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return m, joinErrors(errs)
	}
	return m, nil
}

func qualifiedName(server, toolName string) string {
	return server + qualifiedSep + toolName
}

// Tools lists every tool across every connected server, qualified.
func (m *Manager) Tools() []tool.Tool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []tool.Tool
	for serverName, conn := range m.connections {
		for _, t := range conn.Tools() {
			out = append(out, tool.Tool{
				Name:        qualifiedName(serverName, t.Name),
				Description: t.Description,
				Parameters: tool.JSONSchema{
					Type:       t.InputSchema.Type,
					Properties: convertProperties(t.InputSchema.Properties),
					Required:   t.InputSchema.Required,
				},
			})
		}
	}
	return out
}

func convertProperties(props map[string]interface{}) map[string]tool.JSONSchema {
	if len(props) == 0 {
		return nil
	}
	out := make(map[string]tool.JSONSchema, len(props))
	for k, v := range props {
		b, err := json.Marshal(v)
		if err != nil {
			continue
		}
		var schema tool.JSONSchema
		if err := json.Unmarshal(b, &schema); err != nil {
			continue
		}
		out[k] = schema
	}
	return out
}

// Has reports whether name (qualified "{server}-{tool}") is routable.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.toolToServer[name]
	return ok
}

// Call dispatches a qualified tool call to its owning server.
func (m *Manager) Call(call tool.ToolCall) tool.ToolResult {
	m.mu.RLock()
	serverName, ok := m.toolToServer[call.Name]
	var conn *Connection
	if ok {
		conn = m.connections[serverName]
	}
	m.mu.RUnlock()

	if !ok || conn == nil {
		return tool.ToolResult{Name: call.Name, Error: "mcp: no server serves tool " + call.Name}
	}

	localName := strings.TrimPrefix(call.Name, serverName+qualifiedSep)

	var args map[string]interface{}
	if len(call.Arguments) > 0 {
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			return tool.ToolResult{Name: call.Name, Error: "mcp: invalid arguments: " + err.Error()}
		}
	}

	result, err := conn.CallTool(localName, args)
	if err != nil {
		return tool.ToolResult{Name: call.Name, Error: err.Error()}
	}
	if result.IsError {
		return tool.ToolResult{Name: call.Name, Error: flattenText(result.Content)}
	}
	text := flattenText(result.Content)
	if text == "" {
		return tool.ToolResult{Name: call.Name, Error: "Empty result"}
	}
	content, merr := json.Marshal(map[string]string{"result": text})
	if merr != nil {
		return tool.ToolResult{Name: call.Name, Error: merr.Error()}
	}
	return tool.ToolResult{Name: call.Name, Content: content}
}

// flattenText concatenates every "text" content block, skipping any other
// block type (e.g. "image") per the tool-result flattening contract.
func flattenText(blocks []ContentBlock) string {
	var sb strings.Builder
	first := true
	for _, b := range blocks {
		if b.Type != "text" {
			continue
		}
		if !first {
			sb.WriteString("\n")
		}
		first = false
		sb.WriteString(b.Text)
	}
	return sb.String()
}

// Close tears down every connected server.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, conn := range m.connections {
		if err := conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return joinErrors(errs)
	}
	return nil
}

func joinErrors(errs []error) error {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
