package mcp

import (
	"encoding/json"
	"testing"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

func TestQualifiedName(t *testing.T) {
	if got := qualifiedName("kite", "get_quote"); got != "kite-get_quote" {
		t.Errorf("qualifiedName = %q", got)
	}
}

func TestManagerHasAndCallUnknownTool(t *testing.T) {
	m := &Manager{connections: map[string]*Connection{}, toolToServer: map[string]string{}}
	if m.Has("kite-get_quote") {
		t.Fatal("expected Has to be false for unconfigured tool")
	}
	result := m.Call(tool.ToolCall{Name: "kite-get_quote"})
	if !result.IsError() {
		t.Fatal("expected error result for unrouted tool")
	}
}

func TestManagerToolsQualifiesNames(t *testing.T) {
	m := &Manager{
		connections: map[string]*Connection{
			"kite": {Name: "kite", tools: []Tool{{Name: "get_quote", Description: "fetch a quote"}}},
		},
		toolToServer: map[string]string{"kite-get_quote": "kite"},
	}
	tools := m.Tools()
	if len(tools) != 1 || tools[0].Name != "kite-get_quote" {
		t.Fatalf("tools = %+v", tools)
	}
}

func TestFlattenText(t *testing.T) {
	blocks := []ContentBlock{{Type: "text", Text: "a"}, {Type: "text", Text: "b"}}
	if got := flattenText(blocks); got != "a\nb" {
		t.Errorf("flattenText = %q", got)
	}
}

func TestConvertProperties(t *testing.T) {
	props := map[string]interface{}{
		"symbol": map[string]interface{}{"type": "string", "description": "ticker"},
	}
	out := convertProperties(props)
	if out["symbol"].Type != "string" {
		t.Errorf("converted schema = %+v", out["symbol"])
	}
}

func TestRPCErrorImplementsError(t *testing.T) {
	e := &rpcError{Code: -32601, Message: "method not found"}
	var err error = e
	if err.Error() != "method not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestRPCResponseRoundTrip(t *testing.T) {
	resp := rpcResponse{JSONRPC: "2.0", ID: 1, Result: json.RawMessage(`{"ok":true}`)}
	b, err := json.Marshal(resp)
	if err != nil {
		t.Fatal(err)
	}
	var decoded rpcResponse
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded.ID != 1 {
		t.Errorf("ID = %d", decoded.ID)
	}
}
