package builtin

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

func toolCallFor(t *testing.T, name string, args interface{}) tool.ToolCall {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			t.Fatal(err)
		}
		raw = b
	}
	return tool.ToolCall{Name: name, Arguments: raw}
}

func TestExecuteGetCurrentTimeDefaultsToLocal(t *testing.T) {
	out, err := executeGetCurrentTime(nil)
	if err != nil {
		t.Fatal(err)
	}
	res := out.(currentTimeResult)
	if res.Timezone != "Local" {
		t.Errorf("Timezone = %q, want Local", res.Timezone)
	}
	if res.UnixTimestamp == 0 {
		t.Error("UnixTimestamp should be nonzero")
	}
}

func TestExecuteGetCurrentTimeValidZone(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"timezone": "UTC"})
	out, err := executeGetCurrentTime(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := out.(currentTimeResult)
	if res.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC", res.Timezone)
	}
}

func TestExecuteGetCurrentTimeInvalidZoneFallsBackToLocal(t *testing.T) {
	raw, _ := json.Marshal(map[string]string{"timezone": "Not/AZone"})
	out, err := executeGetCurrentTime(raw)
	if err != nil {
		t.Fatal(err)
	}
	res := out.(currentTimeResult)
	if !strings.Contains(res.Timezone, "invalid timezone") {
		t.Errorf("Timezone = %q, want invalid-timezone fallback note", res.Timezone)
	}
}

func TestRegistryExecuteUnknownTool(t *testing.T) {
	r := NewRegistry()
	result := r.Execute(toolCallFor(t, "nonexistent", nil))
	if !result.IsError() {
		t.Fatal("expected error result for unknown tool")
	}
}

func TestRegistryExecuteGetCurrentTime(t *testing.T) {
	r := NewRegistry()
	if !r.Has("get_current_time") {
		t.Fatal("expected get_current_time to be registered")
	}
	result := r.Execute(toolCallFor(t, "get_current_time", map[string]string{"timezone": "UTC"}))
	if result.IsError() {
		t.Fatalf("unexpected error: %s", result.Error)
	}
	var parsed currentTimeResult
	if err := json.Unmarshal(result.Content, &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Timezone != "UTC" {
		t.Errorf("Timezone = %q", parsed.Timezone)
	}
}
