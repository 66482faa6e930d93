package tool

import (
	"encoding/json"
	"strings"
	"testing"
)

func sampleTools() []Tool {
	return []Tool{{
		Name:        "get_current_time",
		Description: "returns the current time",
		Parameters:  ObjectSchema(map[string]JSONSchema{"timezone": StringProp("IANA zone name")}),
	}}
}

func TestHermesParseToolCalls(t *testing.T) {
	h := Hermes{}
	text := `before <tool_call>{"name":"get_current_time","arguments":{"timezone":"UTC"}}</tool_call> after`
	calls := h.ParseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("len(calls) = %d, want 1", len(calls))
	}
	if calls[0].Name != "get_current_time" {
		t.Errorf("Name = %q", calls[0].Name)
	}
}

func TestHermesParseToolCallsSkipsInvalidJSON(t *testing.T) {
	h := Hermes{}
	text := `<tool_call>{not json}</tool_call><tool_call>{"name":"ok","arguments":{}}</tool_call>`
	calls := h.ParseToolCalls(text)
	if len(calls) != 1 || calls[0].Name != "ok" {
		t.Fatalf("calls = %+v, want single ok call", calls)
	}
}

func TestHermesExtractFinalContentStripsCalls(t *testing.T) {
	h := Hermes{}
	text := `answer is 42 <tool_call>{"name":"x","arguments":{}}</tool_call>`
	got := h.ExtractFinalContent(text)
	if got != "answer is 42" {
		t.Errorf("got %q", got)
	}
}

func TestHermesExtractFinalContentDropsUnterminatedBlock(t *testing.T) {
	h := Hermes{}
	text := `visible text <tool_call>{"name":"x"`
	got := h.ExtractFinalContent(text)
	if got != "visible text" {
		t.Errorf("got %q", got)
	}
}

func TestHermesRoundTripParseAfterFormat(t *testing.T) {
	h := Hermes{}
	results := []ToolResult{{Name: "get_current_time", Content: json.RawMessage(`{"current_time":"now"}`)}}
	formatted := h.FormatToolResponses(results)
	if h.HasToolCall(formatted) {
		t.Errorf("formatted tool responses should not look like a new tool call: %q", formatted)
	}
	if calls := h.ParseToolCalls(formatted); len(calls) != 0 {
		t.Errorf("parse_tool_calls(format_tool_responses(results)) should be empty, got %+v", calls)
	}
}

func TestHermesParseToolCallsIdempotentOnPlainText(t *testing.T) {
	h := Hermes{}
	text := "just a plain final answer with no markers"
	if calls := h.ParseToolCalls(text); len(calls) != 0 {
		t.Errorf("expected no calls, got %+v", calls)
	}
	if calls := h.ParseToolCalls(h.ExtractFinalContent(text)); len(calls) != 0 {
		t.Errorf("expected no calls after round trip, got %+v", calls)
	}
}

func TestReactParseToolCalls(t *testing.T) {
	r := React{}
	text := "Thought: I should check the time\nAction: get_current_time\nAction Input: {\"timezone\":\"UTC\"}\n"
	calls := r.ParseToolCalls(text)
	if len(calls) != 1 || calls[0].Name != "get_current_time" {
		t.Fatalf("calls = %+v", calls)
	}
	var args map[string]string
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatal(err)
	}
	if args["timezone"] != "UTC" {
		t.Errorf("args = %+v", args)
	}
}

func TestReactParseToolCallsWrapsNonJSONInput(t *testing.T) {
	r := React{}
	text := "Action: search\nAction Input: find cats\nObservation:"
	calls := r.ParseToolCalls(text)
	if len(calls) != 1 {
		t.Fatalf("calls = %+v", calls)
	}
	var args map[string]string
	if err := json.Unmarshal(calls[0].Arguments, &args); err != nil {
		t.Fatal(err)
	}
	if args["input"] != "find cats" {
		t.Errorf("args = %+v", args)
	}
}

func TestReactParseToolCallsUsesLastAction(t *testing.T) {
	r := React{}
	text := "Action: first\nAction Input: {}\nObservation: ok\n" +
		"Action: second\nAction Input: {\"x\":1}\n"
	calls := r.ParseToolCalls(text)
	if len(calls) != 1 || calls[0].Name != "second" {
		t.Fatalf("calls = %+v, want single 'second' call", calls)
	}
}

func TestReactFinalAnswerEndsLoop(t *testing.T) {
	r := React{}
	text := "Thought: done\nFinal Answer: the result is 7"
	if !HasFinalAnswer(text) {
		t.Fatal("expected HasFinalAnswer true")
	}
	got := r.ExtractFinalContent(text)
	if got != "the result is 7" {
		t.Errorf("got %q", got)
	}
}

func TestReactRoundTripParseAfterFormat(t *testing.T) {
	r := React{}
	results := []ToolResult{{Name: "x", Content: json.RawMessage(`{"ok":true}`)}}
	formatted := r.FormatToolResponses(results)
	if calls := r.ParseToolCalls(formatted); len(calls) != 0 {
		t.Errorf("parse_tool_calls(format_tool_responses(results)) should be empty, got %+v", calls)
	}
}

func TestReactSystemPromptBlockListsTools(t *testing.T) {
	r := React{}
	block := r.SystemPromptBlock(sampleTools())
	if !strings.Contains(block, "get_current_time") {
		t.Errorf("system prompt block missing tool name: %q", block)
	}
}
