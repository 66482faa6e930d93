package tool

import (
	"encoding/json"
	"strings"
)

const (
	hermesCallOpen   = "<tool_call>"
	hermesCallClose  = "</tool_call>"
	hermesRespOpen   = "<tool_response>"
	hermesRespClose  = "</tool_response>"
	hermesToolsOpen  = "<tools>"
	hermesToolsClose = "</tools>"
)

// Hermes implements the XML-tagged-JSON tool-call dialect:
// <tool_call>{"name":…, "arguments":…}</tool_call>, grounded on
// original_source/fuxi-quant-agent/src/tool.rs's build_tool_system_prompt
// / parse_tool_calls / format_tool_response(s).
type Hermes struct{}

type hermesCallPayload struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

func (Hermes) SystemPromptBlock(tools []Tool) string {
	var sb strings.Builder
	sb.WriteString(hermesToolsOpen)
	sb.WriteString("\n")
	for _, t := range tools {
		b, _ := json.Marshal(t)
		sb.Write(b)
		sb.WriteString("\n")
	}
	sb.WriteString(hermesToolsClose)
	return sb.String()
}

func (Hermes) HasToolCall(text string) bool {
	return strings.Contains(text, hermesCallOpen)
}

func (Hermes) CallStartIndex(text string) int {
	return strings.Index(text, hermesCallOpen)
}

// ParseToolCalls scans left-to-right for every <tool_call>...</tool_call>
// block; blocks containing invalid JSON are skipped silently, matching
// "invalid JSON blocks are skipped silently."
func (Hermes) ParseToolCalls(text string) []ToolCall {
	var calls []ToolCall
	rest := text
	for {
		start := strings.Index(rest, hermesCallOpen)
		if start < 0 {
			break
		}
		rest = rest[start+len(hermesCallOpen):]
		end := strings.Index(rest, hermesCallClose)
		if end < 0 {
			break
		}
		body := rest[:end]
		rest = rest[end+len(hermesCallClose):]

		var payload hermesCallPayload
		if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &payload); err != nil {
			continue
		}
		calls = append(calls, ToolCall{Name: payload.Name, Arguments: payload.Arguments})
	}
	return calls
}

func (Hermes) FormatToolResponses(results []ToolResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(hermesRespOpen)
		sb.WriteString("\n")
		if r.IsError() {
			b, _ := json.Marshal(map[string]string{"error": r.Error})
			sb.Write(b)
		} else {
			sb.Write(r.Content)
		}
		sb.WriteString("\n")
		sb.WriteString(hermesRespClose)
	}
	return sb.String()
}

// ExtractFinalContent strips every <tool_call>...</tool_call> block,
// leaving surrounding text intact.
func (Hermes) ExtractFinalContent(text string) string {
	var out strings.Builder
	rest := text
	for {
		start := strings.Index(rest, hermesCallOpen)
		if start < 0 {
			out.WriteString(rest)
			break
		}
		out.WriteString(rest[:start])
		rest = rest[start+len(hermesCallOpen):]
		end := strings.Index(rest, hermesCallClose)
		if end < 0 {
			// Unterminated block: drop the rest rather than leak a
			// partial tool call into the visible answer.
			break
		}
		rest = rest[end+len(hermesCallClose):]
	}
	return strings.TrimSpace(out.String())
}

func (Hermes) SentinelMaxLen() int {
	return len(hermesCallOpen)
}
