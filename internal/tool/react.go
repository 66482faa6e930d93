package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	reactActionPrefix      = "Action:"
	reactInputPrefix       = "Action Input:"
	reactObservationPrefix = "Observation:"
	reactThoughtPrefix     = "Thought:"
	reactFinalPrefix       = "Final Answer:"
)

// React implements the Action:/Action Input:/Observation: tool-call
// dialect, the sibling built in the Hermes dialect's style for the
// spec's dual-dialect requirement (no ReAct source in original_source —
// the convention itself is standard; only the parsing approach, scanning
// rather than regex, is grounded on tool.rs's style).
type React struct {
	AllowedActions []string
}

func (r React) SystemPromptBlock(tools []Tool) string {
	var sb strings.Builder
	sb.WriteString("You may call the following tools:\n")
	names := make([]string, 0, len(tools))
	for _, t := range tools {
		names = append(names, t.Name)
		b, _ := json.Marshal(t)
		sb.Write(b)
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("Allowed actions: %s\n", strings.Join(names, ", ")))
	sb.WriteString("Use the format:\nAction: <tool name>\nAction Input: <json>\n")
	return sb.String()
}

func (React) HasToolCall(text string) bool {
	return strings.Contains(text, reactActionPrefix) && strings.Contains(text, reactInputPrefix)
}

func (React) CallStartIndex(text string) int {
	return strings.Index(text, reactActionPrefix)
}

// ParseToolCalls finds the last "Action: {name}\n" followed by
// "Action Input: {json-or-text}" up to the next Observation:/Thought:,
// matching §4.8's "last Action:" rule (a ReAct turn makes at most one
// call per response).
func (React) ParseToolCalls(text string) []ToolCall {
	actionIdx := strings.LastIndex(text, reactActionPrefix)
	if actionIdx < 0 {
		return nil
	}
	rest := text[actionIdx+len(reactActionPrefix):]
	lineEnd := strings.IndexByte(rest, '\n')
	if lineEnd < 0 {
		return nil // no room for an Action Input: section
	}
	name := strings.TrimSpace(rest[:lineEnd])
	rest = rest[lineEnd+1:]

	inputIdx := strings.Index(rest, reactInputPrefix)
	if inputIdx < 0 {
		return nil
	}
	rest = rest[inputIdx+len(reactInputPrefix):]

	end := len(rest)
	for _, stop := range []string{reactObservationPrefix, reactThoughtPrefix} {
		if idx := strings.Index(rest, stop); idx >= 0 && idx < end {
			end = idx
		}
	}
	input := strings.TrimSpace(rest[:end])

	var raw json.RawMessage
	if json.Valid([]byte(input)) {
		raw = json.RawMessage(input)
	} else {
		b, _ := json.Marshal(map[string]string{"input": input})
		raw = b
	}
	return []ToolCall{{Name: name, Arguments: raw}}
}

func (React) FormatToolResponses(results []ToolResult) string {
	var sb strings.Builder
	for i, r := range results {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(reactObservationPrefix)
		sb.WriteString(" ")
		if r.IsError() {
			b, _ := json.MarshalIndent(map[string]string{"error": r.Error}, "", "  ")
			sb.Write(b)
		} else {
			var pretty interface{}
			if err := json.Unmarshal(r.Content, &pretty); err == nil {
				b, _ := json.MarshalIndent(pretty, "", "  ")
				sb.Write(b)
			} else {
				sb.Write(r.Content)
			}
		}
	}
	return sb.String()
}

// ExtractFinalContent returns the text after "Final Answer:", which ends
// the loop per §4.8.
func (React) ExtractFinalContent(text string) string {
	if idx := strings.LastIndex(text, reactFinalPrefix); idx >= 0 {
		return strings.TrimSpace(text[idx+len(reactFinalPrefix):])
	}
	return strings.TrimSpace(text)
}

func (React) SentinelMaxLen() int {
	return len(reactObservationPrefix) // covers the "Action:" marker CallStartIndex looks for
}

// HasFinalAnswer reports whether text contains a terminal Final Answer:
// marker.
func HasFinalAnswer(text string) bool {
	return strings.Contains(text, reactFinalPrefix)
}
