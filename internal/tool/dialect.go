package tool

// Dialect is the pluggable tool-call textual convention a ChatSession is
// constructed with. §9 "Dialect selection": select at session
// construction, do not mix dialects in a single session.
type Dialect interface {
	// SystemPromptBlock returns the text to splice into the system
	// prompt describing the available tools.
	SystemPromptBlock(tools []Tool) string

	// HasToolCall is a cheap substring check keyed to the dialect.
	HasToolCall(text string) bool

	// CallStartIndex returns the byte offset of the earliest definitive
	// tool-call marker in text, or -1 if none is present. Used by a
	// streaming consumer to know how much leading text is safe to emit
	// before buffering the rest against leaking call syntax.
	CallStartIndex(text string) int

	// ParseToolCalls scans text left-to-right for every call the
	// dialect recognizes. Invalid blocks are skipped silently.
	ParseToolCalls(text string) []ToolCall

	// FormatToolResponses renders results as the next user message.
	FormatToolResponses(results []ToolResult) string

	// ExtractFinalContent strips tool-call syntax from text, returning
	// only the caller-visible final answer.
	ExtractFinalContent(text string) string

	// SentinelMaxLen is the longest dialect sentinel a streaming
	// consumer must buffer against, per §9's leak-suppression note.
	SentinelMaxLen() int
}
