package chat

import (
	"encoding/json"

	"github.com/fuxihub/fuxiquant-go/internal/tool"
)

func marshalCall(call tool.ToolCall) (string, error) {
	b, err := json.Marshal(call)
	return string(b), err
}

func marshalResult(result tool.ToolResult) (string, error) {
	b, err := json.Marshal(result)
	return string(b), err
}
