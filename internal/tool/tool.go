// Package tool implements the tool-call protocol layer: schema types, the
// two interchangeable textual dialects (Hermes and ReAct), and the
// call/response formatting each uses. Parsing is grounded directly on
// original_source/fuxi-quant-agent/src/tool.rs — translated into Go
// substring scanning rather than regex, matching the original's
// scan-based approach. JSON schema types mirror the teacher's
// internal/llm/tools.go JSONSchema/ObjectSchema/StringProp/EnumProp
// builders.
package tool

import "encoding/json"

// JSONSchema is a (simplified) JSON-Schema object, enough to describe a
// tool's parameters.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]JSONSchema  `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Default     interface{}            `json:"default,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
}

// ObjectSchema builds a top-level "object" schema with the given
// properties and required field list.
func ObjectSchema(properties map[string]JSONSchema, required ...string) JSONSchema {
	return JSONSchema{Type: "object", Properties: properties, Required: required}
}

// StringProp builds a plain string property.
func StringProp(description string) JSONSchema {
	return JSONSchema{Type: "string", Description: description}
}

// NumberProp builds a floating-point property.
func NumberProp(description string) JSONSchema {
	return JSONSchema{Type: "number", Description: description}
}

// IntProp builds an integer property.
func IntProp(description string) JSONSchema {
	return JSONSchema{Type: "integer", Description: description}
}

// BoolProp builds a boolean property.
func BoolProp(description string) JSONSchema {
	return JSONSchema{Type: "boolean", Description: description}
}

// EnumProp builds a string property constrained to the given values.
func EnumProp(description string, values ...string) JSONSchema {
	return JSONSchema{Type: "string", Description: description, Enum: values}
}

// ArrayProp builds an array property whose items match itemSchema.
func ArrayProp(description string, itemSchema JSONSchema) JSONSchema {
	return JSONSchema{Type: "array", Description: description, Items: &itemSchema}
}

// Tool is the agent-visible description of a callable action.
type Tool struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Parameters  JSONSchema `json:"parameters"`
}

// ToolCall is a parsed invocation request from the model.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the (possibly error) outcome of executing a ToolCall.
type ToolResult struct {
	Name    string          `json:"name"`
	Content json.RawMessage `json:"content,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// IsError reports whether this result represents a failed call.
func (r ToolResult) IsError() bool { return r.Error != "" }
