package llm

import (
	"context"
	"encoding/json"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall is a model request to run one named tool.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// Message is one role-tagged entry of a conversation. Assistant messages may
// carry ToolCalls; tool messages answer the call named by ToolCallID.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

// Schema is the JSON-schema subset used to declare tool parameters.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// Map renders the schema as plain maps, the form the Bedrock document encoder expects.
func (s *Schema) Map() map[string]any {
	if s == nil {
		return map[string]any{"type": "object"}
	}
	out := map[string]any{"type": s.Type}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		enum := make([]any, len(s.Enum))
		for i, v := range s.Enum {
			enum[i] = v
		}
		out["enum"] = enum
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.Map()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		required := make([]any, len(s.Required))
		for i, v := range s.Required {
			required[i] = v
		}
		out["required"] = required
	}
	return out
}

// ToolSpec declares a callable tool to the model.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  *Schema
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// Request is a single completion call. A negative Temperature leaves the
// provider default in place.
type Request struct {
	Model       string
	System      []string
	Messages    []Message
	Tools       []ToolSpec
	MaxTokens   int32
	Temperature float32
}

// Response holds either final text, tool calls, or both.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	Usage      TokenUsage
	StopReason string
}

// Client is a reasoning service that can request tool calls.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}
