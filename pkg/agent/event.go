// Package agent adapts the external research agent to a plain event stream.
package agent

import (
	"context"
	"iter"

	"github.com/mikeboe/research-chat/pkg/prompt"
)

// Role of the message an event carries.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation request issued by the agent.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResult is the outcome of a tool invocation.
type ToolResult struct {
	Name    string `json:"name"`
	Payload string `json:"payload"`
	// IsError marks a failed invocation; Payload then holds the error text.
	IsError bool `json:"is_error,omitempty"`
}

// Event is one record of the agent stream.
type Event struct {
	Role       Role        `json:"role"`
	Text       string      `json:"text,omitempty"`
	ToolCalls  []ToolCall  `json:"tool_calls,omitempty"`
	ToolResult *ToolResult `json:"tool_result,omitempty"`
}

// Message is one entry of the conversation handed to the agent.
type Message struct {
	Role    Role
	Content string
}

// Request describes a single agent run.
type Request struct {
	Instruction string
	Options     prompt.Options
	// History holds the prior conversation, oldest first, without Input.
	History []Message
	Input   string
}

// Runner drives the external agent. The returned sequence is pulled by the
// caller and ends when the agent finishes or yields an error.
type Runner interface {
	Stream(ctx context.Context, req Request) iter.Seq2[Event, error]
}
