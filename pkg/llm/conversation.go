// Package llm isolates the LLM provider wire format behind a narrow
// Conversation interface, the "opaque collaborator" spec.md §1 scopes out
// of this system. Nothing outside this package imports a provider SDK.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the speaker of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to the model.
type Message struct {
	Role    Role
	Content string
}

// ToolDefinition advertises one callable tool to the model.
type ToolDefinition struct {
	Name             string
	Description      string
	ParametersSchema json.RawMessage
}

// ToolCall is the model's request to invoke one tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // raw JSON object, parsed by the caller against the tool's schema
}

// Reply is the model's response to one turn. Exactly one of Text or
// ToolCall is meaningful: a non-empty Text is a final free-text reply that
// terminates the turn loop; a non-nil ToolCall requests tool execution.
type Reply struct {
	Text     string
	ToolCall *ToolCall
}

// Conversation drives one exchange with the model: given the transcript so
// far and the tools currently available, it returns the model's next move.
// Implementations must honour ctx's deadline.
type Conversation interface {
	Send(ctx context.Context, messages []Message, tools []ToolDefinition) (Reply, error)
}
