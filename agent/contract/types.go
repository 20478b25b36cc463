package contract

import (
	"context"

	"github.com/mechanigo/chatbot/agent/schema"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn element handed to the model capability. Assistant
// messages carry the tool calls the model issued; tool messages carry the
// structured result for one call, keyed by ToolCallID.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolSpec declares a callable tool to the model capability.
type ToolSpec struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params,omitempty"`
}

type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string" | "integer"
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
	TotalTokens  int64 `json:"total_tokens"`
}

func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
}

// Completion is one model round: either final text or tool calls to execute.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
	Model     string
}

type CompletionRequest struct {
	Instructions string
	History      []Message
	Tools        []ToolSpec
}

// Completer is the opaque LLM capability.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// Verdict is the guardrail classification of one inbound message.
type Verdict struct {
	Blocked bool     `json:"blocked"`
	Reasons []string `json:"reasons,omitempty"`
}

type Classifier interface {
	Classify(ctx context.Context, input string) (Verdict, error)
}

// Lookup answers a free-text query from a knowledge source. A miss is
// reported via ErrLookupMiss, not an empty answer.
type Lookup interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// UserStore is the durable profile capability. FindUserBy returns
// (nil, nil) when no record matches.
type UserStore interface {
	UpsertUser(ctx context.Context, user *schema.User) error
	FindUserBy(ctx context.Context, field, value string) (*schema.User, error)
}

// ToolResult is the structured payload a tool handler returns to the model.
// Handler failures are carried in Status/Message, never as Go errors, so the
// model can decide how to recover with the user.
type ToolResult struct {
	Tool    string         `json:"tool"`
	Status  string         `json:"status"`
	Message string         `json:"message,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// TurnResult is what one orchestrator turn returns to the HTTP layer.
type TurnResult struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
	Model     string `json:"model,omitempty"`
	Usage     Usage  `json:"usage"`
}
