package llm

import "context"

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is a multi-turn completion request. SystemPrompt carries the
// data briefing; Model and MaxTokens fall back to the client defaults when
// empty.
type ChatRequest struct {
	Messages     []Message
	SystemPrompt string
	Model        string
	MaxTokens    int
}

// Usage reports tokens consumed by one call.
type Usage struct {
	InputTokens  int `json:"input"`
	OutputTokens int `json:"output"`
}

// ChatResponse is the assistant's reply.
type ChatResponse struct {
	Content string
	Model   string
	Usage   Usage
}

// ChatCompleter is the interface for assistant chat completion.
// Failures are returned as *AssistantError.
type ChatCompleter interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	GetModel() string
}
