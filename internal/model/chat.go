package model

import (
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// MessageContext tags a chat message with the conversation mode it was sent in.
type MessageContext string

const (
	ContextGeneral            MessageContext = "general"
	ContextReflectionHelp     MessageContext = "reflection-help"
	ContextFeedbackDiscussion MessageContext = "feedback-discussion"
)

// ChatMessage is a single turn in a coaching chat. Messages are append-only
// within a session; insertion order is display order.
type ChatMessage struct {
	ID        string            `json:"id"`
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Context   MessageContext    `json:"context"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChatSession holds the coaching conversation for one reflection.
// There is at most one session per reflection, created lazily.
type ChatSession struct {
	ID           string        `json:"id"`
	ReflectionID string        `json:"reflection_id"`
	Messages     []ChatMessage `json:"messages"`
	IsActive     bool          `json:"is_active"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ChatTurn is the reduced role+content view of a message sent to the LLM.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendChatMessageRequest is the request to send a chat message.
type SendChatMessageRequest struct {
	Message string `json:"message"`
}

// ListChatMessagesResponse is the response for listing a session's messages.
type ListChatMessagesResponse struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}
