package model

import (
	"time"
)

// EventType represents the type of journal lifecycle event.
type EventType string

const (
	EventReflectionCreated  EventType = "reflection_created"
	EventReflectionUpdated  EventType = "reflection_updated"
	EventReflectionDeleted  EventType = "reflection_deleted"
	EventStatusChanged      EventType = "status_changed"
	EventEvaluationDone     EventType = "evaluation_completed"
	EventEvaluationFlagged  EventType = "evaluation_flagged"
	EventChatTurnCompleted  EventType = "chat_turn_completed"
	EventChatSessionCleared EventType = "chat_session_cleared"
)

// JournalEvent is a lifecycle event published to the audit stream.
type JournalEvent struct {
	ID           string         `json:"id"`
	Type         EventType      `json:"type"`
	ReflectionID string         `json:"reflection_id"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	Sequence     uint64         `json:"sequence,omitempty"`
}
