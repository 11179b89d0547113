// Package model defines data structures for the reflection journal platform.
package model

import (
	"time"
)

// ReflectionStatus represents the lifecycle status of a reflection.
type ReflectionStatus string

const (
	StatusPending    ReflectionStatus = "pending"
	StatusInProgress ReflectionStatus = "in-progress"
	StatusPassed     ReflectionStatus = "passed"
)

// Valid reports whether the status is one of the known lifecycle values.
func (s ReflectionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusPassed:
		return true
	}
	return false
}

// Reflection represents a student journal entry.
type Reflection struct {
	ID             string           `json:"id"`
	Text           string           `json:"text"`
	Status         ReflectionStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
	ChatSessionID  string           `json:"chat_session_id"`
	CurrentVersion int              `json:"current_version"`
}

// CreateReflectionRequest is the request to create a new reflection.
type CreateReflectionRequest struct {
	Text string `json:"text"`
}

// UpdateReflectionRequest is the request to update a reflection's text.
type UpdateReflectionRequest struct {
	Text string `json:"text"`
}

// UpdateStatusRequest is the request to move a reflection through its lifecycle.
type UpdateStatusRequest struct {
	Status ReflectionStatus `json:"status"`
}

// ListReflectionsResponse is the response for listing reflections.
type ListReflectionsResponse struct {
	Reflections []Reflection `json:"reflections"`
	Total       int          `json:"total"`
	SelectedID  string       `json:"selected_id,omitempty"`
}

// ReflectionStats summarizes the current reflection collection.
type ReflectionStats struct {
	Total      int `json:"total"`
	Passed     int `json:"passed"`
	InProgress int `json:"in_progress"`
	Pending    int `json:"pending"`
}
