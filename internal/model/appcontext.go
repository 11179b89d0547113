package model

// AppContext is the process-wide UI mode, persisted and restored across runs.
type AppContext string

const (
	ContextWriteEdit AppContext = "write-edit"
	ContextFeedback  AppContext = "feedback"
	ContextChat      AppContext = "chat"
)

// Valid reports whether the context is one of the known modes.
func (c AppContext) Valid() bool {
	switch c {
	case ContextWriteEdit, ContextFeedback, ContextChat:
		return true
	}
	return false
}

// ContextState is the navigator's externally visible state.
type ContextState struct {
	ActiveContext   AppContext `json:"active_context"`
	IsTransitioning bool       `json:"is_transitioning"`
	HasReflection   bool       `json:"has_reflection"`
}

// SwitchContextRequest is the request to change the active UI mode.
type SwitchContextRequest struct {
	Target AppContext `json:"target"`
}
