package store

import (
	"context"
	"sync"
	"time"

	"github.com/reflectlab/journal-platform/internal/coach"
	"github.com/reflectlab/journal-platform/internal/events"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/storage"
	"github.com/reflectlab/journal-platform/internal/validation"
	"github.com/reflectlab/journal-platform/pkg/logger"
	"github.com/reflectlab/journal-platform/pkg/metrics"
)

// FallbackMessage is the deterministic assistant turn appended when the
// coaching call fails. The UI always gets a conversational turn back.
const FallbackMessage = "Sorry, I had trouble responding. Please try again."

// FlaggedMessage is the assistant turn appended when moderation flags the
// student's message.
const FlaggedMessage = "Let's have a grown-up look at that message together before we keep going."

// contextWindow bounds how many trailing messages are sent to the remote call.
const contextWindow = 10

// ChatStore owns the chat sessions, one per reflection, and orchestrates the
// remote send-message round trip.
type ChatStore struct {
	mu       sync.Mutex
	sessions []model.ChatSession

	// Single-flight guard: a second send while one is outstanding is
	// rejected immediately, never queued.
	isSending bool

	coach     *coach.Service
	storage   *storage.Store
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewChatStore creates the store and restores persisted sessions.
func NewChatStore(svc *coach.Service, st *storage.Store, pub *events.Publisher, log *logger.Logger) *ChatStore {
	s := &ChatStore{
		coach:     svc,
		storage:   st,
		publisher: pub,
		logger:    log,
	}

	if _, err := st.Load(context.Background(), storage.KeyChatSessions, &s.sessions); err != nil {
		log.Warn("failed to load chat sessions, starting empty", "error", err)
	}

	return s
}

// GetOrCreateSession returns a copy of the session for the reflection,
// creating an empty one if absent.
func (s *ChatStore) GetOrCreateSession(reflectionID string) model.ChatSession {
	s.mu.Lock()
	session := s.getOrCreateLocked(reflectionID)
	out := copySession(session)
	s.mu.Unlock()

	return out
}

// Session returns a copy of the reflection's session without creating one.
func (s *ChatStore) Session(reflectionID string) (model.ChatSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ReflectionID == reflectionID {
			return copySession(&s.sessions[i]), true
		}
	}
	return model.ChatSession{}, false
}

// AddMessage validates and appends a message to the reflection's session,
// creating the session if needed. Returns nil on invalid content.
func (s *ChatStore) AddMessage(reflectionID, content string, role model.Role, msgContext model.MessageContext) *model.ChatMessage {
	if !validation.IsValidChatMessage(content) {
		return nil
	}

	msg := s.appendMessage(reflectionID, content, role, msgContext)
	s.persist()
	return msg
}

// SendMessage runs the full chat round trip: append the user's message, call
// the coaching boundary with a bounded context window, and append either the
// assistant's reply or the fixed fallback. Returns false when the message is
// invalid or another send is in flight.
func (s *ChatStore) SendMessage(ctx context.Context, reflectionID, message string, reflection *model.Reflection, feedback *model.StructuredResponse) bool {
	s.mu.Lock()
	if s.isSending {
		s.mu.Unlock()
		return false
	}
	s.isSending = true
	s.mu.Unlock()

	done := false
	defer func() {
		// Guaranteed reset regardless of outcome.
		s.mu.Lock()
		s.isSending = false
		s.mu.Unlock()
		if done {
			s.persist()
		}
	}()

	if !validation.IsValidChatMessage(message) {
		return false
	}

	s.appendMessage(reflectionID, message, model.RoleUser, model.ContextReflectionHelp)
	done = true

	var reflectionText string
	if reflection != nil {
		reflectionText = reflection.Text
	}

	resp, err := s.coach.Chat(ctx, &coach.ChatRequest{
		Message:         message,
		ReflectionText:  reflectionText,
		ChatHistory:     s.historyWindow(reflectionID),
		Context:         model.ContextReflectionHelp,
		CurrentFeedback: feedback,
	})

	switch {
	case err == nil && resp.Success:
		s.appendMessage(reflectionID, resp.Data.Response, model.RoleAssistant, resp.Data.Context)
		s.publishTurn(ctx, reflectionID)
	case err == nil && resp.Flagged:
		// Moderation flag is a handled outcome, not a failure: route to
		// adult review instead of the generic fallback.
		s.appendMessage(reflectionID, FlaggedMessage, model.RoleAssistant, model.ContextReflectionHelp)
	default:
		// Errors never propagate to the caller; the student always gets a
		// deterministic conversational turn.
		s.logger.Error("chat round trip failed, using fallback", "reflection_id", reflectionID, "error", err)
		metrics.ChatFallbacksTotal.Inc()
		s.appendMessage(reflectionID, FallbackMessage, model.RoleAssistant, model.ContextReflectionHelp)
	}

	return true
}

// ClearMessages empties the reflection's session, keeping the session itself.
func (s *ChatStore) ClearMessages(reflectionID string) {
	s.mu.Lock()
	for i := range s.sessions {
		if s.sessions[i].ReflectionID == reflectionID {
			s.sessions[i].Messages = nil
			break
		}
	}
	s.mu.Unlock()

	s.persist()
	s.publisher.Publish(context.Background(), &model.JournalEvent{
		ID:           validation.NewID(),
		Type:         model.EventChatSessionCleared,
		ReflectionID: reflectionID,
		CreatedAt:    time.Now(),
	})
}

// DeleteSession removes the reflection's session entirely.
func (s *ChatStore) DeleteSession(reflectionID string) {
	s.mu.Lock()
	for i := range s.sessions {
		if s.sessions[i].ReflectionID == reflectionID {
			s.sessions = append(s.sessions[:i], s.sessions[i+1:]...)
			break
		}
	}
	s.mu.Unlock()

	s.persist()
}

// getOrCreateLocked returns the session for reflectionID, creating it if
// absent. Caller holds the lock.
func (s *ChatStore) getOrCreateLocked(reflectionID string) *model.ChatSession {
	for i := range s.sessions {
		if s.sessions[i].ReflectionID == reflectionID {
			return &s.sessions[i]
		}
	}

	s.sessions = append(s.sessions, model.ChatSession{
		ID:           validation.NewID(),
		ReflectionID: reflectionID,
		IsActive:     true,
		CreatedAt:    time.Now(),
	})
	return &s.sessions[len(s.sessions)-1]
}

func (s *ChatStore) appendMessage(reflectionID, content string, role model.Role, msgContext model.MessageContext) *model.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	session := s.getOrCreateLocked(reflectionID)
	msg := model.ChatMessage{
		ID:        validation.NewID(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
		Context:   msgContext,
	}
	session.Messages = append(session.Messages, msg)

	metrics.ChatMessagesTotal.WithLabelValues(string(role)).Inc()
	return &msg
}

// historyWindow returns the last messages of the session reduced to
// role+content, bounded by contextWindow.
func (s *ChatStore) historyWindow(reflectionID string) []model.ChatTurn {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.sessions {
		if s.sessions[i].ReflectionID != reflectionID {
			continue
		}
		msgs := s.sessions[i].Messages
		start := len(msgs) - contextWindow
		if start < 0 {
			start = 0
		}
		turns := make([]model.ChatTurn, 0, len(msgs)-start)
		for _, m := range msgs[start:] {
			turns = append(turns, model.ChatTurn{Role: string(m.Role), Content: m.Content})
		}
		return turns
	}
	return nil
}

func (s *ChatStore) persist() {
	s.mu.Lock()
	snapshot := make([]model.ChatSession, len(s.sessions))
	for i, session := range s.sessions {
		snapshot[i] = copySession(&session)
	}
	s.mu.Unlock()

	if err := s.storage.Save(context.Background(), storage.KeyChatSessions, snapshot); err != nil {
		s.logger.Error("failed to persist chat sessions", "error", err)
		metrics.PersistErrorsTotal.WithLabelValues(storage.KeyChatSessions).Inc()
	}
}

func (s *ChatStore) publishTurn(ctx context.Context, reflectionID string) {
	s.publisher.Publish(ctx, &model.JournalEvent{
		ID:           validation.NewID(),
		Type:         model.EventChatTurnCompleted,
		ReflectionID: reflectionID,
		CreatedAt:    time.Now(),
	})
}

func copySession(session *model.ChatSession) model.ChatSession {
	out := *session
	out.Messages = make([]model.ChatMessage, len(session.Messages))
	copy(out.Messages, session.Messages)
	return out
}
