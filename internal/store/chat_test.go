package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/reflectlab/journal-platform/internal/coach"
	"github.com/reflectlab/journal-platform/internal/llm"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/moderation"
	"github.com/reflectlab/journal-platform/pkg/logger"
)

type stubModerator struct {
	flagged bool
	err     error
}

func (s *stubModerator) Check(ctx context.Context, text string) (*moderation.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &moderation.Result{Flagged: s.flagged}, nil
}

func newChatStore(t *testing.T, client llm.Client, mod moderation.Moderator) *ChatStore {
	t.Helper()
	svc := coach.NewService(client, mod, "mock", 5*time.Second, logger.NewNop())
	return NewChatStore(svc, newTestStorage(t), nil, logger.NewNop())
}

func TestGetOrCreateSession(t *testing.T) {
	s := newChatStore(t, &llm.MockClient{}, &stubModerator{})

	first := s.GetOrCreateSession("r1")
	if first.ID == "" || first.ReflectionID != "r1" {
		t.Errorf("bad session: %+v", first)
	}
	if !first.IsActive {
		t.Error("new session should be active")
	}

	second := s.GetOrCreateSession("r1")
	if second.ID != first.ID {
		t.Error("one session per reflection: lookup must return the same session")
	}
}

func TestAddMessageValidates(t *testing.T) {
	s := newChatStore(t, &llm.MockClient{}, &stubModerator{})

	if msg := s.AddMessage("r1", "   ", model.RoleUser, model.ContextGeneral); msg != nil {
		t.Error("whitespace-only message should be rejected")
	}
	msg := s.AddMessage("r1", "hello coach", model.RoleUser, model.ContextGeneral)
	if msg == nil {
		t.Fatal("valid message rejected")
	}
	if msg.ID == "" || msg.Timestamp.IsZero() {
		t.Errorf("message missing id/timestamp: %+v", msg)
	}

	session := s.GetOrCreateSession("r1")
	if len(session.Messages) != 1 {
		t.Errorf("got %d messages, want 1", len(session.Messages))
	}
}

func TestSendMessageAppendsUserAndAssistant(t *testing.T) {
	client := &llm.MockClient{Response: "Nice work! What happened next?"}
	s := newChatStore(t, client, &stubModerator{})

	reflection := &model.Reflection{ID: "r1", Text: validText}
	feedback := &model.StructuredResponse{OverallScore: 60, Status: model.FeedbackNeedsWork}

	if !s.SendMessage(context.Background(), "r1", "How do I improve?", reflection, feedback) {
		t.Fatal("SendMessage failed")
	}

	session := s.GetOrCreateSession("r1")
	if len(session.Messages) != 2 {
		t.Fatalf("got %d messages, want user+assistant", len(session.Messages))
	}
	if session.Messages[0].Role != model.RoleUser || session.Messages[1].Role != model.RoleAssistant {
		t.Errorf("wrong roles: %q then %q", session.Messages[0].Role, session.Messages[1].Role)
	}
	if session.Messages[1].Content != client.Response {
		t.Errorf("assistant content = %q", session.Messages[1].Content)
	}
	if session.Messages[1].Context != model.ContextReflectionHelp {
		t.Errorf("assistant context = %q, want reflection-help", session.Messages[1].Context)
	}
}

func TestSendMessageSingleFlight(t *testing.T) {
	s := newChatStore(t, &llm.MockClient{Response: "ok"}, &stubModerator{})

	s.mu.Lock()
	s.isSending = true
	s.mu.Unlock()

	if s.SendMessage(context.Background(), "r1", "hello", nil, nil) {
		t.Error("second send while one is outstanding must be rejected")
	}
	if session := s.GetOrCreateSession("r1"); len(session.Messages) != 0 {
		t.Errorf("rejected send appended %d messages", len(session.Messages))
	}

	// The rejected call must not clear the outstanding flag.
	s.mu.Lock()
	if !s.isSending {
		t.Error("rejected send cleared the in-flight flag")
	}
	s.mu.Unlock()

	s.mu.Lock()
	s.isSending = false
	s.mu.Unlock()

	if !s.SendMessage(context.Background(), "r1", "hello", nil, nil) {
		t.Error("send should succeed after the flag clears")
	}
}

func TestSendMessageInvalidContentAborts(t *testing.T) {
	client := &llm.MockClient{Response: "ok"}
	s := newChatStore(t, client, &stubModerator{})

	if s.SendMessage(context.Background(), "r1", "   ", nil, nil) {
		t.Error("invalid message should abort the send")
	}
	if client.Calls != 0 {
		t.Error("remote call must not happen for invalid messages")
	}

	s.mu.Lock()
	sending := s.isSending
	s.mu.Unlock()
	if sending {
		t.Error("isSending must be false after an aborted send")
	}
}

func TestSendMessageFallbackOnError(t *testing.T) {
	s := newChatStore(t, &llm.MockClient{Err: errors.New("upstream down")}, &stubModerator{})

	if !s.SendMessage(context.Background(), "r1", "hello coach", nil, nil) {
		t.Fatal("send with remote failure still completes the local turn")
	}

	session := s.GetOrCreateSession("r1")
	if len(session.Messages) != 2 {
		t.Fatalf("got %d messages, want user+fallback", len(session.Messages))
	}
	if session.Messages[1].Content != FallbackMessage {
		t.Errorf("fallback content = %q", session.Messages[1].Content)
	}
	if session.Messages[1].Role != model.RoleAssistant {
		t.Error("fallback must be an assistant turn")
	}
}

func TestSendMessageFlaggedGetsReviewTurn(t *testing.T) {
	client := &llm.MockClient{Response: "never used"}
	s := newChatStore(t, client, &stubModerator{flagged: true})

	if !s.SendMessage(context.Background(), "r1", "something rude", nil, nil) {
		t.Fatal("flagged send still completes the local turn")
	}

	session := s.GetOrCreateSession("r1")
	if session.Messages[1].Content != FlaggedMessage {
		t.Errorf("flagged reply = %q, want adult-review message", session.Messages[1].Content)
	}
	if client.Calls != 0 {
		t.Error("LLM must not be called for flagged messages")
	}
}

func TestHistoryWindowBounded(t *testing.T) {
	s := newChatStore(t, &llm.MockClient{}, &stubModerator{})

	for i := 0; i < 12; i++ {
		s.AddMessage("r1", fmt.Sprintf("message %d", i), model.RoleUser, model.ContextGeneral)
	}

	turns := s.historyWindow("r1")
	if len(turns) != 10 {
		t.Fatalf("window = %d turns, want 10", len(turns))
	}
	if turns[0].Content != "message 2" {
		t.Errorf("window starts at %q, want message 2", turns[0].Content)
	}
	if turns[9].Content != "message 11" {
		t.Errorf("window ends at %q, want message 11", turns[9].Content)
	}
}

func TestClearMessagesAndDeleteSession(t *testing.T) {
	s := newChatStore(t, &llm.MockClient{}, &stubModerator{})

	s.AddMessage("r1", "first", model.RoleUser, model.ContextGeneral)
	s.ClearMessages("r1")
	if session := s.GetOrCreateSession("r1"); len(session.Messages) != 0 {
		t.Error("ClearMessages left messages behind")
	}

	before := s.GetOrCreateSession("r1")
	s.DeleteSession("r1")
	after := s.GetOrCreateSession("r1")
	if after.ID == before.ID {
		t.Error("DeleteSession should remove the session entirely")
	}
}

func TestChatPersistenceRoundTrip(t *testing.T) {
	st := newTestStorage(t)
	svc := coach.NewService(&llm.MockClient{}, &stubModerator{}, "mock", time.Second, logger.NewNop())

	s := NewChatStore(svc, st, nil, logger.NewNop())
	s.AddMessage("r1", "hello there", model.RoleUser, model.ContextGeneral)

	restored := NewChatStore(svc, st, nil, logger.NewNop())
	session := restored.GetOrCreateSession("r1")
	if len(session.Messages) != 1 || session.Messages[0].Content != "hello there" {
		t.Errorf("restored session mismatch: %+v", session)
	}
}
