package coach

import (
	"context"
	"fmt"
	"time"

	"github.com/reflectlab/journal-platform/internal/llm"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/moderation"
	"github.com/reflectlab/journal-platform/pkg/logger"
	"github.com/reflectlab/journal-platform/pkg/metrics"
)

// ChatRequest carries everything the coaching call needs.
type ChatRequest struct {
	Message         string
	ReflectionText  string
	ChatHistory     []model.ChatTurn
	Context         model.MessageContext
	CurrentFeedback *model.StructuredResponse
}

// Service is the coaching-chat service boundary.
type Service struct {
	llm       llm.Client
	moderator moderation.Moderator
	model     string
	timeout   time.Duration
	logger    *logger.Logger
}

// NewService creates a coaching service.
func NewService(client llm.Client, mod moderation.Moderator, modelName string, timeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		llm:       client,
		moderator: mod,
		model:     modelName,
		timeout:   timeout,
		logger:    log,
	}
}

// Chat runs one coaching turn: moderation pre-check on the student's message,
// prompt assembly, one remote call, and wrapping of the free-text reply into
// the fixed response schema. No retries; the caller converts failures into a
// fallback assistant message.
func (s *Service) Chat(ctx context.Context, req *ChatRequest) (*model.ChatCallResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	mod, err := s.moderator.Check(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("moderation pre-check failed: %w", err)
	}
	if mod.Flagged {
		s.logger.Warn("chat message flagged by moderation", "categories", mod.Categories)
		metrics.ModerationFlagsTotal.WithLabelValues("chat").Inc()
		return &model.ChatCallResponse{
			Success:    false,
			Flagged:    true,
			Categories: mod.Categories,
		}, nil
	}

	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		Model:  s.model,
		System: BuildSystemPrompt(req.ReflectionText, req.CurrentFeedback, req.ChatHistory, req.Context),
		Messages: []llm.ChatMessage{
			{Role: "user", Content: req.Message},
		},
		MaxTokens:   512,
		Temperature: 0.7,
	})
	if err != nil {
		return nil, fmt.Errorf("coaching call failed: %w", err)
	}
	metrics.RecordLLMRequest(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)

	return &model.ChatCallResponse{
		Success: true,
		Data: &model.CoachReply{
			Response: resp.Content,
			Context:  req.Context,
			Helpful:  true,
		},
	}, nil
}
