package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/reflectlab/journal-platform/internal/llm"
	"github.com/reflectlab/journal-platform/internal/model"
	"github.com/reflectlab/journal-platform/internal/moderation"
	"github.com/reflectlab/journal-platform/pkg/logger"
	"github.com/reflectlab/journal-platform/pkg/metrics"
)

// ErrEvaluationInFlight is returned when a reflection already has an
// evaluation outstanding. One submission, one remote call.
var ErrEvaluationInFlight = errors.New("evaluation already in progress for this reflection")

// ErrContract is returned when the remote output fails JSON parsing or schema
// validation. It is a hard failure for the evaluation call; no retry.
var ErrContract = errors.New("evaluation response violates the structured-output contract")

const scoringSystemPrompt = `You are a writing coach scoring a student's short daily reflection.
Judge three rubric dimensions independently, each pass/fail:
1. "happened": does the reflection say what happened today?
2. "feeling": does it say how the student felt about it?
3. "next": does it say what the student will do next or tomorrow?
Keep each dimension's remarks under 30 words, written directly to the student
in simple, encouraging language suitable for English-language learners.
Respond with ONLY a JSON object, no prose and no code fences, in exactly this shape:
{"feedback":{"happened":{"pass":true,"remarks":"...","suggestions":["..."]},"feeling":{"pass":true,"remarks":"...","suggestions":["..."]},"next":{"pass":true,"remarks":"...","suggestions":["..."]}},"suggestions":["..."],"overallScore":85,"status":"good"}
"overallScore" is 0-100. "status" is one of "needs-work", "good", "excellent".
Include "suggestions" inside a dimension only when it fails. Do not add fields.`

// Service scores reflections against the three-dimension rubric.
type Service struct {
	llm       llm.Client
	moderator moderation.Moderator
	model     string
	timeout   time.Duration
	logger    *logger.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewService creates an evaluation service.
func NewService(client llm.Client, mod moderation.Moderator, modelName string, timeout time.Duration, log *logger.Logger) *Service {
	return &Service{
		llm:       client,
		moderator: mod,
		model:     modelName,
		timeout:   timeout,
		logger:    log,
		inFlight:  make(map[string]bool),
	}
}

// Evaluate runs the full scoring protocol for one reflection: single-flight
// acquisition, moderation pre-check, remote scoring, strict schema
// validation, and the advisory similarity guard against past passing
// reflections.
func (s *Service) Evaluate(ctx context.Context, reflectionID, text string, past []PastReflection) (*model.EvaluationResponse, error) {
	if !s.acquire(reflectionID) {
		return nil, ErrEvaluationInFlight
	}
	defer s.release(reflectionID)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	// Moderation runs first; flagged content is never sent for scoring.
	mod, err := s.moderator.Check(ctx, text)
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("moderation pre-check failed: %w", err)
	}
	if mod.Flagged {
		s.logger.Warn("reflection flagged by moderation", "reflection_id", reflectionID, "categories", mod.Categories)
		metrics.ModerationFlagsTotal.WithLabelValues("evaluation").Inc()
		metrics.EvaluationsTotal.WithLabelValues("flagged").Inc()
		return &model.EvaluationResponse{
			Success:    false,
			Flagged:    true,
			Categories: mod.Categories,
		}, nil
	}

	resp, err := s.llm.Complete(ctx, &llm.CompletionRequest{
		Model:  s.model,
		System: scoringSystemPrompt,
		Messages: []llm.ChatMessage{
			{Role: "user", Content: "Score this reflection:\n\n" + text},
		},
		MaxTokens:   1024,
		Temperature: 0.2,
	})
	if err != nil {
		metrics.EvaluationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("scoring call failed: %w", err)
	}
	metrics.RecordLLMRequest(resp.Model, "success", float64(resp.LatencyMs)/1000.0, resp.TokensIn, resp.TokensOut)

	structured, err := parseStructuredResponse(resp.Content)
	if err != nil {
		s.logger.Error("scoring response failed schema validation", "reflection_id", reflectionID, "error", err)
		metrics.EvaluationsTotal.WithLabelValues("contract_error").Inc()
		return nil, err
	}

	metrics.EvaluationsTotal.WithLabelValues("success").Inc()

	return &model.EvaluationResponse{
		Success:      true,
		Data:         structured,
		DisplayScore: DisplayScore(structured.OverallScore),
		Similarity:   CheckReflectionSimilarity(text, past),
	}, nil
}

func (s *Service) acquire(reflectionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[reflectionID] {
		return false
	}
	s.inFlight[reflectionID] = true
	return true
}

func (s *Service) release(reflectionID string) {
	s.mu.Lock()
	delete(s.inFlight, reflectionID)
	s.mu.Unlock()
}

// rawDimension mirrors DimensionFeedback with pointers so missing fields are
// distinguishable from zero values.
type rawDimension struct {
	Pass        *bool    `json:"pass"`
	Remarks     *string  `json:"remarks"`
	Suggestions []string `json:"suggestions"`
}

type rawFeedback struct {
	Happened *rawDimension `json:"happened"`
	Feeling  *rawDimension `json:"feeling"`
	Next     *rawDimension `json:"next"`
}

type rawResponse struct {
	Feedback     *rawFeedback `json:"feedback"`
	Suggestions  []string     `json:"suggestions"`
	OverallScore *int         `json:"overallScore"`
	Status       *string      `json:"status"`
}

// parseStructuredResponse parses and schema-validates the remote output.
// Extra fields, missing fields, out-of-range scores and unknown status tiers
// are all contract violations.
func parseStructuredResponse(content string) (*model.StructuredResponse, error) {
	payload := extractJSON(content)
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrContract)
	}

	dec := json.NewDecoder(strings.NewReader(payload))
	dec.DisallowUnknownFields()

	var raw rawResponse
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrContract, err)
	}

	if raw.Feedback == nil || raw.Suggestions == nil || raw.OverallScore == nil || raw.Status == nil {
		return nil, fmt.Errorf("%w: missing required field", ErrContract)
	}
	if *raw.OverallScore < 0 || *raw.OverallScore > 100 {
		return nil, fmt.Errorf("%w: overallScore %d out of range", ErrContract, *raw.OverallScore)
	}

	status := model.FeedbackStatus(*raw.Status)
	switch status {
	case model.FeedbackNeedsWork, model.FeedbackGood, model.FeedbackExcellent:
	default:
		return nil, fmt.Errorf("%w: unknown status %q", ErrContract, *raw.Status)
	}

	sections := model.FeedbackSections{}
	for _, dim := range []struct {
		name string
		raw  *rawDimension
		out  *model.DimensionFeedback
	}{
		{"happened", raw.Feedback.Happened, &sections.Happened},
		{"feeling", raw.Feedback.Feeling, &sections.Feeling},
		{"next", raw.Feedback.Next, &sections.Next},
	} {
		if dim.raw == nil || dim.raw.Pass == nil || dim.raw.Remarks == nil {
			return nil, fmt.Errorf("%w: dimension %q incomplete", ErrContract, dim.name)
		}
		dim.out.Pass = *dim.raw.Pass
		dim.out.Remarks = *dim.raw.Remarks
		dim.out.Suggestions = dim.raw.Suggestions
	}

	return &model.StructuredResponse{
		Feedback:     sections,
		Suggestions:  raw.Suggestions,
		OverallScore: *raw.OverallScore,
		Status:       status,
	}, nil
}

// extractJSON trims prose and code fences around the first top-level JSON
// object in the model output.
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return content[start : end+1]
}
