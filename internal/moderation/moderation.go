// Package moderation provides the safety pre-check run before any student
// text is sent for scoring or chat. Flagged content short-circuits the remote
// call and is routed to adult review instead.
package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Result is the outcome of a moderation check.
type Result struct {
	Flagged    bool
	Categories []string
}

// Moderator checks text for unsafe content.
type Moderator interface {
	Check(ctx context.Context, text string) (*Result, error)
}

// OpenAIModerator checks text against the OpenAI moderation endpoint.
type OpenAIModerator struct {
	client *openai.Client
}

// NewOpenAIModerator creates a moderator backed by the OpenAI moderation API.
func NewOpenAIModerator(apiKey string) (*OpenAIModerator, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is required for moderation")
	}
	return &OpenAIModerator{client: openai.NewClient(apiKey)}, nil
}

// Check runs the moderation endpoint on text.
func (m *OpenAIModerator) Check(ctx context.Context, text string) (*Result, error) {
	resp, err := m.client.Moderations(ctx, openai.ModerationRequest{
		Input: text,
		Model: openai.ModerationTextStable,
	})
	if err != nil {
		return nil, fmt.Errorf("moderation request failed: %w", err)
	}

	if len(resp.Results) == 0 {
		return &Result{}, nil
	}

	r := resp.Results[0]
	return &Result{
		Flagged:    r.Flagged,
		Categories: flaggedCategories(r.Categories),
	}, nil
}

func flaggedCategories(c openai.ResultCategories) []string {
	var out []string
	add := func(flagged bool, name string) {
		if flagged {
			out = append(out, name)
		}
	}
	add(c.Hate, "hate")
	add(c.HateThreatening, "hate/threatening")
	add(c.Harassment, "harassment")
	add(c.HarassmentThreatening, "harassment/threatening")
	add(c.SelfHarm, "self-harm")
	add(c.SelfHarmIntent, "self-harm/intent")
	add(c.SelfHarmInstructions, "self-harm/instructions")
	add(c.Sexual, "sexual")
	add(c.SexualMinors, "sexual/minors")
	add(c.Violence, "violence")
	add(c.ViolenceGraphic, "violence/graphic")
	return out
}

// PassThrough is a moderator that never flags. Used when no moderation
// backend is configured or the check is disabled.
type PassThrough struct{}

// Check always reports unflagged content.
func (PassThrough) Check(ctx context.Context, text string) (*Result, error) {
	return &Result{}, nil
}
