// Package validation provides input rules for reflections and chat messages.
package validation

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const (
	// MinReflectionLength is the minimum trimmed reflection length.
	MinReflectionLength = 10
	// MaxReflectionLength is the maximum trimmed reflection length.
	MaxReflectionLength = 1000
	// MinSentences is the minimum sentence count for a validated reflection.
	MinSentences = 3
	// MaxSentences is the maximum sentence count for a validated reflection.
	MaxSentences = 4
	// MaxChatMessageLength is the maximum trimmed chat message length.
	MaxChatMessageLength = 2000
)

// IsValidReflectionText reports whether the trimmed text length is within bounds.
func IsValidReflectionText(text string) bool {
	n := len(strings.TrimSpace(text))
	return n >= MinReflectionLength && n <= MaxReflectionLength
}

// SentenceCount counts non-empty segments split on '.', '!' and '?'.
func SentenceCount(text string) int {
	segments := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	count := 0
	for _, seg := range segments {
		if strings.TrimSpace(seg) != "" {
			count++
		}
	}
	return count
}

// IsValidSentenceCount reports whether the text has 3-4 sentences.
func IsValidSentenceCount(text string) bool {
	n := SentenceCount(text)
	return n >= MinSentences && n <= MaxSentences
}

// ReflectionValidationError returns the first violated rule's message, or ""
// when the text is valid. Length is checked before sentence count.
func ReflectionValidationError(text string) string {
	n := len(strings.TrimSpace(text))
	if n < MinReflectionLength {
		return fmt.Sprintf("reflection is too short: needs at least %d characters", MinReflectionLength)
	}
	if n > MaxReflectionLength {
		return fmt.Sprintf("reflection is too long: keep it under %d characters", MaxReflectionLength)
	}
	if sc := SentenceCount(text); sc < MinSentences || sc > MaxSentences {
		return fmt.Sprintf("reflection should be %d-%d sentences, found %d", MinSentences, MaxSentences, sc)
	}
	return ""
}

// IsValidChatMessage reports whether the trimmed message length is within bounds.
func IsValidChatMessage(text string) bool {
	n := len(strings.TrimSpace(text))
	return n >= 1 && n <= MaxChatMessageLength
}

// Indicator word lists for the client-side hinting heuristic. The
// authoritative judgment comes from the remote evaluation; this exists for
// instant hints before submission.
var (
	happenedWords = []string{"today", "went", "did", "was", "were", "played", "made", "saw", "learned", "worked", "happened"}
	feelingWords  = []string{"felt", "feel", "happy", "sad", "excited", "nervous", "proud", "angry", "scared", "tired", "fun"}
	nextWords     = []string{"tomorrow", "will", "plan", "next", "want", "try", "goal", "hope", "practice"}
)

// RequirementAnalysis is a heuristic presence check of the three rubric
// dimensions in a draft reflection.
type RequirementAnalysis struct {
	HasHappened  bool `json:"has_happened"`
	HasFeeling   bool `json:"has_feeling"`
	HasNext      bool `json:"has_next"`
	Completeness int  `json:"completeness"`
}

// AnalyzeReflectionRequirements checks for indicator words of each rubric
// dimension, case-insensitively. Completeness counts the dimensions found.
func AnalyzeReflectionRequirements(text string) RequirementAnalysis {
	words := make(map[string]bool)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}) {
		words[w] = true
	}

	contains := func(indicators []string) bool {
		for _, ind := range indicators {
			if words[ind] {
				return true
			}
		}
		return false
	}

	a := RequirementAnalysis{
		HasHappened: contains(happenedWords),
		HasFeeling:  contains(feelingWords),
		HasNext:     contains(nextWords),
	}
	for _, ok := range []bool{a.HasHappened, a.HasFeeling, a.HasNext} {
		if ok {
			a.Completeness++
		}
	}
	return a
}

// NewID generates a collision-resistant textual id from the current time and
// a short random suffix. Uniqueness is only needed within one deployment.
func NewID() string {
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}
