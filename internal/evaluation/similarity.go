// Package evaluation implements the reflection-scoring service boundary:
// moderation pre-check, rubric prompt, structured-output validation, the
// display-score transform and the duplicate-submission similarity guard.
package evaluation

import (
	"math"
	"strings"
	"time"
	"unicode"

	"github.com/reflectlab/journal-platform/internal/model"
)

// SimilarityThreshold is the Jaccard similarity above which a new submission
// is flagged as a likely duplicate of a past passing reflection.
const SimilarityThreshold = 0.6

// PastReflection is the text and date of a previously passed reflection.
type PastReflection struct {
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"createdAt"`
}

// tokenize lowercases, strips punctuation and keeps words longer than two
// characters.
func tokenize(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if len(w) > 2 {
			set[w] = struct{}{}
		}
	}
	return set
}

// CalculateTextSimilarity returns the Jaccard similarity of the two texts'
// word sets, in [0,1].
func CalculateTextSimilarity(a, b string) float64 {
	sa := tokenize(a)
	sb := tokenize(b)

	if len(sa) == 0 && len(sb) == 0 {
		return 0
	}

	intersection := 0
	for w := range sa {
		if _, ok := sb[w]; ok {
			intersection++
		}
	}
	union := len(sa) + len(sb) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union)
}

// CheckReflectionSimilarity compares text against past passing reflections
// and returns the closest match at or above the threshold, or nil. The result
// is advisory: it is surfaced as a warning and never blocks submission.
func CheckReflectionSimilarity(text string, past []PastReflection) *model.SimilarityMatch {
	var best *model.SimilarityMatch
	bestScore := 0.0

	for _, p := range past {
		score := CalculateTextSimilarity(text, p.Text)
		if score >= SimilarityThreshold && score > bestScore {
			bestScore = score
			best = &model.SimilarityMatch{
				Text:       p.Text,
				Similarity: int(math.Round(score * 100)),
				Date:       p.CreatedAt.Format("2006-01-02"),
			}
		}
	}

	return best
}
