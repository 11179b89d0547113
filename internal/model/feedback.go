package model

// FeedbackStatus is the coarse evaluation tier.
type FeedbackStatus string

const (
	FeedbackNeedsWork FeedbackStatus = "needs-work"
	FeedbackGood      FeedbackStatus = "good"
	FeedbackExcellent FeedbackStatus = "excellent"
)

// DimensionFeedback is the per-rubric-dimension judgment.
type DimensionFeedback struct {
	Pass        bool     `json:"pass"`
	Remarks     string   `json:"remarks"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// FeedbackSections holds the three fixed rubric dimensions.
type FeedbackSections struct {
	Happened DimensionFeedback `json:"happened"`
	Feeling  DimensionFeedback `json:"feeling"`
	Next     DimensionFeedback `json:"next"`
}

// StructuredResponse is the evaluation result returned by the scoring call.
// It is immutable once received and held in memory only; feedback is
// regenerated on demand rather than persisted.
type StructuredResponse struct {
	Feedback     FeedbackSections `json:"feedback"`
	Suggestions  []string         `json:"suggestions"`
	OverallScore int              `json:"overallScore"`
	Status       FeedbackStatus   `json:"status"`
}

// SimilarityMatch describes a likely duplicate of a previously passed
// reflection. Advisory only; it never blocks submission.
type SimilarityMatch struct {
	Text       string `json:"text"`
	Similarity int    `json:"similarity"`
	Date       string `json:"date"`
}

// EvaluationResponse is the wire envelope for the evaluation call.
type EvaluationResponse struct {
	Success      bool                `json:"success"`
	Data         *StructuredResponse `json:"data,omitempty"`
	DisplayScore int                 `json:"display_score,omitempty"`
	Similarity   *SimilarityMatch    `json:"similarity,omitempty"`
	Flagged      bool                `json:"flagged,omitempty"`
	Categories   []string            `json:"categories,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// CoachReply is the fixed response schema of the coaching chat call.
type CoachReply struct {
	Response string         `json:"response"`
	Context  MessageContext `json:"context"`
	Helpful  bool           `json:"helpful"`
}

// ChatCallResponse is the wire envelope for the chat call.
type ChatCallResponse struct {
	Success    bool        `json:"success"`
	Data       *CoachReply `json:"data,omitempty"`
	Flagged    bool        `json:"flagged,omitempty"`
	Categories []string    `json:"categories,omitempty"`
	Error      string      `json:"error,omitempty"`
}
