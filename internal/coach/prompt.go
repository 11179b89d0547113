// Package coach implements the coaching-chat service boundary: persona
// prompt assembly, moderation pre-check and response wrapping.
package coach

import (
	"fmt"
	"strings"

	"github.com/reflectlab/journal-platform/internal/model"
)

// promptHistoryWindow is how many trailing turns are rendered into the prompt.
const promptHistoryWindow = 5

// readyScore is the score at which the coach tells the student they are ready
// to submit.
const readyScore = 75

const persona = `You are a friendly writing coach helping a student improve a short daily reflection.
Style rules:
- Keep replies to 2-3 short sentences.
- Use simple words suitable for English-language learners.
- Ask at most one question per reply.
- Encourage first, then suggest one concrete improvement.
- Never write the reflection for the student.`

var contextInstructions = map[model.MessageContext]string{
	model.ContextGeneral:            "The student is chatting generally. Gently steer them back to their reflection.",
	model.ContextReflectionHelp:     "The student wants help improving their reflection. Focus on the three parts: what happened, how they felt, and what they will do next.",
	model.ContextFeedbackDiscussion: "The student is discussing their evaluation feedback. Explain what the feedback means and how to act on it.",
}

// BuildSystemPrompt assembles the coaching system prompt from the persona,
// the current reflection, rendered feedback, recent history and the
// context-specific instruction block.
func BuildSystemPrompt(reflectionText string, feedback *model.StructuredResponse, history []model.ChatTurn, msgContext model.MessageContext) string {
	var b strings.Builder

	b.WriteString(persona)
	b.WriteString("\n")

	if reflectionText != "" {
		b.WriteString("\nThe student's current reflection:\n\"")
		b.WriteString(reflectionText)
		b.WriteString("\"\n")
	}

	if feedback != nil {
		b.WriteString("\nCurrent evaluation feedback:\n")
		b.WriteString(renderFeedback(feedback))
		if feedback.OverallScore >= readyScore {
			b.WriteString(fmt.Sprintf("The reflection scored %d, which is passing. Tell the student it is ready to submit.\n", feedback.OverallScore))
		}
	}

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		start := len(history) - promptHistoryWindow
		if start < 0 {
			start = 0
		}
		for _, turn := range history[start:] {
			b.WriteString(turn.Role)
			b.WriteString(": ")
			b.WriteString(turn.Content)
			b.WriteString("\n")
		}
	}

	if instr, ok := contextInstructions[msgContext]; ok {
		b.WriteString("\n")
		b.WriteString(instr)
		b.WriteString("\n")
	}

	return b.String()
}

// renderFeedback turns the per-dimension pass/fail judgments into readable
// lines, with the top suggestion for each failing dimension.
func renderFeedback(f *model.StructuredResponse) string {
	var b strings.Builder
	for _, dim := range []struct {
		label string
		fb    model.DimensionFeedback
	}{
		{"What happened", f.Feedback.Happened},
		{"How they felt", f.Feedback.Feeling},
		{"What's next", f.Feedback.Next},
	} {
		mark := "pass"
		if !dim.fb.Pass {
			mark = "needs work"
		}
		b.WriteString(fmt.Sprintf("- %s: %s. %s\n", dim.label, mark, dim.fb.Remarks))
		if !dim.fb.Pass && len(dim.fb.Suggestions) > 0 {
			b.WriteString(fmt.Sprintf("  Suggestion: %s\n", dim.fb.Suggestions[0]))
		}
	}
	return b.String()
}
