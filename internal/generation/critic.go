package generation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"quill/internal/llm"
	"quill/internal/logging"
)

const criticSystemPrompt = "You are an exacting editorial reviewer. " +
	"Respond with JSON only: {\"score\": <0-100 integer>, \"feedback\": <string>, \"suggestions\": [<string>, ...]}. " +
	"Score 0 means unusable, 100 means publication ready."

// Critique is the structured verdict on one draft.
type Critique struct {
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Suggestions []string `json:"suggestions"`

	// Fallback marks a critique fabricated because the provider response
	// could not be parsed into a score.
	Fallback bool `json:"-"`
}

// Critic scores drafts through the router. An unparsable critique yields
// the configured fallback score rather than an error; a broken critic
// must never abort generation.
type Critic struct {
	router        Completer
	fallbackScore int
	logger        *slog.Logger
}

// NewCritic builds a critic with the given fallback score.
func NewCritic(router Completer, fallbackScore int, logger *slog.Logger) *Critic {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Critic{
		router:        router,
		fallbackScore: fallbackScore,
		logger:        logger.With(logging.String(logging.FieldComponent, "critic")),
	}
}

// Review scores a draft. Only a dead context produces an error.
func (c *Critic) Review(ctx context.Context, draft string, targetLength int) (Critique, error) {
	result, _, err := c.router.Complete(ctx, llm.Request{
		System:       criticSystemPrompt,
		Prompt:       buildCritiquePrompt(draft, targetLength),
		Purpose:      llm.PurposeCritique,
		TargetLength: targetLength,
	})
	if err != nil {
		return Critique{}, err
	}

	var critique Critique
	if err := llm.DecodeJSON(result.Content, &critique); err != nil {
		c.logger.Warn("unparsable critique, using fallback score",
			logging.Int(logging.FieldScore, c.fallbackScore),
			logging.Error(err))
		return c.fallback("critique response could not be parsed"), nil
	}
	if critique.Score < 0 {
		critique.Score = 0
	}
	if critique.Score > 100 {
		critique.Score = 100
	}
	critique.Feedback = strings.TrimSpace(critique.Feedback)
	return critique, nil
}

func (c *Critic) fallback(reason string) Critique {
	return Critique{
		Score:    c.fallbackScore,
		Feedback: reason,
		Fallback: true,
	}
}

func buildCritiquePrompt(draft string, targetLength int) string {
	var b strings.Builder
	b.WriteString("Review the draft below for clarity, structure, accuracy of framing, and completeness.\n")
	if targetLength > 0 {
		fmt.Fprintf(&b, "The target length is roughly %d words; penalize drafts far off the mark.\n", targetLength)
	}
	b.WriteString("\n---\n")
	b.WriteString(draft)
	return b.String()
}
