package generation

import (
	"context"
	"log/slog"

	"quill/internal/llm"
	"quill/internal/logging"
)

// Attempt is one generate/critique round inside the loop.
type Attempt struct {
	Iteration int
	Draft     Draft
	Critique  Critique
}

// Outcome is the loop's final verdict: the best attempt observed plus the
// full history. Degraded reports whether every draft came from the
// last-resort stub; the caller decides whether that means failure.
type Outcome struct {
	Best       Attempt
	Iterations []Attempt
	Degraded   bool
}

// Score is the quality score of the winning attempt.
func (o Outcome) Score() int {
	return o.Best.Critique.Score
}

// Loop runs generate → critique rounds until the score clears the
// threshold or the iteration cap is hit.
type Loop struct {
	generator *Generator
	critic    *Critic

	threshold     int
	maxIterations int
	logger        *slog.Logger
}

// NewLoop builds a critique loop with the given gate and cap.
func NewLoop(generator *Generator, critic *Critic, threshold, maxIterations int, logger *slog.Logger) *Loop {
	if maxIterations < 1 {
		maxIterations = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Loop{
		generator:     generator,
		critic:        critic,
		threshold:     threshold,
		maxIterations: maxIterations,
		logger:        logger.With(logging.String(logging.FieldComponent, "critique-loop")),
	}
}

// Run executes the refinement cycle. It always terminates within the
// iteration cap and returns the highest-scoring attempt; on a tie the
// later, more refined attempt wins. Each iteration after the first feeds
// the previous critique back into the prompt. Errors come only from a
// dead context; provider exhaustion is reported through the degraded
// flag.
func (l *Loop) Run(ctx context.Context, params GenerateParams) (Outcome, error) {
	outcome := Outcome{Degraded: true}
	feedback := params.PriorFeedback

	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}

		params.PriorFeedback = feedback
		draft, attempts, err := l.generator.Generate(ctx, params)
		if err != nil {
			return outcome, err
		}
		l.logAttempts(iteration, attempts)

		critique, err := l.critic.Review(ctx, draft.Content, params.TargetLength)
		if err != nil {
			return outcome, err
		}

		attempt := Attempt{Iteration: iteration, Draft: draft, Critique: critique}
		outcome.Iterations = append(outcome.Iterations, attempt)
		if !draft.Degraded {
			outcome.Degraded = false
		}
		// Later attempts win ties.
		if len(outcome.Iterations) == 1 || critique.Score >= outcome.Best.Critique.Score {
			outcome.Best = attempt
		}

		l.logger.Info("iteration scored",
			logging.Int(logging.FieldIteration, iteration),
			logging.Int(logging.FieldScore, critique.Score),
			logging.String(logging.FieldProvider, draft.Provider),
			logging.Bool("degraded", draft.Degraded))

		if critique.Score >= l.threshold {
			return outcome, nil
		}
		feedback = critiqueFeedback(critique)
	}
	return outcome, nil
}

func (l *Loop) logAttempts(iteration int, attempts []llm.Attempt) {
	for _, attempt := range attempts {
		if attempt.Succeeded() {
			continue
		}
		l.logger.Debug("provider attempt failed",
			logging.Int(logging.FieldIteration, iteration),
			logging.String(logging.FieldProvider, attempt.Provider),
			logging.Error(attempt.Err))
	}
}

func critiqueFeedback(c Critique) string {
	feedback := c.Feedback
	for _, suggestion := range c.Suggestions {
		if suggestion == "" {
			continue
		}
		if feedback != "" {
			feedback += "\n"
		}
		feedback += "- " + suggestion
	}
	return feedback
}
