package generation_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"quill/internal/generation"
	"quill/internal/llm"
	"quill/internal/logging"
)

// scriptedRouter replays canned generation drafts and critique payloads
// in order, recording the prompts it saw.
type scriptedRouter struct {
	drafts    []llm.Result
	critiques []string

	draftIdx    int
	critiqueIdx int
	prompts     []string
}

func (s *scriptedRouter) Complete(ctx context.Context, req llm.Request) (llm.Result, []llm.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return llm.Result{}, nil, err
	}
	s.prompts = append(s.prompts, req.Prompt)
	if req.Purpose == llm.PurposeCritique {
		payload := s.critiques[s.critiqueIdx%len(s.critiques)]
		s.critiqueIdx++
		return llm.Result{Content: payload, Provider: "critic"}, []llm.Attempt{{Provider: "critic"}}, nil
	}
	result := s.drafts[s.draftIdx%len(s.drafts)]
	s.draftIdx++
	return result, []llm.Attempt{{Provider: result.Provider}}, nil
}

func critiqueJSON(score int, feedback string, suggestions ...string) string {
	quoted := make([]string, len(suggestions))
	for i, s := range suggestions {
		quoted[i] = fmt.Sprintf("%q", s)
	}
	return fmt.Sprintf(`{"score": %d, "feedback": %q, "suggestions": [%s]}`,
		score, feedback, strings.Join(quoted, ","))
}

func newLoop(router generation.Completer, threshold, maxIterations int) *generation.Loop {
	gen := generation.NewGenerator(router)
	critic := generation.NewCritic(router, 50, logging.NewNop())
	return generation.NewLoop(gen, critic, threshold, maxIterations, logging.NewNop())
}

func TestLoopStopsAtThreshold(t *testing.T) {
	router := &scriptedRouter{
		drafts:    []llm.Result{{Content: "good draft", Provider: "a"}},
		critiques: []string{critiqueJSON(90, "excellent")},
	}
	loop := newLoop(router, 75, 3)

	outcome, err := loop.Run(context.Background(), generation.GenerateParams{Topic: "go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Iterations) != 1 {
		t.Fatalf("expected 1 iteration, got %d", len(outcome.Iterations))
	}
	if outcome.Score() != 90 || outcome.Best.Draft.Content != "good draft" {
		t.Fatalf("unexpected outcome %#v", outcome.Best)
	}
	if outcome.Degraded {
		t.Fatal("real draft must not be degraded")
	}
}

func TestLoopReturnsHighestScoreAtCap(t *testing.T) {
	router := &scriptedRouter{
		drafts: []llm.Result{
			{Content: "draft one", Provider: "a"},
			{Content: "draft two", Provider: "a"},
			{Content: "draft three", Provider: "a"},
		},
		critiques: []string{
			critiqueJSON(60, "weak"),
			critiqueJSON(70, "better"),
			critiqueJSON(65, "regressed"),
		},
	}
	loop := newLoop(router, 75, 3)

	outcome, err := loop.Run(context.Background(), generation.GenerateParams{Topic: "go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(outcome.Iterations) != 3 {
		t.Fatalf("expected cap of 3 iterations, got %d", len(outcome.Iterations))
	}
	if outcome.Score() != 70 || outcome.Best.Draft.Content != "draft two" {
		t.Fatalf("expected highest-scoring draft, got %#v", outcome.Best)
	}
}

func TestLoopLaterAttemptWinsTies(t *testing.T) {
	router := &scriptedRouter{
		drafts: []llm.Result{
			{Content: "first", Provider: "a"},
			{Content: "second", Provider: "a"},
		},
		critiques: []string{
			critiqueJSON(70, "ok"),
			critiqueJSON(70, "ok too"),
		},
	}
	loop := newLoop(router, 75, 2)

	outcome, err := loop.Run(context.Background(), generation.GenerateParams{Topic: "go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if outcome.Best.Draft.Content != "second" || outcome.Best.Iteration != 2 {
		t.Fatalf("tie must prefer the later attempt, got %#v", outcome.Best)
	}
}

func TestLoopFeedsCritiqueBackIntoPrompt(t *testing.T) {
	router := &scriptedRouter{
		drafts: []llm.Result{
			{Content: "first", Provider: "a"},
			{Content: "second", Provider: "a"},
		},
		critiques: []string{
			critiqueJSON(40, "too shallow", "add examples"),
			critiqueJSON(90, "fixed"),
		},
	}
	loop := newLoop(router, 75, 3)

	if _, err := loop.Run(context.Background(), generation.GenerateParams{Topic: "go"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// prompts: gen1, critique1, gen2, critique2
	if len(router.prompts) != 4 {
		t.Fatalf("expected 4 prompts, got %d", len(router.prompts))
	}
	secondGen := router.prompts[2]
	if !strings.Contains(secondGen, "too shallow") || !strings.Contains(secondGen, "add examples") {
		t.Fatalf("second generation prompt must carry prior critique, got %q", secondGen)
	}
}

func TestCriticFallsBackOnUnparsableResponse(t *testing.T) {
	router := &scriptedRouter{
		drafts:    []llm.Result{{Content: "draft", Provider: "a"}},
		critiques: []string{"I think this is pretty good overall!"},
	}
	critic := generation.NewCritic(router, 50, logging.NewNop())

	critique, err := critic.Review(context.Background(), "draft", 0)
	if err != nil {
		t.Fatalf("unparsable critique must not error: %v", err)
	}
	if critique.Score != 50 || !critique.Fallback {
		t.Fatalf("expected fallback score 50, got %#v", critique)
	}
}

func TestCriticClampsScores(t *testing.T) {
	router := &scriptedRouter{
		critiques: []string{critiqueJSON(150, "over-enthusiastic")},
	}
	critic := generation.NewCritic(router, 50, logging.NewNop())

	critique, err := critic.Review(context.Background(), "draft", 0)
	if err != nil {
		t.Fatalf("Review failed: %v", err)
	}
	if critique.Score != 100 {
		t.Fatalf("expected clamped score 100, got %d", critique.Score)
	}
}

func TestLoopReportsDegradedWhenEveryDraftDegrades(t *testing.T) {
	router := &scriptedRouter{
		drafts:    []llm.Result{{Content: "placeholder", Provider: "degraded-stub", Degraded: true}},
		critiques: []string{critiqueJSON(50, "placeholder critique")},
	}
	loop := newLoop(router, 75, 3)

	outcome, err := loop.Run(context.Background(), generation.GenerateParams{Topic: "go"})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !outcome.Degraded {
		t.Fatal("expected degraded outcome")
	}
	if len(outcome.Iterations) != 3 {
		t.Fatalf("degraded loop must still terminate at the cap, got %d iterations", len(outcome.Iterations))
	}
	if outcome.Best.Draft.Content != "placeholder" {
		t.Fatal("degraded draft must still be returned")
	}
}

func TestLoopStopsOnCancelledContext(t *testing.T) {
	router := &scriptedRouter{
		drafts:    []llm.Result{{Content: "draft", Provider: "a"}},
		critiques: []string{critiqueJSON(10, "bad")},
	}
	loop := newLoop(router, 75, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := loop.Run(ctx, generation.GenerateParams{Topic: "go"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
