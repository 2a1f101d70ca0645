// Package generation drives the draft/critique refinement cycle over the
// provider router: a generator builds drafts, a critic scores them, and
// the loop iterates until the quality gate or iteration cap is reached.
package generation

import (
	"context"
	"fmt"
	"strings"

	"quill/internal/llm"
	"quill/internal/task"
)

const generatorSystemPrompt = "You are a professional content writer. " +
	"Produce well-structured Markdown with a single top-level heading. " +
	"Write the article body only, no commentary before or after."

// Draft is one generated attempt with its provenance.
type Draft struct {
	Content  string
	Provider string
	Degraded bool
	Cost     float64
}

// GenerateParams carries everything the generator needs for one draft.
type GenerateParams struct {
	Type          task.Type
	Topic         string
	Style         string
	Tone          string
	TargetLength  int
	PriorFeedback string
}

// Generator turns task parameters into a single generation request.
type Generator struct {
	router Completer
}

// Completer is the slice of the router the generator and critic need.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (llm.Result, []llm.Attempt, error)
}

// NewGenerator builds a generator over the given router.
func NewGenerator(router Completer) *Generator {
	return &Generator{router: router}
}

// Generate produces one draft. Provider exhaustion surfaces as a degraded
// draft, not an error; only infrastructure failure (cancelled context)
// errors out.
func (g *Generator) Generate(ctx context.Context, params GenerateParams) (Draft, []llm.Attempt, error) {
	result, attempts, err := g.router.Complete(ctx, llm.Request{
		System:       generatorSystemPrompt,
		Prompt:       buildGenerationPrompt(params),
		Purpose:      llm.PurposeGeneration,
		Topic:        params.Topic,
		TargetLength: params.TargetLength,
	})
	if err != nil {
		return Draft{}, attempts, err
	}
	return Draft{
		Content:  result.Content,
		Provider: result.Provider,
		Degraded: result.Degraded,
		Cost:     result.Cost,
	}, attempts, nil
}

func buildGenerationPrompt(params GenerateParams) string {
	var b strings.Builder
	kind := string(params.Type)
	if kind == "" {
		kind = "article"
	}
	fmt.Fprintf(&b, "Write a %s about: %s\n", strings.ReplaceAll(kind, "_", " "), params.Topic)
	if params.Style != "" {
		fmt.Fprintf(&b, "Style: %s\n", params.Style)
	}
	if params.Tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", params.Tone)
	}
	if params.TargetLength > 0 {
		fmt.Fprintf(&b, "Target length: roughly %d words.\n", params.TargetLength)
	}
	if feedback := strings.TrimSpace(params.PriorFeedback); feedback != "" {
		fmt.Fprintf(&b, "\nA previous draft received this critique. Address every point:\n%s\n", feedback)
	}
	return b.String()
}
