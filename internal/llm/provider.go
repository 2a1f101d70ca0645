// Package llm routes generation and critique requests across an ordered
// chain of language-model providers with per-call timeouts and graceful
// degradation to a deterministic stub.
package llm

import (
	"context"
	"time"
)

// Purpose tells a provider what kind of completion is being requested.
// Real providers ignore it; the deterministic stub uses it to shape a
// plausible response.
type Purpose string

const (
	PurposeGeneration Purpose = "generation"
	PurposeCritique   Purpose = "critique"
	PurposeTitle      Purpose = "title"
	PurposeSEO        Purpose = "seo"
)

// Request is a single completion request routed through the provider chain.
type Request struct {
	System  string
	Prompt  string
	Purpose Purpose

	// Topic and TargetLength give the stub enough context to fabricate
	// placeholder output; real providers never read them.
	Topic        string
	TargetLength int
}

// Descriptor describes a provider's identity and cost characteristics.
type Descriptor struct {
	Name           string
	Model          string
	Local          bool
	CostPerKiloTok float64
	Timeout        time.Duration
	RatePerMinute  int
}

// Provider is an interchangeable completion backend. Implementations must
// honor context cancellation and return an error rather than blocking
// indefinitely.
type Provider interface {
	Name() string
	Descriptor() Descriptor
	Complete(ctx context.Context, req Request) (string, error)
}

// Result is the outcome of a routed completion.
type Result struct {
	Content  string
	Provider string
	Model    string
	Degraded bool
	Cost     float64
	Duration time.Duration
}

// Attempt records a single provider try, success or failure.
type Attempt struct {
	Provider string
	Model    string
	Err      error
	Duration time.Duration
}

// Succeeded reports whether this attempt produced the returned result.
func (a Attempt) Succeeded() bool {
	return a.Err == nil
}

// estimateCost prices a completion from its character length. Local
// providers always cost zero.
func estimateCost(desc Descriptor, content string) float64 {
	if desc.Local || desc.CostPerKiloTok <= 0 {
		return 0
	}
	// Rough heuristic: four characters per token.
	tokens := float64(len(content)) / 4
	return tokens / 1000 * desc.CostPerKiloTok
}
