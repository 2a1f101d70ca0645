package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/services"
)

const defaultProviderTimeout = 60 * time.Second

// ErrRateLimited marks an attempt skipped because the provider's in-process
// rate budget for the current minute is spent.
var ErrRateLimited = errors.New("provider rate limited")

// Router executes an ordered fallback chain of providers. The first
// success wins and no further providers are tried. When every provider in
// the chain fails, the deterministic fallback stub produces a placeholder
// result tagged degraded so the pipeline always makes progress.
type Router struct {
	providers []Provider
	fallback  Provider
	limiter   *rateLimiter
	logger    *slog.Logger
}

// RouterOption customizes router construction.
type RouterOption func(*Router)

// WithFallback overrides the last-resort degraded provider.
func WithFallback(p Provider) RouterOption {
	return func(r *Router) {
		r.fallback = p
	}
}

// NewRouter builds a router over an explicit provider chain. Providers are
// tried in slice order; callers sort by priority before constructing.
func NewRouter(providers []Provider, logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Router{
		providers: providers,
		fallback:  NewStubProvider("degraded-stub"),
		limiter:   newRateLimiter(),
		logger:    logger.With(logging.String(logging.FieldComponent, "llm-router")),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewRouterFromConfig builds the provider chain from configuration. The
// provider list is assumed already sorted by ascending priority.
func NewRouterFromConfig(cfg *config.Config, logger *slog.Logger, opts ...RouterOption) (*Router, error) {
	providers := make([]Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		provider, err := newProvider(pc)
		if err != nil {
			return nil, err
		}
		providers = append(providers, provider)
	}
	return NewRouter(providers, logger, opts...), nil
}

func newProvider(pc config.Provider) (Provider, error) {
	timeout := defaultProviderTimeout
	if pc.TimeoutSeconds > 0 {
		timeout = time.Duration(pc.TimeoutSeconds) * time.Second
	}
	desc := Descriptor{
		Name:           pc.Name,
		Model:          pc.Model,
		Local:          pc.Local,
		CostPerKiloTok: pc.CostPerKiloTok,
		Timeout:        timeout,
		RatePerMinute:  pc.RatePerMinute,
	}
	switch pc.Kind {
	case "openai_compat":
		return NewOpenAIProvider(desc, pc.BaseURL, pc.APIKey), nil
	case "ollama":
		return NewOllamaProvider(desc, pc.BaseURL), nil
	case "stub":
		return NewStubProvider(pc.Name), nil
	default:
		return nil, services.Wrap(services.ErrValidation, "llm-router", "build",
			fmt.Sprintf("unknown provider kind %q", pc.Kind), nil)
	}
}

// Complete tries each provider in order and returns the first successful
// result. The attempt list is always populated, success included, so
// callers never have to guess which provider served a request. Complete
// does not return an error for provider exhaustion; the degraded flag on
// the result carries that outcome.
func (r *Router) Complete(ctx context.Context, req Request) (Result, []Attempt, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	attempts := make([]Attempt, 0, len(r.providers)+1)

	for _, provider := range r.providers {
		if err := ctx.Err(); err != nil {
			return Result{}, attempts, services.Wrap(services.ErrTimeout, "llm-router", "complete", "request cancelled", err)
		}
		desc := provider.Descriptor()
		if !r.limiter.allow(desc.Name, desc.RatePerMinute, time.Now()) {
			attempts = append(attempts, Attempt{Provider: desc.Name, Model: desc.Model, Err: ErrRateLimited})
			r.logger.Warn("provider skipped",
				logging.String(logging.FieldProvider, desc.Name),
				logging.String("reason", "rate limited"))
			continue
		}

		result, attempt := r.tryProvider(ctx, provider, req)
		attempts = append(attempts, attempt)
		if attempt.Err == nil {
			r.logger.Debug("completion served",
				logging.String(logging.FieldProvider, desc.Name),
				logging.Duration("duration", attempt.Duration))
			return result, attempts, nil
		}
		r.logger.Warn("provider failed",
			logging.String(logging.FieldProvider, desc.Name),
			logging.Error(attempt.Err))
	}

	if err := ctx.Err(); err != nil {
		return Result{}, attempts, services.Wrap(services.ErrTimeout, "llm-router", "complete", "request cancelled", err)
	}

	result, attempt := r.tryProvider(ctx, r.fallback, req)
	attempts = append(attempts, attempt)
	if attempt.Err != nil {
		// The stub is deterministic and only fails on a dead context.
		return Result{}, attempts, services.Wrap(services.ErrProvider, "llm-router", "complete",
			"all providers exhausted", attempt.Err)
	}
	result.Degraded = true
	r.logger.Warn("completion degraded",
		logging.String(logging.FieldProvider, result.Provider),
		logging.Int("providers_tried", len(attempts)-1))
	return result, attempts, nil
}

func (r *Router) tryProvider(ctx context.Context, provider Provider, req Request) (Result, Attempt) {
	desc := provider.Descriptor()
	callCtx := ctx
	if desc.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, desc.Timeout)
		defer cancel()
	}

	start := time.Now()
	content, err := provider.Complete(callCtx, req)
	elapsed := time.Since(start)
	attempt := Attempt{Provider: desc.Name, Model: desc.Model, Err: err, Duration: elapsed}
	if err != nil {
		return Result{}, attempt
	}
	return Result{
		Content:  content,
		Provider: desc.Name,
		Model:    desc.Model,
		Cost:     estimateCost(desc, content),
		Duration: elapsed,
	}, attempt
}
