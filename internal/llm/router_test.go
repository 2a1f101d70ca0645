package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"quill/internal/llm"
	"quill/internal/logging"
)

type fakeProvider struct {
	desc    llm.Descriptor
	content string
	err     error
	calls   int
	delay   time.Duration
}

func (f *fakeProvider) Name() string               { return f.desc.Name }
func (f *fakeProvider) Descriptor() llm.Descriptor { return f.desc }

func (f *fakeProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.calls++
	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.content, nil
}

func TestRouterFallbackOrdering(t *testing.T) {
	a := &fakeProvider{desc: llm.Descriptor{Name: "a", Model: "m-a"}, err: errors.New("a is down")}
	b := &fakeProvider{desc: llm.Descriptor{Name: "b", Model: "m-b"}, content: "b output"}
	c := &fakeProvider{desc: llm.Descriptor{Name: "c", Model: "m-c"}, content: "c output"}

	router := llm.NewRouter([]llm.Provider{a, b, c}, logging.NewNop())
	result, attempts, err := router.Complete(context.Background(), llm.Request{Prompt: "write"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Content != "b output" || result.Provider != "b" {
		t.Fatalf("expected b's result, got %#v", result)
	}
	if result.Degraded {
		t.Fatal("successful chain result must not be degraded")
	}
	if len(attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(attempts))
	}
	if attempts[0].Provider != "a" || attempts[0].Succeeded() {
		t.Fatalf("expected a to fail first, got %#v", attempts[0])
	}
	if attempts[1].Provider != "b" || !attempts[1].Succeeded() {
		t.Fatalf("expected b to succeed second, got %#v", attempts[1])
	}
	if c.calls != 0 {
		t.Fatalf("c should never be attempted, got %d calls", c.calls)
	}
}

func TestRouterDegradesWhenAllProvidersFail(t *testing.T) {
	a := &fakeProvider{desc: llm.Descriptor{Name: "a"}, err: errors.New("down")}
	b := &fakeProvider{desc: llm.Descriptor{Name: "b"}, err: errors.New("also down")}

	router := llm.NewRouter([]llm.Provider{a, b}, logging.NewNop())
	result, attempts, err := router.Complete(context.Background(), llm.Request{
		Prompt: "write",
		Topic:  "green energy",
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result when every provider fails")
	}
	if result.Content == "" {
		t.Fatal("degraded result must still carry content")
	}
	if result.Cost != 0 {
		t.Fatalf("stub output must be free, got cost %f", result.Cost)
	}
	if len(attempts) != 3 {
		t.Fatalf("expected 2 failures plus the stub attempt, got %d", len(attempts))
	}
	if !attempts[len(attempts)-1].Succeeded() {
		t.Fatal("stub attempt should succeed")
	}
}

func TestRouterAttemptLogOnFirstTrySuccess(t *testing.T) {
	a := &fakeProvider{desc: llm.Descriptor{Name: "a"}, content: "done"}

	router := llm.NewRouter([]llm.Provider{a}, logging.NewNop())
	_, attempts, err := router.Complete(context.Background(), llm.Request{Prompt: "write"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(attempts) != 1 || !attempts[0].Succeeded() {
		t.Fatalf("attempt log must record the winning provider, got %#v", attempts)
	}
}

func TestRouterZeroCostForLocalProviders(t *testing.T) {
	local := &fakeProvider{
		desc:    llm.Descriptor{Name: "local", Local: true, CostPerKiloTok: 9.99},
		content: "a fairly long local completion that would otherwise be priced",
	}

	router := llm.NewRouter([]llm.Provider{local}, logging.NewNop())
	result, _, err := router.Complete(context.Background(), llm.Request{Prompt: "write"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Cost != 0 {
		t.Fatalf("local provider cost must be zero, got %f", result.Cost)
	}
}

func TestRouterChargesPaidProviders(t *testing.T) {
	paid := &fakeProvider{
		desc:    llm.Descriptor{Name: "paid", CostPerKiloTok: 4},
		content: "abcdefgh", // 8 chars -> ~2 tokens
	}

	router := llm.NewRouter([]llm.Provider{paid}, logging.NewNop())
	result, _, err := router.Complete(context.Background(), llm.Request{Prompt: "write"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Cost <= 0 {
		t.Fatalf("expected non-zero cost for paid provider, got %f", result.Cost)
	}
}

func TestRouterSkipsRateLimitedProvider(t *testing.T) {
	limited := &fakeProvider{
		desc:    llm.Descriptor{Name: "limited", RatePerMinute: 1},
		content: "first",
	}
	backup := &fakeProvider{desc: llm.Descriptor{Name: "backup"}, content: "second"}

	router := llm.NewRouter([]llm.Provider{limited, backup}, logging.NewNop())

	first, _, err := router.Complete(context.Background(), llm.Request{Prompt: "one"})
	if err != nil {
		t.Fatalf("first Complete failed: %v", err)
	}
	if first.Provider != "limited" {
		t.Fatalf("expected limited provider first, got %s", first.Provider)
	}

	second, attempts, err := router.Complete(context.Background(), llm.Request{Prompt: "two"})
	if err != nil {
		t.Fatalf("second Complete failed: %v", err)
	}
	if second.Provider != "backup" {
		t.Fatalf("expected backup provider after limit, got %s", second.Provider)
	}
	if !errors.Is(attempts[0].Err, llm.ErrRateLimited) {
		t.Fatalf("expected rate-limited attempt, got %v", attempts[0].Err)
	}
}

func TestRouterHonorsPerProviderTimeout(t *testing.T) {
	slow := &fakeProvider{
		desc:  llm.Descriptor{Name: "slow", Timeout: 20 * time.Millisecond},
		delay: 500 * time.Millisecond,
	}
	fast := &fakeProvider{desc: llm.Descriptor{Name: "fast"}, content: "quick"}

	router := llm.NewRouter([]llm.Provider{slow, fast}, logging.NewNop())
	result, attempts, err := router.Complete(context.Background(), llm.Request{Prompt: "write"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if result.Provider != "fast" {
		t.Fatalf("expected fast provider to win, got %s", result.Provider)
	}
	if attempts[0].Succeeded() {
		t.Fatal("slow provider should have timed out")
	}
}

func TestRouterStopsOnCancelledContext(t *testing.T) {
	a := &fakeProvider{desc: llm.Descriptor{Name: "a"}, content: "done"}
	router := llm.NewRouter([]llm.Provider{a}, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := router.Complete(ctx, llm.Request{Prompt: "write"}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if a.calls != 0 {
		t.Fatal("no provider should run after cancellation")
	}
}
