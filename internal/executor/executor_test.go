package executor_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"quill/internal/config"
	"quill/internal/enrichment"
	"quill/internal/executor"
	"quill/internal/generation"
	"quill/internal/llm"
	"quill/internal/logging"
	"quill/internal/publish"
	"quill/internal/task"
	"quill/internal/taskstore"
	"quill/internal/testsupport"
)

// scriptedCompleter serves generation and critique requests from canned
// payloads, standing in for the provider router.
type scriptedCompleter struct {
	draft         string
	critiqueJSON  string
	draftDegraded atomic.Bool
}

func (s *scriptedCompleter) Complete(ctx context.Context, req llm.Request) (llm.Result, []llm.Attempt, error) {
	if err := ctx.Err(); err != nil {
		return llm.Result{}, nil, err
	}
	switch req.Purpose {
	case llm.PurposeCritique:
		return llm.Result{Content: s.critiqueJSON, Provider: "critic"}, []llm.Attempt{{Provider: "critic"}}, nil
	case llm.PurposeTitle:
		return llm.Result{Content: "Scripted Title", Provider: "titler"}, []llm.Attempt{{Provider: "titler"}}, nil
	default:
		return llm.Result{Content: s.draft, Provider: "scripted", Degraded: s.draftDegraded.Load()},
			[]llm.Attempt{{Provider: "scripted"}}, nil
	}
}

func newDeps(cfg *config.Config, store *taskstore.Store, completer generation.Completer) executor.Deps {
	gen := generation.NewGenerator(completer)
	critic := generation.NewCritic(completer, cfg.Generation.FallbackScore, logging.NewNop())
	loop := generation.NewLoop(gen, critic, cfg.Generation.QualityThreshold, cfg.Generation.MaxIterations, logging.NewNop())
	return executor.Deps{
		Store:     store,
		Loop:      loop,
		Titler:    generation.NewTitler(completer),
		Images:    enrichment.NewImageClient(cfg.Images),
		SEO:       enrichment.NewSEOClient(cfg.SEO),
		Publisher: publish.New(cfg.Publish),
	}
}

func startExecutor(t *testing.T, cfg *config.Config, deps executor.Deps) *executor.Executor {
	t.Helper()
	exec := executor.New(cfg, deps, logging.NewNop())
	if err := exec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(exec.Stop)
	return exec
}

func waitForStatus(t *testing.T, store *taskstore.Store, id string, want task.Status) *task.Task {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if got.Status == want {
			return got
		}
		if got.Status == task.StatusFailed && want != task.StatusFailed {
			t.Fatalf("task failed unexpectedly: %s", got.ErrorMessage)
		}
		time.Sleep(25 * time.Millisecond)
	}
	got, _ := store.Get(context.Background(), id)
	t.Fatalf("timed out waiting for status %s, last seen %#v", want, got)
	return nil
}

func TestTaskWithoutApprovalEndsCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	completer := &scriptedCompleter{
		draft:        "# AI in Healthcare\n\nA solid draft body with enough substance to pass review.",
		critiqueJSON: `{"score": 90, "feedback": "strong", "suggestions": []}`,
	}
	startExecutor(t, cfg, newDeps(cfg, store, completer))

	created, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:  task.TypeArticle,
		Topic: "AI in Healthcare",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	done := waitForStatus(t, store, created.ID, task.StatusCompleted)
	if !done.HasContent() {
		t.Fatal("completed task must carry content")
	}
	if done.Score() < cfg.Generation.QualityThreshold {
		t.Fatalf("expected score at or above threshold, got %d", done.Score())
	}
	if done.Title == "" {
		t.Fatal("completed task must carry a title")
	}
	if done.SEO == nil {
		t.Fatal("completed task must carry seo metadata")
	}
	if done.Status == task.StatusPublished {
		t.Fatal("non-approval task must never end published")
	}
}

func TestApprovalFlowEndsPublished(t *testing.T) {
	cms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"url":"https://cms.example/posts/1"}`))
	}))
	defer cms.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Publish = config.Publish{Enabled: true, BaseURL: cms.URL}
	store := testsupport.MustOpenStore(t, cfg)
	completer := &scriptedCompleter{
		draft:        "Reviewed draft body.",
		critiqueJSON: `{"score": 85, "feedback": "good", "suggestions": []}`,
	}
	startExecutor(t, cfg, newDeps(cfg, store, completer))

	created, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:             task.TypeArticle,
		Topic:            "Approval Flow",
		RequiresApproval: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	waiting := waitForStatus(t, store, created.ID, task.StatusAwaitingApproval)
	if !waiting.HasContent() {
		t.Fatal("awaiting task must already carry content")
	}

	// Approve the way the API does: through the state machine, then a
	// guarded update.
	if err := waiting.Transition(task.StatusApproved); err != nil {
		t.Fatalf("approve transition failed: %v", err)
	}
	if _, err := store.Update(context.Background(), waiting, waiting.UpdatedAt); err != nil {
		t.Fatalf("persist approval failed: %v", err)
	}

	published := waitForStatus(t, store, created.ID, task.StatusPublished)
	if published.PublishTargetRef != "https://cms.example/posts/1" {
		t.Fatalf("unexpected publish reference %q", published.PublishTargetRef)
	}
	if published.Status == task.StatusCompleted {
		t.Fatal("approval-gated task must never end completed")
	}
}

func TestAutoPublishEndsPublished(t *testing.T) {
	cms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"42"}`))
	}))
	defer cms.Close()

	cfg := testsupport.NewConfig(t)
	cfg.Publish = config.Publish{Enabled: true, BaseURL: cms.URL}
	store := testsupport.MustOpenStore(t, cfg)
	completer := &scriptedCompleter{
		draft:        "Auto-publish draft body.",
		critiqueJSON: `{"score": 95, "feedback": "great", "suggestions": []}`,
	}
	startExecutor(t, cfg, newDeps(cfg, store, completer))

	created, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:        task.TypeBlogPost,
		Topic:       "Auto Publish",
		AutoPublish: true,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	published := waitForStatus(t, store, created.ID, task.StatusPublished)
	if published.PublishTargetRef != "42" {
		t.Fatalf("unexpected publish reference %q", published.PublishTargetRef)
	}
}

func TestExhaustedProvidersEndFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	// A real router whose every provider fails: each draft comes from the
	// degraded stub, so the executor must fail the task.
	failing := llm.NewOpenAIProvider(
		llm.Descriptor{Name: "down", Model: "m", Timeout: time.Second},
		"http://127.0.0.1:1", // nothing listens here
		"key",
		llm.WithRetry(1, 0, 0),
	)
	router := llm.NewRouter([]llm.Provider{failing}, logging.NewNop())
	startExecutor(t, cfg, newDeps(cfg, store, router))

	created, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:  task.TypeArticle,
		Topic: "Doomed Topic",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	failed := waitForStatus(t, store, created.ID, task.StatusFailed)
	if failed.ErrorMessage == "" {
		t.Fatal("failed task must carry an error message")
	}
	if failed.Status == task.StatusCompleted {
		t.Fatal("exhausted generation must never complete")
	}
	if failed.IterationCount != cfg.Generation.MaxIterations {
		t.Fatalf("expected %d degraded iterations, got %d", cfg.Generation.MaxIterations, failed.IterationCount)
	}
}

func TestOneTaskFailureNeverHaltsTheLoop(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	completer := &scriptedCompleter{
		draft:        "Healthy draft body.",
		critiqueJSON: `{"score": 88, "feedback": "fine", "suggestions": []}`,
	}
	deps := newDeps(cfg, store, completer)
	startExecutor(t, cfg, deps)

	// First task degrades on every iteration and fails; second succeeds.
	completer.draftDegraded.Store(true)
	doomed, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:  task.TypeArticle,
		Topic: "Doomed",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, store, doomed.ID, task.StatusFailed)

	completer.draftDegraded.Store(false)
	healthy, err := store.Create(context.Background(), taskstore.CreateParams{
		Type:  task.TypeArticle,
		Topic: "Healthy",
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	waitForStatus(t, store, healthy.ID, task.StatusCompleted)
}

func TestExecutorSummary(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	exec := executor.New(cfg, newDeps(cfg, store, &scriptedCompleter{}), logging.NewNop())

	summary, err := exec.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if summary.Running {
		t.Fatal("executor should not report running before Start")
	}

	if err := exec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer exec.Stop()
	summary, err = exec.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary failed: %v", err)
	}
	if !summary.Running {
		t.Fatal("executor should report running after Start")
	}
}

func TestExecutorStartTwiceFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	exec := executor.New(cfg, newDeps(cfg, store, &scriptedCompleter{}), logging.NewNop())

	if err := exec.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer exec.Stop()
	if err := exec.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail")
	}
}
