package daemon_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"quill/internal/api"
	"quill/internal/daemon"
	"quill/internal/executor"
	"quill/internal/logging"
	"quill/internal/task"
	"quill/internal/testsupport"
)

func startDaemon(t *testing.T) (*daemon.Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	exec, err := executor.NewFromConfig(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("executor.NewFromConfig: %v", err)
	}
	d, err := daemon.New(cfg, store, exec, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("expected bound api address")
	}
	return d, "http://" + addr
}

func postJSON(t *testing.T, url string, payload any) *http.Response {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func decodeTask(t *testing.T, resp *http.Response) api.TaskView {
	t.Helper()
	defer resp.Body.Close()
	var decoded api.TaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode task response: %v", err)
	}
	return decoded.Task
}

func waitForAPIStatus(t *testing.T, base, id string, want task.Status) api.TaskView {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get(fmt.Sprintf("%s/api/tasks/%s", base, id))
		if err != nil {
			t.Fatalf("GET task: %v", err)
		}
		view := decodeTask(t, resp)
		if view.Status == string(want) {
			return view
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for status %s", want)
	return api.TaskView{}
}

func TestDaemonSubmitAndComplete(t *testing.T) {
	_, base := startDaemon(t)

	resp := postJSON(t, base+"/api/tasks", api.SubmitRequest{
		Type:  "article",
		Topic: "AI in Healthcare",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	created := decodeTask(t, resp)
	if created.ID == "" || created.Status != string(task.StatusPending) {
		t.Fatalf("unexpected created task %#v", created)
	}

	// The stub provider serves generation, so the task completes.
	done := waitForAPIStatus(t, base, created.ID, task.StatusCompleted)
	if done.Content == "" || done.Title == "" {
		t.Fatalf("completed task missing payload: %#v", done)
	}
}

func TestDaemonApprovalViaAPI(t *testing.T) {
	_, base := startDaemon(t)

	resp := postJSON(t, base+"/api/tasks", api.SubmitRequest{
		Topic:            "Needs Review",
		RequiresApproval: true,
	})
	created := decodeTask(t, resp)

	waitForAPIStatus(t, base, created.ID, task.StatusAwaitingApproval)

	reject := postJSON(t, fmt.Sprintf("%s/api/tasks/%s/reject", base, created.ID), nil)
	rejected := decodeTask(t, reject)
	if rejected.Status != string(task.StatusRejected) {
		t.Fatalf("expected rejected, got %s", rejected.Status)
	}

	// A second reject must be refused: rejected is terminal.
	again := postJSON(t, fmt.Sprintf("%s/api/tasks/%s/reject", base, created.ID), nil)
	defer again.Body.Close()
	if again.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for repeat reject, got %d", again.StatusCode)
	}
}

func TestDaemonStatusEndpoint(t *testing.T) {
	_, base := startDaemon(t)

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	defer resp.Body.Close()
	var status api.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Database == "" {
		t.Fatalf("unexpected status %#v", status)
	}

	health, err := http.Get(base + "/api/queue/health")
	if err != nil {
		t.Fatalf("GET queue health: %v", err)
	}
	defer health.Body.Close()
	var diag api.HealthResponse
	if err := json.NewDecoder(health.Body).Decode(&diag); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !diag.DatabaseExists || !diag.DatabaseReadable || !diag.TableExists || !diag.IntegrityCheck {
		t.Fatalf("unexpected health %#v", diag)
	}
}

func TestDaemonUnknownTaskReturns404(t *testing.T) {
	_, base := startDaemon(t)

	resp, err := http.Get(base + "/api/tasks/does-not-exist")
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestDaemonSingleInstanceLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	exec, err := executor.NewFromConfig(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("executor.NewFromConfig: %v", err)
	}

	first, err := daemon.New(cfg, store, exec, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	defer first.Stop()

	secondExec, err := executor.NewFromConfig(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("executor.NewFromConfig: %v", err)
	}
	second, err := daemon.New(cfg, store, secondExec, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon must fail to acquire the lock")
	}
}

func TestDaemonAuthToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.APIToken = "secret"
	store := testsupport.MustOpenStore(t, cfg)
	exec, err := executor.NewFromConfig(cfg, store, logging.NewNop())
	if err != nil {
		t.Fatalf("executor.NewFromConfig: %v", err)
	}
	d, err := daemon.New(cfg, store, exec, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	defer d.Stop()
	base := "http://" + d.APIAddr()

	resp, err := http.Get(base + "/api/status")
	if err != nil {
		t.Fatalf("GET status: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}

	req, err := http.NewRequest(http.MethodGet, base+"/api/status", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Authorization", "Bearer secret")
	authed, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("authed GET status: %v", err)
	}
	authed.Body.Close()
	if authed.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", authed.StatusCode)
	}
}
