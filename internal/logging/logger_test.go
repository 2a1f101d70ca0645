package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"quill/internal/services"
)

func newTestLogger(t *testing.T, format string, buf io.Writer) *slog.Logger {
	t.Helper()
	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.LevelDebug)
	switch format {
	case "json":
		return slog.New(newJSONHandler(buf, levelVar))
	default:
		return slog.New(newConsoleHandler(buf, levelVar))
	}
}

func TestConsoleHandlerPromotesComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, "console", &buf)
	logger = NewComponentLogger(logger, "executor")
	logger.Info("stage started", String("stage", "generating"))

	line := buf.String()
	if !strings.Contains(line, "executor: stage started") {
		t.Fatalf("expected component prefix, got %q", line)
	}
	if !strings.Contains(line, "stage=generating") {
		t.Fatalf("expected stage attr, got %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Fatalf("component attr should be promoted, got %q", line)
	}
}

func TestConsoleHandlerQuotesValues(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, "console", &buf)
	logger.Warn("provider failed", String("reason", "rate limit hit"))
	if !strings.Contains(buf.String(), `reason="rate limit hit"`) {
		t.Fatalf("expected quoted value, got %q", buf.String())
	}
}

func TestJSONHandlerFieldNames(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, "json", &buf)
	logger.Info("task claimed", String(FieldTaskID, "abc"))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["msg"] != "task claimed" {
		t.Fatalf("expected msg key, got %#v", record)
	}
	if record["level"] != "info" {
		t.Fatalf("expected lowercase level, got %#v", record["level"])
	}
	if record[FieldTaskID] != "abc" {
		t.Fatalf("expected task_id attr, got %#v", record)
	}
	if _, ok := record["ts"]; !ok {
		t.Fatalf("expected ts key, got %#v", record)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(t, "console", &buf)

	ctx := services.WithTaskID(context.Background(), "task-1")
	ctx = services.WithStage(ctx, "critiquing")
	ctx = services.WithRequestID(ctx, "req-9")

	WithContext(ctx, logger).Info("hello")
	line := buf.String()
	for _, want := range []string{"task_id=task-1", "stage=critiquing", "correlation_id=req-9"} {
		if !strings.Contains(line, want) {
			t.Fatalf("expected %q in %q", want, line)
		}
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}
