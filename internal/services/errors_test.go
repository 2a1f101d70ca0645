package services_test

import (
	"errors"
	"strings"
	"testing"

	"quill/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrProvider, "router", "complete", "all providers failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrProvider) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"router", "complete", "all providers failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := services.Wrap(nil, "store", "update", "", errors.New("io"))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{services.Wrap(services.ErrPersistence, "store", "claim", "db locked", nil), true},
		{services.Wrap(services.ErrConflict, "store", "update", "stale timestamp", nil), true},
		{services.Wrap(services.ErrTransient, "seo", "fetch", "", errors.New("io")), true},
		{services.Wrap(services.ErrValidation, "store", "create", "topic required", nil), false},
		{services.Wrap(services.ErrStateTransition, "executor", "finalize", "", nil), false},
		{nil, false},
	}
	for _, tc := range cases {
		if got := services.IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}
