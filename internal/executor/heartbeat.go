package executor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"quill/internal/logging"
	"quill/internal/taskstore"
)

// heartbeatMonitor refreshes heartbeats for in-flight tasks and reclaims
// tasks whose worker died mid-generation.
type heartbeatMonitor struct {
	store    *taskstore.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

func newHeartbeatMonitor(store *taskstore.Store, logger *slog.Logger, interval, timeout time.Duration) *heartbeatMonitor {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &heartbeatMonitor{
		store:    store,
		logger:   logger.With(logging.String(logging.FieldComponent, "executor-heartbeat")),
		interval: interval,
		timeout:  timeout,
	}
}

// reclaim returns generating tasks with expired heartbeats to pending.
func (h *heartbeatMonitor) reclaim(ctx context.Context) error {
	if h.timeout <= 0 {
		return nil
	}
	cutoff := time.Now().Add(-h.timeout)
	reclaimed, err := h.store.ReclaimStaleGenerating(ctx, cutoff)
	if err != nil {
		return err
	}
	if reclaimed > 0 {
		h.logger.Info("reclaimed stale tasks", logging.Int64("count", reclaimed))
	}
	return nil
}

// run refreshes one task's heartbeat until the context is cancelled.
func (h *heartbeatMonitor) run(ctx context.Context, wg *sync.WaitGroup, taskID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, taskID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				h.logger.Warn("heartbeat update failed",
					logging.String(logging.FieldTaskID, taskID),
					logging.Error(err))
			}
		}
	}
}
