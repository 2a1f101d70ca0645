// Package daemon coordinates the long-running services: the task store,
// the executor, and the HTTP API, with flock-enforced single-instance
// execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"quill/internal/config"
	"quill/internal/executor"
	"quill/internal/logging"
	"quill/internal/taskstore"
)

// Daemon owns the executor and the API server and enforces that only one
// instance runs against a data directory.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *taskstore.Store
	exec   *executor.Executor
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status reports daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	Executor     executor.Status
	TaskDBPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *taskstore.Store, exec *executor.Executor, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || exec == nil {
		return nil, errors.New("daemon requires config, store, and executor")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	lockPath := filepath.Join(cfg.Paths.DataDir, "quilld.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		exec:     exec,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	server, err := newAPIServer(cfg, d, logger)
	if err != nil {
		return nil, err
	}
	d.api = server
	return d, nil
}

// Start acquires the instance lock and launches the executor and API.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another quill daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	if err := d.exec.Start(runCtx); err != nil {
		_ = d.lock.Unlock()
		cancel()
		d.cancel = nil
		return fmt.Errorf("start executor: %w", err)
	}
	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.exec.Stop()
			_ = d.lock.Unlock()
			cancel()
			d.cancel = nil
			return err
		}
	}

	d.running.Store(true)
	d.logger.Info("quill daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API and executor and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.api != nil {
		d.api.stop()
	}
	d.exec.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("quill daemon stopped")
}

// Close stops the daemon and closes the store.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// APIAddr returns the bound API address, empty when the API is disabled.
func (d *Daemon) APIAddr() string {
	if d.api == nil {
		return ""
	}
	return d.api.addr()
}

// Status reports the daemon's runtime state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		TaskDBPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
	if summary, err := d.exec.Summary(ctx); err == nil {
		status.Executor = summary
	}
	return status
}
