package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"quill/internal/services"
	"quill/internal/task"
)

// HealthSummary describes aggregated task counts per key lifecycle states.
type HealthSummary struct {
	Total            int
	Pending          int
	Generating       int
	AwaitingApproval int
	Failed           int
	Completed        int
	Published        int
}

// DatabaseHealth captures diagnostic information about the task database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalTasks       int
	Error            string
}

// UpdateHeartbeat refreshes the last heartbeat timestamp for an in-flight task.
func (s *Store) UpdateHeartbeat(ctx context.Context, id string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.execWithRetry(
		ctx,
		`UPDATE tasks SET last_heartbeat = ? WHERE id = ?`,
		now,
		id,
	); err != nil {
		return services.Wrap(services.ErrPersistence, "taskstore", "heartbeat", "update heartbeat", err)
	}
	return nil
}

// ReclaimStaleGenerating returns claimed tasks whose heartbeats expired back
// to pending so another worker can pick them up after a crash. Generating
// rows without a heartbeat (resumed from hold) are reclaimed immediately.
func (s *Store) ReclaimStaleGenerating(ctx context.Context, cutoff time.Time) (int64, error) {
	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, stage = 'reclaimed', last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND (last_heartbeat IS NULL OR last_heartbeat < ?)`,
		task.StatusPending,
		now.Format(time.RFC3339Nano),
		task.StatusGenerating,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "taskstore", "reclaim", "reclaim stale tasks", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed tasks back to pending for reprocessing.
func (s *Store) RetryFailed(ctx context.Context, ids ...string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if len(ids) == 0 {
		res, err := s.execWithRetry(
			ctx,
			`UPDATE tasks
            SET status = ?, stage = 'retry requested', error_message = NULL, updated_at = ?
            WHERE status = ?`,
			task.StatusPending,
			now,
			task.StatusFailed,
		)
		if err != nil {
			return 0, services.Wrap(services.ErrPersistence, "taskstore", "retry", "retry failed tasks", err)
		}
		return res.RowsAffected()
	}

	placeholders := makePlaceholders(len(ids))
	args := make([]any, 0, len(ids)+3)
	args = append(args, task.StatusPending, now)
	for _, id := range ids {
		args = append(args, id)
	}
	args = append(args, task.StatusFailed)
	query := `UPDATE tasks
        SET status = ?, stage = 'retry requested', error_message = NULL, updated_at = ?
        WHERE id IN (` + placeholders + `) AND status = ?`
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "taskstore", "retry", "retry selected tasks", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of tasks grouped by status.
func (s *Store) Stats(ctx context.Context) (map[task.Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "stats", "query stats", err)
	}
	defer rows.Close()

	stats := make(map[task.Status]int)
	for rows.Next() {
		var status task.Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, services.Wrap(services.ErrPersistence, "taskstore", "stats", "scan stats", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// Health aggregates task state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range stats {
		health.Total += count
		switch status {
		case task.StatusPending:
			health.Pending += count
		case task.StatusGenerating:
			health.Generating += count
		case task.StatusAwaitingApproval:
			health.AwaitingApproval += count
		case task.StatusFailed:
			health.Failed += count
		case task.StatusCompleted:
			health.Completed += count
		case task.StatusPublished:
			health.Published += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the task database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("task database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat task database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("task database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("task database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ensureContext(ctx), 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping task database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'tasks'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM tasks")
		if err := row.Scan(&health.TotalTasks); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count tasks: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

// Remove deletes a task by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "taskstore", "remove", "delete task", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, services.Wrap(services.ErrPersistence, "taskstore", "remove", "rows affected", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes completed and published tasks.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status IN (?, ?)`, task.StatusCompleted, task.StatusPublished)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "taskstore", "clear", "clear completed", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed tasks.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM tasks WHERE status = ?`, task.StatusFailed)
	if err != nil {
		return 0, services.Wrap(services.ErrPersistence, "taskstore", "clear", "clear failed", err)
	}
	return res.RowsAffected()
}
