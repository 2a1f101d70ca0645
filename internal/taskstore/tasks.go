package taskstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"quill/internal/services"
	"quill/internal/task"
)

// CreateParams carries the validated input for a new task.
type CreateParams struct {
	Type             task.Type
	Topic            string
	Style            string
	Tone             string
	TargetLength     int
	Tags             []string
	Categories       []string
	WritingStyleRef  string
	RequiresApproval bool
	AutoPublish      bool
}

// Create validates the parameters and inserts a pending task. New task IDs
// are always UUIDs; legacy numeric identifiers are accepted for lookups
// only and never issued.
func (s *Store) Create(ctx context.Context, params CreateParams) (*task.Task, error) {
	if strings.TrimSpace(params.Topic) == "" {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "create", "topic is required", nil)
	}
	if _, ok := task.ParseType(string(params.Type)); !ok {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "create",
			fmt.Sprintf("unknown task type %q", params.Type), nil)
	}
	if params.TargetLength < 0 {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "create", "target length must not be negative", nil)
	}

	tagsJSON, err := nullableJSON(params.Tags)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "create", "encode tags", err)
	}
	categoriesJSON, err := nullableJSON(params.Categories)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "create", "encode categories", err)
	}

	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO tasks (
            id, task_type, topic, style, tone, target_length,
            tags_json, categories_json, writing_style_ref,
            requires_approval, auto_publish, status, stage,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		string(params.Type),
		strings.TrimSpace(params.Topic),
		nullableString(strings.TrimSpace(params.Style)),
		nullableString(strings.TrimSpace(params.Tone)),
		params.TargetLength,
		tagsJSON,
		categoriesJSON,
		nullableString(strings.TrimSpace(params.WritingStyleRef)),
		boolToInt(params.RequiresApproval),
		boolToInt(params.AutoPublish),
		task.StatusPending,
		nullableString(""),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "create", "insert task", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a task by identifier. The identifier is treated as an opaque
// string so both UUID and legacy numeric IDs resolve.
func (s *Store) Get(ctx context.Context, id string) (*task.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "get", "id is required", nil)
	}
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, services.Wrap(services.ErrNotFound, "taskstore", "get", fmt.Sprintf("task %s", id), nil)
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "get", "scan task", err)
	}
	return t, nil
}

// ClaimNextPending atomically selects the oldest pending task and marks it
// generating in a single conditional update, so at most one executor ever
// processes a given task. Returns nil when no pending task exists; never
// blocks.
func (s *Store) ClaimNextPending(ctx context.Context) (*task.Task, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	var claimed *task.Task
	err := retryOnBusy(ctx, func() error {
		row := s.db.QueryRowContext(
			ctx,
			`UPDATE tasks
             SET status = ?, stage = ?, updated_at = ?, last_heartbeat = ?, error_message = NULL
             WHERE id = (
                 SELECT id FROM tasks WHERE status = ? ORDER BY created_at LIMIT 1
             ) AND status = ?
             RETURNING `+taskColumns,
			task.StatusGenerating,
			"claimed",
			timestamp,
			timestamp,
			task.StatusPending,
			task.StatusPending,
		)
		t, err := scanTask(row)
		if errors.Is(err, sql.ErrNoRows) {
			claimed = nil
			return nil
		}
		if err != nil {
			return err
		}
		claimed = t
		return nil
	})
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "claim", "claim pending task", err)
	}
	return claimed, nil
}

// Update persists changes to an existing task guarded by the caller's view
// of updated_at. A stale timestamp means another writer won the race and
// the caller must re-read before retrying.
func (s *Store) Update(ctx context.Context, t *task.Task, expectedUpdatedAt time.Time) (*task.Task, error) {
	if t == nil {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "update", "task is nil", nil)
	}

	tagsJSON, err := nullableJSON(t.Tags)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "update", "encode tags", err)
	}
	categoriesJSON, err := nullableJSON(t.Categories)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "update", "encode categories", err)
	}
	seoJSON, err := nullableJSON(t.SEO)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "taskstore", "update", "encode seo metadata", err)
	}

	now := time.Now().UTC()
	res, err := s.execWithRetry(
		ctx,
		`UPDATE tasks
         SET status = ?, stage = ?, iteration_count = ?, title = ?, content = ?,
             word_count = ?, quality_score = ?, error_message = ?,
             featured_image_ref = ?, seo_json = ?, publish_target_ref = ?,
             tags_json = ?, categories_json = ?, updated_at = ?, last_heartbeat = ?
         WHERE id = ? AND updated_at = ?`,
		t.Status,
		nullableString(t.Stage),
		t.IterationCount,
		nullableString(t.Title),
		nullableString(t.Content),
		t.WordCount,
		nullableInt(t.QualityScore),
		nullableString(t.ErrorMessage),
		nullableString(t.FeaturedImageRef),
		seoJSON,
		nullableString(t.PublishTargetRef),
		tagsJSON,
		categoriesJSON,
		now.Format(time.RFC3339Nano),
		nullableTime(t.LastHeartbeat),
		t.ID,
		expectedUpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "update", "update task", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "update", "rows affected", err)
	}
	if affected == 0 {
		// Distinguish a lost race from a missing record.
		if _, getErr := s.Get(ctx, t.ID); getErr != nil {
			return nil, getErr
		}
		return nil, services.Wrap(services.ErrConflict, "taskstore", "update",
			fmt.Sprintf("task %s was modified concurrently", t.ID), nil)
	}

	t.UpdatedAt = now
	return t, nil
}

// NextByStatus returns the oldest task in the given status, or nil when
// none exists. Callers that mutate the result rely on Update's optimistic
// guard for exclusivity.
func (s *Store) NextByStatus(ctx context.Context, status task.Status) (*task.Task, error) {
	row := s.db.QueryRowContext(
		ensureContext(ctx),
		`SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at LIMIT 1`,
		status,
	)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "next", "scan task", err)
	}
	return t, nil
}

// ListFilter narrows List results.
type ListFilter struct {
	Statuses []task.Status
	Type     task.Type
	Limit    int
	Offset   int
}

// List returns tasks matching the filter ordered by creation time.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*task.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var (
		clauses []string
		args    []any
	)
	if len(filter.Statuses) > 0 {
		placeholders := makePlaceholders(len(filter.Statuses))
		clauses = append(clauses, `status IN (`+placeholders+`)`)
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.Type != "" {
		clauses = append(clauses, `task_type = ?`)
		args = append(args, string(filter.Type))
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` ORDER BY created_at`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "list", "query tasks", err)
	}
	defer rows.Close()

	var tasks []*task.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, services.Wrap(services.ErrPersistence, "taskstore", "list", "scan task", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(services.ErrPersistence, "taskstore", "list", "iterate tasks", err)
	}
	return tasks, nil
}
