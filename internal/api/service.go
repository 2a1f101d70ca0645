package api

import (
	"context"
	"fmt"

	"quill/internal/services"
	"quill/internal/task"
	"quill/internal/taskstore"
)

// TaskService exposes the task operations shared by the HTTP handlers and
// the CLI. All writes go through the state machine and the store's
// optimistic update.
type TaskService struct {
	store *taskstore.Store
}

// NewTaskService wraps a store.
func NewTaskService(store *taskstore.Store) *TaskService {
	return &TaskService{store: store}
}

// Submit validates and creates a new pending task.
func (s *TaskService) Submit(ctx context.Context, req SubmitRequest) (*task.Task, error) {
	taskType := req.Type
	if taskType == "" {
		taskType = string(task.TypeArticle)
	}
	parsed, ok := task.ParseType(taskType)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "api", "submit",
			fmt.Sprintf("unknown task type %q", req.Type), nil)
	}
	return s.store.Create(ctx, taskstore.CreateParams{
		Type:             parsed,
		Topic:            req.Topic,
		Style:            req.Style,
		Tone:             req.Tone,
		TargetLength:     req.TargetLength,
		Tags:             req.Tags,
		Categories:       req.Categories,
		WritingStyleRef:  req.WritingStyleRef,
		RequiresApproval: req.RequiresApproval,
		AutoPublish:      req.AutoPublish,
	})
}

// Describe fetches one task by ID.
func (s *TaskService) Describe(ctx context.Context, id string) (*task.Task, error) {
	return s.store.Get(ctx, id)
}

// List returns tasks filtered by status strings and optional type.
func (s *TaskService) List(ctx context.Context, statuses []string, taskType string, limit, offset int) ([]*task.Task, error) {
	filter := taskstore.ListFilter{Limit: limit, Offset: offset}
	for _, raw := range statuses {
		status, ok := task.ParseStatus(raw)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown status %q", raw), nil)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if taskType != "" {
		parsed, ok := task.ParseType(taskType)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, "api", "list",
				fmt.Sprintf("unknown task type %q", taskType), nil)
		}
		filter.Type = parsed
	}
	return s.store.List(ctx, filter)
}

// Approve moves an awaiting task to approved so the executor publishes it.
func (s *TaskService) Approve(ctx context.Context, id string) (*task.Task, error) {
	return s.transition(ctx, id, task.StatusApproved, "approved")
}

// Reject moves an awaiting task to rejected; the content is preserved but
// the task is terminal.
func (s *TaskService) Reject(ctx context.Context, id string) (*task.Task, error) {
	return s.transition(ctx, id, task.StatusRejected, "rejected")
}

// Cancel cancels a pending or on-hold task.
func (s *TaskService) Cancel(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.transition(ctx, id, task.StatusCancelled, "cancelled")
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Hold pauses an in-flight task. The executor observes the lost ownership
// at its next stage boundary and abandons the task.
func (s *TaskService) Hold(ctx context.Context, id string) (*task.Task, error) {
	return s.transition(ctx, id, task.StatusOnHold, "on hold")
}

// Resume returns a held task to the generating pool. The heartbeat is
// cleared so the reclaim pass hands it back to a worker as pending.
func (s *TaskService) Resume(ctx context.Context, id string) (*task.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Transition(task.StatusGenerating); err != nil {
		return nil, services.Wrap(services.ErrStateTransition, "api", "resume", err.Error(), nil)
	}
	t.SetStage("resumed")
	t.LastHeartbeat = nil
	return s.store.Update(ctx, t, t.UpdatedAt)
}

func (s *TaskService) transition(ctx context.Context, id string, to task.Status, stage string) (*task.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.Transition(to); err != nil {
		return nil, services.Wrap(services.ErrStateTransition, "api", stage, err.Error(), nil)
	}
	t.SetStage(stage)
	if to == task.StatusCancelled {
		t.ErrorMessage = task.CancelledByUserReason
	}
	return s.store.Update(ctx, t, t.UpdatedAt)
}

// Retry moves failed tasks back to pending. With no IDs, all failed tasks
// are retried.
func (s *TaskService) Retry(ctx context.Context, ids ...string) (int64, error) {
	return s.store.RetryFailed(ctx, ids...)
}

// Stats returns the per-status task counts.
func (s *TaskService) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int, len(stats))
	for status, count := range stats {
		out[string(status)] = count
	}
	return out, nil
}

// Health gathers queue counts and database diagnostics.
func (s *TaskService) Health(ctx context.Context) (taskstore.HealthSummary, taskstore.DatabaseHealth, error) {
	summary, err := s.store.Health(ctx)
	if err != nil {
		return taskstore.HealthSummary{}, taskstore.DatabaseHealth{}, err
	}
	db, err := s.store.CheckHealth(ctx)
	if err != nil {
		db.Error = err.Error()
	}
	return summary, db, nil
}

// ClearCompleted removes completed and published tasks.
func (s *TaskService) ClearCompleted(ctx context.Context) (int64, error) {
	return s.store.ClearCompleted(ctx)
}

// ClearFailed removes failed tasks.
func (s *TaskService) ClearFailed(ctx context.Context) (int64, error) {
	return s.store.ClearFailed(ctx)
}

// Remove deletes one task outright.
func (s *TaskService) Remove(ctx context.Context, id string) (bool, error) {
	return s.store.Remove(ctx, id)
}
