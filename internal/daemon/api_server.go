package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"log/slog"

	"quill/internal/api"
	"quill/internal/config"
	"quill/internal/logging"
	"quill/internal/services"
	"quill/internal/task"
)

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	taskSvc *api.TaskService

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger,
		daemon:  d,
		taskSvc: api.NewTaskService(d.store),
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/tasks", authMiddleware(token, srv.handleTasks))
	mux.HandleFunc("/api/tasks/", authMiddleware(token, srv.handleTask))
	mux.HandleFunc("/api/queue/health", authMiddleware(token, srv.handleQueueHealth))
	mux.HandleFunc("/api/queue/retry", authMiddleware(token, srv.handleQueueRetry))
	mux.HandleFunc("/api/queue/clear-completed", authMiddleware(token, srv.handleClearCompleted))
	mux.HandleFunc("/api/queue/clear-failed", authMiddleware(token, srv.handleClearFailed))

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	status := s.daemon.Status(r.Context())
	queue, err := s.taskSvc.Stats(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.StatusResponse{
		Running:  status.Running,
		PID:      status.PID,
		Workers:  status.Executor.Workers,
		LastErr:  status.Executor.LastError,
		Queue:    queue,
		Database: status.TaskDBPath,
	})
}

func (s *apiServer) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req api.SubmitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		created, err := s.taskSvc.Submit(r.Context(), req)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, api.TaskResponse{Task: api.FromTask(created)})

	case http.MethodGet:
		query := r.URL.Query()
		var statuses []string
		for _, value := range query["status"] {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				statuses = append(statuses, trimmed)
			}
		}
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))
		tasks, err := s.taskSvc.List(r.Context(), statuses, strings.TrimSpace(query.Get("type")), limit, offset)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TaskListResponse{Tasks: api.FromTasks(tasks)})

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTask(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/tasks/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	id, action, _ := strings.Cut(rest, "/")
	if id == "" || strings.Contains(action, "/") {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		t, err := s.taskSvc.Describe(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: api.FromTask(t)})

	case action == "" && r.Method == http.MethodDelete:
		removed, err := s.taskSvc.Remove(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		if !removed {
			s.writeError(w, http.StatusNotFound, "task not found")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]bool{"removed": true})

	case r.Method == http.MethodPost:
		s.handleTaskAction(w, r, id, action)

	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleTaskAction(w http.ResponseWriter, r *http.Request, id, action string) {
	if action == "retry" {
		count, err := s.taskSvc.Retry(r.Context(), id)
		if err != nil {
			s.writeServiceError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
		return
	}

	var transition func(context.Context, string) (*task.Task, error)
	switch action {
	case "approve":
		transition = s.taskSvc.Approve
	case "reject":
		transition = s.taskSvc.Reject
	case "cancel":
		transition = s.taskSvc.Cancel
	case "hold":
		transition = s.taskSvc.Hold
	case "resume":
		transition = s.taskSvc.Resume
	default:
		s.writeError(w, http.StatusNotFound, "unknown action")
		return
	}
	t, err := transition(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.TaskResponse{Task: api.FromTask(t)})
}

func (s *apiServer) handleQueueHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	summary, db, err := s.taskSvc.Health(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		Total:            summary.Total,
		Pending:          summary.Pending,
		Generating:       summary.Generating,
		AwaitingApproval: summary.AwaitingApproval,
		Failed:           summary.Failed,
		Completed:        summary.Completed,
		Published:        summary.Published,
		DBPath:           db.DBPath,
		DatabaseExists:   db.DatabaseExists,
		DatabaseReadable: db.DatabaseReadable,
		TableExists:      db.TableExists,
		IntegrityCheck:   db.IntegrityCheck,
		DatabaseError:    db.Error,
	})
}

func (s *apiServer) handleQueueRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := s.taskSvc.Retry(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) handleClearCompleted(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := s.taskSvc.ClearCompleted(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) handleClearFailed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	count, err := s.taskSvc.ClearFailed(r.Context())
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CountResponse{Count: count})
}

func (s *apiServer) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		s.writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrValidation):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrStateTransition), errors.Is(err, services.ErrConflict):
		s.writeError(w, http.StatusConflict, err.Error())
	default:
		s.writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger.With(logging.String(logging.FieldComponent, "api-server"))
	}
	return logging.NewNop()
}
