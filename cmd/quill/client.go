package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"quill/internal/api"
)

// apiClient is a thin HTTP client over the daemon's API.
type apiClient struct {
	base       string
	token      string
	httpClient *http.Client
}

func newAPIClient(base, token string) *apiClient {
	return &apiClient{
		base:       strings.TrimRight(base, "/"),
		token:      strings.TrimSpace(token),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, payload, target any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("is the daemon running? %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s", apiErr.Error)
		}
		return fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) Submit(ctx context.Context, req api.SubmitRequest) (api.TaskView, error) {
	var resp api.TaskResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks", req, &resp)
	return resp.Task, err
}

func (c *apiClient) Describe(ctx context.Context, id string) (api.TaskView, error) {
	var resp api.TaskResponse
	err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &resp)
	return resp.Task, err
}

func (c *apiClient) List(ctx context.Context, statuses []string, taskType string, limit int) ([]api.TaskView, error) {
	values := url.Values{}
	for _, status := range statuses {
		values.Add("status", status)
	}
	if taskType != "" {
		values.Set("type", taskType)
	}
	if limit > 0 {
		values.Set("limit", fmt.Sprint(limit))
	}
	path := "/api/tasks"
	if encoded := values.Encode(); encoded != "" {
		path += "?" + encoded
	}
	var resp api.TaskListResponse
	err := c.do(ctx, http.MethodGet, path, nil, &resp)
	return resp.Tasks, err
}

func (c *apiClient) Action(ctx context.Context, id, action string) (api.TaskView, error) {
	var resp api.TaskResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/"+action, nil, &resp)
	return resp.Task, err
}

func (c *apiClient) RetryAll(ctx context.Context) (int64, error) {
	var resp api.CountResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/retry", nil, &resp)
	return resp.Count, err
}

func (c *apiClient) RetryTask(ctx context.Context, id string) (int64, error) {
	var resp api.CountResponse
	err := c.do(ctx, http.MethodPost, "/api/tasks/"+url.PathEscape(id)+"/retry", nil, &resp)
	return resp.Count, err
}

func (c *apiClient) ClearCompleted(ctx context.Context) (int64, error) {
	var resp api.CountResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/clear-completed", nil, &resp)
	return resp.Count, err
}

func (c *apiClient) ClearFailed(ctx context.Context) (int64, error) {
	var resp api.CountResponse
	err := c.do(ctx, http.MethodPost, "/api/queue/clear-failed", nil, &resp)
	return resp.Count, err
}

func (c *apiClient) Health(ctx context.Context) (api.HealthResponse, error) {
	var resp api.HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/queue/health", nil, &resp)
	return resp, err
}

func (c *apiClient) Status(ctx context.Context) (api.StatusResponse, error) {
	var resp api.StatusResponse
	err := c.do(ctx, http.MethodGet, "/api/status", nil, &resp)
	return resp, err
}
