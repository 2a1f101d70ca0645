// Package api defines the HTTP payload types and the task service the
// daemon's API server and the CLI both consume.
package api

import (
	"time"

	"quill/internal/task"
)

// TaskView is the wire representation of a task.
type TaskView struct {
	ID               string            `json:"id"`
	Type             string            `json:"type"`
	Topic            string            `json:"topic"`
	Style            string            `json:"style,omitempty"`
	Tone             string            `json:"tone,omitempty"`
	TargetLength     int               `json:"target_length,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Categories       []string          `json:"categories,omitempty"`
	RequiresApproval bool              `json:"requires_approval"`
	AutoPublish      bool              `json:"auto_publish"`
	Status           string            `json:"status"`
	Stage            string            `json:"stage,omitempty"`
	IterationCount   int               `json:"iteration_count"`
	Title            string            `json:"title,omitempty"`
	Content          string            `json:"content,omitempty"`
	WordCount        int               `json:"word_count,omitempty"`
	QualityScore     *int              `json:"quality_score,omitempty"`
	Error            string            `json:"error,omitempty"`
	FeaturedImageRef string            `json:"featured_image_ref,omitempty"`
	SEO              *task.SEOMetadata `json:"seo,omitempty"`
	PublishTargetRef string            `json:"publish_target_ref,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

// SubmitRequest is the POST body for task submission.
type SubmitRequest struct {
	Type             string   `json:"type"`
	Topic            string   `json:"topic"`
	Style            string   `json:"style,omitempty"`
	Tone             string   `json:"tone,omitempty"`
	TargetLength     int      `json:"target_length,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Categories       []string `json:"categories,omitempty"`
	WritingStyleRef  string   `json:"writing_style_ref,omitempty"`
	RequiresApproval bool     `json:"requires_approval"`
	AutoPublish      bool     `json:"auto_publish"`
}

// TaskResponse wraps a single task.
type TaskResponse struct {
	Task TaskView `json:"task"`
}

// TaskListResponse wraps a task listing.
type TaskListResponse struct {
	Tasks []TaskView `json:"tasks"`
}

// StatusResponse reports daemon and queue health.
type StatusResponse struct {
	Running  bool           `json:"running"`
	PID      int            `json:"pid"`
	Workers  int            `json:"workers"`
	LastErr  string         `json:"last_error,omitempty"`
	Queue    map[string]int `json:"queue"`
	Database string         `json:"database"`
}

// HealthResponse reports queue counts and task database diagnostics.
type HealthResponse struct {
	Total            int    `json:"total"`
	Pending          int    `json:"pending"`
	Generating       int    `json:"generating"`
	AwaitingApproval int    `json:"awaiting_approval"`
	Failed           int    `json:"failed"`
	Completed        int    `json:"completed"`
	Published        int    `json:"published"`
	DBPath           string `json:"db_path"`
	DatabaseExists   bool   `json:"database_exists"`
	DatabaseReadable bool   `json:"database_readable"`
	TableExists      bool   `json:"table_exists"`
	IntegrityCheck   bool   `json:"integrity_check"`
	DatabaseError    string `json:"database_error,omitempty"`
}

// CountResponse reports how many tasks an action touched.
type CountResponse struct {
	Count int64 `json:"count"`
}

// FromTask converts a store task into its wire representation.
func FromTask(t *task.Task) TaskView {
	return TaskView{
		ID:               t.ID,
		Type:             string(t.Type),
		Topic:            t.Topic,
		Style:            t.Style,
		Tone:             t.Tone,
		TargetLength:     t.TargetLength,
		Tags:             t.Tags,
		Categories:       t.Categories,
		RequiresApproval: t.RequiresApproval,
		AutoPublish:      t.AutoPublish,
		Status:           string(t.Status),
		Stage:            t.Stage,
		IterationCount:   t.IterationCount,
		Title:            t.Title,
		Content:          t.Content,
		WordCount:        t.WordCount,
		QualityScore:     t.QualityScore,
		Error:            t.ErrorMessage,
		FeaturedImageRef: t.FeaturedImageRef,
		SEO:              t.SEO,
		PublishTargetRef: t.PublishTargetRef,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

// FromTasks converts a task slice into wire views.
func FromTasks(tasks []*task.Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, FromTask(t))
	}
	return views
}
