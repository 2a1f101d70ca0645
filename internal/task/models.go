package task

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a content task.
type Status string

const (
	StatusPending          Status = "pending"
	StatusGenerating       Status = "generating"
	StatusAwaitingApproval Status = "awaiting_approval"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusPublished        Status = "published"
	StatusCompleted        Status = "completed"
	StatusFailed           Status = "failed"
	StatusOnHold           Status = "on_hold"
	StatusCancelled        Status = "cancelled"
)

// CancelledByUserReason is the error message set when a user cancels a task.
const CancelledByUserReason = "Cancelled by user"

// DaemonStopReason is the error message set when tasks are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusGenerating,
	StatusAwaitingApproval,
	StatusApproved,
	StatusRejected,
	StatusPublished,
	StatusCompleted,
	StatusFailed,
	StatusOnHold,
	StatusCancelled,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var terminalStatuses = map[Status]struct{}{
	StatusPublished: {},
	StatusCompleted: {},
	StatusFailed:    {},
	StatusRejected:  {},
	StatusCancelled: {},
}

// Type describes the kind of content a task produces.
type Type string

const (
	TypeArticle    Type = "article"
	TypeBlogPost   Type = "blog_post"
	TypeNewsletter Type = "newsletter"
	TypeSocialPost Type = "social_post"
)

var taskTypes = map[Type]struct{}{
	TypeArticle:    {},
	TypeBlogPost:   {},
	TypeNewsletter: {},
	TypeSocialPost: {},
}

// SEOMetadata carries the search metadata attached during enrichment.
type SEOMetadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// Task represents one content-generation job persisted in the task store.
type Task struct {
	ID string

	// Input parameters, fixed at creation.
	Type              Type
	Topic             string
	Style             string
	Tone              string
	TargetLength      int
	Tags              []string
	Categories        []string
	WritingStyleRef   string
	RequiresApproval  bool
	AutoPublish       bool

	// Mutable pipeline state.
	Status         Status
	Stage          string
	IterationCount int

	// Output payload.
	Title            string
	Content          string
	WordCount        int
	QualityScore     *int
	ErrorMessage     string
	FeaturedImageRef string
	SEO              *SEOMetadata
	PublishTargetRef string

	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastHeartbeat *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseType converts a string into a known task Type.
func ParseType(value string) (Type, bool) {
	normalized := Type(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := taskTypes[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status has no outgoing transitions.
func (s Status) IsTerminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// IsTerminal reports whether the task has reached a terminal status.
func (t Task) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// HasContent reports whether the task carries a generated draft.
func (t Task) HasContent() bool {
	return strings.TrimSpace(t.Content) != ""
}

// SetStage records the pipeline step currently executing.
func (t *Task) SetStage(stage string) {
	t.Stage = stage
}

// SetFailed marks the task as failed with the given error message.
// Clears the heartbeat so the reclaimer ignores the task.
func (t *Task) SetFailed(message string) {
	t.Status = StatusFailed
	t.ErrorMessage = message
	t.Stage = "failed"
	t.LastHeartbeat = nil
}

// SetScore stores a bounded quality score.
func (t *Task) SetScore(score int) {
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	t.QualityScore = &score
}

// Score returns the quality score or -1 when none has been recorded.
func (t Task) Score() int {
	if t.QualityScore == nil {
		return -1
	}
	return *t.QualityScore
}
