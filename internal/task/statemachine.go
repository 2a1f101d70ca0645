package task

import "fmt"

// TransitionError reports an attempt to move a task along an edge the
// lifecycle does not allow.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

// allowedTransitions is the directed-edge table governing task lifecycle.
// completed is reserved for tasks that never required approval; published
// means an approval-gated task was confirmed live on the publish target.
// The two are distinct terminal states and must never be derived from one
// another.
var allowedTransitions = map[Status][]Status{
	StatusPending:          {StatusGenerating, StatusCancelled},
	StatusGenerating:       {StatusAwaitingApproval, StatusCompleted, StatusFailed, StatusOnHold},
	StatusAwaitingApproval: {StatusApproved, StatusRejected},
	StatusApproved:         {StatusPublished, StatusFailed},
	StatusOnHold:           {StatusGenerating, StatusCancelled},
}

// CanTransition reports whether the edge from -> to is legal.
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates the requested edge and applies it to the task.
// It is the only sanctioned way to change a task's status.
func (t *Task) Transition(to Status) error {
	if _, ok := statusSet[to]; !ok {
		return &TransitionError{From: t.Status, To: to}
	}
	if !CanTransition(t.Status, to) {
		return &TransitionError{From: t.Status, To: to}
	}
	t.Status = to
	return nil
}

// NextStatuses returns the legal successor statuses for the given status.
func NextStatuses(from Status) []Status {
	edges := allowedTransitions[from]
	cp := make([]Status, len(edges))
	copy(cp, edges)
	return cp
}
