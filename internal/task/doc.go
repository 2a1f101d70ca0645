// Package task defines the content task model and its status lifecycle.
//
// A Task is one content-generation job: input parameters (topic, style,
// tone, length), mutable pipeline state (status, stage, iteration count),
// and the output payload (title, content, quality score, enrichment
// references). Status changes are validated by the transition table in
// statemachine.go; writers must never set Status directly without
// consulting Transition or CanTransition.
//
// Treat this package as the single source of truth for lifecycle
// semantics; when you add new statuses, update the transition table and
// the taskstore schema together.
package task
