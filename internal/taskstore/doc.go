// Package taskstore persists content tasks in SQLite and exposes the
// claim, read, and conditional-update primitives the executor relies on.
//
// Claim exclusivity is the central correctness property: ClaimNextPending
// is a single conditional UPDATE, so two workers can never claim the same
// task. Update takes the caller's expected updated_at timestamp and fails
// with a conflict when it is stale, protecting against lost updates.
//
// The store is the single source of truth for cross-worker state; no
// in-memory task list exists anywhere else. Schema changes bump the
// version in schema.go.
package taskstore
