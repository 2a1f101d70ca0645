// Package services provides the shared error taxonomy and context helpers
// used by pipeline stages and external collaborator clients.
//
// Errors are tagged with sentinel markers (ErrValidation, ErrConflict,
// ErrProvider, ...) via Wrap so callers can classify failures with
// errors.Is without string matching. Context helpers carry task, stage,
// and correlation identifiers for structured logging.
package services
