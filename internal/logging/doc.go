// Package logging constructs the slog loggers used across quill.
//
// Two output formats are supported: a compact console format for
// interactive use and JSON for ingestion. Attr helpers and standardized
// field keys keep task, stage, and correlation identifiers consistent
// across components; WithContext derives those fields from a request
// context so call sites do not repeat them.
package logging
