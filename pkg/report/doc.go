// Package report turns raw error values into structured, machine-parsable
// log records and caller-facing ReportedError values.
//
// The Reporter normalizes the message through the error catalog, resolves a
// best-effort locale, reformats any attached stack trace, and emits one
// record per terminal failure through a pluggable Sink. It never returns nil
// and never panics: callers always receive a well-formed *ReportedError whose
// context downstream log-aggregation consumers can treat as a stable shape.
package report
