package report

import (
	"context"
	"errors"
	"log/slog"
)

// Sink receives finished records. Implementations must be safe for
// concurrent use.
type Sink interface {
	Write(ctx context.Context, rec Record, sev Severity) error
}

// SlogSink emits records through a slog.Logger, mapping record severity onto
// slog levels.
type SlogSink struct {
	Log *slog.Logger
}

// NewSlogSink wraps a logger as a Sink. A nil logger falls back to
// slog.Default.
func NewSlogSink(log *slog.Logger) *SlogSink {
	if log == nil {
		log = slog.Default()
	}
	return &SlogSink{Log: log}
}

// Write implements Sink.
func (s *SlogSink) Write(ctx context.Context, rec Record, sev Severity) error {
	level := slog.LevelError
	if sev == SeverityWarning {
		level = slog.LevelWarn
	}

	attrs := []slog.Attr{
		slog.String("event_id", rec.EventID),
		slog.Bool("known_error", rec.Context.KnownError),
		slog.String("original_message", rec.Context.OriginalMessage),
	}
	if rec.Context.Locale != "" {
		attrs = append(attrs, slog.String("locale", rec.Context.Locale))
	}
	if rec.Context.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", rec.Context.ErrorKind))
	}
	if rec.Context.ResponseCode != 0 {
		attrs = append(attrs, slog.Int("response_code", rec.Context.ResponseCode))
	}
	if loc := rec.Context.ReportLocation; loc != nil {
		attrs = append(attrs, slog.Group("report_location",
			slog.String("file", loc.File),
			slog.Int("line", loc.Line),
			slog.String("function", loc.FunctionName),
		))
	}
	if len(rec.Context.Variables) > 0 {
		vars := make([]any, 0, len(rec.Context.Variables))
		for k, v := range rec.Context.Variables {
			vars = append(vars, slog.String(k, v))
		}
		attrs = append(attrs, slog.Group("variables", vars...))
	}
	if len(rec.CustomParams) > 0 {
		params := make([]any, 0, len(rec.CustomParams))
		for k, v := range rec.CustomParams {
			params = append(params, slog.Any(k, v))
		}
		attrs = append(attrs, slog.Group("custom_params", params...))
	}

	s.Log.LogAttrs(ctx, level, rec.Message, attrs...)
	return nil
}

// MultiSink fans records out to several sinks, in order. All sinks are
// attempted; write failures are joined.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(ctx context.Context, rec Record, sev Severity) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, rec, sev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
