package backoff

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"errguard/pkg/catalog"
	"errguard/pkg/normalize"
	"errguard/pkg/report"
)

const (
	// DefaultMaxRetries applies when Options.MaxRetries is zero or out of the
	// allowed [MinRetries, MaxRetries] range.
	DefaultMaxRetries = 5
	// MinRetries and MaxRetries bound the configurable retry count.
	MinRetries = 1
	MaxRetries = 6

	// maxExplicitDelay is the ceiling on honoring a server-specified resume
	// time; waits at or above it terminate the call instead. Tunable policy,
	// not a structural invariant.
	maxExplicitDelay = 32 * time.Second
	// retryStatus is the sole HTTP status treated as a retryable failure.
	retryStatus = 500
)

// Config wires the executor's collaborators. Reporter and Normalizer are
// required; the clock hooks default to the real clock and are overridable for
// tests, the same way the retry layer this grew out of did it.
type Config struct {
	Reporter   *report.Reporter
	Normalizer *normalize.Normalizer
	Logger     *slog.Logger
	// Sleep blocks for d or until ctx is done. Defaults to a timer wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// Now is the clock used for explicit retry-delay arithmetic.
	Now func() time.Time
	// Rand drives the jitter. Defaults to a locally seeded source.
	Rand *rand.Rand
	// OnRetry is called before every backoff wait, for observability.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Options adjust one Do call. The zero value is a valid default.
type Options struct {
	// MaxRetries is clamped to [1,6]; zero or out-of-range falls back to 5.
	MaxRetries int
	// Verbose reports the previous failure as a warning when a retry
	// eventually succeeds.
	Verbose bool
	// DoNotLogKnownErrors is passed through to every report emitted here.
	DoNotLogKnownErrors bool
}

// Executor runs operations under the retry policy. Each Do call owns its own
// attempt state; an Executor is safe for concurrent use.
type Executor struct {
	cfg Config
}

// New returns an Executor, filling in default hooks.
func New(cfg Config) *Executor {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepTimer
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Executor{cfg: cfg}
}

// Do invokes op, retrying per the backoff policy, and returns the successful
// value or the terminal *report.ReportedError. On the HTTP-shaped exhaustion
// path the last response is returned as the value with a nil error. Context
// cancellation during a wait aborts with the context's error.
func (e *Executor) Do(ctx context.Context, op Operation, opts Options) (any, error) {
	maxR := normalizeRetries(opts.MaxRetries)

	var (
		prevErr     error
		prevDelay   time.Duration
		explicit    time.Duration
		hasExplicit bool
	)

	for attempt := 0; ; {
		if attempt > 0 || hasExplicit {
			delay := explicit
			if !hasExplicit {
				delay = e.scheduleDelay(attempt)
			}
			hasExplicit = false
			if e.cfg.OnRetry != nil {
				e.cfg.OnRetry(attempt, prevErr, delay)
			}
			if err := e.cfg.Sleep(ctx, delay); err != nil {
				return nil, err
			}
			prevDelay = delay
		}

		out := op(ctx)

		// Success: anything that is neither an error nor a retryable status.
		if out.err == nil && (out.resp == nil || out.resp.StatusCode() != retryStatus) {
			if attempt > 0 && opts.Verbose {
				e.cfg.Reporter.Report(ctx, prevErr, map[string]any{
					"retriedSuccessfully": true,
					"attempts":            attempt,
					"delay":               prevDelay.String(),
				}, report.Options{AsWarning: true, DoNotLogKnownErrors: opts.DoNotLogKnownErrors})
			}
			if out.resp != nil {
				return out.resp, nil
			}
			return out.value, nil
		}

		// HTTP-shaped failure: retried on every attempt including the last;
		// exhaustion hands the raw response back, never an error.
		if out.err == nil {
			herr := &StatusError{Resp: out.resp}
			if attempt == maxR {
				e.cfg.Reporter.Report(ctx, herr, map[string]any{
					"reason":             "max retries reached",
					"mutedHTTPException": true,
					"attempts":           attempt,
				}, report.Options{DoNotLogKnownErrors: opts.DoNotLogKnownErrors})
				return out.resp, nil
			}
			prevErr = herr
			attempt++
			continue
		}

		opErr := out.err
		id, vars := e.cfg.Normalizer.Normalize(opErr.Error())

		if id == catalog.RateLimitRetryAfter {
			if resume, ok := parseRetryTime(vars[catalog.RetryAfterVariable]); ok {
				delay := resume.Sub(e.cfg.Now()) + time.Second
				if delay < 0 {
					delay = 0
				}
				e.cfg.Logger.Warn("rate limit requested an explicit retry time",
					slog.Duration("delay", delay),
					slog.Duration("previous_delay", prevDelay),
					slog.Int("attempt", attempt))
				if delay < maxExplicitDelay {
					// Server-specified waits are honored over the retry count
					// ceiling: this branch does not consume an attempt.
					explicit = delay
					hasExplicit = true
					prevErr = opErr
					continue
				}
				rep := e.cfg.Reporter.Report(ctx, opErr, map[string]any{
					"reason": "explicit retry delay too long",
					"delay":  delay.String(),
				}, report.Options{DoNotLogKnownErrors: opts.DoNotLogKnownErrors})
				return nil, rep
			}
		}

		if id != "" && e.cfg.Normalizer.Catalog().IsNoRetry(id) {
			rep := e.cfg.Reporter.Report(ctx, opErr, map[string]any{
				"reason": "no retry needed",
			}, report.Options{DoNotLogKnownErrors: opts.DoNotLogKnownErrors})
			return nil, rep
		}

		if attempt == maxR {
			rep := e.cfg.Reporter.Report(ctx, opErr, map[string]any{
				"reason":   "max retries reached",
				"attempts": attempt,
			}, report.Options{DoNotLogKnownErrors: opts.DoNotLogKnownErrors})
			return nil, rep
		}

		prevErr = opErr
		attempt++
	}
}

// scheduleDelay computes the exponential wait before attempt n: 2^(n-1)
// seconds plus jitter in [0,1)s to desynchronize concurrent retriers.
func (e *Executor) scheduleDelay(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt-1)) * time.Second
	jitter := time.Duration(e.cfg.Rand.Float64() * float64(time.Second))
	return base + jitter
}

func normalizeRetries(n int) int {
	if n < MinRetries || n > MaxRetries {
		return DefaultMaxRetries
	}
	return n
}

func sleepTimer(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// retryTimeLayouts are the timestamp forms accepted in rate-limit messages.
var retryTimeLayouts = []string{
	time.RFC3339,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
}

// parseRetryTime recovers the resume timestamp a rate-limit message carries.
// Bare integers are treated as Unix seconds.
func parseRetryTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, layout := range retryTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}
	if secs, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.Unix(secs, 0), true
	}
	return time.Time{}, false
}
