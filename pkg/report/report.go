package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"errguard/pkg/normalize"
	"errguard/pkg/stacktrace"
)

const (
	// htmlBodyErrorName marks errors whose message is a raw response body;
	// those are truncated to their first sentence before prefixing.
	htmlBodyErrorName = "HttpResponseError"
	// maxInlineBody is the message length above which the truncation applies.
	maxInlineBody = 360

	defaultSourceLinkBase = "https://script.google.com/macros/d"
)

// Config wires the host-provided capabilities into a Reporter. Every field is
// optional; zero values degrade features instead of failing.
type Config struct {
	// AddonName prefixes source-file tokens in stacks and is stripped during
	// stack normalization.
	AddonName string
	// Version is attached to every record's custom params as "addonVersion".
	Version string
	// ScriptID supplies the identifier used to build a human-navigable deep
	// link into the failing source. Errors degrade the link, nothing else.
	ScriptID func() (string, error)
	// ActiveLocale supplies the active user's locale. Errors fall back to the
	// locale inferred from the message.
	ActiveLocale func() (string, error)
	// SourceLinkBase overrides the deep-link base URL.
	SourceLinkBase string
	// Sink receives the emitted records. Defaults to a slog sink.
	Sink Sink
	// Logger receives the reporter's own diagnostics (sink failures).
	Logger *slog.Logger
	// Now is the clock, for tests.
	Now func() time.Time
}

// Options adjust a single Report call.
type Options struct {
	// AsWarning emits the record at warning severity instead of error.
	AsWarning bool
	// DoNotLogKnownErrors suppresses emission when the error normalized to a
	// known identifier. Unknown errors are always emitted.
	DoNotLogKnownErrors bool
}

// Reporter builds structured records from raw errors.
type Reporter struct {
	cfg  Config
	norm *normalize.Normalizer
}

// New returns a Reporter over the given normalizer.
func New(cfg Config, norm *normalize.Normalizer) *Reporter {
	if cfg.Sink == nil {
		cfg.Sink = NewSlogSink(cfg.Logger)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SourceLinkBase == "" {
		cfg.SourceLinkBase = defaultSourceLinkBase
	}
	return &Reporter{cfg: cfg, norm: norm}
}

// Report builds a record from err, emits it through the sink and returns the
// caller-facing ReportedError. params are merged verbatim into the record's
// custom params; they are opaque to the reporter. Report never returns nil
// and never panics.
func (r *Reporter) Report(ctx context.Context, err error, params map[string]any, opts Options) *ReportedError {
	if err == nil {
		err = errors.New("unknown error")
	}

	original := err.Error()
	id, vars := r.norm.Normalize(original)
	known := id != ""

	message := original
	if known {
		if ref, ok := r.norm.Catalog().Reference[id]; ok {
			message = ref
		}
	}
	// The caller-facing error keeps the plain normalized-or-original text;
	// name prefixing, truncation and the stack decorate the log record only.
	plain := message

	rctx := Context{
		Locale:          r.resolveLocale(original),
		OriginalMessage: original,
		KnownError:      known,
		Variables:       vars,
	}

	var name string
	var namer Namer
	if errors.As(err, &namer) {
		name = namer.ErrorName()
	}
	switch {
	case name != "":
		rctx.ErrorKind = name
	case known:
		rctx.ErrorKind = string(id)
	}
	if name != "" {
		body := message
		if name == htmlBodyErrorName && len(body) > maxInlineBody {
			body = firstSentence(body)
		}
		message = name + ": " + body
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		rctx.ResponseCode = sc.StatusCode()
	}

	if loc, stackText := r.location(err); loc != nil {
		if stackText != "" {
			frames, firstFn := stacktrace.Format(stackText, r.cfg.AddonName)
			if len(frames) > 0 {
				message += "\n    " + strings.Join(frames, "\n    ")
			}
			loc.FunctionName = firstFn
		}
		loc.DirectLink = r.directLink(loc.File, loc.Line)
		rctx.ReportLocation = loc
	}

	rec := Record{
		EventID:      uuid.NewString(),
		Time:         r.cfg.Now(),
		Message:      message,
		Context:      rctx,
		CustomParams: r.customParams(params),
	}

	if !(opts.DoNotLogKnownErrors && known) {
		sev := SeverityError
		if opts.AsWarning {
			sev = SeverityWarning
		}
		if werr := r.cfg.Sink.Write(ctx, rec, sev); werr != nil {
			r.cfg.Logger.Debug("error record sink write failed", slog.Any("error", werr))
		}
	}

	return &ReportedError{Message: plain, Context: rctx, cause: err}
}

// ReportMessage is Report for plain-text failures.
func (r *Reporter) ReportMessage(ctx context.Context, text string, params map[string]any, opts Options) *ReportedError {
	return r.Report(ctx, Message(text), params, opts)
}

func (r *Reporter) customParams(params map[string]any) map[string]any {
	if params == nil && r.cfg.Version == "" {
		return nil
	}
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	if r.cfg.Version != "" {
		out["addonVersion"] = r.cfg.Version
	}
	return out
}

func (r *Reporter) resolveLocale(message string) string {
	if r.cfg.ActiveLocale != nil {
		if raw, err := r.cfg.ActiveLocale(); err == nil && raw != "" {
			if tag, perr := language.Parse(raw); perr == nil {
				return tag.String()
			}
		}
	}
	return r.norm.LocaleOf(message)
}

func (r *Reporter) location(err error) (*Location, string) {
	var lc Locatable
	if !errors.As(err, &lc) {
		return nil, ""
	}
	file, line := lc.SourceLocation()
	if file == "" && line == 0 {
		return nil, ""
	}
	var stackText string
	var stc StackCarrier
	if errors.As(err, &stc) {
		stackText = stc.StackTrace()
	}
	return &Location{File: file, Line: line}, stackText
}

func (r *Reporter) directLink(file string, line int) string {
	if r.cfg.ScriptID == nil {
		return ""
	}
	id, err := r.cfg.ScriptID()
	if err != nil || id == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/edit?file=%s&line=%d",
		r.cfg.SourceLinkBase, id, url.QueryEscape(file), line)
}

// firstSentence cuts body at the first sentence or line boundary.
func firstSentence(body string) string {
	if i := strings.IndexByte(body, '\n'); i > 0 {
		body = body[:i]
	}
	if i := strings.Index(body, ". "); i > 0 {
		body = body[:i+1]
	}
	return strings.TrimSpace(body)
}
