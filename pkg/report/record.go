package report

import "time"

// Severity of an emitted record.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Location points at the source position a failure was raised from.
type Location struct {
	Line         int    `json:"line"`
	File         string `json:"file"`
	DirectLink   string `json:"directLink,omitempty"`
	FunctionName string `json:"functionName,omitempty"`
}

// Context is the machine-readable half of a record. Downstream consumers
// persist and parse this shape; fields are only ever added.
type Context struct {
	Locale          string            `json:"locale,omitempty"`
	OriginalMessage string            `json:"originalMessage"`
	KnownError      bool              `json:"knownError"`
	Variables       map[string]string `json:"variables,omitempty"`
	ErrorKind       string            `json:"errorKind,omitempty"`
	ReportLocation  *Location         `json:"reportLocation,omitempty"`
	ResponseCode    int               `json:"responseCode,omitempty"`
}

// Record is one structured log entry as handed to a Sink.
type Record struct {
	EventID      string         `json:"eventId"`
	Time         time.Time      `json:"time"`
	Message      string         `json:"message"`
	Context      Context        `json:"context"`
	CustomParams map[string]any `json:"customParams,omitempty"`
}

// ReportedError is the error value returned to callers after a failure was
// recorded. Its message is the normalized (English) text when the failure was
// a known one, else the original text; Context carries the same structure the
// emitted record did.
type ReportedError struct {
	Message string
	Context Context

	cause error
}

func (e *ReportedError) Error() string { return e.Message }

// Unwrap exposes the raw error the report was built from.
func (e *ReportedError) Unwrap() error { return e.cause }

// Metadata interfaces the Reporter probes for on the error chain. Any error
// can opt into richer records by implementing them.
type (
	// Namer carries a name or category, e.g. "TypeError".
	Namer interface{ ErrorName() string }
	// Locatable carries the source position the error was raised from.
	Locatable interface{ SourceLocation() (file string, line int) }
	// StackCarrier carries a raw stack trace in the host's native format.
	StackCarrier interface{ StackTrace() string }
	// StatusCoder carries a transport status code.
	StatusCoder interface{ StatusCode() int }
)

// Raised is a rich error value implementing all reporter metadata interfaces,
// for callers that construct failures by hand.
type Raised struct {
	Name   string
	Msg    string
	File   string
	Line   int
	Stack  string
	Status int
	Cause  error
}

func (e *Raised) Error() string { return e.Msg }

func (e *Raised) ErrorName() string { return e.Name }

func (e *Raised) SourceLocation() (string, int) { return e.File, e.Line }

func (e *Raised) StackTrace() string { return e.Stack }

func (e *Raised) StatusCode() int { return e.Status }

func (e *Raised) Unwrap() error { return e.Cause }

// Message coerces plain text into an error-shaped value the Reporter accepts.
func Message(text string) error {
	return &Raised{Msg: text}
}
