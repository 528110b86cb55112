// Package stacktrace reformats raw runtime stack text into a canonical,
// environment-independent frame list.
package stacktrace

import (
	"fmt"
	"strconv"
	"strings"
)

// UnknownFunction is rendered when a frame carries no function name.
const UnknownFunction = "[unknown function]"

// Frame is one parsed stack entry.
type Frame struct {
	Function string
	File     string
	Line     int
}

// String renders the frame in the canonical "at <function> (<file>:<line>)"
// shape.
func (f Frame) String() string {
	fn := f.Function
	if fn == "" {
		fn = UnknownFunction
	}
	return fmt.Sprintf("at %s (%s:%d)", fn, f.File, f.Line)
}

// Format parses raw stack text in the Go runtime's representation (a function
// line followed by a tab-indented "file:line" line, with goroutine headers
// and "created by" markers in between) and re-renders each frame in the
// canonical shape. stripPrefix, when non-empty, is removed from the front of
// function names and file paths so stacks captured in different checkouts or
// module layouts compare equal.
//
// It returns the rendered frames in order plus the function name of the first
// frame, which callers use as the failure's entry point. A stack with no
// parseable frames yields an empty slice and an empty function name; Format
// never fails.
func Format(raw, stripPrefix string) ([]string, string) {
	lines := strings.Split(raw, "\n")

	var (
		frames  []string
		firstFn string
		pending string // function name waiting for its file:line
	)

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			pending = ""
			continue
		}
		if strings.HasPrefix(trimmed, "goroutine ") && strings.HasSuffix(trimmed, ":") {
			pending = ""
			continue
		}

		if strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ") {
			file, lineNo, ok := parseLocation(trimmed)
			if !ok {
				continue
			}
			f := Frame{
				Function: strip(pending, stripPrefix),
				File:     strip(file, stripPrefix),
				Line:     lineNo,
			}
			frames = append(frames, f.String())
			if firstFn == "" && f.Function != "" {
				firstFn = f.Function
			}
			pending = ""
			continue
		}

		pending = parseFunction(trimmed)
	}

	return frames, firstFn
}

// parseFunction extracts the function name from a runtime frame header like
// "main.work(0x1, {0x4f...})" or "created by main.spawn in goroutine 7".
func parseFunction(line string) string {
	if rest, ok := strings.CutPrefix(line, "created by "); ok {
		line = rest
		if i := strings.Index(line, " in goroutine"); i >= 0 {
			line = line[:i]
		}
	}
	if i := strings.Index(line, "("); i > 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// parseLocation splits "path/file.go:42 +0x1b" into its file and line parts.
func parseLocation(s string) (string, int, bool) {
	if i := strings.Index(s, " +0x"); i >= 0 {
		s = s[:i]
	}
	colon := strings.LastIndex(s, ":")
	if colon <= 0 {
		return "", 0, false
	}
	lineNo, err := strconv.Atoi(strings.TrimSpace(s[colon+1:]))
	if err != nil {
		return "", 0, false
	}
	return s[:colon], lineNo, true
}

func strip(s, prefix string) string {
	if prefix == "" || s == "" {
		return s
	}
	s = strings.TrimPrefix(s, prefix+"/")
	return strings.TrimPrefix(s, prefix+".")
}
