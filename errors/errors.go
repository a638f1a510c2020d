// Package errors builds the errors this tool raises. Every constructor
// stamps the caller's file and line into the message, so a failure surfaced
// on the terminal points at the adapter or component that produced it.
// Errors that callers must react to programmatically additionally carry a
// Kind (see kinds.go): configuration failures abort startup, transport
// failures end the turn, aborts resolve into partial results, and tool or
// parse failures are absorbed where they occur.
package errors

import (
	"fmt"
	"path/filepath"
	"runtime"
)

// location renders the file:line of the frame skip levels above it.
func location(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return "???:0"
	}
	return fmt.Sprintf("%s:%d", filepath.Base(file), line)
}

// New creates an error prefixed with the caller's file and line.
func New(format string, a ...interface{}) error {
	return fmt.Errorf("[%s] %s", location(2), fmt.Sprintf(format, a...))
}

// Wrapf adds context and the caller's file and line to an existing error.
// Returns nil for a nil error.
func Wrapf(err error, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s: %w", location(2), fmt.Sprintf(format, a...), err)
}
