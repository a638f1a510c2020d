package errors

import (
	"context"
	stderrors "errors"
	"fmt"
)

// Kind classifies an error by where in the pipeline it arose and how
// callers are expected to react to it.
type Kind int

const (
	// KindConfiguration covers bad or missing settings and credentials.
	// Raised before any network call is made.
	KindConfiguration Kind = iota + 1
	// KindTransport covers network and API failures.
	KindTransport
	// KindAborted marks user cancellation. The stream orchestrator
	// converts it into a partial result rather than a failure.
	KindAborted
	// KindTool marks a tool execution failure. Absorbed into an
	// error-tagged tool result, never propagated.
	KindTool
	// KindParse marks a malformed payload from a provider. Absorbed by
	// skipping the offending chunk.
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindTransport:
		return "transport"
	case KindAborted:
		return "aborted"
	case KindTool:
		return "tool"
	case KindParse:
		return "parse"
	}
	return "unknown"
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }

// NewKind creates a classified error prefixed with the caller's file and
// line.
func NewKind(kind Kind, format string, a ...interface{}) error {
	return &kindError{
		kind: kind,
		err:  fmt.Errorf("[%s] %s", location(2), fmt.Sprintf(format, a...)),
	}
}

// WrapKind classifies an existing error and adds context. Returns nil for a
// nil error. An already-classified error keeps its original kind.
func WrapKind(err error, kind Kind, format string, a ...interface{}) error {
	if err == nil {
		return nil
	}
	wrapped := fmt.Errorf("[%s] %s: %w", location(2), fmt.Sprintf(format, a...), err)
	if KindOf(err) != 0 {
		return wrapped
	}
	return &kindError{kind: kind, err: wrapped}
}

// KindOf returns the classification of err, or zero if it carries none.
func KindOf(err error) Kind {
	var ke *kindError
	if stderrors.As(err, &ke) {
		return ke.kind
	}
	return 0
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// IsAborted reports whether err represents user cancellation, either via
// explicit classification or an underlying context cancellation.
func IsAborted(err error) bool {
	if err == nil {
		return false
	}
	if IsKind(err, KindAborted) {
		return true
	}
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
