// Package engine drives one answer turn: it runs a provider adapter's
// event stream, routes deltas to the caller and through the command-tag
// extractor, and optionally runs the bounded web-search tool loop first.
package engine

import (
	"context"

	"github.com/shellsage/shellsage/command"
	"github.com/shellsage/shellsage/errors"
	"github.com/shellsage/shellsage/llm"
	"github.com/shellsage/shellsage/session"
	"github.com/shellsage/shellsage/tools"
)

// Callbacks deliver stream increments as they arrive. Any callback may be
// nil.
type Callbacks struct {
	OnReasoningDelta func(string)
	OnAnswerDelta    func(string)
	OnToolCall       func(session.ToolCall)
	OnAnnotation     func(llm.Annotation)
}

// Options configures one turn.
type Options struct {
	Client          llm.Client
	Model           string
	Messages        []session.Message
	Effort          llm.Effort
	Search          bool
	MaxSearchRounds int
	Tools           *tools.ToolRegistry
	Callbacks       Callbacks
}

// Result is the outcome of one turn. When Stopped is set the turn was
// cancelled mid-stream and the fields hold whatever had accumulated; that
// is a normal return, not an error.
type Result struct {
	Reasoning   string
	Answer      string
	Commands    []string
	Annotations []llm.Annotation
	Usage       llm.Usage
	Stopped     bool
}

// collector accumulates canonical events into a Result, feeding answer text
// through the tag extractor so callers never see command tags.
type collector struct {
	callbacks Callbacks
	extractor *command.Extractor

	reasoning   []byte
	answer      []byte
	commands    []string
	annotations []llm.Annotation
	usage       llm.Usage
}

func newCollector(callbacks Callbacks) *collector {
	return &collector{
		callbacks: callbacks,
		extractor: command.NewExtractor(),
	}
}

func (c *collector) handle(ev llm.Event) {
	switch ev.Kind {
	case llm.EventReasoningDelta:
		c.reasoning = append(c.reasoning, ev.Text...)
		if c.callbacks.OnReasoningDelta != nil {
			c.callbacks.OnReasoningDelta(ev.Text)
		}
	case llm.EventAnswerDelta:
		visible, cmds := c.extractor.Feed(ev.Text)
		c.emitVisible(visible)
		c.commands = append(c.commands, cmds...)
	case llm.EventToolCall:
		if c.callbacks.OnToolCall != nil {
			c.callbacks.OnToolCall(ev.ToolCall)
		}
	case llm.EventAnnotation:
		c.annotations = append(c.annotations, ev.Annotation)
		if c.callbacks.OnAnnotation != nil {
			c.callbacks.OnAnnotation(ev.Annotation)
		}
	case llm.EventUsage:
		c.usage.Merge(ev.Usage)
	}
}

func (c *collector) emitVisible(text string) {
	if text == "" {
		return
	}
	c.answer = append(c.answer, text...)
	if c.callbacks.OnAnswerDelta != nil {
		c.callbacks.OnAnswerDelta(text)
	}
}

// finish flushes the extractor and freezes the result.
func (c *collector) finish(stopped bool) *Result {
	c.emitVisible(c.extractor.Flush())
	return &Result{
		Reasoning:   string(c.reasoning),
		Answer:      string(c.answer),
		Commands:    c.commands,
		Annotations: c.annotations,
		Usage:       c.usage,
		Stopped:     stopped,
	}
}

// Stream runs one turn. With search enabled and an adapter that supports
// tool calling, the web-search loop runs instead of a plain stream.
// Cancellation resolves with the partial result.
func Stream(ctx context.Context, opts Options) (*Result, error) {
	if opts.Client == nil {
		return nil, errors.NewKind(errors.KindConfiguration, "no provider client configured")
	}

	if opts.Search && opts.Tools != nil && len(opts.Tools.All()) > 0 {
		if caller, ok := opts.Client.(llm.ToolCaller); ok {
			return runSearchLoop(ctx, opts, caller)
		}
	}

	collector := newCollector(opts.Callbacks)
	err := opts.Client.ReasoningStream(ctx, llm.Request{
		Model:    opts.Model,
		Messages: opts.Messages,
		Effort:   opts.Effort,
	}, collector.handle)
	if err != nil {
		if errors.IsAborted(err) {
			return collector.finish(true), nil
		}
		return nil, err
	}
	return collector.finish(false), nil
}
