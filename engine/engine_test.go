package engine

import (
	"context"
	"testing"

	"github.com/shellsage/shellsage/llm"
	"github.com/shellsage/shellsage/session"
)

// fakeClient replays a canned event sequence, optionally returning an error
// after the events it managed to emit.
type fakeClient struct {
	events []llm.Event
	err    error
	lastReq llm.Request
}

func (f *fakeClient) Name() string { return "fake" }

func (f *fakeClient) FetchModels(ctx context.Context) ([]llm.Model, error) {
	return []llm.Model{{ID: "fake-model"}}, nil
}

func (f *fakeClient) ReasoningStream(ctx context.Context, req llm.Request, emit llm.EmitFunc) error {
	f.lastReq = req
	for _, ev := range f.events {
		emit(ev)
	}
	return f.err
}

func TestStreamRoutesEvents(t *testing.T) {
	client := &fakeClient{events: []llm.Event{
		{Kind: llm.EventReasoningDelta, Text: "thinking "},
		{Kind: llm.EventReasoningDelta, Text: "hard"},
		{Kind: llm.EventAnswerDelta, Text: "Use ls."},
		{Kind: llm.EventUsage, Usage: llm.Usage{InputTokens: 10, OutputTokens: 5}},
		{Kind: llm.EventDone},
	}}

	var reasoningDeltas, answerDeltas string
	result, err := Stream(context.Background(), Options{
		Client:   client,
		Model:    "fake-model",
		Messages: []session.Message{{Role: "user", Content: "q"}},
		Callbacks: Callbacks{
			OnReasoningDelta: func(s string) { reasoningDeltas += s },
			OnAnswerDelta:    func(s string) { answerDeltas += s },
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Reasoning != "thinking hard" {
		t.Errorf("Unexpected reasoning: %q", result.Reasoning)
	}
	if result.Answer != "Use ls." || answerDeltas != "Use ls." {
		t.Errorf("Unexpected answer: result %q, deltas %q", result.Answer, answerDeltas)
	}
	if reasoningDeltas != "thinking hard" {
		t.Errorf("Reasoning callbacks missed deltas: %q", reasoningDeltas)
	}
	if result.Usage.InputTokens != 10 || result.Usage.OutputTokens != 5 {
		t.Errorf("Unexpected usage: %+v", result.Usage)
	}
	if result.Stopped {
		t.Error("Completed turn must not report Stopped")
	}
	if client.lastReq.Model != "fake-model" {
		t.Errorf("Request model not forwarded: %q", client.lastReq.Model)
	}
}

// A command tag split across answer deltas must still be extracted, and the
// tag text must never reach the answer or the callbacks.
func TestStreamExtractsSplitCommandTag(t *testing.T) {
	client := &fakeClient{events: []llm.Event{
		{Kind: llm.EventAnswerDelta, Text: "Run this: <comm"},
		{Kind: llm.EventAnswerDelta, Text: "and>df -h</comma"},
		{Kind: llm.EventAnswerDelta, Text: "nd> to check."},
		{Kind: llm.EventDone},
	}}

	var answerDeltas string
	result, err := Stream(context.Background(), Options{
		Client: client,
		Callbacks: Callbacks{
			OnAnswerDelta: func(s string) { answerDeltas += s },
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Commands) != 1 || result.Commands[0] != "df -h" {
		t.Fatalf("Expected extracted command, got %v", result.Commands)
	}
	if result.Answer != "Run this:  to check." {
		t.Errorf("Unexpected visible answer: %q", result.Answer)
	}
	if answerDeltas != result.Answer {
		t.Errorf("Callback text diverged from answer: %q vs %q", answerDeltas, result.Answer)
	}
}

// An unterminated tag at end of stream is recovered as visible text by the
// flush, never silently dropped.
func TestStreamFlushRecoversUnterminatedTag(t *testing.T) {
	client := &fakeClient{events: []llm.Event{
		{Kind: llm.EventAnswerDelta, Text: "try <command>rm -rf"},
		{Kind: llm.EventDone},
	}}

	result, err := Stream(context.Background(), Options{Client: client})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Commands) != 0 {
		t.Errorf("Unterminated tag must not yield a command: %v", result.Commands)
	}
	if result.Answer != "try <command>rm -rf" {
		t.Errorf("Flush lost buffered text: %q", result.Answer)
	}
}

func TestStreamRoutesAnnotations(t *testing.T) {
	client := &fakeClient{events: []llm.Event{
		{Kind: llm.EventAnswerDelta, Text: "cited answer"},
		{Kind: llm.EventAnnotation, Annotation: llm.Annotation{
			Title: "Go blog",
			URL:   "https://go.dev/blog/error-handling",
		}},
		{Kind: llm.EventDone},
	}}

	var seen []llm.Annotation
	result, err := Stream(context.Background(), Options{
		Client: client,
		Callbacks: Callbacks{
			OnAnnotation: func(a llm.Annotation) { seen = append(seen, a) },
		},
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(result.Annotations) != 1 || result.Annotations[0].URL != "https://go.dev/blog/error-handling" {
		t.Errorf("Annotation not accumulated: %v", result.Annotations)
	}
	if len(seen) != 1 || seen[0].Title != "Go blog" {
		t.Errorf("Annotation callback missed: %v", seen)
	}
}

func TestStreamAbortYieldsPartialResult(t *testing.T) {
	client := &fakeClient{
		events: []llm.Event{
			{Kind: llm.EventAnswerDelta, Text: "partial ans"},
		},
		err: context.Canceled,
	}

	result, err := Stream(context.Background(), Options{Client: client})
	if err != nil {
		t.Fatalf("Abort must resolve without error, got %v", err)
	}
	if !result.Stopped {
		t.Error("Expected Stopped on aborted turn")
	}
	if result.Answer != "partial ans" {
		t.Errorf("Expected partial answer preserved, got %q", result.Answer)
	}
}

func TestStreamPropagatesRealErrors(t *testing.T) {
	client := &fakeClient{err: errFake}

	if _, err := Stream(context.Background(), Options{Client: client}); err == nil {
		t.Fatal("Expected non-abort errors to propagate")
	}
}

func TestStreamRequiresClient(t *testing.T) {
	if _, err := Stream(context.Background(), Options{}); err == nil {
		t.Fatal("Expected configuration error for nil client")
	}
}

type fakeError string

func (e fakeError) Error() string { return string(e) }

var errFake = fakeError("provider exploded")
