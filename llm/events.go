package llm

import (
	"github.com/shellsage/shellsage/session"
)

// EventKind discriminates the canonical stream event union. Every backend
// translates its native protocol into these five shapes; consumers switch on
// the kind and never see provider payloads.
type EventKind int

const (
	// EventReasoningDelta carries an increment of model thinking text.
	EventReasoningDelta EventKind = iota + 1
	// EventAnswerDelta carries an increment of user-visible answer text.
	EventAnswerDelta
	// EventToolCall carries one complete tool invocation request.
	EventToolCall
	// EventUsage carries a token usage snapshot. Snapshots may arrive more
	// than once per call; later non-zero figures supersede earlier ones.
	EventUsage
	// EventAnnotation carries a source citation attached to the answer.
	// Only backends whose protocol ships citations emit it.
	EventAnnotation
	// EventDone marks the end of the stream.
	EventDone
)

// Annotation is a source citation for answer text.
type Annotation struct {
	Title string
	URL   string
}

// Event is one canonical stream event. Only the fields relevant to its kind
// are populated.
type Event struct {
	Kind       EventKind
	Text       string
	ToolCall   session.ToolCall
	Usage      Usage
	Annotation Annotation
}

// EmitFunc receives canonical events as an adapter decodes them.
type EmitFunc func(Event)

// Usage accumulates token counts for one stream.
type Usage struct {
	InputTokens     int64 `json:"input_tokens"`
	OutputTokens    int64 `json:"output_tokens"`
	ReasoningTokens int64 `json:"reasoning_tokens"`
	TotalTokens     int64 `json:"total_tokens"`
}

// Merge folds a later snapshot into u. Providers send usage incrementally or
// repeatedly; a zero field in the snapshot never clobbers a known value.
func (u *Usage) Merge(snap Usage) {
	if snap.InputTokens > 0 {
		u.InputTokens = snap.InputTokens
	}
	if snap.OutputTokens > 0 {
		u.OutputTokens = snap.OutputTokens
	}
	if snap.ReasoningTokens > 0 {
		u.ReasoningTokens = snap.ReasoningTokens
	}
	if snap.TotalTokens > 0 {
		u.TotalTokens = snap.TotalTokens
	}
}

// IsZero reports whether no counts have been recorded.
func (u Usage) IsZero() bool {
	return u.InputTokens == 0 && u.OutputTokens == 0 && u.ReasoningTokens == 0 && u.TotalTokens == 0
}

// Request describes one streaming completion call. A "system" role message in
// Messages becomes the provider's system prompt where the protocol separates
// it from the turn list.
type Request struct {
	Model    string
	Messages []session.Message
	Effort   Effort
}

// ToolDefinition describes a function tool advertised to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolChatResponse is the result of a non-streaming tool-enabled request.
type ToolChatResponse struct {
	Content   string
	ToolCalls []session.ToolCall
	Usage     Usage
}
