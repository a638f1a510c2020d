package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/shellsage/shellsage/errors"
	"github.com/shellsage/shellsage/session"
)

// defaultAnswerTokens is the output ceiling when thinking is off.
const defaultAnswerTokens = 4096

// AnthropicClient is the adapter for the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
}

// NewAnthropicClient creates a new AnthropicClient.
// It requires the ANTHROPIC_API_KEY environment variable to be set.
func NewAnthropicClient(ctx context.Context, baseURL string) (*AnthropicClient, error) {
	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		return nil, errors.NewKind(errors.KindConfiguration, "ANTHROPIC_API_KEY environment variable not set")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)

	return &AnthropicClient{client: &client}, nil
}

func (a *AnthropicClient) Name() string { return "anthropic" }

// FetchModels lists the models available to the API key.
func (a *AnthropicClient) FetchModels(ctx context.Context) ([]Model, error) {
	var models []Model
	iter := a.client.Models.ListAutoPaging(ctx, anthropic.ModelListParams{})
	for iter.Next() {
		m := iter.Current()
		models = append(models, Model{ID: string(m.ID), DisplayName: m.DisplayName})
	}
	if err := iter.Err(); err != nil {
		return nil, errors.WrapKind(err, errors.KindTransport, "failed to list Anthropic models")
	}
	return models, nil
}

// ReasoningStream drives one streaming Messages call, emitting canonical
// events for thinking deltas, text deltas, completed tool_use blocks and
// usage snapshots.
func (a *AnthropicClient) ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error {
	anthropicMessages, systemPrompt := convertMessagesToAnthropicMessages(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: req.Effort.MaxTokens(defaultAnswerTokens),
		Messages:  anthropicMessages,
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	// Thinking is only attached when a budget is requested. Effort off must
	// produce a request with no thinking parameter at all.
	if budget := req.Effort.ThinkingBudget(); budget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	}

	stream := a.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	msg := anthropic.Message{}
	for stream.Next() {
		event := stream.Current()
		if err := msg.Accumulate(event); err != nil {
			// Malformed accumulation state is a provider glitch; keep
			// consuming deltas rather than killing the stream.
			continue
		}

		switch ev := event.AsAny().(type) {
		case anthropic.MessageStartEvent:
			emit(Event{Kind: EventUsage, Usage: Usage{
				InputTokens: ev.Message.Usage.InputTokens,
			}})
		case anthropic.ContentBlockDeltaEvent:
			switch delta := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				emit(Event{Kind: EventAnswerDelta, Text: delta.Text})
			case anthropic.ThinkingDelta:
				emit(Event{Kind: EventReasoningDelta, Text: delta.Thinking})
			}
		case anthropic.ContentBlockStopEvent:
			if int(ev.Index) < len(msg.Content) {
				if block, ok := msg.Content[ev.Index].AsAny().(anthropic.ToolUseBlock); ok {
					emit(Event{Kind: EventToolCall, ToolCall: toolCallFromBlock(block)})
				}
			}
		case anthropic.MessageDeltaEvent:
			emit(Event{Kind: EventUsage, Usage: Usage{
				OutputTokens: ev.Usage.OutputTokens,
			}})
		}
	}
	if err := stream.Err(); err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "Anthropic stream cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "Anthropic stream failed")
	}

	emit(Event{Kind: EventDone})
	return nil
}

func toolCallFromBlock(block anthropic.ToolUseBlock) session.ToolCall {
	var args map[string]interface{}
	if err := json.Unmarshal(block.Input, &args); err != nil {
		args = map[string]interface{}{}
	}
	return session.ToolCall{
		ToolCallID: block.ID,
		Name:       block.Name,
		Args:       args,
	}
}

// convertMessagesToAnthropicMessages converts our internal message format to Anthropic's format.
func convertMessagesToAnthropicMessages(messages []session.Message) ([]anthropic.MessageParam, string) {
	var anthropicMessages []anthropic.MessageParam
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "user":
			anthropicMessages = append(anthropicMessages, anthropic.NewUserMessage(
				anthropic.NewTextBlock(msg.Content),
			))
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				var contentItems []anthropic.ContentBlockParamUnion
				for _, tc := range msg.ToolCalls {
					argsBytes, err := json.Marshal(tc.Args)
					if err != nil {
						fmt.Printf("Warning: could not marshal tool call arguments for %s: %v. Skipping.\n", tc.Name, err)
						continue
					}

					contentItems = append(contentItems, anthropic.ContentBlockParamUnion{
						OfToolUse: &anthropic.ToolUseBlockParam{
							Type:  "tool_use",
							ID:    tc.ToolCallID,
							Name:  tc.Name,
							Input: argsBytes,
						}})
				}

				anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
					Role:    anthropic.MessageParamRoleAssistant,
					Content: contentItems,
				})
			} else if msg.Content != "" {
				anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
					Role: anthropic.MessageParamRoleAssistant,
					Content: []anthropic.ContentBlockParamUnion{{
						OfText: &anthropic.TextBlockParam{
							Text: msg.Content,
						},
					}},
				})
			}
		case "tool":
			if len(msg.ToolCalls) > 0 {
				anthropicMessages = append(anthropicMessages, anthropic.MessageParam{
					Role: anthropic.MessageParamRoleUser,
					Content: []anthropic.ContentBlockParamUnion{{
						OfToolResult: &anthropic.ToolResultBlockParam{
							ToolUseID: msg.ToolCalls[0].ToolCallID,
							Content: []anthropic.ToolResultBlockParamContentUnion{{
								OfText: &anthropic.TextBlockParam{
									Text: msg.Content,
								},
							}},
						},
					},
					}})
			}
		case "system":
			// The last system message wins as the system prompt.
			systemPrompt = msg.Content
		}
	}

	return anthropicMessages, systemPrompt
}
