package llm

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/responses"
	"github.com/openai/openai-go/v2/shared"
	"github.com/shellsage/shellsage/errors"
	"github.com/shellsage/shellsage/session"
)

// OpenAIClient is the adapter for the OpenAI Responses API.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAIClient.
// It requires the OPENAI_API_KEY environment variable to be set.
func NewOpenAIClient(ctx context.Context, baseURL string) (*OpenAIClient, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, errors.NewKind(errors.KindConfiguration, "OPENAI_API_KEY environment variable not set")
	}

	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}
	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	// The v2 SDK uses functional options for configuration.
	c := openai.NewClient(options...)
	// The &c is required, dn not replace and just use c
	return &OpenAIClient{client: &c}, nil
}

func (o *OpenAIClient) Name() string { return "openai" }

// FetchModels lists the models available to the API key.
func (o *OpenAIClient) FetchModels(ctx context.Context) ([]Model, error) {
	var models []Model
	iter := o.client.Models.ListAutoPaging(ctx)
	for iter.Next() {
		m := iter.Current()
		models = append(models, Model{ID: m.ID, DisplayName: m.ID})
	}
	if err := iter.Err(); err != nil {
		return nil, errors.WrapKind(err, errors.KindTransport, "failed to list OpenAI models")
	}
	return models, nil
}

// ReasoningStream drives one streaming Responses API call. Reasoning summary
// deltas, answer text deltas and finished function_call items map onto
// canonical events; usage comes from the terminal response snapshot.
func (o *OpenAIClient) ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error {
	input, instructions := buildResponsesInput(req.Messages)

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(req.Model),
		Input: responses.ResponseNewParamsInputUnion{OfInputItemList: input},
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}
	// Effort off means the request carries no reasoning parameter at all.
	if req.Effort != EffortOff && req.Effort != "" {
		params.Reasoning = shared.ReasoningParam{
			Effort:  shared.ReasoningEffort(string(req.Effort)),
			Summary: shared.ReasoningSummaryAuto,
		}
	}

	stream := o.client.Responses.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "response.reasoning_summary_text.delta":
			if delta := event.Delta; delta != "" {
				emit(Event{Kind: EventReasoningDelta, Text: delta})
			}
		case "response.output_text.delta":
			if delta := event.Delta; delta != "" {
				emit(Event{Kind: EventAnswerDelta, Text: delta})
			}
		case "response.output_item.done":
			item := event.Item
			switch item.Type {
			case "function_call":
				callID := item.CallID
				if callID == "" {
					callID = item.ID
				}
				emit(Event{Kind: EventToolCall, ToolCall: session.ToolCall{
					ToolCallID: callID,
					Name:       item.Name,
					Args:       parseToolArgs(item.Arguments),
				}})
			case "message":
				// Finished message items carry url_citation annotations on
				// their output_text parts.
				for _, part := range item.Content {
					if part.Type != "output_text" {
						continue
					}
					for _, ann := range part.Annotations {
						if ann.Type != "url_citation" || ann.URL == "" {
							continue
						}
						emit(Event{Kind: EventAnnotation, Annotation: Annotation{
							Title: ann.Title,
							URL:   ann.URL,
						}})
					}
				}
			}
		case "response.completed":
			emit(Event{Kind: EventUsage, Usage: Usage{
				InputTokens:     event.Response.Usage.InputTokens,
				OutputTokens:    event.Response.Usage.OutputTokens,
				ReasoningTokens: event.Response.Usage.OutputTokensDetails.ReasoningTokens,
				TotalTokens:     event.Response.Usage.TotalTokens,
			}})
		case "response.incomplete":
			return errors.NewKind(errors.KindTransport, "OpenAI response incomplete: %s",
				event.Response.IncompleteDetails.Reason)
		case "response.failed":
			return errors.NewKind(errors.KindTransport, "OpenAI response failed: %s",
				event.Response.Error.Message)
		}
	}
	if err := stream.Err(); err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "OpenAI stream cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "OpenAI stream failed")
	}

	emit(Event{Kind: EventDone})
	return nil
}

// buildResponsesInput maps the transcript to Responses input items. System
// messages become the instructions field.
func buildResponsesInput(messages []session.Message) (responses.ResponseInputParam, string) {
	items := make(responses.ResponseInputParam, 0, len(messages))
	var instructions string

	for _, msg := range messages {
		switch msg.Role {
		case "system":
			instructions = msg.Content
		case "assistant":
			if msg.Content != "" {
				items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleAssistant))
			}
		case "tool":
			if len(msg.ToolCalls) > 0 {
				items = append(items, responses.ResponseInputItemParamOfFunctionCallOutput(msg.ToolCalls[0].ToolCallID, msg.Content))
			}
		default:
			items = append(items, responses.ResponseInputItemParamOfMessage(msg.Content, responses.EasyInputMessageRoleUser))
		}
	}
	return items, instructions
}

// parseToolArgs decodes a function-call argument payload. Providers
// occasionally ship malformed argument JSON; an empty map is preferable to
// losing the whole turn.
func parseToolArgs(raw string) map[string]interface{} {
	args := map[string]interface{}{}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return args
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return map[string]interface{}{}
	}
	return args
}
