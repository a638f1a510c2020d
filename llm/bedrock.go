package llm

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/shellsage/shellsage/errors"
	"github.com/shellsage/shellsage/session"
)

// BedrockClient is the adapter for Anthropic models on AWS Bedrock. The
// wire payload is the anthropic messages format, so effort maps to the same
// thinking budget as the first-party Anthropic adapter.
type BedrockClient struct {
	client *bedrockruntime.Client
}

// bedrockKnownModels is the catalog returned by FetchModels. Listing
// foundation models needs the bedrock control-plane service and wider IAM
// permissions than invocation, so the invocable Anthropic ids are static.
var bedrockKnownModels = []Model{
	{ID: "anthropic.claude-3-5-haiku-20241022-v1:0", DisplayName: "Claude 3.5 Haiku"},
	{ID: "anthropic.claude-3-5-sonnet-20241022-v2:0", DisplayName: "Claude 3.5 Sonnet v2"},
	{ID: "anthropic.claude-3-7-sonnet-20250219-v1:0", DisplayName: "Claude 3.7 Sonnet"},
	{ID: "anthropic.claude-sonnet-4-20250514-v1:0", DisplayName: "Claude Sonnet 4"},
	{ID: "anthropic.claude-opus-4-20250514-v1:0", DisplayName: "Claude Opus 4"},
}

// NewBedrockClient creates a new BedrockClient.
// It requires AWS credentials to be configured in the environment.
func NewBedrockClient(ctx context.Context, baseURL string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindConfiguration, "failed to load AWS config")
	}

	var optFns []func(*bedrockruntime.Options)
	if baseURL != "" {
		optFns = append(optFns, func(o *bedrockruntime.Options) {
			o.BaseEndpoint = aws.String(baseURL)
		})
	}

	return &BedrockClient{client: bedrockruntime.NewFromConfig(cfg, optFns...)}, nil
}

func (b *BedrockClient) Name() string { return "bedrock" }

// FetchModels returns the known invocable Anthropic model ids.
func (b *BedrockClient) FetchModels(ctx context.Context) ([]Model, error) {
	models := make([]Model, len(bedrockKnownModels))
	copy(models, bedrockKnownModels)
	return models, nil
}

// Stream event payloads inside ResponseStreamMemberChunk bytes.
type bedrockStreamEvent struct {
	Type    string `json:"type"`
	Message *struct {
		Usage struct {
			InputTokens int64 `json:"input_tokens"`
		} `json:"usage"`
	} `json:"message"`
	Delta *struct {
		Type     string `json:"type"`
		Text     string `json:"text"`
		Thinking string `json:"thinking"`
	} `json:"delta"`
	Usage *struct {
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// ReasoningStream invokes the model with a response stream and decodes the
// anthropic event JSON carried in each chunk.
func (b *BedrockClient) ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error {
	anthropicMessages, systemPrompt := convertMessagesToBedrockFormat(req.Messages)

	requestBody, err := createBedrockRequest(anthropicMessages, systemPrompt, req.Effort)
	if err != nil {
		return errors.Wrapf(err, "failed to create Bedrock request")
	}

	out, err := b.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "Bedrock invocation cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "failed to invoke Bedrock model")
	}

	stream := out.GetStream()
	defer stream.Close()

	for rawEvent := range stream.Events() {
		chunk, ok := rawEvent.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}

		var event bedrockStreamEvent
		if err := json.Unmarshal(chunk.Value.Bytes, &event); err != nil {
			continue
		}

		switch event.Type {
		case "message_start":
			if event.Message != nil {
				emit(Event{Kind: EventUsage, Usage: Usage{
					InputTokens: event.Message.Usage.InputTokens,
				}})
			}
		case "content_block_delta":
			if event.Delta == nil {
				continue
			}
			switch event.Delta.Type {
			case "text_delta":
				emit(Event{Kind: EventAnswerDelta, Text: event.Delta.Text})
			case "thinking_delta":
				emit(Event{Kind: EventReasoningDelta, Text: event.Delta.Thinking})
			}
		case "message_delta":
			if event.Usage != nil {
				emit(Event{Kind: EventUsage, Usage: Usage{
					OutputTokens: event.Usage.OutputTokens,
				}})
			}
		case "error":
			if event.Error != nil {
				return errors.NewKind(errors.KindTransport, "Bedrock stream error: %s", event.Error.Message)
			}
		}
	}
	if err := stream.Err(); err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "Bedrock stream cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "Bedrock stream failed")
	}

	emit(Event{Kind: EventDone})
	return nil
}

// convertMessagesToBedrockFormat converts our internal message format to the anthropic wire format.
func convertMessagesToBedrockFormat(messages []session.Message) ([]map[string]interface{}, string) {
	var anthropicMessages []map[string]interface{}
	var systemPrompt string

	for _, msg := range messages {
		switch msg.Role {
		case "user":
			anthropicMessages = append(anthropicMessages, map[string]interface{}{
				"role": "user",
				"content": []map[string]interface{}{
					{
						"type": "text",
						"text": msg.Content,
					},
				},
			})
		case "assistant":
			if len(msg.ToolCalls) > 0 {
				var toolUses []map[string]interface{}
				for _, tc := range msg.ToolCalls {
					toolUses = append(toolUses, map[string]interface{}{
						"type":  "tool_use",
						"id":    tc.ToolCallID,
						"name":  tc.Name,
						"input": tc.Args,
					})
				}

				anthropicMessages = append(anthropicMessages, map[string]interface{}{
					"role":    "assistant",
					"content": toolUses,
				})
			} else if msg.Content != "" {
				anthropicMessages = append(anthropicMessages, map[string]interface{}{
					"role": "assistant",
					"content": []map[string]interface{}{
						{
							"type": "text",
							"text": msg.Content,
						},
					},
				})
			}
		case "tool":
			if len(msg.ToolCalls) > 0 {
				anthropicMessages = append(anthropicMessages, map[string]interface{}{
					"role": "user",
					"content": []map[string]interface{}{
						{
							"type":        "tool_result",
							"tool_use_id": msg.ToolCalls[0].ToolCallID,
							"content":     msg.Content,
						},
					},
				})
			}
		case "system":
			systemPrompt = msg.Content
		}
	}

	return anthropicMessages, systemPrompt
}

// createBedrockRequest creates the request body for Anthropic models on Bedrock.
func createBedrockRequest(messages []map[string]interface{}, systemPrompt string, effort Effort) ([]byte, error) {
	request := map[string]interface{}{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        effort.MaxTokens(defaultAnswerTokens),
		"messages":          messages,
	}

	if systemPrompt != "" {
		request["system"] = systemPrompt
	}

	// Effort off must leave the payload without a thinking field.
	if budget := effort.ThinkingBudget(); budget > 0 {
		request["thinking"] = map[string]interface{}{
			"type":          "enabled",
			"budget_tokens": budget,
		}
	}

	return json.Marshal(request)
}
