package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/shellsage/shellsage/errors"
)

// CustomClient is the adapter for arbitrary OpenAI-compatible endpoints,
// typically local inference servers. The protocol surface such servers
// actually implement varies, so this adapter is deliberately tolerant:
// streaming when the server streams, a JSON fallback when it does not, and
// three accepted shapes for the model catalog.
type CustomClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewCustomClient creates a new CustomClient for the given base URL. An API
// key is optional and read from CUSTOM_LLM_API_KEY.
func NewCustomClient(ctx context.Context, baseURL string) (*CustomClient, error) {
	if baseURL == "" {
		return nil, errors.NewKind(errors.KindConfiguration, "custom provider requires a base_url")
	}
	return &CustomClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     os.Getenv("CUSTOM_LLM_API_KEY"),
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

func (c *CustomClient) Name() string { return "custom" }

type customChatRequest struct {
	Model           string        `json:"model"`
	Messages        []chatMessage `json:"messages"`
	Stream          bool          `json:"stream"`
	Tools           []chatTool    `json:"tools,omitempty"`
	ToolChoice      string        `json:"tool_choice,omitempty"`
	ReasoningEffort string        `json:"reasoning_effort,omitempty"`
}

type customChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string         `json:"content"`
			ToolCalls []chatToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	OutputText string     `json:"output_text"`
	Usage      *chatUsage `json:"usage"`
}

type customChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// ReasoningStream requests a streaming completion. Servers that ignore
// stream=true and answer with a plain JSON body are handled by the
// non-streaming fallback, which reads choices[0].message.content and then
// output_text.
func (c *CustomClient) ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error {
	body := customChatRequest{
		Model:    req.Model,
		Messages: convertMessagesToChat(req.Messages),
		Stream:   true,
	}
	// Reasoning effort is only attached for models known to accept it;
	// everything else gets a plain request rather than a 400.
	if req.Effort != EffortOff && req.Effort != "" && ModelSupportsReasoning(req.Model) {
		body.ReasoningEffort = string(req.Effort)
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "request cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "custom endpoint request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return errors.NewKind(errors.KindTransport, "custom endpoint returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if !strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return c.consumeJSONBody(resp.Body, emit)
	}
	return c.consumeSSE(ctx, resp.Body, emit)
}

func (c *CustomClient) consumeSSE(ctx context.Context, body io.Reader, emit EmitFunc) error {
	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			if errors.IsAborted(err) || ctx.Err() != nil {
				return errors.WrapKind(err, errors.KindAborted, "stream cancelled")
			}
			return errors.WrapKind(err, errors.KindTransport, "stream read failed")
		}
		// A stream that ends without a trailing newline still delivers its
		// last line here.
		eof := err == io.EOF

		line = strings.TrimSpace(line)
		if line != "" && strings.HasPrefix(line, "data: ") {
			payload := strings.TrimPrefix(line, "data: ")
			if payload == "[DONE]" {
				break
			}
			var chunk customChunk
			if err := json.Unmarshal([]byte(payload), &chunk); err == nil {
				if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
					emit(Event{Kind: EventAnswerDelta, Text: chunk.Choices[0].Delta.Content})
				}
				if chunk.Usage != nil {
					emit(Event{Kind: EventUsage, Usage: chunk.Usage.toUsage()})
				}
			}
			// Malformed chunks are dropped, not fatal.
		}
		if eof {
			break
		}
	}

	emit(Event{Kind: EventDone})
	return nil
}

func (c *CustomClient) consumeJSONBody(body io.Reader, emit EmitFunc) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return errors.WrapKind(err, errors.KindTransport, "failed to read response body")
	}

	var resp customChatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return errors.WrapKind(err, errors.KindParse, "failed to parse custom endpoint response")
	}

	text := resp.OutputText
	if len(resp.Choices) > 0 && resp.Choices[0].Message.Content != "" {
		text = resp.Choices[0].Message.Content
	}
	if text != "" {
		emit(Event{Kind: EventAnswerDelta, Text: text})
	}
	if resp.Usage != nil {
		emit(Event{Kind: EventUsage, Usage: resp.Usage.toUsage()})
	}
	emit(Event{Kind: EventDone})
	return nil
}

// ChatWithTools sends one non-streaming tool-enabled request. The search
// loop depends on this entry point.
func (c *CustomClient) ChatWithTools(ctx context.Context, req Request, tools []ToolDefinition, toolChoice string) (*ToolChatResponse, error) {
	body := customChatRequest{
		Model:      req.Model,
		Messages:   convertMessagesToChat(req.Messages),
		Stream:     false,
		Tools:      convertToolDefsToChat(tools),
		ToolChoice: toolChoice,
	}

	resp, err := c.post(ctx, "/chat/completions", body)
	if err != nil {
		if errors.IsAborted(err) {
			return nil, errors.WrapKind(err, errors.KindAborted, "request cancelled")
		}
		return nil, errors.WrapKind(err, errors.KindTransport, "custom endpoint request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindTransport, "failed to read response body")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewKind(errors.KindTransport, "custom endpoint returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed customChatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, errors.WrapKind(err, errors.KindParse, "failed to parse custom endpoint response")
	}

	out := &ToolChatResponse{Content: parsed.OutputText}
	if len(parsed.Choices) > 0 {
		msg := parsed.Choices[0].Message
		if msg.Content != "" {
			out.Content = msg.Content
		}
		out.ToolCalls = convertChatToolCalls(msg.ToolCalls)
	}
	if parsed.Usage != nil {
		out.Usage = parsed.Usage.toUsage()
	}
	return out, nil
}

// FetchModels lists the endpoint's model catalog. Local servers disagree on
// the response shape; three are accepted: {models:[...]}, {data:[...]} and
// {data:{models:[...]}}, with string or object ({id} or {name}) elements.
func (c *CustomClient) FetchModels(ctx context.Context) ([]Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build models request")
	}
	c.setHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindTransport, "failed to fetch model catalog")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindTransport, "failed to read model catalog")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.NewKind(errors.KindTransport, "model catalog request returned %d", resp.StatusCode)
	}

	return parseModelCatalog(data)
}

func parseModelCatalog(data []byte) ([]Model, error) {
	var envelope struct {
		Models json.RawMessage `json:"models"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, errors.WrapKind(err, errors.KindParse, "failed to parse model catalog")
	}

	list := envelope.Models
	if list == nil && envelope.Data != nil {
		list = envelope.Data
		// {data:{models:[...]}}
		if bytes.HasPrefix(bytes.TrimSpace(envelope.Data), []byte("{")) {
			var nested struct {
				Models json.RawMessage `json:"models"`
			}
			if err := json.Unmarshal(envelope.Data, &nested); err == nil && nested.Models != nil {
				list = nested.Models
			}
		}
	}
	if list == nil {
		return nil, errors.NewKind(errors.KindParse, "model catalog has no models or data field")
	}

	var entries []json.RawMessage
	if err := json.Unmarshal(list, &entries); err != nil {
		return nil, errors.WrapKind(err, errors.KindParse, "model catalog list is not an array")
	}

	var models []Model
	for _, entry := range entries {
		var id string
		if err := json.Unmarshal(entry, &id); err == nil {
			models = append(models, Model{ID: id, DisplayName: id})
			continue
		}
		var obj struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := json.Unmarshal(entry, &obj); err != nil {
			continue
		}
		if obj.ID == "" {
			obj.ID = obj.Name
		}
		if obj.ID == "" {
			continue
		}
		name := obj.Name
		if name == "" {
			name = obj.ID
		}
		models = append(models, Model{ID: obj.ID, DisplayName: name})
	}
	return models, nil
}

func (c *CustomClient) post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build request")
	}
	c.setHeaders(httpReq)
	return c.httpClient.Do(httpReq)
}

func (c *CustomClient) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
