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

const openRouterBaseURL = "https://openrouter.ai/api/v1"

// OpenRouterClient is the adapter for the OpenRouter chat-completions API.
// OpenRouter extends the OpenAI wire format with reasoning blocks
// (reasoning_details) that no official SDK models, so the protocol is spoken
// directly.
type OpenRouterClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewOpenRouterClient creates a new OpenRouterClient.
// It requires the OPENROUTER_API_KEY environment variable to be set.
func NewOpenRouterClient(ctx context.Context, baseURL string) (*OpenRouterClient, error) {
	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		return nil, errors.NewKind(errors.KindConfiguration, "OPENROUTER_API_KEY environment variable not set")
	}
	if baseURL == "" {
		baseURL = openRouterBaseURL
	}
	return &OpenRouterClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

func (o *OpenRouterClient) Name() string { return "openrouter" }

type openRouterReasoning struct {
	Effort  string `json:"effort,omitempty"`
	Exclude bool   `json:"exclude,omitempty"`
}

type openRouterRequest struct {
	Model     string               `json:"model"`
	Messages  []chatMessage        `json:"messages"`
	Stream    bool                 `json:"stream"`
	Reasoning *openRouterReasoning `json:"reasoning,omitempty"`
}

type openRouterReasoningDetail struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Text    string `json:"text"`
	Summary string `json:"summary"`
}

type openRouterChunk struct {
	Choices []struct {
		Delta struct {
			Content          string                      `json:"content"`
			Reasoning        string                      `json:"reasoning"`
			ReasoningDetails []openRouterReasoningDetail `json:"reasoning_details"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *chatUsage `json:"usage"`
}

// ReasoningStream drives one streaming chat-completions call. Reasoning
// arrives either as structured reasoning_details blocks or the legacy
// delta.reasoning string; the legacy field only counts when no details are
// present in the same chunk, and detail blocks are deduplicated by the first
// occurrence of their id within this call.
func (o *OpenRouterClient) ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error {
	body := openRouterRequest{
		Model:    req.Model,
		Messages: convertMessagesToChat(req.Messages),
		Stream:   true,
	}
	if req.Effort == EffortOff {
		body.Reasoning = &openRouterReasoning{Exclude: true}
	} else if req.Effort != "" {
		body.Reasoning = &openRouterReasoning{Effort: string(req.Effort)}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal request")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "request cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "OpenRouter request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return errors.NewKind(errors.KindTransport, "OpenRouter returned %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

	// Detail ids already emitted during this call. OpenRouter repeats
	// blocks across chunks; only the first occurrence streams out.
	seenDetails := make(map[string]bool)

	reader := bufio.NewReader(resp.Body)
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
			o.emitChunk([]byte(payload), seenDetails, emit)
		}
		if eof {
			break
		}
	}

	emit(Event{Kind: EventDone})
	return nil
}

// emitChunk decodes one data payload. Malformed chunks are dropped, not
// fatal.
func (o *OpenRouterClient) emitChunk(payload []byte, seenDetails map[string]bool, emit EmitFunc) {
	var chunk openRouterChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return
	}

	if len(chunk.Choices) > 0 {
		delta := chunk.Choices[0].Delta
		if len(delta.ReasoningDetails) > 0 {
			for _, detail := range delta.ReasoningDetails {
				if detail.ID != "" {
					if seenDetails[detail.ID] {
						continue
					}
					seenDetails[detail.ID] = true
				}
				text := detail.Text
				if text == "" {
					text = detail.Summary
				}
				if text != "" {
					emit(Event{Kind: EventReasoningDelta, Text: text})
				}
			}
		} else if delta.Reasoning != "" {
			emit(Event{Kind: EventReasoningDelta, Text: delta.Reasoning})
		}
		if delta.Content != "" {
			emit(Event{Kind: EventAnswerDelta, Text: delta.Content})
		}
	}
	if chunk.Usage != nil {
		emit(Event{Kind: EventUsage, Usage: chunk.Usage.toUsage()})
	}
}

// FetchModels lists the OpenRouter model catalog.
func (o *OpenRouterClient) FetchModels(ctx context.Context) ([]Model, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/models", nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to build models request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(httpReq)
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

	var catalog struct {
		Data []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, errors.WrapKind(err, errors.KindParse, "failed to parse model catalog")
	}

	models := make([]Model, 0, len(catalog.Data))
	for _, m := range catalog.Data {
		name := m.Name
		if name == "" {
			name = m.ID
		}
		models = append(models, Model{ID: m.ID, DisplayName: name})
	}
	return models, nil
}
