package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/shellsage/shellsage/errors"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient is the adapter for the Google Gemini API. Streaming goes
// through the REST API directly because thought-flagged parts and thinking
// budgets are not modeled by the genai SDK; the SDK still backs the model
// catalog.
type GeminiClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewGeminiClient creates a new GeminiClient.
// It requires the GEMINI_API_KEY environment variable to be set.
func NewGeminiClient(ctx context.Context, baseURL string) (*GeminiClient, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return nil, errors.NewKind(errors.KindConfiguration, "GEMINI_API_KEY environment variable not set")
	}
	if baseURL == "" {
		baseURL = geminiBaseURL
	}
	return &GeminiClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 300 * time.Second},
	}, nil
}

func (g *GeminiClient) Name() string { return "gemini" }

type geminiPart struct {
	Text    string `json:"text,omitempty"`
	Thought bool   `json:"thought,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiThinkingConfig struct {
	ThinkingBudget  int64 `json:"thinkingBudget"`
	IncludeThoughts bool  `json:"includeThoughts"`
}

type geminiGenerationConfig struct {
	MaxOutputTokens int64                 `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *geminiThinkingConfig `json:"thinkingConfig,omitempty"`
}

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiUsageMetadata struct {
	PromptTokenCount     int64 `json:"promptTokenCount"`
	CandidatesTokenCount int64 `json:"candidatesTokenCount"`
	ThoughtsTokenCount   int64 `json:"thoughtsTokenCount"`
	TotalTokenCount      int64 `json:"totalTokenCount"`
}

type geminiStreamChunk struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata *geminiUsageMetadata `json:"usageMetadata"`
}

// ReasoningStream drives one streamGenerateContent call over SSE. Parts
// flagged as thoughts become reasoning deltas; everything else is answer
// text. Usage metadata arrives cumulatively and is re-emitted per chunk.
func (g *GeminiClient) ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error {
	body := geminiRequest{}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "system":
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
		case "assistant":
			body.Contents = append(body.Contents, geminiContent{
				Role:  "model",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		default:
			body.Contents = append(body.Contents, geminiContent{
				Role:  "user",
				Parts: []geminiPart{{Text: msg.Content}},
			})
		}
	}

	// Effort off sends no thinkingConfig at all.
	if budget := req.Effort.ThinkingBudget(); budget > 0 {
		body.GenerationConfig = &geminiGenerationConfig{
			MaxOutputTokens: req.Effort.MaxTokens(0),
			ThinkingConfig: &geminiThinkingConfig{
				ThinkingBudget:  budget,
				IncludeThoughts: true,
			},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal request")
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse", g.baseURL, req.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrapf(err, "failed to build request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(httpReq)
	if err != nil {
		if errors.IsAborted(err) {
			return errors.WrapKind(err, errors.KindAborted, "request cancelled")
		}
		return errors.WrapKind(err, errors.KindTransport, "Gemini request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return errors.NewKind(errors.KindTransport, "Gemini API error %d: %s",
			resp.StatusCode, strings.TrimSpace(string(data)))
	}

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
			var chunk geminiStreamChunk
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &chunk); err == nil {
				if len(chunk.Candidates) > 0 {
					for _, part := range chunk.Candidates[0].Content.Parts {
						if part.Text == "" {
							continue
						}
						if part.Thought {
							emit(Event{Kind: EventReasoningDelta, Text: part.Text})
						} else {
							emit(Event{Kind: EventAnswerDelta, Text: part.Text})
						}
					}
				}
				if um := chunk.UsageMetadata; um != nil {
					emit(Event{Kind: EventUsage, Usage: Usage{
						InputTokens:     um.PromptTokenCount,
						OutputTokens:    um.CandidatesTokenCount,
						ReasoningTokens: um.ThoughtsTokenCount,
						TotalTokens:     um.TotalTokenCount,
					}})
				}
			}
		}
		if eof {
			break
		}
	}

	emit(Event{Kind: EventDone})
	return nil
}

// FetchModels lists the available Gemini models through the genai SDK.
func (g *GeminiClient) FetchModels(ctx context.Context) ([]Model, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return nil, errors.WrapKind(err, errors.KindTransport, "failed to create genai client")
	}
	defer client.Close()

	var models []Model
	iter := client.ListModels(ctx)
	for {
		m, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.WrapKind(err, errors.KindTransport, "failed to list Gemini models")
		}
		// Model names come back as "models/<id>".
		id := strings.TrimPrefix(m.Name, "models/")
		models = append(models, Model{ID: id, DisplayName: m.DisplayName})
	}
	return models, nil
}
