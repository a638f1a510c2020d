package llm

import (
	"encoding/json"
	"fmt"

	"github.com/shellsage/shellsage/session"
)

// Wire types for the OpenAI-compatible chat-completions protocol, used by
// the hand-rolled adapters (openrouter, custom).

type chatMessage struct {
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	ToolCalls  []chatToolCall `json:"tool_calls,omitempty"`
	ToolCallID string         `json:"tool_call_id,omitempty"`
}

type chatToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function chatFunction `json:"function"`
}

type chatFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type chatTool struct {
	Type     string          `json:"type"`
	Function chatToolDefJSON `json:"function"`
}

type chatToolDefJSON struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type chatUsage struct {
	PromptTokens            int64 `json:"prompt_tokens"`
	CompletionTokens        int64 `json:"completion_tokens"`
	TotalTokens             int64 `json:"total_tokens"`
	CompletionTokensDetails struct {
		ReasoningTokens int64 `json:"reasoning_tokens"`
	} `json:"completion_tokens_details"`
}

func (u chatUsage) toUsage() Usage {
	return Usage{
		InputTokens:     u.PromptTokens,
		OutputTokens:    u.CompletionTokens,
		ReasoningTokens: u.CompletionTokensDetails.ReasoningTokens,
		TotalTokens:     u.TotalTokens,
	}
}

// convertMessagesToChat maps the transcript to chat-completions messages.
func convertMessagesToChat(messages []session.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, msg := range messages {
		cm := chatMessage{Role: msg.Role, Content: msg.Content}
		switch msg.Role {
		case "assistant":
			for _, tc := range msg.ToolCalls {
				argsBytes, err := json.Marshal(tc.Args)
				if err != nil {
					fmt.Printf("Warning: could not marshal tool call arguments for %s: %v. Skipping.\n", tc.Name, err)
					continue
				}
				cm.ToolCalls = append(cm.ToolCalls, chatToolCall{
					ID:   tc.ToolCallID,
					Type: "function",
					Function: chatFunction{
						Name:      tc.Name,
						Arguments: string(argsBytes),
					},
				})
			}
		case "tool":
			if len(msg.ToolCalls) > 0 {
				cm.ToolCallID = msg.ToolCalls[0].ToolCallID
			}
		}
		out = append(out, cm)
	}
	return out
}

func convertToolDefsToChat(defs []ToolDefinition) []chatTool {
	if len(defs) == 0 {
		return nil
	}
	out := make([]chatTool, 0, len(defs))
	for _, def := range defs {
		params := def.Parameters
		if params == nil {
			params = map[string]interface{}{
				"type":       "object",
				"properties": map[string]interface{}{},
			}
		}
		out = append(out, chatTool{
			Type: "function",
			Function: chatToolDefJSON{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  params,
			},
		})
	}
	return out
}

func convertChatToolCalls(calls []chatToolCall) []session.ToolCall {
	var out []session.ToolCall
	for i, tc := range calls {
		id := tc.ID
		if id == "" {
			id = fmt.Sprintf("call_%d_%s", i, tc.Function.Name)
		}
		out = append(out, session.ToolCall{
			ToolCallID: id,
			Name:       tc.Function.Name,
			Args:       parseToolArgs(tc.Function.Arguments),
		})
	}
	return out
}
