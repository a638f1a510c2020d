package llm

import (
	"encoding/json"
	"testing"

	"github.com/shellsage/shellsage/session"
)

func TestConvertMessagesToBedrockFormat(t *testing.T) {
	messages := []session.Message{
		{Role: "system", Content: "be brief"},
		{Role: "user", Content: "how do I list files?"},
		{Role: "assistant", Content: "use ls"},
		{Role: "user", Content: "hidden ones too"},
	}

	converted, systemPrompt := convertMessagesToBedrockFormat(messages)

	if systemPrompt != "be brief" {
		t.Errorf("Expected system prompt extracted, got %q", systemPrompt)
	}
	if len(converted) != 3 {
		t.Fatalf("Expected 3 messages after extracting system, got %d", len(converted))
	}
	if converted[0]["role"] != "user" || converted[1]["role"] != "assistant" {
		t.Errorf("Unexpected role order: %v, %v", converted[0]["role"], converted[1]["role"])
	}

	content, ok := converted[1]["content"].([]map[string]interface{})
	if !ok || len(content) != 1 {
		t.Fatalf("Unexpected assistant content shape: %v", converted[1]["content"])
	}
	if content[0]["type"] != "text" || content[0]["text"] != "use ls" {
		t.Errorf("Unexpected assistant content: %v", content[0])
	}
}

func TestConvertMessagesToBedrockFormatToolMessages(t *testing.T) {
	messages := []session.Message{
		{Role: "assistant", ToolCalls: []session.ToolCall{
			{ToolCallID: "c1", Name: "web_search", Args: map[string]interface{}{"query": "x"}},
		}},
		{Role: "tool", Content: "result text", ToolCalls: []session.ToolCall{{ToolCallID: "c1"}}},
	}

	converted, _ := convertMessagesToBedrockFormat(messages)
	if len(converted) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(converted))
	}

	uses, ok := converted[0]["content"].([]map[string]interface{})
	if !ok || len(uses) != 1 || uses[0]["type"] != "tool_use" || uses[0]["name"] != "web_search" {
		t.Errorf("Tool calls not converted to tool_use blocks: %v", converted[0]["content"])
	}

	results, ok := converted[1]["content"].([]map[string]interface{})
	if !ok || len(results) != 1 {
		t.Fatalf("Unexpected tool result shape: %v", converted[1]["content"])
	}
	if converted[1]["role"] != "user" {
		t.Errorf("Tool results must ride on a user message, got %v", converted[1]["role"])
	}
	if results[0]["type"] != "tool_result" || results[0]["tool_use_id"] != "c1" {
		t.Errorf("Unexpected tool_result block: %v", results[0])
	}
}

func TestCreateBedrockRequestThinking(t *testing.T) {
	messages := []map[string]interface{}{
		{"role": "user", "content": []map[string]interface{}{{"type": "text", "text": "q"}}},
	}

	body, err := createBedrockRequest(messages, "sys", EffortLow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		t.Fatalf("Request is not valid JSON: %v", err)
	}

	if request["anthropic_version"] != "bedrock-2023-05-31" {
		t.Errorf("Unexpected anthropic_version: %v", request["anthropic_version"])
	}
	if request["system"] != "sys" {
		t.Errorf("Expected system prompt in request, got %v", request["system"])
	}
	if got := request["max_tokens"].(float64); got != 11000 {
		t.Errorf("Expected max_tokens 11000 for low effort, got %v", got)
	}

	thinking, ok := request["thinking"].(map[string]interface{})
	if !ok {
		t.Fatalf("Expected thinking field for low effort, got %v", request["thinking"])
	}
	if thinking["type"] != "enabled" || thinking["budget_tokens"].(float64) != 5000 {
		t.Errorf("Unexpected thinking config: %v", thinking)
	}
}

func TestCreateBedrockRequestEffortOff(t *testing.T) {
	body, err := createBedrockRequest(nil, "", EffortOff)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var request map[string]interface{}
	if err := json.Unmarshal(body, &request); err != nil {
		t.Fatalf("Request is not valid JSON: %v", err)
	}

	if _, present := request["thinking"]; present {
		t.Error("Effort off must not include a thinking field")
	}
	if _, present := request["system"]; present {
		t.Error("Empty system prompt must not produce a system field")
	}
	if got := request["max_tokens"].(float64); got != float64(defaultAnswerTokens) {
		t.Errorf("Expected fallback max_tokens, got %v", got)
	}
}

func TestBedrockKnownModels(t *testing.T) {
	b := &BedrockClient{}
	models, err := b.FetchModels(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(models) == 0 {
		t.Fatal("Expected a non-empty static catalog")
	}
	for _, m := range models {
		if m.ID == "" || m.DisplayName == "" {
			t.Errorf("Catalog entry missing id or display name: %+v", m)
		}
	}
}
