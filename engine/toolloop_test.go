package engine

import (
	"context"
	"strings"
	"testing"

	"github.com/shellsage/shellsage/llm"
	"github.com/shellsage/shellsage/session"
	"github.com/shellsage/shellsage/tools"
)

// fakeToolCaller scripts a sequence of ChatWithTools responses and records
// the requests it saw.
type fakeToolCaller struct {
	fakeClient
	responses []*llm.ToolChatResponse
	calls     []toolCallRecord
}

type toolCallRecord struct {
	messages   []session.Message
	toolChoice string
	hasTools   bool
}

func (f *fakeToolCaller) ChatWithTools(ctx context.Context, req llm.Request, tools []llm.ToolDefinition, toolChoice string) (*llm.ToolChatResponse, error) {
	f.calls = append(f.calls, toolCallRecord{
		messages:   append([]session.Message{}, req.Messages...),
		toolChoice: toolChoice,
		hasTools:   len(tools) > 0,
	})
	if len(f.responses) == 0 {
		return &llm.ToolChatResponse{}, nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

// fakeSearchTool counts executions and returns a canned snippet.
type fakeSearchTool struct {
	executions []string
	output     string
	err        error
}

func (f *fakeSearchTool) Name() string        { return "web_search" }
func (f *fakeSearchTool) Description() string { return "search the web" }

func (f *fakeSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object"}
}

func (f *fakeSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	f.executions = append(f.executions, query)
	if f.err != nil {
		return "", f.err
	}
	return f.output, nil
}

func searchCall(query string) session.ToolCall {
	return session.ToolCall{
		ToolCallID: "c-" + query,
		Name:       "web_search",
		Args:       map[string]interface{}{"query": query},
	}
}

func runLoop(t *testing.T, caller *fakeToolCaller, tool *fakeSearchTool, maxRounds int) *Result {
	t.Helper()
	registry := tools.NewToolRegistry()
	registry.Register(tool)
	result, err := Stream(context.Background(), Options{
		Client:          caller,
		Model:           "m",
		Messages:        []session.Message{{Role: "user", Content: "q"}},
		Search:          true,
		MaxSearchRounds: maxRounds,
		Tools:           registry,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return result
}

func TestSearchLoopAnswersAfterOneRound(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{searchCall("go generics")}},
		{Content: "Generics arrived in Go 1.18."},
	}}
	tool := &fakeSearchTool{output: `[{"title":"Generics"}]`}

	result := runLoop(t, caller, tool, 3)

	if result.Answer != "Generics arrived in Go 1.18." {
		t.Errorf("Unexpected answer: %q", result.Answer)
	}
	if len(tool.executions) != 1 || tool.executions[0] != "go generics" {
		t.Errorf("Unexpected tool executions: %v", tool.executions)
	}
	if len(caller.calls) != 2 {
		t.Fatalf("Expected 2 rounds, got %d", len(caller.calls))
	}

	// The second round must carry the assistant tool call and the tool
	// result in the transcript.
	second := caller.calls[1].messages
	if second[len(second)-2].Role != "assistant" || second[len(second)-1].Role != "tool" {
		t.Errorf("Transcript missing tool exchange: %+v", second)
	}
}

func TestSearchLoopRoundBoundAndForcedFinal(t *testing.T) {
	// The model keeps asking for searches; after maxRounds the loop must
	// force a final answer with no tools offered.
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{searchCall("a")}},
		{ToolCalls: []session.ToolCall{searchCall("b")}},
		{Content: "final answer"},
	}}
	tool := &fakeSearchTool{output: "snippet"}

	result := runLoop(t, caller, tool, 2)

	if result.Answer != "final answer" {
		t.Errorf("Unexpected answer: %q", result.Answer)
	}
	if len(caller.calls) != 3 {
		t.Fatalf("Expected 2 rounds plus forced final, got %d", len(caller.calls))
	}

	final := caller.calls[2]
	if final.hasTools || final.toolChoice != "none" {
		t.Errorf("Forced final must offer no tools: %+v", final)
	}
	last := final.messages[len(final.messages)-1]
	if last.Role != "user" || !strings.Contains(last.Content, "Do not call any more tools") {
		t.Errorf("Forced final missing stop hint: %+v", last)
	}
}

func TestSearchLoopDedupsRepeatedQueries(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{searchCall("same"), searchCall("same")}},
		{ToolCalls: []session.ToolCall{searchCall("same")}},
		{Content: "done"},
	}}
	tool := &fakeSearchTool{output: "snippet"}

	runLoop(t, caller, tool, 3)

	if len(tool.executions) != 1 {
		t.Errorf("Expected repeated query executed once, got %v", tool.executions)
	}
}

// A tool name the request never advertised must not execute anything; the
// model gets an error-tagged result instead.
func TestSearchLoopRejectsUnknownToolName(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{{
			ToolCallID: "c1",
			Name:       "read_file",
			Args:       map[string]interface{}{"query": "x"},
		}}},
		{Content: "answered"},
	}}
	tool := &fakeSearchTool{output: "snippet"}

	result := runLoop(t, caller, tool, 3)

	if len(tool.executions) != 0 {
		t.Errorf("Unknown tool name must not reach the search tool: %v", tool.executions)
	}
	if result.Answer != "answered" {
		t.Errorf("Turn did not continue past the rejected call: %q", result.Answer)
	}
	second := caller.calls[1].messages
	toolMsg := second[len(second)-1]
	if toolMsg.Role != "tool" || !strings.Contains(toolMsg.Content, "unknown tool") {
		t.Errorf("Expected error-tagged result for unknown tool, got %+v", toolMsg)
	}
}

func TestSearchLoopToolErrorFedBack(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{searchCall("x")}},
		{Content: "answered anyway"},
	}}
	tool := &fakeSearchTool{err: errFake}

	result := runLoop(t, caller, tool, 3)

	if result.Answer != "answered anyway" {
		t.Errorf("Tool failure ended the turn: %q", result.Answer)
	}
	second := caller.calls[1].messages
	toolMsg := second[len(second)-1]
	if toolMsg.Role != "tool" || !strings.Contains(toolMsg.Content, "error") {
		t.Errorf("Expected error-tagged tool result, got %+v", toolMsg)
	}
}

func TestSearchLoopSynthesizedFallback(t *testing.T) {
	// The model searches, then both the empty round and the forced final
	// produce no content. The answer must come from the snippets.
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{searchCall("x")}},
		{},
		{},
	}}
	tool := &fakeSearchTool{output: "useful snippet"}

	result := runLoop(t, caller, tool, 3)

	if strings.TrimSpace(result.Answer) == "" {
		t.Fatal("Answer must never be empty")
	}
	if !strings.Contains(result.Answer, "useful snippet") {
		t.Errorf("Synthesized answer missing snippets: %q", result.Answer)
	}
}

func TestSearchLoopNeverEmptyWithoutSnippets(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{{}, {}}}
	tool := &fakeSearchTool{}

	result := runLoop(t, caller, tool, 3)

	if strings.TrimSpace(result.Answer) == "" {
		t.Fatal("Answer must never be empty")
	}
}

func TestSearchLoopExtractsCommandsFromFinalAnswer(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{Content: "Check disk with <command>df -h</command> first."},
	}}
	tool := &fakeSearchTool{}

	result := runLoop(t, caller, tool, 3)

	if len(result.Commands) != 1 || result.Commands[0] != "df -h" {
		t.Errorf("Commands not extracted from tool-loop answer: %v", result.Commands)
	}
	if strings.Contains(result.Answer, "<command>") {
		t.Errorf("Tag leaked into answer: %q", result.Answer)
	}
}

func TestSearchLoopUsageAccumulates(t *testing.T) {
	caller := &fakeToolCaller{responses: []*llm.ToolChatResponse{
		{ToolCalls: []session.ToolCall{searchCall("x")}, Usage: llm.Usage{InputTokens: 10}},
		{Content: "done", Usage: llm.Usage{InputTokens: 30, OutputTokens: 5}},
	}}
	tool := &fakeSearchTool{output: "s"}

	result := runLoop(t, caller, tool, 3)

	if result.Usage.InputTokens != 30 || result.Usage.OutputTokens != 5 {
		t.Errorf("Unexpected accumulated usage: %+v", result.Usage)
	}
}
