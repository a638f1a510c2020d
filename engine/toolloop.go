package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/shellsage/shellsage/errors"
	"github.com/shellsage/shellsage/llm"
	"github.com/shellsage/shellsage/session"
)

// defaultSearchRounds bounds how many tool rounds a turn may spend before
// the model is forced to answer.
const defaultSearchRounds = 3

const stopSearchHint = "IMPORTANT: Do not call any more tools. Answer the question now using the search results you already have."

const emptyAnswerFallback = "I could not find a definitive answer."

// runSearchLoop drives the bounded tool-calling protocol: up to
// MaxSearchRounds rounds of web_search calls, then one forced no-tool
// request, then a synthesized answer from collected snippets. The returned
// answer is never empty.
func runSearchLoop(ctx context.Context, opts Options, caller llm.ToolCaller) (*Result, error) {
	maxRounds := opts.MaxSearchRounds
	if maxRounds <= 0 {
		maxRounds = defaultSearchRounds
	}

	messages := append([]session.Message{}, opts.Messages...)
	var toolDefs []llm.ToolDefinition
	for _, tool := range opts.Tools.All() {
		toolDefs = append(toolDefs, llm.ToolDefinition{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}

	collector := newCollector(opts.Callbacks)

	// Results already fetched during this turn, keyed by tool and query.
	// Models sometimes repeat a search; the cached result is replayed
	// instead.
	executed := make(map[string]string)
	var snippets []string

	for round := 0; round < maxRounds; round++ {
		resp, err := caller.ChatWithTools(ctx, llm.Request{
			Model:    opts.Model,
			Messages: messages,
			Effort:   opts.Effort,
		}, toolDefs, "auto")
		if err != nil {
			if errors.IsAborted(err) {
				return collector.finish(true), nil
			}
			return nil, err
		}
		collector.usage.Merge(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			if strings.TrimSpace(resp.Content) != "" {
				return finishWithAnswer(collector, resp.Content), nil
			}
			break
		}

		messages = append(messages, session.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, tc := range resp.ToolCalls {
			if opts.Callbacks.OnToolCall != nil {
				opts.Callbacks.OnToolCall(tc)
			}
			query, _ := tc.Args["query"].(string)
			key := tc.Name + "\x00" + query

			result, cached := executed[key]
			if !cached {
				var out string
				if tool, ok := opts.Tools.GetTool(tc.Name); ok {
					var execErr error
					out, execErr = tool.Execute(ctx, tc.Args)
					if execErr != nil {
						// Tool failures feed back to the model as an
						// error-tagged result rather than ending the turn.
						out = fmt.Sprintf(`[{"error":%q}]`, execErr.Error())
					}
				} else {
					// A name the request never advertised must not run
					// anything.
					out = fmt.Sprintf(`[{"error":%q}]`, "unknown tool: "+tc.Name)
				}
				executed[key] = out
				result = out
			}
			snippets = append(snippets, result)

			messages = append(messages, session.Message{
				Role:      "tool",
				Content:   result,
				ToolCalls: []session.ToolCall{tc},
			})
		}
	}

	// Forced final turn: no tools offered, and the hint makes gateways that
	// ignore tool_choice behave too.
	messages = append(messages, session.Message{Role: "user", Content: stopSearchHint})
	resp, err := caller.ChatWithTools(ctx, llm.Request{
		Model:    opts.Model,
		Messages: messages,
		Effort:   opts.Effort,
	}, nil, "none")
	if err != nil {
		if errors.IsAborted(err) {
			return collector.finish(true), nil
		}
	} else {
		collector.usage.Merge(resp.Usage)
		if strings.TrimSpace(resp.Content) != "" {
			return finishWithAnswer(collector, resp.Content), nil
		}
	}

	return finishWithAnswer(collector, synthesizeAnswer(snippets)), nil
}

func finishWithAnswer(c *collector, content string) *Result {
	c.handle(llm.Event{Kind: llm.EventAnswerDelta, Text: content})
	return c.finish(false)
}

// synthesizeAnswer builds a last-resort answer from raw search output.
func synthesizeAnswer(snippets []string) string {
	if len(snippets) == 0 {
		return emptyAnswerFallback
	}
	var b strings.Builder
	b.WriteString("Here is what the search turned up:\n")
	for _, s := range snippets {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		b.WriteString("- ")
		b.WriteString(s)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
