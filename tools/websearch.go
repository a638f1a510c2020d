package tools

import (
	"context"
	"encoding/json"

	"github.com/shellsage/shellsage/errors"
	"github.com/shellsage/shellsage/websearch"
)

// WebSearchTool exposes the search executor as a function tool.
type WebSearchTool struct {
	executor *websearch.Executor
}

func NewWebSearchTool(executor *websearch.Executor) *WebSearchTool {
	return &WebSearchTool{executor: executor}
}

func (t *WebSearchTool) Name() string { return "web_search" }

func (t *WebSearchTool) Description() string {
	return "Searches the web and returns result titles, URLs and snippets. Args: query (string)."
}

func (t *WebSearchTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "The search query.",
			},
		},
		"required": []string{"query"},
	}
}

// Execute runs the search and returns the results as JSON. The executor
// degrades failures to error-tagged results, so Execute itself only fails
// on marshalling.
func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, _ := args["query"].(string)
	results := t.executor.Search(ctx, query)

	data, err := json.Marshal(results)
	if err != nil {
		return "", errors.Wrapf(err, "failed to encode search results")
	}
	return string(data), nil
}
