package tools

import "testing"

func TestWebSearchToolDefinition(t *testing.T) {
	tool := NewWebSearchTool(nil)
	if tool.Name() != "web_search" {
		t.Errorf("Unexpected tool name: %q", tool.Name())
	}
	params := tool.Parameters()
	if params["type"] != "object" {
		t.Errorf("Expected object schema, got %v", params)
	}
	props, ok := params["properties"].(map[string]interface{})
	if !ok {
		t.Fatalf("Schema missing properties: %v", params)
	}
	if _, ok := props["query"]; !ok {
		t.Errorf("Schema missing query property: %v", props)
	}
}
