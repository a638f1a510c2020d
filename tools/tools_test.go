package tools

import "testing"

func TestToolRegistryLookupAndOrder(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(NewWebSearchTool(nil))

	if _, ok := reg.GetTool("web_search"); !ok {
		t.Error("Registered tool not found")
	}
	if _, ok := reg.GetTool("read_file"); ok {
		t.Error("Unregistered name must not resolve")
	}
	all := reg.All()
	if len(all) != 1 || all[0].Name() != "web_search" {
		t.Errorf("Unexpected registry contents: %v", all)
	}
}

func TestToolRegistryReRegisterKeepsOrder(t *testing.T) {
	reg := NewToolRegistry()
	reg.Register(NewWebSearchTool(nil))
	reg.Register(NewWebSearchTool(nil))

	if len(reg.All()) != 1 {
		t.Errorf("Re-registering the same name must not duplicate: %v", reg.All())
	}
}
