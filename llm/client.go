package llm

import (
	"context"
	"sort"

	"github.com/shellsage/shellsage/errors"
)

// Model is one entry of a provider's model catalog.
type Model struct {
	ID          string
	DisplayName string
}

// Client is the interface every provider adapter implements. ReasoningStream
// drives one streaming completion, translating the provider's native protocol
// into canonical events pushed through emit. The call returns after the
// stream finishes or fails; cancellation of ctx surfaces as an error that
// errors.IsAborted recognizes.
type Client interface {
	Name() string
	FetchModels(ctx context.Context) ([]Model, error)
	ReasoningStream(ctx context.Context, req Request, emit EmitFunc) error
}

// ToolCaller is implemented by adapters that support non-streaming
// tool-enabled requests. The search loop requires it.
type ToolCaller interface {
	// ChatWithTools sends one request advertising tools. toolChoice is the
	// wire-level tool_choice value, normally "auto"; "none" forbids calls.
	ChatWithTools(ctx context.Context, req Request, tools []ToolDefinition, toolChoice string) (*ToolChatResponse, error)
}

// Factory constructs a provider adapter. Credentials come from the
// environment; baseURL overrides the provider default where one applies.
type Factory func(ctx context.Context, baseURL string) (Client, error)

// Registry maps provider names to adapter factories. It replaces switching
// on provider strings at call sites: backends register once and callers
// resolve by name.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New resolves and constructs the named adapter.
func (r *Registry) New(ctx context.Context, name, baseURL string) (Client, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, errors.NewKind(errors.KindConfiguration,
			"unknown provider %q (available: %v)", name, r.Names())
	}
	return f(ctx, baseURL)
}

// Names lists the registered provider names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in providers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("openai", func(ctx context.Context, baseURL string) (Client, error) {
		return NewOpenAIClient(ctx, baseURL)
	})
	r.Register("openrouter", func(ctx context.Context, baseURL string) (Client, error) {
		return NewOpenRouterClient(ctx, baseURL)
	})
	r.Register("custom", func(ctx context.Context, baseURL string) (Client, error) {
		return NewCustomClient(ctx, baseURL)
	})
	r.Register("anthropic", func(ctx context.Context, baseURL string) (Client, error) {
		return NewAnthropicClient(ctx, baseURL)
	})
	r.Register("gemini", func(ctx context.Context, baseURL string) (Client, error) {
		return NewGeminiClient(ctx, baseURL)
	})
	r.Register("bedrock", func(ctx context.Context, baseURL string) (Client, error) {
		return NewBedrockClient(ctx, baseURL)
	})
	return r
}
