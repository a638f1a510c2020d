package llm

import (
	"context"
	"testing"
	"time"
)

func TestUsageMerge(t *testing.T) {
	var u Usage

	u.Merge(Usage{InputTokens: 100})
	if u.InputTokens != 100 {
		t.Errorf("Expected input 100, got %d", u.InputTokens)
	}

	// A later snapshot with more fields fills in what it knows.
	u.Merge(Usage{OutputTokens: 50, ReasoningTokens: 20})
	if u.InputTokens != 100 || u.OutputTokens != 50 || u.ReasoningTokens != 20 {
		t.Errorf("Unexpected usage after merge: %+v", u)
	}

	// Zero fields never clobber known values; non-zero ones overwrite.
	u.Merge(Usage{OutputTokens: 80, TotalTokens: 200})
	if u.InputTokens != 100 {
		t.Errorf("Zero input clobbered known value: %+v", u)
	}
	if u.OutputTokens != 80 {
		t.Errorf("Expected later output 80 to win, got %d", u.OutputTokens)
	}
	if u.TotalTokens != 200 {
		t.Errorf("Expected total 200, got %d", u.TotalTokens)
	}
}

func TestUsageIsZero(t *testing.T) {
	var u Usage
	if !u.IsZero() {
		t.Error("Expected zero usage to report IsZero")
	}
	u.Merge(Usage{TotalTokens: 1})
	if u.IsZero() {
		t.Error("Expected non-zero usage to not report IsZero")
	}
}

func TestRegistryResolvesAndRejects(t *testing.T) {
	r := NewRegistry()
	r.Register("fake", func(ctx context.Context, baseURL string) (Client, error) {
		return &CustomClient{baseURL: baseURL}, nil
	})

	client, err := r.New(context.Background(), "fake", "http://localhost:1234/v1")
	if err != nil {
		t.Fatalf("Expected registered provider to resolve: %v", err)
	}
	if client == nil {
		t.Fatal("Expected a client instance")
	}

	if _, err := r.New(context.Background(), "nonexistent", ""); err == nil {
		t.Error("Expected error for unknown provider")
	}
}

func TestDefaultRegistryNames(t *testing.T) {
	names := DefaultRegistry().Names()
	want := []string{"anthropic", "bedrock", "custom", "gemini", "openai", "openrouter"}
	if len(names) != len(want) {
		t.Fatalf("Expected %d providers, got %v", len(want), names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Errorf("Expected provider %q at %d, got %q", name, i, names[i])
		}
	}
}

func TestModelCacheTTL(t *testing.T) {
	cache := NewModelCache(time.Minute)
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	fetches := 0
	fetch := func(ctx context.Context) ([]Model, error) {
		fetches++
		return []Model{{ID: "m1"}}, nil
	}

	ctx := context.Background()
	if _, err := cache.Get(ctx, fetch); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := cache.Get(ctx, fetch); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fetches != 1 {
		t.Errorf("Expected 1 fetch within TTL, got %d", fetches)
	}

	// Past the TTL the catalog is refreshed.
	now = now.Add(2 * time.Minute)
	if _, err := cache.Get(ctx, fetch); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if fetches != 2 {
		t.Errorf("Expected refresh after TTL, got %d fetches", fetches)
	}
}

func TestModelCacheKeepsStaleOnFetchError(t *testing.T) {
	cache := NewModelCache(time.Minute)
	now := time.Unix(1000, 0)
	cache.now = func() time.Time { return now }

	ctx := context.Background()
	good := func(ctx context.Context) ([]Model, error) {
		return []Model{{ID: "m1"}}, nil
	}
	if _, err := cache.Get(ctx, good); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	now = now.Add(2 * time.Minute)
	bad := func(ctx context.Context) ([]Model, error) {
		return nil, context.DeadlineExceeded
	}
	models, err := cache.Get(ctx, bad)
	if err != nil {
		t.Fatalf("Expected stale value to survive fetch error, got %v", err)
	}
	if len(models) != 1 || models[0].ID != "m1" {
		t.Errorf("Expected stale catalog, got %v", models)
	}
}

func TestModelCacheInvalidate(t *testing.T) {
	cache := NewModelCache(time.Hour)
	fetches := 0
	fetch := func(ctx context.Context) ([]Model, error) {
		fetches++
		return []Model{{ID: "m1"}}, nil
	}

	ctx := context.Background()
	cache.Get(ctx, fetch)
	cache.Invalidate()
	cache.Get(ctx, fetch)
	if fetches != 2 {
		t.Errorf("Expected invalidate to force refetch, got %d fetches", fetches)
	}
}
