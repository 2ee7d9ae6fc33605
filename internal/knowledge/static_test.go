package knowledge

import (
	"os"
	"path/filepath"
	"testing"
)

func TestStaticProviderQuery(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "收益策略", Content: "a", Keywords: []string{"yield"}},
		{Title: "粉尘策略", Content: "b", Keywords: []string{"dust"}},
		{Title: "通用策略", Content: "c"},
	}, 3)

	results := provider.Query("yield optimization")
	if len(results) != 2 {
		t.Fatalf("expected 2 snippets, got %d", len(results))
	}
	if results[0].Title != "收益策略" {
		t.Fatalf("unexpected first snippet: %s", results[0].Title)
	}
	if results[1].Title != "通用策略" {
		t.Fatalf("keyword-less snippet should always match, got %s", results[1].Title)
	}
}

func TestStaticProviderEmptyTopicsMatchAll(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "收益策略", Content: "a", Keywords: []string{"yield"}},
		{Title: "粉尘策略", Content: "b", Keywords: []string{"dust"}},
		{Title: "通用策略", Content: "c"},
	}, 5)

	// Keyworded cards must still surface when no topics are configured.
	results := provider.Query()
	if len(results) != 3 {
		t.Fatalf("expected all snippets without topics, got %d", len(results))
	}

	results = provider.Query("  ", "")
	if len(results) != 3 {
		t.Fatalf("blank topics should behave like no topics, got %d", len(results))
	}
}

func TestStaticProviderMaxResults(t *testing.T) {
	provider := NewStaticProvider([]Snippet{
		{Title: "a"}, {Title: "b"}, {Title: "c"},
	}, 2)

	results := provider.Query("anything")
	if len(results) != 2 {
		t.Fatalf("expected max 2 snippets, got %d", len(results))
	}
}

func TestLoadStaticProvider(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policies.json")
	content := `[{"title":"t","content":"c","keywords":["yield"]}]`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	provider, err := LoadStaticProvider(path, 3)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got := provider.Query("yield"); len(got) != 1 || got[0].Title != "t" {
		t.Fatalf("unexpected query result: %+v", got)
	}

	if _, err := LoadStaticProvider("", 3); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
