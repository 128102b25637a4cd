package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaults(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	got, err := c.Render("opponent.engine.status", map[string]any{"Preset": "level3", "Eval": 42, "Move": "7g7f"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if got != "level3 評価値 +42 (7g7f)" {
		t.Fatalf("unexpected status %q", got)
	}
	if got := c.Text("game.thinking", "x"); got != "思考中..." {
		t.Fatalf("game.thinking = %q", got)
	}
	if got, _ := c.Render("opponent.llm.invalid", map[string]any{"Move": "5a5b"}); !strings.Contains(got, `"5a5b"`) {
		t.Fatalf("llm.invalid should quote the move, got %q", got)
	}
}

func TestRenderErrors(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatalf("unknown key should fail")
	}
	if _, err := c.Render("opponent.llm.invalid", map[string]any{}); err == nil {
		t.Fatalf("missing field should fail")
	}
	if got := c.Text("no.such.key", "fallback"); got != "fallback" {
		t.Fatalf("Text should fall back, got %q", got)
	}
}

func TestOverrideDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("game:\n  thinking: \"考え中\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.Text("game.thinking", ""); got != "考え中" {
		t.Fatalf("override not applied, got %q", got)
	}
	if got := c.Text("game.result.sente_win", ""); got == "" {
		t.Fatalf("defaults should survive overrides")
	}
}

func TestOverrideDuplicateKey(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.yaml", "b.yml"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("game:\n  thinking: \"x\"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := New(dir); err == nil || !strings.Contains(err.Error(), "duplicate override key") {
		t.Fatalf("expected a duplicate key error, got %v", err)
	}
}

func TestKeysSorted(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	keys := c.Keys()
	for i := 1; i < len(keys); i++ {
		if keys[i-1] >= keys[i] {
			t.Fatalf("keys not sorted at %d: %q >= %q", i, keys[i-1], keys[i])
		}
	}
}
