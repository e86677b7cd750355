package chat

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jmuk/blogsearch/pkg/chat/gemini"
	"github.com/jmuk/blogsearch/pkg/chat/openai"
	"github.com/jmuk/blogsearch/pkg/config"
)

func TestFindFactory(t *testing.T) {
	cfg := config.Default()
	cfg.ModelConfigs = append(cfg.ModelConfigs, map[string]any{
		"type":       "openai",
		"name":       "local",
		"model_name": "llama",
		"base_url":   "http://localhost:11434/v1",
	})

	f, err := FindFactory(cfg, "")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(&openai.Config{
		ConfigName:    "openai",
		APIKeyFromEnv: "OPENAI_API_KEY",
		ModelName:     "gpt-4o-mini",
	}, f); diff != "" {
		t.Errorf("default model mismatch (-want +got):\n%s", diff)
	}

	f, err = FindFactory(cfg, "gemini")
	if err != nil {
		t.Fatal(err)
	}
	if g, ok := f.(*gemini.Config); !ok || g.ModelName != "gemini-2.5-flash" {
		t.Errorf("got %#v", f)
	}

	f, err = FindFactory(cfg, "local")
	if err != nil {
		t.Fatal(err)
	}
	if o, ok := f.(*openai.Config); !ok || o.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("got %#v", f)
	}

	if _, err := FindFactory(cfg, "missing"); err == nil {
		t.Error("expected an error for a missing model")
	}
}

func TestModelConfigFromErrors(t *testing.T) {
	for _, m := range []map[string]any{
		{"name": "no type"},
		{"type": 3},
		{"type": "claude", "name": "x"},
	} {
		if _, err := modelConfigFrom(m); err == nil {
			t.Errorf("expected an error for %v", m)
		}
	}
}
