package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/go-cmp/cmp"
)

func TestDefaultRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := writeFile(path, Default()); err != nil {
		t.Fatal(err)
	}
	got, err := loadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
model_name = "local"
max_turns = 4
tool_timeout = "15s"

[search]
site = "example.com"

[[model_configs]]
type = "openai"
name = "local"
model_name = "llama"
base_url = "http://localhost:11434/v1"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := loadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.ModelName != "local" || got.MaxTurns != 4 {
		t.Errorf("unexpected top level values: %q %d", got.ModelName, got.MaxTurns)
	}
	if got.ToolTimeout.Duration != 15*time.Second {
		t.Errorf("tool_timeout = %v", got.ToolTimeout)
	}
	if got.Search.Site != "example.com" || got.Search.Language != "ja" {
		t.Errorf("search config should merge with defaults: %+v", got.Search)
	}
	want := []map[string]any{{
		"type":       "openai",
		"name":       "local",
		"model_name": "llama",
		"base_url":   "http://localhost:11434/v1",
	}}
	if diff := cmp.Diff(want, got.ModelConfigs); diff != "" {
		t.Errorf("model configs mismatch (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	c := Default()
	c.MaxTurns = 0
	c.MCP = []MCPConfig{{Name: "both", Command: []string{"x"}, Endpoint: "http://x"}}
	err := c.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"max_turns", "exactly one of command or endpoint"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestDurationText(t *testing.T) {
	var v struct {
		D Duration `toml:"d"`
	}
	if _, err := toml.Decode(`d = "1m30s"`, &v); err != nil {
		t.Fatal(err)
	}
	if v.D.Duration != 90*time.Second {
		t.Errorf("got %v", v.D)
	}
	if _, err := toml.Decode(`d = "soon"`, &v); err == nil {
		t.Error("expected an error for a malformed duration")
	}
}

func TestRequireEnv(t *testing.T) {
	t.Setenv("BLOGSEARCH_TEST_KEY", "secret")
	if v, err := RequireEnv("BLOGSEARCH_TEST_KEY"); err != nil || v != "secret" {
		t.Errorf("got %q, %v", v, err)
	}
	if _, err := RequireEnv("BLOGSEARCH_TEST_MISSING"); err == nil {
		t.Error("expected an error for a missing variable")
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := LoadDotEnv(filepath.Join(dir, "missing.env")); err != nil {
		t.Errorf("missing file: %v", err)
	}
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("BLOGSEARCH_DOTENV_KEY=fromfile\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BLOGSEARCH_DOTENV_KEY", "")
	os.Unsetenv("BLOGSEARCH_DOTENV_KEY")
	if err := LoadDotEnv(path); err != nil {
		t.Fatal(err)
	}
	if got := os.Getenv("BLOGSEARCH_DOTENV_KEY"); got != "fromfile" {
		t.Errorf("got %q", got)
	}
}
