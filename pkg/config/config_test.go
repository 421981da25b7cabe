package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, root, content string) string {
	t.Helper()
	dir := filepath.Join(root, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, `
payload: data/results.json
tree:
  width: 500
  hide_title: true
map:
  atlas: /abs/regions.geojson
  code_key: TDWG
watch:
  debounce: 50ms
serve:
  addr: ":9000"
  live_reload: false
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Root != root {
		t.Errorf("Root = %q, want %q", cfg.Root, root)
	}
	if cfg.PayloadPath() != filepath.Join(root, "data", "results.json") {
		t.Errorf("PayloadPath = %q", cfg.PayloadPath())
	}
	if cfg.AtlasPath() != "/abs/regions.geojson" {
		t.Errorf("AtlasPath = %q", cfg.AtlasPath())
	}
	if cfg.Tree.Width != 500 || !cfg.Tree.HideTitle || cfg.Map.CodeKey != "TDWG" {
		t.Errorf("unexpected tree/map config: %+v %+v", cfg.Tree, cfg.Map)
	}
	if cfg.Watch.Debounce != 50*time.Millisecond {
		t.Errorf("Debounce = %v", cfg.Watch.Debounce)
	}
	if cfg.Watch.PollInterval != DefaultPollInterval {
		t.Errorf("PollInterval default not applied: %v", cfg.Watch.PollInterval)
	}
	if cfg.Serve.Addr != ":9000" || cfg.LiveReloadEnabled() {
		t.Errorf("unexpected serve config: %+v", cfg.Serve)
	}
	if !cfg.WatchEnabled() {
		t.Error("watch should default to enabled")
	}
	if len(cfg.Discovery.Patterns) == 0 || cfg.Discovery.MaxDepth != DefaultMaxDepth {
		t.Errorf("discovery defaults not applied: %+v", cfg.Discovery)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantMsg string
	}{
		{"BadYAML", "tree: [", "parsing config"},
		{"NegativeWidth", "tree:\n  width: -1\n", "cannot be negative"},
		{"NegativeMap", "map:\n  height: -5\n", "cannot be negative"},
		{"BadPattern", "discovery:\n  patterns: [\"[a-\"]\n", "not a valid glob"},
		{"EmptyPattern", "discovery:\n  patterns: [\" \"]\n", "is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), tt.content)
			_, err := Load(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Load error = %v, want mention of %q", err, tt.wantMsg)
			}
		})
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file error = %v", err)
	}
}

func TestFind_WalksUp(t *testing.T) {
	root := t.TempDir()
	want := writeConfig(t, root, "payload: x.json\n")
	nested := filepath.Join(root, "a", "b", "c")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatal(err)
	}
	got, err := Find(nested)
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if got != want {
		t.Errorf("Find = %q, want %q", got, want)
	}
}

func TestFind_NotFound(t *testing.T) {
	// HOME bounds the walk so the test cannot see configs above the temp dir.
	root := t.TempDir()
	t.Setenv("HOME", root)
	if _, err := Find(root); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Find = %v, want ErrNotExist", err)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvPayload, "env.json")
	t.Setenv(EnvServeAddr, "0.0.0.0:1")
	t.Setenv(EnvForcePoll, "true")
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatal(err)
	}
	if cfg.Payload != "env.json" || cfg.Serve.Addr != "0.0.0.0:1" || !cfg.Watch.ForcePoll {
		t.Errorf("overrides not applied: %+v", cfg)
	}

	t.Setenv(EnvForcePoll, "maybe")
	if err := cfg.ApplyEnv(); err == nil {
		t.Error("expected error for invalid bool")
	}
}

func TestDiscover_DotEnvAndDefaults(t *testing.T) {
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Chdir(root)
	os.Unsetenv(EnvAtlas)
	t.Cleanup(func() { os.Unsetenv(EnvAtlas) })

	if err := os.WriteFile(filepath.Join(root, ".env"), []byte(EnvAtlas+"=regions.geojson\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Discover("")
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.Serve.Addr != DefaultServeAddr {
		t.Errorf("defaults not applied: %+v", cfg.Serve)
	}
	if cfg.AtlasPath() != filepath.Join(root, "regions.geojson") {
		t.Errorf("AtlasPath = %q", cfg.AtlasPath())
	}
}

func TestDiscover_Explicit(t *testing.T) {
	root := t.TempDir()
	path := writeConfig(t, root, "payload: p.json\n")
	t.Setenv(EnvPayload, "")
	cfg, err := Discover(path)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if cfg.PayloadPath() != filepath.Join(root, "p.json") {
		t.Errorf("PayloadPath = %q", cfg.PayloadPath())
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	root := t.TempDir()
	path, err := Write(root, ExampleConfig())
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Payload != "results.json" || cfg.Tree.Width != 700 || cfg.Watch.Debounce != DefaultDebounce {
		t.Errorf("round trip lost values: %+v", cfg)
	}
	if _, err := Write(root, ExampleConfig()); err == nil {
		t.Error("expected error when config exists")
	}
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if err != nil || !strings.Contains(string(data), ".dv/") {
		t.Errorf(".gitignore not updated: %q, %v", data, err)
	}
}
