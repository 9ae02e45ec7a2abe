package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, yaml string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, configFileName), []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
}

func TestLoadMissingDirectoryIsEmpty(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("expected no error for missing config, got %v", err)
	}
	if len(cfg.Upstreams) != 0 {
		t.Fatalf("expected zero upstreams, got %d", len(cfg.Upstreams))
	}
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
upstreams:
  fs:
    type: stdio
    local:
      command: ["mcp-server-fs", "/tmp"]
    tags: ["local"]
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	u, ok := cfg.Upstreams["fs"]
	if !ok {
		t.Fatal("expected upstream 'fs'")
	}
	if u.Name != "fs" {
		t.Errorf("expected Name to be populated from the map key, got %q", u.Name)
	}
	if len(u.Local.Command) != 2 {
		t.Errorf("expected 2-element command, got %v", u.Local.Command)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "upstreams: [this is not a map")

	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestLoadInvalidConfigFailsValidation(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
upstreams:
  broken:
    type: streamable-http
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation error for missing streamableHttp block")
	}
}
