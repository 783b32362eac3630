package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LOOM_URL", "")
	t.Setenv("LOOM_LISTEN", "")
	t.Setenv("LOOM_MODEL", "")
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Model != DefaultModel {
		t.Fatalf("Default().Model = %q, want %q", cfg.Model, DefaultModel)
	}
	if cfg.URL != "http://127.0.0.1:3000" {
		t.Fatalf("Default().URL = %q", cfg.URL)
	}
}

func TestLoad_MissingFile_UsesDefaults(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != path {
		t.Fatalf("cfg.Source = %q, want %q", cfg.Source, path)
	}
	if cfg.Model != DefaultModel {
		t.Fatalf("cfg.Model = %q, want %q", cfg.Model, DefaultModel)
	}
}

func TestLoad_FromTOML(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`
url = "https://loom.example.test"
listen = "0.0.0.0:8080"
model = "gemini-2.5-pro"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "https://loom.example.test" {
		t.Fatalf("cfg.URL = %q", cfg.URL)
	}
	if cfg.Listen != "0.0.0.0:8080" {
		t.Fatalf("cfg.Listen = %q", cfg.Listen)
	}
	if cfg.Model != "gemini-2.5-pro" {
		t.Fatalf("cfg.Model = %q", cfg.Model)
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOM_URL", "http://override:9999")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte(`url = "http://file:1111"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.URL != "http://override:9999" {
		t.Fatalf("cfg.URL = %q, want env override", cfg.URL)
	}
}

func TestApplyKVOverrides(t *testing.T) {
	cfg := Default()
	got := ApplyKVOverrides(cfg, []string{"model=override-model", "listen=:4000", "bogus"})
	if got.Model != "override-model" {
		t.Fatalf("Model = %q, want %q", got.Model, "override-model")
	}
	if got.Listen != ":4000" {
		t.Fatalf("Listen = %q", got.Listen)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	clearEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")

	want := Default()
	want.Model = "gemini-2.5-flash"
	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Model != want.Model || got.URL != want.URL {
		t.Fatalf("round trip mismatch: %#v", got)
	}
}
