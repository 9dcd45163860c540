package api

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	f := filepath.Join(dir, DefaultConfigFilename)
	if err := os.WriteFile(f, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return f
}

func TestLoadConfig_Valid(t *testing.T) {
	f := writeConfig(t, `
paths:
  root:
    src: web
    dest: dist
  html:
    src: web/*.html
    dest: dist
context:
  title: Hello
styles:
  browsers: [chrome80, safari13]
tasks:
  build:
    - name: clean
      type: clean
    - name: html
      type: html
      html:
        template: true
`)

	cfg, err := LoadConfig(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dir != filepath.Dir(f) {
		t.Fatalf("expected Dir=%q, got %q", filepath.Dir(f), cfg.Dir)
	}
	if cfg.Paths.Root.Dest != "dist" {
		t.Errorf("expected root dest 'dist', got %q", cfg.Paths.Root.Dest)
	}
	// Entries the file leaves out fall back to the defaults.
	if cfg.Paths.Images.Src != "src/images/*.{jpg,jpeg,png}" {
		t.Errorf("expected default images src, got %q", cfg.Paths.Images.Src)
	}
	if len(cfg.Tasks) != 1 || len(cfg.Tasks["build"]) != 2 {
		t.Fatalf("expected one task with 2 steps, got %v", cfg.Tasks)
	}
	if cfg.Context["title"] != "Hello" {
		t.Errorf("expected title=Hello, got %v", cfg.Context["title"])
	}
	if len(cfg.Styles.Browsers) != 2 {
		t.Errorf("expected 2 browsers, got %v", cfg.Styles.Browsers)
	}
	if cfg.Server.Port != DefaultPort {
		t.Errorf("expected default port %d, got %d", DefaultPort, cfg.Server.Port)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MANY_ASSETS_PORT", "4567")
	t.Setenv("MANY_ASSETS_CACHE_ENABLED", "false")

	f := writeConfig(t, "server:\n  port: 8080\n")

	cfg, err := LoadConfig(f)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4567 {
		t.Errorf("expected env port 4567, got %d", cfg.Server.Port)
	}
	if cfg.CacheEnabled() {
		t.Error("expected cache to be disabled by env")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/many-assets.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "reading config file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	f := writeConfig(t, "{{invalid")
	_, err := LoadConfig(f)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
	if !strings.Contains(err.Error(), "parsing config file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadConfig_ValidationFails(t *testing.T) {
	f := writeConfig(t, `
tasks:
  prod:
    - name: ""
      type: html
`)
	_, err := LoadConfig(f)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "validating config") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadDefault(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadDefault(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cfg.Tasks[TaskDev]; !ok {
		t.Error("expected dev task")
	}
	if _, ok := cfg.Tasks[TaskProd]; !ok {
		t.Error("expected prod task")
	}
	if got := cfg.Abs("app"); got != filepath.Join(dir, "app") {
		t.Errorf("Abs(app) = %q", got)
	}
	if got := cfg.Abs("/tmp/x"); got != "/tmp/x" {
		t.Errorf("Abs(/tmp/x) = %q", got)
	}
}
