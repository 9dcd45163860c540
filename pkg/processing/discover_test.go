package processing

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/systemstart/many-assets/pkg/api"
)

const minimalConfig = `
tasks:
  build:
    - name: html
      type: html
`

func TestDiscoverConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o750); err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, api.DefaultConfigFilename)
	if err := os.WriteFile(want, []byte(minimalConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	for _, start := range []string{root, nested} {
		got, err := DiscoverConfig(start)
		if err != nil {
			t.Fatalf("DiscoverConfig(%q): unexpected error: %v", start, err)
		}
		if got != want {
			t.Errorf("DiscoverConfig(%q) = %q, want %q", start, got, want)
		}
	}
}

func TestDiscoverConfig_IgnoresDirectories(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, api.DefaultConfigFilename), 0o750); err != nil {
		t.Fatal(err)
	}

	got, _ := DiscoverConfig(root)
	if got == filepath.Join(root, api.DefaultConfigFilename) {
		t.Fatalf("directory %q should not be returned as a config file", got)
	}
}

func TestLoadConfig_FallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := LoadConfig("", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FilePath != "" {
		t.Errorf("expected no config file, got %q", cfg.FilePath)
	}
	if _, ok := cfg.Tasks[api.TaskProd]; !ok {
		t.Error("expected default prod task")
	}
}

func TestLoadConfig_Discovered(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, api.DefaultConfigFilename), []byte(minimalConfig), 0o600); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig("", sub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Dir != dir {
		t.Errorf("expected project dir %q, got %q", dir, cfg.Dir)
	}
	if _, ok := cfg.Tasks["build"]; !ok {
		t.Error("expected task from discovered file")
	}
}

func TestLoadConfig_ExplicitFileMissing(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
	if errors.Is(err, ErrConfigNotFound) {
		t.Error("an explicit config file must not fall back to defaults")
	}
}
