package steps

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

type cleanStep struct {
	name string
	dir  string
}

// NewCleanStep creates a step that removes the build output directory.
func NewCleanStep(name, dir string) Step {
	return &cleanStep{name: name, dir: dir}
}

func (s *cleanStep) Name() string { return s.name }

func (s *cleanStep) Run(_ context.Context, sctx StepContext) (*StepResult, error) {
	target, err := cleanTarget(sctx.WorkDir, s.dir)
	if err != nil {
		return nil, err
	}
	if err := Clean(target); err != nil {
		return nil, err
	}
	return &StepResult{}, nil
}

// cleanTarget resolves dir against workDir. The result must lie strictly
// below workDir.
func cleanTarget(workDir, dir string) (string, error) {
	target := filepath.Join(workDir, dir)
	rel, err := filepath.Rel(filepath.Clean(workDir), target)
	if err != nil {
		return "", fmt.Errorf("refusing to clean %q: %w", dir, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("refusing to clean %q: not below %s", dir, workDir)
	}
	return target, nil
}

// Clean recursively removes targetDir. A missing directory is not an error.
func Clean(targetDir string) error {
	clean := filepath.Clean(targetDir)
	if clean == "." || clean == string(filepath.Separator) {
		return fmt.Errorf("refusing to clean %q", targetDir)
	}

	if _, err := os.Lstat(clean); os.IsNotExist(err) {
		slog.Debug("nothing to clean", "directory", clean)
		return nil
	}

	slog.Info("cleaning build output", "directory", clean)
	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("cleaning %s: %w", clean, err)
	}
	return nil
}
