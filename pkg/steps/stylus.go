package steps

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

type stylusStep struct {
	name       string
	files      fileSet
	binary     string
	args       []string
	sourceMaps bool
}

// NewStylusStep creates a step that compiles .styl sources with the stylus
// binary, writing .css files (and .css.map files when sourceMaps is set).
func NewStylusStep(name string, files fileSet, binary string, args []string, sourceMaps bool) Step {
	return &stylusStep{name: name, files: files, binary: binary, args: args, sourceMaps: sourceMaps}
}

func (s *stylusStep) Name() string { return s.name }

func (s *stylusStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	if _, err := exec.LookPath(s.binary); err != nil {
		return nil, fmt.Errorf("%s binary not found in PATH: %w", s.binary, err)
	}

	files, err := s.files.sources(sctx.WorkDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return &StepResult{}, nil
	}

	staging, err := os.MkdirTemp("", "many-assets-stylus-*")
	if err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(staging) }()

	args := append([]string{}, s.args...)
	if s.sourceMaps {
		args = append(args, "--sourcemap")
	}
	args = append(args, "--out", staging)
	for _, f := range files {
		args = append(args, filepath.FromSlash(f))
	}

	slog.Info("running stylus", "step", s.name, "files", len(files))

	cmd := exec.CommandContext(ctx, s.binary, args...)
	cmd.Dir = sctx.WorkDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &SourceError{
			File: s.files.src,
			Err:  fmt.Errorf("stylus failed: %w\nstderr: %s", err, strings.TrimSpace(stderr.String())),
		}
	}

	outs, err := s.collect(staging, files)
	if err != nil {
		return nil, err
	}

	written, err := writeOutputs(sctx.WorkDir, s.files.dest, outs)
	if err != nil {
		return nil, err
	}
	return &StepResult{Written: written}, nil
}

// collect reads the compiled files for each source out of staging.
func (s *stylusStep) collect(staging string, files []string) ([]output, error) {
	var outs []output
	for _, f := range files {
		rel := withExt(s.files.destName(f), ".css")
		base := filepath.Base(filepath.FromSlash(rel))

		data, err := os.ReadFile(filepath.Join(staging, base))
		if err != nil {
			return nil, &SourceError{File: f, Err: fmt.Errorf("stylus produced no output: %w", err)}
		}
		outs = append(outs, output{rel: rel, data: data})

		if !s.sourceMaps {
			continue
		}
		mapData, err := os.ReadFile(filepath.Join(staging, base+".map"))
		if err != nil {
			slog.Warn("stylus produced no source map", "step", s.name, "file", f, "error", err)
			continue
		}
		outs = append(outs, output{rel: rel + ".map", data: mapData})
	}
	return outs, nil
}
