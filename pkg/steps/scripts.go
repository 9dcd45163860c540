package steps

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
)

type scriptsStep struct {
	name   string
	files  fileSet
	minify bool
	target esbuild.Target
}

// NewScriptsStep creates a step that either transpiles scripts down to
// target or strips comments and minifies them.
func NewScriptsStep(name string, files fileSet, minify bool, target string) (Step, error) {
	t, err := ParseTarget(target)
	if err != nil {
		return nil, err
	}
	return &scriptsStep{name: name, files: files, minify: minify, target: t}, nil
}

func (s *scriptsStep) Name() string { return s.name }

func (s *scriptsStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	files, err := s.files.sources(sctx.WorkDir)
	if err != nil {
		return nil, err
	}

	outs := make([]output, 0, len(files))
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := readSource(sctx.WorkDir, f)
		if err != nil {
			return nil, err
		}

		result := esbuild.Transform(string(data), s.options(f))
		if err := messagesError(f, result.Errors); err != nil {
			return nil, err
		}
		for _, w := range result.Warnings {
			slog.Warn("script warning", "step", s.name, "file", f, "warning", w.Text)
		}
		outs = append(outs, output{rel: s.files.destName(f), data: result.Code})
	}

	written, err := writeOutputs(sctx.WorkDir, s.files.dest, outs)
	if err != nil {
		return nil, err
	}
	return &StepResult{Written: written}, nil
}

func (s *scriptsStep) options(file string) esbuild.TransformOptions {
	opts := esbuild.TransformOptions{
		Loader:     esbuild.LoaderJS,
		Sourcefile: file,
		LogLevel:   esbuild.LogLevelSilent,
	}
	if s.minify {
		opts.MinifyWhitespace = true
		opts.MinifyIdentifiers = true
		opts.MinifySyntax = true
		opts.LegalComments = esbuild.LegalCommentsNone
		return opts
	}
	opts.Target = s.target
	return opts
}

var scriptTargets = map[string]esbuild.Target{
	"es2015": esbuild.ES2015,
	"es2016": esbuild.ES2016,
	"es2017": esbuild.ES2017,
	"es2018": esbuild.ES2018,
	"es2019": esbuild.ES2019,
	"es2020": esbuild.ES2020,
	"es2021": esbuild.ES2021,
	"es2022": esbuild.ES2022,
	"esnext": esbuild.ESNext,
}

// ParseTarget maps a language level such as "es2015" to an esbuild target.
func ParseTarget(target string) (esbuild.Target, error) {
	t, ok := scriptTargets[strings.ToLower(target)]
	if !ok {
		return 0, fmt.Errorf("unsupported script target %q", target)
	}
	return t, nil
}
