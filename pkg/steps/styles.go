package steps

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/tdewolff/minify/v2"
	cssmin "github.com/tdewolff/minify/v2/css"
)

const mimeCSS = "text/css"

type stylesStep struct {
	name       string
	files      fileSet
	engines    []esbuild.Engine
	groupMedia bool
	minifier   *minify.M
}

// NewStylesStep creates a step that post-processes compiled stylesheets:
// media queries are grouped, vendor prefixes are added for the given
// browser targets, and the result is minified.
func NewStylesStep(name string, files fileSet, browsers []string, groupMedia bool) (Step, error) {
	engines, err := ParseEngines(browsers)
	if err != nil {
		return nil, err
	}
	m := minify.New()
	m.AddFunc(mimeCSS, cssmin.Minify)
	return &stylesStep{
		name:       name,
		files:      files,
		engines:    engines,
		groupMedia: groupMedia,
		minifier:   m,
	}, nil
}

func (s *stylesStep) Name() string { return s.name }

func (s *stylesStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
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
		processed, err := s.process(f, data)
		if err != nil {
			return nil, err
		}
		outs = append(outs, output{rel: s.files.destName(f), data: processed})
	}

	written, err := writeOutputs(sctx.WorkDir, s.files.dest, outs)
	if err != nil {
		return nil, err
	}
	return &StepResult{Written: written}, nil
}

func (s *stylesStep) process(file string, data []byte) ([]byte, error) {
	if err := checkSyntax(data); err != nil {
		return nil, &SourceError{File: file, Err: err}
	}
	if s.groupMedia {
		data = groupMediaQueries(data)
	}

	result := esbuild.Transform(string(data), esbuild.TransformOptions{
		Loader:     esbuild.LoaderCSS,
		Engines:    s.engines,
		Sourcefile: file,
		LogLevel:   esbuild.LogLevelSilent,
	})
	if err := messagesError(file, result.Errors); err != nil {
		return nil, err
	}
	for _, w := range result.Warnings {
		slog.Warn("stylesheet warning", "step", s.name, "file", file, "warning", w.Text)
	}

	minified, err := s.minifier.Bytes(mimeCSS, result.Code)
	if err != nil {
		return nil, sourceError(file, "minifying: %w", err)
	}
	return minified, nil
}

var browserPattern = regexp.MustCompile(`^([a-z]+)([0-9]+(?:\.[0-9]+)*)$`)

var engineNames = map[string]esbuild.EngineName{
	"chrome":  esbuild.EngineChrome,
	"edge":    esbuild.EngineEdge,
	"firefox": esbuild.EngineFirefox,
	"ie":      esbuild.EngineIE,
	"ios":     esbuild.EngineIOS,
	"opera":   esbuild.EngineOpera,
	"safari":  esbuild.EngineSafari,
}

// ParseEngines converts browser targets such as "safari11" or "chrome58"
// into esbuild engines.
func ParseEngines(browsers []string) ([]esbuild.Engine, error) {
	engines := make([]esbuild.Engine, 0, len(browsers))
	for _, b := range browsers {
		m := browserPattern.FindStringSubmatch(strings.ToLower(b))
		if m == nil {
			return nil, fmt.Errorf("invalid browser target %q", b)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("unknown browser %q in target %q", m[1], b)
		}
		engines = append(engines, esbuild.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// messagesError converts esbuild error messages into a SourceError that
// points at the first failing location.
func messagesError(file string, msgs []esbuild.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	first := msgs[0]
	if loc := first.Location; loc != nil {
		err := fmt.Errorf("line %d, column %d: %s", loc.Line, loc.Column, first.Text)
		if len(msgs) > 1 {
			err = fmt.Errorf("%w (and %d more errors)", err, len(msgs)-1)
		}
		return &SourceError{File: file, Err: err}
	}
	return sourceError(file, "%s", first.Text)
}
