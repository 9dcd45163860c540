package steps

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"golang.org/x/net/html"
)

type htmlStep struct {
	name          string
	files         fileSet
	stripComments bool
	template      bool
}

// NewHTMLStep creates a step that copies markup, optionally rendering it
// as a template and stripping comments.
func NewHTMLStep(name string, files fileSet, stripComments, render bool) Step {
	return &htmlStep{name: name, files: files, stripComments: stripComments, template: render}
}

func (s *htmlStep) Name() string { return s.name }

func (s *htmlStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	files, err := s.files.sources(sctx.WorkDir)
	if err != nil {
		return nil, err
	}

	slog.Info("html step processing files", "step", s.name, "count", len(files))

	outs := make([]output, 0, len(files))
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		data, err := readSource(sctx.WorkDir, file)
		if err != nil {
			return nil, err
		}

		if s.template {
			if data, err = renderTemplate(file, data, sctx.TemplateData); err != nil {
				return nil, err
			}
		}
		if s.stripComments {
			if data, err = StripHTMLComments(data); err != nil {
				return nil, &SourceError{File: file, Err: err}
			}
		}

		outs = append(outs, output{rel: s.files.destName(file), data: data})
	}

	written, err := writeOutputs(sctx.WorkDir, s.files.dest, outs)
	if err != nil {
		return nil, err
	}
	return &StepResult{Written: written}, nil
}

func renderTemplate(file string, content []byte, data map[string]any) ([]byte, error) {
	tmpl, err := template.New(file).Funcs(sprig.TxtFuncMap()).Parse(string(content))
	if err != nil {
		return nil, sourceError(file, "parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, sourceError(file, "executing template: %w", err)
	}
	return buf.Bytes(), nil
}

// StripHTMLComments removes <!-- --> comments and leaves every other token
// byte-for-byte intact.
func StripHTMLComments(src []byte) ([]byte, error) {
	z := html.NewTokenizer(bytes.NewReader(src))
	var out bytes.Buffer
	out.Grow(len(src))

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if err := z.Err(); !errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("tokenizing html: %w", err)
			}
			return out.Bytes(), nil
		case html.CommentToken:
			continue
		default:
			out.Write(z.Raw())
		}
	}
}
