package steps

import (
	"bytes"
	"context"
	"fmt"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os/exec"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/svg"

	"github.com/systemstart/many-assets/pkg/api"
)

// Optimizer shrinks the encoded bytes of one image format. Fingerprint
// identifies the optimizer and its settings; it is part of the cache key.
type Optimizer interface {
	Fingerprint() string
	Optimize(ctx context.Context, data []byte) ([]byte, error)
}

// Chain runs optimizers in order. A stage's output replaces its input only
// when it is smaller.
type Chain []Optimizer

func (c Chain) Fingerprint() string {
	parts := make([]string, len(c))
	for i, o := range c {
		parts[i] = o.Fingerprint()
	}
	return strings.Join(parts, "|")
}

func (c Chain) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	for _, o := range c {
		out, err := o.Optimize(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", o.Fingerprint(), err)
		}
		if len(out) > 0 && len(out) < len(data) {
			data = out
		}
	}
	return data, nil
}

// NewOptimizers builds the optimizer chain for each image extension.
func NewOptimizers(cfg api.ImagesConfig) map[string]Optimizer {
	commands := func(fc api.FormatConfig) Chain {
		var c Chain
		for _, args := range fc.Commands {
			if len(args) > 0 {
				c = append(c, CommandOptimizer(args))
			}
		}
		return c
	}

	jpegChain := commands(cfg.JPEG.FormatConfig)
	if !cfg.JPEG.Lossless {
		jpegChain = append(jpegChain, JPEGEncoder{Quality: cfg.JPEG.Quality})
	}

	return map[string]Optimizer{
		".png":  append(commands(cfg.PNG), PNGEncoder{}),
		".jpg":  jpegChain,
		".jpeg": jpegChain,
		".gif":  append(commands(cfg.GIF), GIFEncoder{}),
		".svg":  append(commands(cfg.SVG), NewSVGMinifier()),
	}
}

// CommandOptimizer pipes the image through an external program that reads
// stdin and writes stdout, such as "jpegtran -optimize" or "pngquant -".
type CommandOptimizer []string

func (c CommandOptimizer) Fingerprint() string {
	return "cmd:" + strings.Join(c, " ")
}

func (c CommandOptimizer) Optimize(ctx context.Context, data []byte) ([]byte, error) {
	if _, err := exec.LookPath(c[0]); err != nil {
		return nil, fmt.Errorf("%s binary not found in PATH: %w", c[0], err)
	}

	cmd := exec.CommandContext(ctx, c[0], c[1:]...)
	cmd.Stdin = bytes.NewReader(data)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s failed: %w\nstderr: %s", c[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

// PNGEncoder re-encodes a PNG at the best compression level.
type PNGEncoder struct{}

func (PNGEncoder) Fingerprint() string { return "png:best" }

func (PNGEncoder) Optimize(_ context.Context, data []byte) ([]byte, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding png: %w", err)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

// JPEGEncoder re-encodes a JPEG at a fixed quality. The encoder writes no
// metadata, so images with a non-default EXIF orientation are returned
// unchanged to keep them displayed the right way up.
type JPEGEncoder struct {
	Quality int
}

func (e JPEGEncoder) Fingerprint() string { return fmt.Sprintf("jpeg:q%d:orient", e.Quality) }

func (e JPEGEncoder) Optimize(_ context.Context, data []byte) ([]byte, error) {
	if jpegOrientation(data) > 1 {
		return data, nil
	}
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding jpeg: %w", err)
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: e.Quality}); err != nil {
		return nil, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// GIFEncoder re-encodes every frame of a GIF.
type GIFEncoder struct{}

func (GIFEncoder) Fingerprint() string { return "gif:reencode" }

func (GIFEncoder) Optimize(_ context.Context, data []byte) ([]byte, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding gif: %w", err)
	}
	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, g); err != nil {
		return nil, fmt.Errorf("encoding gif: %w", err)
	}
	return buf.Bytes(), nil
}

// SVGMinifier minifies SVG markup. The viewBox attribute is kept.
type SVGMinifier struct {
	m *minify.M
}

func NewSVGMinifier() SVGMinifier {
	m := minify.New()
	m.AddFunc("image/svg+xml", svg.Minify)
	return SVGMinifier{m: m}
}

func (SVGMinifier) Fingerprint() string { return "svg:minify" }

func (s SVGMinifier) Optimize(_ context.Context, data []byte) ([]byte, error) {
	out, err := s.m.Bytes("image/svg+xml", data)
	if err != nil {
		return nil, fmt.Errorf("minifying svg: %w", err)
	}
	return out, nil
}
