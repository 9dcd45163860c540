package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"runtime"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/systemstart/many-assets/pkg/cache"
	"github.com/systemstart/many-assets/pkg/metrics"
)

type imagesStep struct {
	name       string
	files      fileSet
	optimizers map[string]Optimizer
	cache      Cache
}

// NewImagesStep creates a step that optimizes images with the optimizer
// registered for their extension. Files with no optimizer are copied as-is.
// When c is non-nil, results are cached by content hash and a hit skips
// the optimizer.
func NewImagesStep(name string, files fileSet, optimizers map[string]Optimizer, c Cache) Step {
	return &imagesStep{name: name, files: files, optimizers: optimizers, cache: c}
}

func (s *imagesStep) Name() string { return s.name }

func (s *imagesStep) Run(ctx context.Context, sctx StepContext) (*StepResult, error) {
	files, err := s.files.sources(sctx.WorkDir)
	if err != nil {
		return nil, err
	}

	rec := metrics.OrNoop(sctx.Recorder)
	outs := make([]output, len(files))
	var cached atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range files {
		g.Go(func() error {
			data, err := readSource(sctx.WorkDir, f)
			if err != nil {
				return err
			}
			optimized, hit, err := s.optimize(gctx, f, data)
			if err != nil {
				return err
			}
			if s.cache != nil {
				rec.IncCacheResult(hit)
			}
			if hit {
				cached.Add(1)
			}
			outs[i] = output{rel: s.files.destName(f), data: optimized}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	written, err := writeOutputs(sctx.WorkDir, s.files.dest, outs)
	if err != nil {
		return nil, err
	}

	slog.Info("optimized images", "step", s.name, "files", len(written), "cached", cached.Load())
	return &StepResult{Written: written, Cached: int(cached.Load())}, nil
}

// optimize returns the optimized bytes of one file and whether they came
// from the cache.
func (s *imagesStep) optimize(ctx context.Context, file string, data []byte) ([]byte, bool, error) {
	opt, ok := s.optimizers[strings.ToLower(path.Ext(file))]
	if !ok {
		slog.Debug("no optimizer for file, copying", "step", s.name, "file", file)
		return data, false, nil
	}

	var key string
	if s.cache != nil {
		key = cache.Key(opt.Fingerprint(), data)
		stored, hit, err := s.cache.Get(ctx, key)
		if err != nil {
			slog.Warn("reading optimization cache", "file", file, "error", err)
		} else if hit {
			slog.Debug("cache hit", "step", s.name, "file", file)
			return stored, true, nil
		}
	}

	optimized, err := opt.Optimize(ctx, data)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		return nil, false, &SourceError{File: file, Err: err}
	}

	if s.cache != nil {
		if err := s.cache.Put(ctx, key, optimized); err != nil && !errors.Is(err, context.Canceled) {
			slog.Warn("writing optimization cache", "file", file, "error", err)
		}
	}
	slog.Debug("optimized image", "step", s.name, "file", file,
		"before", len(data), "after", len(optimized),
		"saved", fmt.Sprintf("%.1f%%", savedPercent(len(data), len(optimized))))
	return optimized, false, nil
}

func savedPercent(before, after int) float64 {
	if before == 0 {
		return 0
	}
	return float64(before-after) * 100 / float64(before)
}
