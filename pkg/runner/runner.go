// Package runner executes steps in declared order and re-runs them when
// watched files change.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/systemstart/many-assets/pkg/metrics"
	"github.com/systemstart/many-assets/pkg/steps"
	"github.com/systemstart/many-assets/pkg/watch"
)

const tracerName = "github.com/systemstart/many-assets/pkg/runner"

// Kind classifies a step failure.
type Kind int

const (
	KindOther Kind = iota
	KindSource
	KindFilesystem
)

func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindFilesystem:
		return "filesystem"
	default:
		return "other"
	}
}

// StepError is returned when a step fails.
type StepError struct {
	Task string
	Step string
	Kind Kind
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Classify returns the kind of a step error.
func Classify(err error) Kind {
	var srcErr *steps.SourceError
	var pathErr *fs.PathError
	switch {
	case errors.As(err, &srcErr):
		return KindSource
	case errors.Is(err, steps.ErrNoSources),
		errors.As(err, &pathErr):
		return KindFilesystem
	default:
		return KindOther
	}
}

// Options configures a Runner.
type Options struct {
	Recorder metrics.Recorder
	Tracer   trace.Tracer
	Debounce time.Duration
	Workers  int
}

// Runner runs the steps of one task.
type Runner struct {
	task     string
	sctx     steps.StepContext
	recorder metrics.Recorder
	tracer   trace.Tracer
	debounce time.Duration
	workers  int
	bindings []watch.Binding
}

// New creates a Runner for task. Every step receives sctx.
func New(task string, sctx steps.StepContext, opts Options) *Runner {
	rec := metrics.OrNoop(opts.Recorder)
	if sctx.Recorder == nil {
		sctx.Recorder = rec
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return &Runner{
		task:     task,
		sctx:     sctx,
		recorder: rec,
		tracer:   tracer,
		debounce: opts.Debounce,
		workers:  opts.Workers,
	}
}

// RunSequence runs the steps one after another. A step starts only after
// the previous one returned; the first failure aborts the rest.
func (r *Runner) RunSequence(ctx context.Context, list ...steps.Step) error {
	runID := uuid.NewString()
	for _, s := range list {
		if err := r.runStep(ctx, runID, s); err != nil {
			return err
		}
	}
	return nil
}

// RunParallel runs independent steps concurrently. The first failure
// cancels the others and is returned.
func (r *Runner) RunParallel(ctx context.Context, list ...steps.Step) error {
	return r.runParallel(ctx, uuid.NewString(), list)
}

// RunStages runs each stage after the previous one returned. The steps of
// one stage run concurrently. The first failure aborts the remaining
// stages.
func (r *Runner) RunStages(ctx context.Context, stages ...[]steps.Step) error {
	runID := uuid.NewString()
	for _, stage := range stages {
		var err error
		if len(stage) == 1 {
			err = r.runStep(ctx, runID, stage[0])
		} else {
			err = r.runParallel(ctx, runID, stage)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) runParallel(ctx context.Context, runID string, list []steps.Step) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range list {
		g.Go(func() error {
			return r.runStep(gctx, runID, s)
		})
	}
	return g.Wait()
}

func (r *Runner) runStep(ctx context.Context, runID string, s steps.Step) error {
	name := s.Name()
	log := slog.With("task", r.task, "step", name, "run_id", runID)

	if err := ctx.Err(); err != nil {
		return &StepError{Task: r.task, Step: name, Kind: KindOther, Err: err}
	}

	ctx, span := r.tracer.Start(ctx, "step "+name, trace.WithAttributes(
		attribute.String("task", r.task),
		attribute.String("step", name),
		attribute.String("run_id", runID),
	))
	defer span.End()

	log.Info("running step")
	start := time.Now()
	result, err := s.Run(ctx, r.sctx)
	elapsed := time.Since(start)
	r.recorder.ObserveStepDuration(r.task, name, elapsed)

	if err != nil {
		outcome := metrics.ResultFailed
		if ctx.Err() != nil {
			outcome = metrics.ResultCanceled
		}
		r.recorder.IncStepResult(r.task, name, outcome)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return &StepError{Task: r.task, Step: name, Kind: Classify(err), Err: err}
	}

	r.recorder.IncStepResult(r.task, name, metrics.ResultSuccess)
	attrs := []any{"duration", elapsed.Round(time.Millisecond)}
	if result != nil {
		attrs = append(attrs, "files", len(result.Written))
		if result.Cached > 0 {
			attrs = append(attrs, "cached", result.Cached)
		}
	}
	log.Info("step finished", attrs...)
	return nil
}
