package runner

import (
	"context"
	"iter"
	"log/slog"

	"github.com/systemstart/many-assets/pkg/steps"
	"github.com/systemstart/many-assets/pkg/watch"
)

// Notify is called after a watch-triggered rebuild. err is nil on success.
type Notify func(pattern string, err error)

// RegisterWatch re-runs list in order whenever a file matching pattern
// changes. notify, when non-nil, is called after every run. A binding with
// no steps only notifies.
//
// Registrations take effect on the next call to Watch.
func (r *Runner) RegisterWatch(pattern string, notify Notify, list ...steps.Step) {
	r.bindings = append(r.bindings, watch.Binding{
		Pattern: pattern,
		Handler: func(ctx context.Context, ev watch.Event) error {
			if len(list) > 0 {
				slog.Info("change detected, rebuilding", "task", r.task, "file", ev.Path, "pattern", pattern)
			}
			err := r.RunSequence(ctx, list...)
			if notify != nil && ctx.Err() == nil {
				notify(pattern, err)
			}
			return err
		},
	})
}

// Watch dispatches events to the registered watches until events ends or
// ctx is done. Failed rebuilds are logged; watching continues.
func (r *Runner) Watch(ctx context.Context, events iter.Seq[watch.Event]) error {
	slog.Info("watching for changes", "task", r.task, "bindings", len(r.bindings))
	return watch.Dispatch(ctx, events, r.bindings, watch.Options{
		Debounce: r.debounce,
		Workers:  r.workers,
		Recorder: r.recorder,
	})
}
