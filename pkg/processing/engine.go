package processing

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/systemstart/many-assets/pkg/api"
	"github.com/systemstart/many-assets/pkg/cache"
	"github.com/systemstart/many-assets/pkg/metrics"
	"github.com/systemstart/many-assets/pkg/runner"
	"github.com/systemstart/many-assets/pkg/serve"
	"github.com/systemstart/many-assets/pkg/steps"
	"github.com/systemstart/many-assets/pkg/watch"
)

const shutdownTimeout = 5 * time.Second

// Options holds the collaborators of a task run. The zero value is usable.
type Options struct {
	// TemplateData is passed to html steps that render templates. It is
	// merged over the config's context section.
	TemplateData map[string]any
	Recorder     metrics.Recorder
	// MetricsHandler is served at /metrics by the dev server when
	// server.metrics is enabled.
	MetricsHandler http.Handler
	// Cache overrides the cache file from the config.
	Cache steps.Cache
	// Events replaces the filesystem watcher of a serve step.
	Events iter.Seq[watch.Event]
	// Ready is called with the dev server address once it is listening.
	Ready func(addr string)
}

// RunTask runs the named task. A task without a serve step returns after
// its last step; one with a serve step builds, then serves and watches
// until ctx is done.
func RunTask(ctx context.Context, cfg *api.Config, name string, opts Options) error {
	stepCfgs, ok := cfg.Tasks[name]
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}

	deps := steps.Deps{Cache: opts.Cache}
	if deps.Cache == nil && cfg.CacheEnabled() && usesCache(stepCfgs) {
		store, err := cache.Open(cfg.Abs(cfg.Cache.File))
		if err != nil {
			return fmt.Errorf("opening optimization cache: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing optimization cache", "error", err)
			}
		}()
		deps.Cache = store
	}

	built := make(map[string]steps.Step, len(stepCfgs))
	var stages [][]steps.Step
	var serveCfg *api.StepConfig
	for i, sc := range stepCfgs {
		if sc.Type == api.StepTypeServe {
			serveCfg = &stepCfgs[i]
			break
		}
		step, err := steps.NewStep(cfg, sc, deps)
		if err != nil {
			return fmt.Errorf("creating step %q: %w", sc.Name, err)
		}
		built[sc.Name] = step
		if sc.Parallel && len(stages) > 0 {
			stages[len(stages)-1] = append(stages[len(stages)-1], step)
			continue
		}
		stages = append(stages, []steps.Step{step})
	}

	sctx := steps.StepContext{
		WorkDir:      cfg.Dir,
		TemplateData: MergeContext(cfg.Context, opts.TemplateData),
		Recorder:     opts.Recorder,
	}
	r := runner.New(name, sctx, runner.Options{
		Recorder: opts.Recorder,
		Debounce: cfg.DebounceDuration(),
		Workers:  cfg.Server.Workers,
	})

	slog.Info("running task", "task", name, "steps", len(stepCfgs), "dir", cfg.Dir)
	if err := r.RunStages(ctx, stages...); err != nil {
		return err
	}

	if serveCfg == nil {
		slog.Info("task finished", "task", name)
		return nil
	}
	return serveAndWatch(ctx, cfg, r, *serveCfg, built, opts)
}

func usesCache(stepCfgs []api.StepConfig) bool {
	return slices.ContainsFunc(stepCfgs, func(sc api.StepConfig) bool {
		return sc.Type == api.StepTypeImages
	})
}

func serveAndWatch(ctx context.Context, cfg *api.Config, r *runner.Runner, sc api.StepConfig,
	built map[string]steps.Step, opts Options) error {
	root, _ := cfg.StepPaths(sc)

	var metricsHandler http.Handler
	if cfg.Server.Metrics {
		metricsHandler = opts.MetricsHandler
	}

	hub := serve.NewHub()
	server := serve.New(serve.Options{
		Host:    cfg.Server.Host,
		Port:    cfg.Server.Port,
		Root:    cfg.Abs(root),
		Metrics: metricsHandler,
	}, hub)
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Warn("dev server shutdown", "error", err)
		}
	}()
	if opts.Ready != nil {
		opts.Ready(server.Addr())
	}

	if sc.Serve != nil {
		for _, wc := range sc.Serve.Watch {
			list := make([]steps.Step, 0, len(wc.Run))
			for _, stepName := range wc.Run {
				list = append(list, built[stepName])
			}
			r.RegisterWatch(wc.Pattern, reloadNotify(hub, wc.Reload), list...)
		}
	}

	events := opts.Events
	if events == nil {
		w, err := watch.New(cfg.Dir)
		if err != nil {
			return fmt.Errorf("starting watcher: %w", err)
		}
		defer func() { _ = w.Close() }()
		events = w.Events(ctx)
	}

	err := r.Watch(ctx, events)
	slog.Info("stopped watching")
	return err
}

// reloadNotify reloads browsers after a successful rebuild when reload is
// set. Failed rebuilds have already been logged and never reload.
func reloadNotify(hub *serve.Hub, reload bool) runner.Notify {
	return func(pattern string, err error) {
		if err != nil {
			slog.Debug("not reloading after failed rebuild", "pattern", pattern)
			return
		}
		if reload {
			hub.Reload()
		}
	}
}
