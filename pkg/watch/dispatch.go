package watch

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/semaphore"

	"github.com/systemstart/many-assets/pkg/metrics"
)

// Handler reacts to a change matching a binding. ev is the latest event
// seen before the debounce window closed.
type Handler func(ctx context.Context, ev Event) error

// Binding associates a glob pattern with the handler run when a matching
// file changes.
type Binding struct {
	Pattern string
	Handler Handler
}

// Options tunes Dispatch.
type Options struct {
	Debounce time.Duration
	Workers  int // maximum concurrently running handlers, default 1
	Recorder metrics.Recorder
}

// Dispatch matches every event against the bindings until events ends or
// ctx is done, then waits for running handlers to return.
//
// Each binding is debounced on its own and runs at most once at a time;
// changes arriving during a run schedule exactly one rerun. Handlers of
// different bindings run concurrently, bounded by Options.Workers. A
// handler error or panic is logged and does not affect other bindings.
func Dispatch(ctx context.Context, events iter.Seq[Event], bindings []Binding, opts Options) error {
	for _, b := range bindings {
		if !doublestar.ValidatePattern(b.Pattern) {
			return fmt.Errorf("invalid watch pattern %q", b.Pattern)
		}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	d := &dispatcher{
		ctx:      ctx,
		debounce: opts.Debounce,
		sem:      semaphore.NewWeighted(int64(workers)),
		recorder: metrics.OrNoop(opts.Recorder),
	}

	slots := make([]*slot, len(bindings))
	for i, b := range bindings {
		slots[i] = &slot{d: d, binding: b}
	}

	for ev := range events {
		for _, s := range slots {
			if ok, _ := doublestar.Match(s.binding.Pattern, ev.Path); ok {
				d.recorder.IncWatchEvent(s.binding.Pattern)
				s.trigger(ev)
			}
		}
	}

	for _, s := range slots {
		s.close()
	}
	d.wg.Wait()
	return nil
}

type dispatcher struct {
	ctx      context.Context
	debounce time.Duration
	sem      *semaphore.Weighted
	recorder metrics.Recorder
	wg       sync.WaitGroup
}

// slot holds the debounce and single-flight state of one binding.
type slot struct {
	d       *dispatcher
	binding Binding

	mu      sync.Mutex
	timer   *time.Timer
	last    Event
	running bool
	pending bool
	closed  bool
}

func (s *slot) trigger(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.last = ev
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.d.debounce, s.fire)
}

func (s *slot) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.running {
		s.pending = true
		return
	}
	s.running = true
	ev := s.last
	s.d.wg.Add(1)
	go s.run(ev)
}

func (s *slot) run(ev Event) {
	defer s.d.wg.Done()

	if err := s.d.sem.Acquire(s.d.ctx, 1); err == nil {
		s.invoke(ev)
		s.d.sem.Release(1)
	}

	s.mu.Lock()
	s.running = false
	rerun := s.pending && !s.closed
	s.pending = false
	s.mu.Unlock()

	if rerun {
		s.fire()
	}
}

func (s *slot) invoke(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("watch handler panicked", "pattern", s.binding.Pattern, "file", ev.Path,
				"panic", r, "stack", string(debug.Stack()))
		}
	}()

	if err := s.binding.Handler(s.d.ctx, ev); err != nil {
		if s.d.ctx.Err() != nil {
			return
		}
		slog.Error("watch handler failed", "pattern", s.binding.Pattern, "file", ev.Path, "error", err)
	}
}

func (s *slot) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
}
