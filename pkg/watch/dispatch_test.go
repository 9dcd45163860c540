package watch

import (
	"context"
	"errors"
	"iter"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDebounce = 20 * time.Millisecond

// feed returns a channel and a sequence yielding what is sent on it until
// the channel is closed.
func feed() (chan<- Event, iter.Seq[Event]) {
	ch := make(chan Event)
	return ch, func(yield func(Event) bool) {
		for ev := range ch {
			if !yield(ev) {
				return
			}
		}
	}
}

func startDispatch(t *testing.T, bindings []Binding, workers int) (chan<- Event, func()) {
	t.Helper()
	ch, seq := feed()
	done := make(chan error, 1)
	go func() {
		done <- Dispatch(t.Context(), seq, bindings, Options{Debounce: testDebounce, Workers: workers})
	}()
	stop := func() {
		close(ch)
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("Dispatch did not return")
		}
	}
	return ch, stop
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 5*time.Second, 5*time.Millisecond)
}

func TestDispatch_DebouncesBursts(t *testing.T) {
	var mu sync.Mutex
	var got []Event
	bindings := []Binding{{
		Pattern: "src/js/dev/*.js",
		Handler: func(_ context.Context, ev Event) error {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, ev)
			return nil
		},
	}}

	ch, stop := startDispatch(t, bindings, 2)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		ch <- Event{Path: "src/js/dev/" + name + ".js"}
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) > 0
	})
	time.Sleep(5 * testDebounce)
	stop()

	require.Len(t, got, 1)
	assert.Equal(t, "src/js/dev/e.js", got[0].Path)
}

func TestDispatch_IgnoresNonMatching(t *testing.T) {
	var calls atomic.Int32
	bindings := []Binding{{
		Pattern: "src/*.html",
		Handler: func(context.Context, Event) error { calls.Add(1); return nil },
	}}

	ch, stop := startDispatch(t, bindings, 1)
	ch <- Event{Path: "src/js/app.js"}
	ch <- Event{Path: "src/pages/about.html"}
	time.Sleep(5 * testDebounce)
	stop()

	assert.Equal(t, int32(0), calls.Load())
}

func TestDispatch_IsolatesFailures(t *testing.T) {
	var healthy atomic.Int32
	bindings := []Binding{
		{Pattern: "panic/*", Handler: func(context.Context, Event) error { panic("boom") }},
		{Pattern: "fail/*", Handler: func(context.Context, Event) error { return errors.New("compile error") }},
		{Pattern: "ok/*", Handler: func(context.Context, Event) error { healthy.Add(1); return nil }},
	}

	ch, stop := startDispatch(t, bindings, 1)
	ch <- Event{Path: "panic/a"}
	ch <- Event{Path: "fail/a"}
	ch <- Event{Path: "ok/a"}
	waitFor(t, func() bool { return healthy.Load() == 1 })

	// The panicking and failing bindings keep working too.
	ch <- Event{Path: "panic/b"}
	ch <- Event{Path: "fail/b"}
	time.Sleep(3 * testDebounce)
	ch <- Event{Path: "ok/b"}
	waitFor(t, func() bool { return healthy.Load() == 2 })
	stop()
}

func TestDispatch_SingleFlight(t *testing.T) {
	var calls, active, maxActive atomic.Int32
	release := make(chan struct{})
	bindings := []Binding{{
		Pattern: "src/styles/styl/*.styl",
		Handler: func(context.Context, Event) error {
			n := active.Add(1)
			defer active.Add(-1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			if calls.Add(1) == 1 {
				<-release
			}
			return nil
		},
	}}

	ch, stop := startDispatch(t, bindings, 4)
	ch <- Event{Path: "src/styles/styl/main.styl"}
	waitFor(t, func() bool { return calls.Load() == 1 })

	// Changes during a run collapse into a single rerun.
	ch <- Event{Path: "src/styles/styl/main.styl"}
	time.Sleep(3 * testDebounce)
	ch <- Event{Path: "src/styles/styl/print.styl"}
	time.Sleep(3 * testDebounce)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	waitFor(t, func() bool { return calls.Load() == 2 })
	time.Sleep(5 * testDebounce)
	stop()

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestDispatch_WorkerLimit(t *testing.T) {
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup
	handler := func(context.Context, Event) error {
		defer wg.Done()
		n := active.Add(1)
		defer active.Add(-1)
		for {
			cur := maxActive.Load()
			if n <= cur || maxActive.CompareAndSwap(cur, n) {
				break
			}
		}
		time.Sleep(3 * testDebounce)
		return nil
	}
	bindings := []Binding{
		{Pattern: "a/*", Handler: handler},
		{Pattern: "b/*", Handler: handler},
		{Pattern: "c/*", Handler: handler},
	}

	wg.Add(3)
	ch, stop := startDispatch(t, bindings, 2)
	ch <- Event{Path: "a/x"}
	ch <- Event{Path: "b/x"}
	ch <- Event{Path: "c/x"}
	wg.Wait()
	stop()

	assert.Equal(t, int32(2), maxActive.Load())
}

func TestDispatch_InvalidPattern(t *testing.T) {
	_, seq := feed()
	err := Dispatch(t.Context(), seq, []Binding{{Pattern: "src/[", Handler: nil}}, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid watch pattern")
}
