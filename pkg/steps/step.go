package steps

import (
	"context"

	"github.com/systemstart/many-assets/pkg/metrics"
)

// StepContext provides the runtime context shared by all steps of a task.
type StepContext struct {
	WorkDir      string // project directory; step paths are relative to it
	TemplateData map[string]any
	Recorder     metrics.Recorder
}

// StepResult holds the outcome of a step.
type StepResult struct {
	Written []string // files written, relative to WorkDir
	Cached  int      // files served from the optimization cache
}

// Step is the interface all pipeline steps implement. Run returns once
// every output file has been written and closed.
type Step interface {
	Name() string
	Run(ctx context.Context, sctx StepContext) (*StepResult, error)
}

// Cache stores optimized file contents by key.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}
