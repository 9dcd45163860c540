package steps

import (
	"fmt"

	"github.com/systemstart/many-assets/pkg/api"
)

// Deps holds the shared collaborators steps may use.
type Deps struct {
	Cache      Cache                // nil disables the optimization cache
	Optimizers map[string]Optimizer // nil builds them from cfg.Images
}

// NewStep creates a Step implementation from a StepConfig. Serve steps are
// run by the task engine and are rejected here.
func NewStep(cfg *api.Config, sc api.StepConfig, deps Deps) (Step, error) {
	src, dest := cfg.StepPaths(sc)
	files := fileSet{src: src, exclude: sc.Exclude, dest: dest, optional: sc.Optional}

	switch sc.Type {
	case api.StepTypeClean:
		return NewCleanStep(sc.Name, dest), nil
	case api.StepTypeHTML:
		strip, render := true, false
		if sc.HTML != nil {
			strip = api.BoolOr(sc.HTML.StripComments, true)
			render = sc.HTML.Template
		}
		return NewHTMLStep(sc.Name, files, strip, render), nil
	case api.StepTypeStylus:
		return NewStylusStep(sc.Name, files, cfg.Styles.StylusBinary, cfg.Styles.StylusArgs,
			api.BoolOr(cfg.Styles.SourceMaps, true)), nil
	case api.StepTypeStyles:
		return NewStylesStep(sc.Name, files, cfg.Styles.Browsers, api.BoolOr(cfg.Styles.GroupMediaQueries, true))
	case api.StepTypeScripts:
		minify := sc.Scripts != nil && sc.Scripts.Mode == api.ScriptModeMinify
		return NewScriptsStep(sc.Name, files, minify, cfg.Scripts.Target)
	case api.StepTypeImages:
		optimizers := deps.Optimizers
		if optimizers == nil {
			optimizers = NewOptimizers(cfg.Images)
		}
		return NewImagesStep(sc.Name, files, optimizers, deps.Cache), nil
	case api.StepTypeServe:
		return nil, fmt.Errorf("step %q: serve steps are run by the task engine", sc.Name)
	default:
		return nil, fmt.Errorf("unknown step type: %s", sc.Type)
	}
}
