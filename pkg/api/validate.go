package api

import (
	"fmt"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

var validStepTypes = map[string]bool{
	StepTypeClean:   true,
	StepTypeHTML:    true,
	StepTypeStylus:  true,
	StepTypeStyles:  true,
	StepTypeScripts: true,
	StepTypeImages:  true,
	StepTypeServe:   true,
}

var validScriptModes = map[string]bool{
	ScriptModeTranspile: true,
	ScriptModeMinify:    true,
}

var browserTarget = regexp.MustCompile(`^[a-z]+[0-9]+(\.[0-9]+)*$`)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Tasks) == 0 {
		return fmt.Errorf("no tasks defined")
	}

	if err := c.validateClean(); err != nil {
		return err
	}

	names := make([]string, 0, len(c.Tasks))
	for name := range c.Tasks {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := c.validateTask(name, c.Tasks[name]); err != nil {
			return fmt.Errorf("task %q: %w", name, err)
		}
	}

	if err := c.validateSettings(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTask(name string, steps []StepConfig) error {
	if name == "" {
		return fmt.Errorf("task name is required")
	}
	if len(steps) == 0 {
		return fmt.Errorf("task has no steps")
	}

	names := make(map[string]int)
	destinations := make(map[string]string)

	for i, step := range steps {
		if step.Name == "" {
			return fmt.Errorf("step %d: name is required", i)
		}
		if prev, exists := names[step.Name]; exists {
			return fmt.Errorf("step %d: duplicate step name %q (first defined at step %d)", i, step.Name, prev)
		}
		names[step.Name] = i

		if !validStepTypes[step.Type] {
			return fmt.Errorf("step %q: unknown type %q", step.Name, step.Type)
		}
		if err := c.validateStepConfig(step, steps[:i]); err != nil {
			return fmt.Errorf("step %q: %w", step.Name, err)
		}
		if step.Type == StepTypeServe && i != len(steps)-1 {
			return fmt.Errorf("step %q: serve must be the last step of a task", step.Name)
		}
		if step.Parallel {
			if err := validateParallel(step, steps[:i]); err != nil {
				return fmt.Errorf("step %q: %w", step.Name, err)
			}
		}

		if step.Type == StepTypeClean {
			_, dest := c.StepPaths(step)
			if err := c.checkCleanTarget("dest", dest); err != nil {
				return fmt.Errorf("step %q: %w", step.Name, err)
			}
			continue
		}
		if step.Type == StepTypeServe {
			continue
		}
		_, dest := c.StepPaths(step)
		if dest == "" {
			return fmt.Errorf("step %q: destination is required", step.Name)
		}
		key := filepath.Clean(dest)
		if other, taken := destinations[key]; taken {
			return fmt.Errorf("step %q: destination %q already written by step %q", step.Name, dest, other)
		}
		destinations[key] = step.Name
	}
	return nil
}

func (c *Config) validateStepConfig(step StepConfig, earlier []StepConfig) error {
	src, _ := c.StepPaths(step)

	switch step.Type {
	case StepTypeHTML, StepTypeStylus, StepTypeStyles, StepTypeImages:
		return validatePattern(src)
	case StepTypeScripts:
		if step.Scripts == nil {
			return fmt.Errorf("scripts config is required")
		}
		if !validScriptModes[step.Scripts.Mode] {
			return fmt.Errorf("unknown scripts mode %q", step.Scripts.Mode)
		}
		return validatePattern(src)
	case StepTypeServe:
		return validateServeConfig(step, earlier)
	}
	return nil
}

func validateServeConfig(step StepConfig, earlier []StepConfig) error {
	if step.Serve == nil {
		return nil
	}

	runnable := make(map[string]bool, len(earlier))
	for _, s := range earlier {
		if s.Type != StepTypeClean && s.Type != StepTypeServe {
			runnable[s.Name] = true
		}
	}

	for i, w := range step.Serve.Watch {
		if err := validatePattern(w.Pattern); err != nil {
			return fmt.Errorf("watch %d: %w", i, err)
		}
		if len(w.Run) == 0 && !w.Reload {
			return fmt.Errorf("watch %d: nothing to do for %q (set run or reload)", i, w.Pattern)
		}
		for _, name := range w.Run {
			if !runnable[name] {
				return fmt.Errorf("watch %d: step %q is not a buildable step defined earlier in the task", i, name)
			}
		}
	}
	return nil
}

func validateParallel(step StepConfig, earlier []StepConfig) error {
	if len(earlier) == 0 {
		return fmt.Errorf("parallel step has no earlier step to run with")
	}
	prev := earlier[len(earlier)-1]
	for _, s := range []StepConfig{step, prev} {
		if s.Type == StepTypeClean || s.Type == StepTypeServe {
			return fmt.Errorf("%s steps cannot run in parallel", s.Type)
		}
	}
	return nil
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("source pattern is required")
	}
	if !doublestar.ValidatePattern(filepath.ToSlash(pattern)) {
		return fmt.Errorf("invalid glob pattern %q", pattern)
	}
	return nil
}

func (c *Config) validateClean() error {
	if c.Paths.Root.Dest == "" {
		return fmt.Errorf("paths.root.dest is required")
	}
	return c.checkCleanTarget("paths.root.dest", c.Paths.Root.Dest)
}

// checkCleanTarget rejects directories whose removal would take the project
// or its sources with it.
func (c *Config) checkCleanTarget(field, dest string) error {
	clean := filepath.Clean(dest)
	if clean == "." || clean == string(filepath.Separator) || clean == ".." ||
		strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%s %q cannot be used as a build output", field, dest)
	}
	if c.Paths.Root.Src != "" && isWithin(clean, c.Paths.Root.Src) {
		return fmt.Errorf("%s %q contains the source root %q", field, dest, c.Paths.Root.Src)
	}
	return nil
}

func (c *Config) validateSettings() error {
	for _, b := range c.Styles.Browsers {
		if !browserTarget.MatchString(b) {
			return fmt.Errorf("styles.browsers: invalid target %q", b)
		}
	}
	if q := c.Images.JPEG.Quality; q < 1 || q > 100 {
		return fmt.Errorf("images.jpeg.quality must be between 1 and 100, got %d", q)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.Debounce != "" {
		if _, err := time.ParseDuration(c.Server.Debounce); err != nil {
			return fmt.Errorf("server.debounce: %w", err)
		}
	}
	if c.CacheEnabled() && c.Cache.File != "" && !filepath.IsAbs(c.Cache.File) && isWithin(c.Paths.Root.Dest, c.Cache.File) {
		return fmt.Errorf("cache.file %q lies inside the build output %q and would be cleaned", c.Cache.File, c.Paths.Root.Dest)
	}
	return nil
}
