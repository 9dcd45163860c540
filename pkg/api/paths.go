package api

import (
	"path/filepath"
	"strings"
)

// StepPaths returns the source glob and destination directory for a step,
// taking per-step overrides before the path table.
func (c *Config) StepPaths(step StepConfig) (src, dest string) {
	switch step.Type {
	case StepTypeClean:
		dest = c.Paths.Root.Dest
	case StepTypeHTML:
		src, dest = c.Paths.HTML.Src, c.Paths.HTML.Dest
	case StepTypeStylus:
		src, dest = c.Paths.Styles.Styl, c.Paths.Styles.Dev
	case StepTypeStyles:
		src, dest = c.Paths.Styles.SrcProd, c.Paths.Styles.Prod
	case StepTypeScripts:
		if step.Scripts != nil && step.Scripts.Mode == ScriptModeMinify {
			src, dest = c.Paths.Scripts.SrcProd, c.Paths.Scripts.DestProd
		} else {
			src, dest = c.Paths.Scripts.SrcDev, c.Paths.Scripts.DestDev
		}
	case StepTypeImages:
		src, dest = c.Paths.Images.Src, c.Paths.Images.Dest
	case StepTypeServe:
		src = c.Paths.Root.Src
		if step.Serve != nil && step.Serve.BaseDir != "" {
			src = step.Serve.BaseDir
		}
	}

	if step.Src != "" {
		src = step.Src
	}
	if step.Dest != "" {
		dest = step.Dest
	}
	return src, dest
}

// isWithin reports whether child equals parent or lies below it.
// Both paths are interpreted relative to the same base.
func isWithin(parent, child string) bool {
	parent = filepath.Clean(parent)
	child = filepath.Clean(child)
	if parent == "." {
		return true
	}
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
