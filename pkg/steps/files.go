package steps

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// fileSet is the single input path-set and output directory of a step.
type fileSet struct {
	src      string
	exclude  []string
	dest     string
	optional bool
}

// output is a staged file waiting to be written below dest.
type output struct {
	rel  string // path below dest, slash separated
	data []byte
}

func globFS(fsys fs.FS, patterns []string) ([]string, error) {
	var result []string
	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		result = append(result, matches...)
	}
	slices.Sort(result)
	result = slices.Compact(result)
	return result, nil
}

func filterFiles(fsys fs.FS, include, exclude []string) ([]string, error) {
	included, err := globFS(fsys, include)
	if err != nil {
		return nil, fmt.Errorf("include filter: %w", err)
	}

	excluded, err := globFS(fsys, exclude)
	if err != nil {
		return nil, fmt.Errorf("exclude filter: %w", err)
	}

	var result []string
	for _, f := range included {
		info, err := fs.Stat(fsys, f)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", f, err)
		}
		if info.IsDir() {
			continue
		}
		if slices.Contains(excluded, f) {
			continue
		}
		result = append(result, f)
	}
	return result, nil
}

// sources resolves the step's glob below workDir. An empty match is an
// error unless the step is optional.
func (set fileSet) sources(workDir string) ([]string, error) {
	files, err := filterFiles(os.DirFS(workDir), []string{set.src}, set.exclude)
	if err != nil {
		return nil, fmt.Errorf("selecting sources: %w", err)
	}
	if len(files) == 0 && !set.optional {
		return nil, fmt.Errorf("%w %q in %s", ErrNoSources, set.src, workDir)
	}
	return files, nil
}

// destName maps a matched source file to its path below dest, keeping the
// part of the path below the glob's static base.
func (set fileSet) destName(file string) string {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(set.src))
	if base == "." {
		return file
	}
	return strings.TrimPrefix(file, base+"/")
}

// withExt replaces the extension of a slash separated path.
func withExt(name, ext string) string {
	return strings.TrimSuffix(name, path.Ext(name)) + ext
}

func readSource(workDir, file string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(workDir, filepath.FromSlash(file)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}
	return data, nil
}

// writeOutputs writes every staged file below dest. Each file goes to a
// temporary name first and is renamed into place once fully written.
func writeOutputs(workDir, dest string, outs []output) ([]string, error) {
	if len(outs) == 0 {
		return nil, nil
	}

	absDest := filepath.Join(workDir, dest)
	written := make([]string, 0, len(outs))

	for _, out := range outs {
		target := filepath.Join(absDest, filepath.FromSlash(out.rel))
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return written, fmt.Errorf("creating directory %s: %w", filepath.Dir(target), err)
		}
		if err := writeFileAtomic(target, out.data); err != nil {
			return written, err
		}
		rel := filepath.ToSlash(filepath.Join(dest, filepath.FromSlash(out.rel)))
		written = append(written, rel)
		slog.Debug("wrote file", "file", rel, "bytes", len(out.data))
	}
	return written, nil
}

func writeFileAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), "."+filepath.Base(target)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", target, err)
	}
	tmpName := tmp.Name()

	_, writeErr := tmp.Write(data)
	if closeErr := tmp.Close(); closeErr != nil && writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", target, writeErr)
	}

	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", target, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("renaming into %s: %w", target, err)
	}
	return nil
}
