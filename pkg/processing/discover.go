package processing

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/systemstart/many-assets/pkg/api"
)

// ErrConfigNotFound is returned by DiscoverConfig when no config file exists
// in the start directory or any of its parents.
var ErrConfigNotFound = errors.New("no " + api.DefaultConfigFilename + " found")

// DiscoverConfig looks for many-assets.yaml in start and then in each parent
// directory, returning the first match.
func DiscoverConfig(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving start directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, api.DefaultConfigFilename)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && !info.IsDir():
			return candidate, nil
		case err != nil && !os.IsNotExist(err):
			return "", fmt.Errorf("checking %s: %w", candidate, err)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", ErrConfigNotFound
		}
		dir = parent
	}
}

// LoadConfig loads configFile when set. Otherwise it discovers a config file
// from workDir upwards, falling back to the built-in defaults rooted at
// workDir.
func LoadConfig(configFile, workDir string) (*api.Config, error) {
	if configFile != "" {
		return api.LoadConfig(configFile)
	}

	found, err := DiscoverConfig(workDir)
	if errors.Is(err, ErrConfigNotFound) {
		return api.LoadDefault(workDir)
	}
	if err != nil {
		return nil, err
	}
	return api.LoadConfig(found)
}
