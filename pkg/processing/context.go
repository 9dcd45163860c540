package processing

import (
	"fmt"
	"maps"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadContextFile reads the template data file given on the command line.
// An empty file yields an empty map.
func LoadContextFile(filename string) (map[string]any, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("reading context file: %w", err)
	}

	var ctx map[string]any
	if err := yaml.Unmarshal(data, &ctx); err != nil {
		return nil, fmt.Errorf("parsing context file %s: %w", filename, err)
	}

	if ctx == nil {
		ctx = make(map[string]any)
	}

	return ctx, nil
}

// MergeContext merges override over base. Nested maps are merged key by
// key; any other value in override replaces the one in base. Neither input
// is modified.
func MergeContext(base, override map[string]any) map[string]any {
	merged := make(map[string]any, len(base)+len(override))
	maps.Copy(merged, base)
	for k, v := range override {
		baseMap, baseOK := merged[k].(map[string]any)
		overMap, overOK := v.(map[string]any)
		if baseOK && overOK {
			merged[k] = MergeContext(baseMap, overMap)
			continue
		}
		merged[k] = v
	}
	return merged
}
