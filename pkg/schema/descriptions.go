package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadDescriptions reads per-table descriptions from a YAML file mapping
// table name to free-text description. Descriptions are appended to the
// prompt schema so the model knows what each table means, not just its
// columns. A missing file is not an error; operators opt in.
func LoadDescriptions(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read descriptions file: %w", err)
	}

	out := make(map[string]string)
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse descriptions file: %w", err)
	}
	return out, nil
}
