package attrs

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileStore is a Store loaded from a YAML attribute file:
//
//	docker-image: registry.local/app:1.4
//	docker-port:
//	  - "8080:80"
//	  - "127.0.0.1:8443:443"
//
// Each key holds a scalar or a list of scalars.
type FileStore struct {
	Map
	path string
}

// Load reads the attribute file at path
func Load(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attributes: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse attributes in %s: %w", path, err)
	}

	return &FileStore{Map: m, path: path}, nil
}

// Path returns the file the store was loaded from
func (f *FileStore) Path() string {
	return f.path
}

// Parse decodes a YAML attribute document.
func Parse(data []byte) (Map, error) {
	var raw map[string]values
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := Map{}
	for key, vals := range raw {
		if len(vals) > 0 {
			m[key] = vals
		}
	}
	return m, nil
}

type values []string

func (v *values) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil
		}
		*v = values{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(values, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: list items must be scalars", item.Line)
			}
			out = append(out, item.Value)
		}
		*v = out
		return nil
	default:
		return fmt.Errorf("line %d: attribute must be a scalar or a list", node.Line)
	}
}
