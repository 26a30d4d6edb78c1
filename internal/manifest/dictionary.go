package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
	"github.com/vk/xfiber/internal/registry"
)

// readDictionaryFile decodes a .yaml, .yml, .toml or .json dictionary file.
func readDictionaryFile(path string) (registry.Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}

	var raw map[string]any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		err = toml.Unmarshal(data, &raw)
	case ".json":
		err = json.Unmarshal(data, &raw)
	default:
		return nil, fmt.Errorf("unsupported dictionary file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode dictionary file %s: %w", path, err)
	}
	return normalizeDictionary(raw, "")
}

// normalizeDictionary converts decoded maps into a string tree. Scalars
// other than strings are rendered with fmt; lists are rejected.
func normalizeDictionary(raw map[string]any, path string) (registry.Dictionary, error) {
	out := make(registry.Dictionary, len(raw))
	for k, v := range raw {
		key := k
		if path != "" {
			key = path + "." + k
		}
		node, err := normalizeNode(v, key)
		if err != nil {
			return nil, err
		}
		out[k] = node
	}
	return out, nil
}

func normalizeNode(v any, key string) (any, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case map[string]any:
		d, err := normalizeDictionary(t, key)
		if err != nil {
			return nil, err
		}
		return map[string]any(d), nil
	case map[any]any:
		m := make(map[string]any, len(t))
		for mk, mv := range t {
			m[fmt.Sprint(mk)] = mv
		}
		return normalizeNode(m, key)
	case nil:
		return nil, fmt.Errorf("dictionary entry %q is empty", key)
	case []any:
		return nil, fmt.Errorf("dictionary entry %q is a list; only strings and tables are allowed", key)
	default:
		return fmt.Sprint(t), nil
	}
}
