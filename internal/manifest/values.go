package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// toJSON encodes a cty value as plain JSON.
func toJSON(val cty.Value) ([]byte, error) {
	if val.IsNull() {
		return []byte("null"), nil
	}
	if !val.IsWhollyKnown() {
		return nil, fmt.Errorf("value must be known at load time")
	}
	return ctyjson.Marshal(val, val.Type())
}

// toGo converts a cty value into the values json.Unmarshal produces.
func toGo(val cty.Value) (any, error) {
	raw, err := toJSON(val)
	if err != nil {
		return nil, err
	}
	return decodeJSON(raw)
}

func decodeJSON(raw []byte) (any, error) {
	var out any
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// languages accepts a single tag or a list of tags.
func languages(val cty.Value) ([]string, error) {
	if val.IsNull() {
		return nil, fmt.Errorf("language is required")
	}
	v, err := toGo(val)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("language tags must be strings, got %T", item)
			}
			out = append(out, s)
		}
		if len(out) == 0 {
			return nil, fmt.Errorf("language list is empty")
		}
		return out, nil
	}
	return nil, fmt.Errorf("language must be a string or a list of strings, got %T", v)
}
