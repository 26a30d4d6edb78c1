// Package validation provides the schema-builder primitive handed to
// validator handlers.
//
// Schemas are JSON Schema documents, either written by hand or reflected
// from Go structs, compiled once and validated against decoded JSON values.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	reflector "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/vk/xfiber/internal/registry"
)

// Builder compiles JSON Schema documents.
type Builder struct {
	reflector *reflector.Reflector
	seq       atomic.Uint64
}

// NewBuilder creates a Builder.
func NewBuilder() *Builder {
	r := new(reflector.Reflector)
	r.ExpandedStruct = true
	return &Builder{reflector: r}
}

// Schema is a compiled schema.
type Schema struct {
	compiled *jsonschema.Schema
}

// Validate checks v against the schema. Go values that are not the plain
// result of json.Unmarshal are normalized through a JSON round trip first.
func (s *Schema) Validate(v any) error {
	normalized, err := normalize(v)
	if err != nil {
		return err
	}
	return s.compiled.Validate(normalized)
}

// Compile compiles a JSON Schema document.
func (b *Builder) Compile(document string) (registry.Schema, error) {
	url := fmt.Sprintf("mem://schema/%d.json", b.seq.Add(1))
	c := jsonschema.NewCompiler()
	if err := c.AddResource(url, strings.NewReader(document)); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// Reflect derives a schema from a Go struct value and compiles it.
func (b *Builder) Reflect(v any) (registry.Schema, error) {
	doc, err := json.Marshal(b.reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal reflected schema: %w", err)
	}
	return b.Compile(string(doc))
}

func normalize(v any) (any, error) {
	switch v.(type) {
	case nil, string, bool, float64, json.Number, map[string]any, []any:
		return v, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON encodable: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
