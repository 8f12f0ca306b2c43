// Package schema models the per-collection encryption schema and loads it
// from a static YAML or JSON resource at startup.
package schema

import (
	"fmt"
	"os"
	"strings"

	"github.com/hengadev/errsx"
	"gopkg.in/yaml.v3"
)

// CollectionSchema declares which field paths of a collection's documents are
// encrypted and under which conditions a document is exempted.
//
// SkipIf and NotSkipIf are evaluated per document, NotSkipIf first: a document
// is skipped when any NotSkipIf field is absent or holds a value outside its
// allowed set, and otherwise skipped when any SkipIf field holds a value
// inside its trigger set. The precedence is part of the contract.
type CollectionSchema struct {
	Encrypt   []string            `yaml:"encrypt" json:"encrypt"`
	SkipIf    map[string][]string `yaml:"skipIf" json:"skipIf"`
	NotSkipIf map[string][]string `yaml:"notSkipIf" json:"notSkipIf"`
}

// Registry maps collection names to their schemas. It is loaded once and
// immutable afterwards; reloading requires constructing a new Registry.
type Registry struct {
	schemas map[string]*CollectionSchema
}

// NewRegistry wraps an already-parsed schema set, validating it.
func NewRegistry(schemas map[string]*CollectionSchema) (*Registry, error) {
	if err := validate(schemas); err != nil {
		return nil, err
	}
	return &Registry{schemas: schemas}, nil
}

// Load reads and parses the schema resource at path. YAML and JSON documents
// are both accepted.
func Load(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read encryption schema %q: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes a schema document.
func Parse(raw []byte) (*Registry, error) {
	var schemas map[string]*CollectionSchema
	if err := yaml.Unmarshal(raw, &schemas); err != nil {
		return nil, fmt.Errorf("failed to parse encryption schema: %w", err)
	}
	return NewRegistry(schemas)
}

// ForCollection returns the schema for a collection, or nil when the
// collection has none.
func (r *Registry) ForCollection(name string) *CollectionSchema {
	return r.schemas[name]
}

// EncryptableFields returns the declared field paths for a collection, in
// declaration order. Collections without a schema yield an empty slice.
func (r *Registry) EncryptableFields(name string) []string {
	s := r.schemas[name]
	if s == nil {
		return nil
	}
	return s.Encrypt
}

// Collections lists every collection that has a schema.
func (r *Registry) Collections() []string {
	names := make([]string, 0, len(r.schemas))
	for name := range r.schemas {
		names = append(names, name)
	}
	return names
}

func validate(schemas map[string]*CollectionSchema) error {
	var errs errsx.Map
	for coll, s := range schemas {
		if s == nil {
			errs.Set(coll, fmt.Errorf("schema entry is empty"))
			continue
		}
		for i, path := range s.Encrypt {
			if err := validatePath(path); err != nil {
				errs.Set(fmt.Sprintf("%s.encrypt[%d]", coll, i), err)
			}
		}
		for path := range s.SkipIf {
			if err := validatePath(path); err != nil {
				errs.Set(fmt.Sprintf("%s.skipIf[%s]", coll, path), err)
			}
		}
		for path := range s.NotSkipIf {
			if err := validatePath(path); err != nil {
				errs.Set(fmt.Sprintf("%s.notSkipIf[%s]", coll, path), err)
			}
		}
	}
	return errs.AsError()
}

func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("field path is empty")
	}
	for _, segment := range strings.Split(path, ".") {
		if segment == "" {
			return fmt.Errorf("field path %q has an empty segment", path)
		}
	}
	return nil
}
