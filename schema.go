package fieldvault

import "github.com/hengadev/fieldvault/internal/schema"

// SchemaRegistry maps collection names to their encryption schemas. It is
// loaded once at startup and immutable afterwards; changing schemas requires
// constructing a new registry (and, for key changes, a cache reload).
type SchemaRegistry = schema.Registry

// CollectionSchema declares the encrypted field paths and skip rules of one
// collection.
type CollectionSchema = schema.CollectionSchema

// LoadSchema reads the encryption schema resource at path. The resource maps
// collection names to objects with "encrypt", "skipIf" and "notSkipIf" keys;
// YAML and JSON are both accepted.
func LoadSchema(path string) (*SchemaRegistry, error) {
	return schema.Load(path)
}

// ParseSchema decodes a schema document from raw bytes.
func ParseSchema(raw []byte) (*SchemaRegistry, error) {
	return schema.Parse(raw)
}
