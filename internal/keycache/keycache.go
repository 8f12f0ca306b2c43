// Package keycache holds exported transit key material in process memory,
// indexed by key version.
package keycache

import (
	"crypto/rand"
	"fmt"
	"sync"

	"github.com/hengadev/fieldvault/internal/fverr"
)

const maskLength = 16

// Cache maps key versions to symmetric keys. Keys are XOR-masked at rest with
// a per-instance random mask, so raw key bytes never sit unmodified on the
// heap. The mask is generated once when the cache is constructed and is never
// persisted; the masking is in-memory hardening, not cryptographic protection.
//
// The version "latest" (or the empty string) resolves to the lexicographic
// maximum of the stored versions. This is plain string ordering: "3" sorts
// after "10". Vault transit versions are small single-digit strings in
// practice and the simple policy is deliberate.
type Cache struct {
	mu   sync.RWMutex
	keys map[string][]byte
	mask []byte
}

// New creates an empty cache with a fresh random mask.
func New() (*Cache, error) {
	mask := make([]byte, maskLength)
	if _, err := rand.Read(mask); err != nil {
		return nil, fmt.Errorf("failed to generate key mask: %w", err)
	}
	return &Cache{
		keys: make(map[string][]byte),
		mask: mask,
	}, nil
}

// Store saves a key under the given version, overwriting any existing entry.
func (c *Cache) Store(version string, key []byte) error {
	if version == "" || len(key) == 0 {
		return fmt.Errorf("%w: key version and key material must be non-empty", fverr.ErrInvalidArgument)
	}
	masked := c.applyMask(key)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[version] = masked
	return nil
}

// Retrieve returns the key stored under version, together with the concrete
// version it resolved to. "latest" and "" resolve to the maximum stored
// version.
func (c *Cache) Retrieve(version string) (string, []byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if isLatest(version) {
		if len(c.keys) == 0 {
			return "", nil, fmt.Errorf("%w: key cache is empty", fverr.ErrKeyNotFound)
		}
		version = maxVersion(c.keys)
	}
	masked, ok := c.keys[version]
	if !ok {
		return "", nil, fmt.Errorf("%w: key version %q", fverr.ErrKeyNotFound, version)
	}
	return version, c.applyMask(masked), nil
}

// Has reports whether a key is available for the given version. For "latest"
// or "" any non-empty cache counts as a hit.
func (c *Cache) Has(version string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.keys) == 0 {
		return false
	}
	if isLatest(version) {
		return true
	}
	_, ok := c.keys[version]
	return ok
}

// Clear drops every cached key. Keys already retrieved by in-flight
// operations are unaffected.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = make(map[string][]byte)
}

// Len returns the number of cached versions.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.keys)
}

// applyMask XORs data with the cache mask. Applying it twice restores the
// original bytes.
func (c *Cache) applyMask(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ c.mask[i%len(c.mask)]
	}
	return out
}

func isLatest(version string) bool {
	return version == "" || version == "latest"
}

func maxVersion(keys map[string][]byte) string {
	var max string
	for v := range keys {
		if v > max {
			max = v
		}
	}
	return max
}
