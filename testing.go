package fieldvault

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/hengadev/fieldvault/internal/fverr"
)

// InMemoryExporter is a KeyExporter backed by a map, for tests. It mirrors
// the export protocol of the real transit engine, including the fatal
// missing-transit-key error when constructed without any versions.
type InMemoryExporter struct {
	mu    sync.RWMutex
	keys  map[string]string // version -> base64 key
	calls int
}

// NewInMemoryExporter creates an exporter holding the given number of
// generated 32-byte key versions, named "1".."n".
func NewInMemoryExporter(versions int) *InMemoryExporter {
	e := &InMemoryExporter{keys: make(map[string]string)}
	for i := 1; i <= versions; i++ {
		raw := make([]byte, 32)
		rand.Read(raw)
		e.keys[fmt.Sprintf("%d", i)] = base64.StdEncoding.EncodeToString(raw)
	}
	return e
}

// ExportKey implements KeyExporter.
func (e *InMemoryExporter) ExportKey(ctx context.Context, version string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if len(e.keys) == 0 {
		return "", fverr.ErrTransitKeyMissing
	}
	if version == "" || version == "latest" {
		version = e.maxVersion()
	}
	encoded, ok := e.keys[version]
	if !ok {
		return "", fmt.Errorf("%w: version %q", fverr.ErrKeyNotFound, version)
	}
	return version + ":" + encoded, nil
}

// ExportAllKeys implements KeyExporter.
func (e *InMemoryExporter) ExportAllKeys(ctx context.Context) (map[string]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if len(e.keys) == 0 {
		return nil, fverr.ErrTransitKeyMissing
	}
	out := make(map[string]string, len(e.keys))
	for v, k := range e.keys {
		out[v] = k
	}
	return out, nil
}

// AddVersion registers key material under a version, simulating a rotation.
func (e *InMemoryExporter) AddVersion(version, base64Key string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.keys[version] = base64Key
}

// Calls reports how many export requests the fake has served.
func (e *InMemoryExporter) Calls() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.calls
}

func (e *InMemoryExporter) maxVersion() string {
	var max string
	for v := range e.keys {
		if v > max {
			max = v
		}
	}
	return max
}
