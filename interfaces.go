package fieldvault

import "context"

// KeyExporter is the contract with the external secret-management service
// that holds the versioned transit key.
//
// Implementations:
//   - HashiCorp Vault transit engine: github.com/hengadev/fieldvault/providers/vaulttransit
//   - In-memory fake for tests: fieldvault.InMemoryExporter
type KeyExporter interface {
	// ExportKey exports one key version as "<version>:<base64-key>". The
	// versions "latest" and "" export the maximum available version. It fails
	// with ErrTransitKeyMissing when the transit key does not exist.
	ExportKey(ctx context.Context, version string) (string, error)

	// ExportAllKeys exports every version as a version → base64-key mapping.
	// It fails with ErrTransitKeyMissing when the transit key does not exist.
	ExportAllKeys(ctx context.Context) (map[string]string, error)
}
