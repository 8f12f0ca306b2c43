package fieldvault

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hengadev/fieldvault/internal/cipher"
	"github.com/hengadev/fieldvault/internal/fverr"
	"github.com/hengadev/fieldvault/internal/keycache"
)

// tagPrefix starts every ciphertext produced by Encrypt.
const tagPrefix = "vault:"

// Transit wraps the cipher service, the key cache, and the key exporter into
// the two operations the traversal engine needs. Missing key versions are
// fetched from the exporter transparently and cached for later use.
//
// A Transit is safe for concurrent use.
type Transit struct {
	exporter KeyExporter
	cache    *keycache.Cache
	cipher   *cipher.Service
	logger   *slog.Logger
}

// TransitOption configures a Transit.
type TransitOption func(*Transit)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) TransitOption {
	return func(t *Transit) { t.logger = logger }
}

// WithCipher replaces the default AES-256-GCM cipher service.
func WithCipher(svc *cipher.Service) TransitOption {
	return func(t *Transit) { t.cipher = svc }
}

// NewTransit creates a Transit around a key exporter. The key cache is owned
// by the returned instance; its lifecycle is the instance's lifecycle.
func NewTransit(exporter KeyExporter, opts ...TransitOption) (*Transit, error) {
	if exporter == nil {
		return nil, fmt.Errorf("%w: key exporter must not be nil", ErrInvalidArgument)
	}
	cache, err := keycache.New()
	if err != nil {
		return nil, err
	}
	t := &Transit{
		exporter: exporter,
		cache:    cache,
		cipher:   cipher.New(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Encrypt encrypts plaintext under the latest key version and returns
// "vault:v<version>:<payload>". Empty input is returned unchanged. A cipher
// failure is logged and the plaintext comes back unmodified: encryption
// failures are non-fatal by design, and callers must tolerate unencrypted
// fallback data. Only exporter failures are returned as errors.
func (t *Transit) Encrypt(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return plaintext, nil
	}
	version, key, err := t.resolveKey(ctx, "latest")
	if err != nil {
		return "", err
	}
	payload, err := t.cipher.Encrypt(plaintext, key)
	if err != nil {
		t.logger.Error("encryption failed", "error", err)
		return plaintext, nil
	}
	return tagPrefix + "v" + version + ":" + payload, nil
}

// Decrypt decrypts a tagged ciphertext produced by Encrypt. Empty input is
// returned unchanged, as is anything that does not parse as a tag. A cipher
// failure is logged and the tagged input comes back unmodified, so callers
// must be prepared to receive still-encrypted data.
//
// The version discriminator is the second character of the segment after the
// first colon; version identifiers longer than one character truncate.
// Stored ciphertexts depend on this narrow format, so it stays until a new
// tag format is decided.
func (t *Transit) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if ciphertext == "" {
		return ciphertext, nil
	}
	segments := strings.SplitN(ciphertext, ":", 3)
	if len(segments) != 3 || len(segments[1]) < 2 {
		t.logger.Error("malformed ciphertext tag", "ciphertext", ciphertext)
		return ciphertext, nil
	}
	version := string(segments[1][1])

	if t.cache.Has(version) {
		_, key, err := t.cache.Retrieve(version)
		if err != nil {
			return "", err
		}
		plaintext, err := t.cipher.Decrypt(segments[2], key)
		if err != nil {
			t.logger.Error("decryption failed", "version", version, "error", err)
			return ciphertext, nil
		}
		return plaintext, nil
	}

	exported, err := t.exporter.ExportKey(ctx, version)
	if err != nil {
		return "", err
	}
	_, key, err := parseExportedKey(exported)
	if err != nil {
		return "", err
	}
	plaintext, err := t.cipher.Decrypt(segments[2], key)
	if err != nil {
		t.logger.Error("decryption failed", "version", version, "error", err)
		return ciphertext, nil
	}
	if err := t.cache.Store(version, key); err != nil {
		return "", err
	}
	return plaintext, nil
}

// LoadAllKeys eagerly exports every key version into the cache. It is meant
// to run once at startup so steady-state operation never waits on the secret
// service.
func (t *Transit) LoadAllKeys(ctx context.Context) error {
	t.logger.Debug("loading encryption keys")
	keys, err := t.exporter.ExportAllKeys(ctx)
	if err != nil {
		return err
	}
	for version, encoded := range keys {
		key, err := cipher.KeyFromBase64(encoded)
		if err != nil {
			return fmt.Errorf("key version %q: %w", version, err)
		}
		if err := t.cache.Store(version, key); err != nil {
			return err
		}
	}
	t.logger.Debug("finished loading encryption keys", "versions", len(keys))
	return nil
}

// ReloadKeys clears the cache and re-fetches every version. In-flight
// operations holding already-retrieved keys are unaffected.
func (t *Transit) ReloadKeys(ctx context.Context) error {
	t.cache.Clear()
	return t.LoadAllKeys(ctx)
}

// CachedVersions returns the number of key versions currently cached.
func (t *Transit) CachedVersions() int {
	return t.cache.Len()
}

// resolveKey returns the key for version, consulting the cache first and the
// exporter on a miss. Fetched keys are cached for subsequent calls.
func (t *Transit) resolveKey(ctx context.Context, version string) (string, []byte, error) {
	if t.cache.Has(version) {
		return t.cache.Retrieve(version)
	}
	exported, err := t.exporter.ExportKey(ctx, version)
	if err != nil {
		return "", nil, err
	}
	resolved, key, err := parseExportedKey(exported)
	if err != nil {
		return "", nil, err
	}
	if err := t.cache.Store(resolved, key); err != nil {
		return "", nil, err
	}
	return resolved, key, nil
}

// parseExportedKey splits the exporter's "<version>:<base64-key>" format.
func parseExportedKey(exported string) (string, []byte, error) {
	version, encoded, found := strings.Cut(exported, ":")
	if !found || version == "" {
		return "", nil, fmt.Errorf("%w: malformed exported key %q", fverr.ErrInvalidArgument, exported)
	}
	key, err := cipher.KeyFromBase64(encoded)
	if err != nil {
		return "", nil, err
	}
	return version, key, nil
}
