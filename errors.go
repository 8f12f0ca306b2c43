package fieldvault

import (
	"errors"

	"github.com/hengadev/fieldvault/internal/fverr"
)

// Sentinel errors. Internal packages wrap these same values, so errors.Is
// works on anything the library returns.
var (
	// ErrInvalidArgument marks caller bugs: empty key material, empty
	// versions, nil entities where one is required.
	ErrInvalidArgument = fverr.ErrInvalidArgument

	// ErrKeyNotFound is returned when a requested key version is absent from
	// the cache. It is recoverable by fetching the version from the key
	// provider.
	ErrKeyNotFound = fverr.ErrKeyNotFound

	// ErrTransitKeyMissing means the named transit key does not exist on the
	// secret service at all. This indicates misconfiguration and is fatal.
	ErrTransitKeyMissing = fverr.ErrTransitKeyMissing

	// ErrCipherFailure marks a failed encryption or decryption operation.
	// The orchestrator logs these and falls back to returning its input, so
	// callers normally never see them.
	ErrCipherFailure = fverr.ErrCipherFailure

	// ErrUnsupportedType means a decrypted value carried a type tag outside
	// the supported scalar set: data corruption or version skew, fatal.
	ErrUnsupportedType = fverr.ErrUnsupportedType

	// ErrTraversalFailure wraps any error raised while processing a field
	// path; the whole document's processing is aborted when it occurs.
	ErrTraversalFailure = fverr.ErrTraversalFailure
)

// IsFatal reports whether an error indicates misconfiguration or data
// corruption rather than a transient condition.
func IsFatal(err error) bool {
	return errors.Is(err, ErrTransitKeyMissing) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrInvalidArgument)
}

// IsRecoverable reports whether an error names a key version that can be
// fetched from the key provider.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}
