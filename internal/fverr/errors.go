package fverr

import (
	"errors"
	"fmt"
)

var (
	// Caller bugs
	ErrInvalidArgument = errors.New("invalid argument")

	// Key material errors
	ErrKeyNotFound       = errors.New("key version not found")
	ErrTransitKeyMissing = errors.New("transit key does not exist")

	// Operation errors
	ErrCipherFailure    = errors.New("cipher operation failed")
	ErrUnsupportedType  = errors.New("unsupported type tag")
	ErrTraversalFailure = errors.New("field path traversal failed")
)

func NewUnsupportedTypeError(typeName string) error {
	return fmt.Errorf("%w: %q is not a supported scalar type", ErrUnsupportedType, typeName)
}

func NewTraversalError(path string, action Action, err error) error {
	return fmt.Errorf("%w: %s of path %q: %w", ErrTraversalFailure, action, path, err)
}
