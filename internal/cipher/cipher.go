// Package cipher performs symmetric authenticated encryption of document
// field values. The output blob is base64(nonce || ciphertext); the plaintext
// is gzip-compressed before sealing.
package cipher

import (
	"bytes"
	"compress/gzip"
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"

	"github.com/hengadev/fieldvault/internal/fverr"
)

// Suite selects the AEAD construction.
type Suite string

const (
	SuiteAESGCM   Suite = "aes-gcm"
	SuiteXChaCha  Suite = "xchacha20-poly1305"
	DefaultSuite        = SuiteAESGCM
)

// Service encrypts and decrypts strings under caller-supplied keys.
type Service struct {
	suite         Suite
	deterministic bool
}

// Option configures a Service.
type Option func(*Service)

// WithSuite selects the AEAD suite. The default is AES-256-GCM.
func WithSuite(s Suite) Option {
	return func(svc *Service) { svc.suite = s }
}

// WithDeterministicIV derives the nonce from a SHA-256 hash of the plaintext
// instead of reading it from crypto/rand. Equal plaintexts then produce equal
// blobs, which leaks equality; leave this off unless that trade is wanted.
func WithDeterministicIV() Option {
	return func(svc *Service) { svc.deterministic = true }
}

// New creates a cipher service.
func New(opts ...Option) *Service {
	svc := &Service{suite: DefaultSuite}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// KeyFromBase64 decodes key material exported from the secret service.
func KeyFromBase64(encoded string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: key material is not valid base64: %v", fverr.ErrInvalidArgument, err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: key material is empty", fverr.ErrInvalidArgument)
	}
	return key, nil
}

// Encrypt compresses and seals data under key, returning a self-contained
// base64 blob.
func (s *Service) Encrypt(data string, key []byte) (string, error) {
	aead, err := s.newAEAD(key)
	if err != nil {
		return "", err
	}
	compressed, err := compress([]byte(data))
	if err != nil {
		return "", fmt.Errorf("%w: compression: %v", fverr.ErrCipherFailure, err)
	}
	nonce, err := s.nonce(aead.NonceSize(), data)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, compressed, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (s *Service) Decrypt(encoded string, key []byte) (string, error) {
	aead, err := s.newAEAD(key)
	if err != nil {
		return "", err
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: payload is not valid base64: %v", fverr.ErrCipherFailure, err)
	}
	if len(blob) < aead.NonceSize() {
		return "", fmt.Errorf("%w: payload shorter than nonce", fverr.ErrCipherFailure)
	}
	nonce, ciphertext := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	compressed, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", fverr.ErrCipherFailure, err)
	}
	data, err := decompress(compressed)
	if err != nil {
		return "", fmt.Errorf("%w: decompression: %v", fverr.ErrCipherFailure, err)
	}
	return string(data), nil
}

func (s *Service) newAEAD(key []byte) (stdcipher.AEAD, error) {
	switch s.suite {
	case SuiteXChaCha:
		aead, err := chacha20poly1305.NewX(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fverr.ErrCipherFailure, err)
		}
		return aead, nil
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fverr.ErrCipherFailure, err)
		}
		aead, err := stdcipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", fverr.ErrCipherFailure, err)
		}
		return aead, nil
	}
}

func (s *Service) nonce(size int, plaintext string) ([]byte, error) {
	nonce := make([]byte, size)
	if s.deterministic {
		sum := sha256.Sum256([]byte(plaintext))
		copy(nonce, sum[:])
		return nonce, nil
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("%w: nonce generation: %v", fverr.ErrCipherFailure, err)
	}
	return nonce, nil
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return io.ReadAll(zr)
}
