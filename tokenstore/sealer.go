package tokenstore

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	minKDFMemoryKB  uint32 = 8 * 1024
	minSaltLength          = 16
	minPassphrase          = 8
	sealerKeyLength        = chacha20poly1305.KeySize
)

// ErrSealedValue is returned when a sealed value cannot be opened.
var ErrSealedValue = errors.New("tokenstore: sealed value rejected")

// KDFParams are the Argon2id parameters used to derive the sealing key.
type KDFParams struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
}

// DefaultKDFParams returns interactive-strength Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{Memory: 64 * 1024, Time: 1, Parallelism: 4}
}

func (p KDFParams) validate() error {
	if p.Memory < minKDFMemoryKB {
		return fmt.Errorf("argon2 memory must be >= %d KiB", minKDFMemoryKB)
	}
	if p.Time < 1 {
		return errors.New("argon2 time must be >= 1")
	}
	if p.Parallelism < 1 {
		return errors.New("argon2 parallelism must be >= 1")
	}
	return nil
}

// Sealer encrypts values at rest with XChaCha20-Poly1305.
//
// The key is derived once from a passphrase and salt; every Seal call uses a
// fresh random nonce, and the key name is bound as additional data so a
// ciphertext cannot be moved to a different entry.
type Sealer struct {
	aead cipher.AEAD
}

// NewSalt returns a random salt suitable for NewSealer.
func NewSalt() ([]byte, error) {
	salt := make([]byte, minSaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// NewSealer derives a sealing key from passphrase and salt.
func NewSealer(passphrase, salt []byte, params KDFParams) (*Sealer, error) {
	if len(passphrase) < minPassphrase {
		return nil, fmt.Errorf("passphrase must be at least %d bytes", minPassphrase)
	}
	if len(salt) < minSaltLength {
		return nil, fmt.Errorf("salt must be at least %d bytes", minSaltLength)
	}
	if err := params.validate(); err != nil {
		return nil, err
	}

	key := argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Parallelism, sealerKeyLength)
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts value for key and returns base64 text.
func (s *Sealer) Seal(key, value string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := s.aead.Seal(nonce, nonce, []byte(value), []byte(key))
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(key, sealed string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("%w: encoding", ErrSealedValue)
	}
	n := s.aead.NonceSize()
	if len(raw) < n {
		return "", fmt.Errorf("%w: short value", ErrSealedValue)
	}
	plain, err := s.aead.Open(nil, raw[:n], raw[n:], []byte(key))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSealedValue, err)
	}
	return string(plain), nil
}
