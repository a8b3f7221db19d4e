package password

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPassword is returned when hashing an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrPasswordTooLong is returned when a password exceeds what the algorithm accepts.
	ErrPasswordTooLong = errors.New("password is too long")
	// ErrUnknownHash is returned when a stored hash matches no supported algorithm.
	ErrUnknownHash = errors.New("unsupported password hash format")
)

// Algorithm names a hashing scheme.
type Algorithm string

const (
	AlgorithmBcrypt   Algorithm = "bcrypt"
	AlgorithmArgon2id Algorithm = "argon2id"
)

// Hasher hashes and verifies passwords.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsRehash(encodedHash string) (bool, error)
}

// Config selects the algorithm new hashes are produced with.
type Config struct {
	Algorithm  Algorithm
	BcryptCost int
	Argon2     Argon2Config
}

// DefaultArgon2Config returns the recommended argon2id parameters.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Manager hashes with the configured algorithm and verifies any stored
// hash whose format it recognises, so accounts migrate lazily between
// algorithms.
type Manager struct {
	primary Algorithm
	bcrypt  *Bcrypt
	argon2  *Argon2
}

// NewManager builds a Manager from cfg. An empty algorithm selects bcrypt.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Algorithm == "" {
		cfg.Algorithm = AlgorithmBcrypt
	}
	if cfg.Argon2 == (Argon2Config{}) {
		cfg.Argon2 = DefaultArgon2Config()
	}

	b, err := NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	a, err := NewArgon2(cfg.Argon2)
	if err != nil {
		return nil, err
	}

	switch cfg.Algorithm {
	case AlgorithmBcrypt, AlgorithmArgon2id:
	default:
		return nil, errors.New("unsupported password algorithm")
	}

	return &Manager{primary: cfg.Algorithm, bcrypt: b, argon2: a}, nil
}

func (m *Manager) Hash(password string) (string, error) {
	if m.primary == AlgorithmArgon2id {
		return m.argon2.Hash(password)
	}
	return m.bcrypt.Hash(password)
}

func (m *Manager) Verify(password, encodedHash string) (bool, error) {
	h, err := m.hasherFor(encodedHash)
	if err != nil {
		return false, err
	}
	return h.Verify(password, encodedHash)
}

// NeedsRehash reports true for hashes of a different algorithm or with
// weaker parameters than the current configuration.
func (m *Manager) NeedsRehash(encodedHash string) (bool, error) {
	h, err := m.hasherFor(encodedHash)
	if err != nil {
		return false, err
	}
	switch {
	case m.primary == AlgorithmArgon2id && h != Hasher(m.argon2):
		return true, nil
	case m.primary == AlgorithmBcrypt && h != Hasher(m.bcrypt):
		return true, nil
	}
	return h.NeedsRehash(encodedHash)
}

func (m *Manager) hasherFor(encodedHash string) (Hasher, error) {
	switch {
	case isBcryptHash(encodedHash):
		return m.bcrypt, nil
	case strings.HasPrefix(encodedHash, argon2Prefix):
		return m.argon2, nil
	default:
		return nil, ErrUnknownHash
	}
}
