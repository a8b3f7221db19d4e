package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// ErrMalformedHash is returned for argon2id strings that do not parse.
var ErrMalformedHash = errors.New("malformed argon2id hash")

// Argon2Config holds argon2id cost parameters. Memory is in KiB.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Validate rejects parameters below the floor accepted for new hashes.
func (c Argon2Config) Validate() error {
	switch {
	case c.Memory < 8*1024:
		return errors.New("argon2 memory must be at least 8192 KiB")
	case c.Time < 1:
		return errors.New("argon2 time must be at least 1")
	case c.Parallelism < 1:
		return errors.New("argon2 parallelism must be at least 1")
	case c.SaltLength < 16:
		return errors.New("argon2 salt length must be at least 16 bytes")
	case c.KeyLength < 16:
		return errors.New("argon2 key length must be at least 16 bytes")
	}
	return nil
}

// Argon2 hashes passwords with argon2id and encodes them as PHC strings:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<key>
//
// Salt and key use unpadded standard base64.
type Argon2 struct {
	cfg Argon2Config
}

// NewArgon2 returns an argon2id hasher for cfg.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2 salt: %w", err)
	}
	d := argon2Digest{
		memory:      a.cfg.Memory,
		time:        a.cfg.Time,
		parallelism: a.cfg.Parallelism,
		salt:        salt,
	}
	d.key = d.derive(password, a.cfg.KeyLength)
	return d.String(), nil
}

func (a *Argon2) Verify(password, encodedHash string) (bool, error) {
	d, err := parseArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	got := d.derive(password, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(got, d.key) == 1, nil
}

// NeedsRehash reports true when any cost parameter of encodedHash is below
// the configured one or the key length differs.
func (a *Argon2) NeedsRehash(encodedHash string) (bool, error) {
	d, err := parseArgon2(encodedHash)
	if err != nil {
		return false, err
	}
	return d.memory < a.cfg.Memory ||
		d.time < a.cfg.Time ||
		d.parallelism < a.cfg.Parallelism ||
		uint32(len(d.key)) != a.cfg.KeyLength, nil
}

// argon2Digest is the decoded form of a PHC string.
type argon2Digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

func (d argon2Digest) derive(password string, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), d.salt, d.time, d.memory, d.parallelism, keyLen)
}

func (d argon2Digest) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, d.memory, d.time, d.parallelism,
		base64.RawStdEncoding.EncodeToString(d.salt),
		base64.RawStdEncoding.EncodeToString(d.key),
	)
}

func parseArgon2(encoded string) (argon2Digest, error) {
	var d argon2Digest

	rest, ok := strings.CutPrefix(encoded, argon2Prefix)
	if !ok {
		return d, ErrUnknownHash
	}
	fields := strings.Split(rest, "$")
	if len(fields) != 4 {
		return d, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return d, ErrMalformedHash
	}
	if version != argon2.Version {
		return d, fmt.Errorf("%w: unsupported version %d", ErrMalformedHash, version)
	}

	if _, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &d.memory, &d.time, &d.parallelism); err != nil {
		return d, ErrMalformedHash
	}
	if d.memory == 0 || d.time == 0 || d.parallelism == 0 {
		return d, ErrMalformedHash
	}

	var err error
	if d.salt, err = base64.RawStdEncoding.DecodeString(fields[2]); err != nil || len(d.salt) < 8 {
		return d, ErrMalformedHash
	}
	if d.key, err = base64.RawStdEncoding.DecodeString(fields[3]); err != nil || len(d.key) == 0 {
		return d, ErrMalformedHash
	}
	return d, nil
}
