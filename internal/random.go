package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const verificationTokenSize = 32

// OpaqueToken is a high-entropy single-use token and its expiry.
type OpaqueToken struct {
	Token     string
	ExpiresAt time.Time
}

// NumericCode is a fixed-length numeric one-time code and its expiry.
type NumericCode struct {
	Code      string
	ExpiresAt time.Time
}

// NewVerificationToken returns 32 random bytes hex encoded, valid for ttl.
func NewVerificationToken(now time.Time, ttl time.Duration) (OpaqueToken, error) {
	var raw [verificationTokenSize]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return OpaqueToken{}, err
	}
	return OpaqueToken{
		Token:     hex.EncodeToString(raw[:]),
		ExpiresAt: now.Add(ttl),
	}, nil
}

// NewTwoFactorCode returns a uniformly random zero-padded numeric code.
func NewTwoFactorCode(digits int, now time.Time, ttl time.Duration) (NumericCode, error) {
	code, err := NewOTP(digits)
	if err != nil {
		return NumericCode{}, err
	}
	return NumericCode{Code: code, ExpiresAt: now.Add(ttl)}, nil
}

func NewOTP(digits int) (string, error) {
	if digits < 4 || digits > 10 {
		return "", errors.New("invalid otp digits")
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}

	otp := b.String()
	if len(otp) != digits {
		return "", fmt.Errorf("invalid otp generation length")
	}
	return otp, nil
}

// HashToken returns the hex SHA-256 digest stored in place of a token value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenMatches compares a presented token against a stored digest in
// constant time.
func TokenMatches(presented, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(HashToken(presented)), []byte(digest)) == 1
}

// CodeMatches compares two numeric codes in constant time.
func CodeMatches(presented, stored string) bool {
	return subtle.ConstantTimeCompare([]byte(presented), []byte(stored)) == 1
}
