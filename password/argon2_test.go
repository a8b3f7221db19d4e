package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheapArgon2 keeps the suite fast; production uses DefaultArgon2Config.
func cheapArgon2() Argon2Config {
	return Argon2Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestArgon2RoundTrip(t *testing.T) {
	a, err := NewArgon2(cheapArgon2())
	require.NoError(t, err)

	hash, err := a.Hash("Secret1!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$"), hash)
	assert.NotContains(t, hash, "=$", "salt and key are unpadded")

	ok, err := a.Verify("Secret1!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Verify("Secret2!", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := a.Hash("Secret1!")
	require.NoError(t, err)
	assert.NotEqual(t, hash, again, "every hash gets a fresh salt")

	_, err = a.Hash("")
	assert.ErrorIs(t, err, ErrEmptyPassword)
}

func TestArgon2NeedsRehashOnStrongerConfig(t *testing.T) {
	weak, err := NewArgon2(cheapArgon2())
	require.NoError(t, err)
	hash, err := weak.Hash("Secret1!")
	require.NoError(t, err)

	needs, err := weak.NeedsRehash(hash)
	require.NoError(t, err)
	assert.False(t, needs)

	stronger := cheapArgon2()
	stronger.Time = 2
	strong, err := NewArgon2(stronger)
	require.NoError(t, err)

	needs, err = strong.NeedsRehash(hash)
	require.NoError(t, err)
	assert.True(t, needs)

	ok, err := strong.Verify("Secret1!", hash)
	require.NoError(t, err)
	assert.True(t, ok, "older parameters still verify")
}

func TestArgon2RejectsMalformedHashes(t *testing.T) {
	a, err := NewArgon2(cheapArgon2())
	require.NoError(t, err)
	good, err := a.Hash("Secret1!")
	require.NoError(t, err)

	tests := []struct {
		name string
		hash string
		want error
	}{
		{"other algorithm", "$2a$10$abcdefghijklmnopqrstuv", ErrUnknownHash},
		{"missing fields", "$argon2id$v=19$m=8192,t=1,p=1", ErrMalformedHash},
		{"old version", strings.Replace(good, "$v=19$", "$v=16$", 1), ErrMalformedHash},
		{"zero time", strings.Replace(good, ",t=1,", ",t=0,", 1), ErrMalformedHash},
		{"bad params", strings.Replace(good, "m=8192,t=1,p=1", "memory=8192", 1), ErrMalformedHash},
		{"bad salt", strings.Replace(good, "$argon2id$v=19$m=8192,t=1,p=1$", "$argon2id$v=19$m=8192,t=1,p=1$!!", 1), ErrMalformedHash},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := a.Verify("Secret1!", tc.hash)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestArgon2ConfigValidate(t *testing.T) {
	require.NoError(t, DefaultArgon2Config().Validate())

	low := cheapArgon2()
	low.Memory = 1024
	assert.ErrorContains(t, low.Validate(), "memory")

	short := cheapArgon2()
	short.SaltLength = 8
	_, err := NewArgon2(short)
	assert.ErrorContains(t, err, "salt")
}
