package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestBcryptHasher(t *testing.T) {
	h := NewBcryptHasher(bcrypt.MinCost)

	_, err := h.Hash("short")
	assert.ErrorIs(t, err, ErrPasswordTooShort)

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong horse"), ErrPasswordMismatch)
}

func TestAESEncryptor_RoundTrip(t *testing.T) {
	key := []byte(strings.Repeat("k", 32))
	enc, err := NewAESEncryptor(key)
	require.NoError(t, err)

	sealed, err := enc.Encrypt([]byte(`{"q1":"yes"}`))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "yes")

	plain, err := enc.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, `{"q1":"yes"}`, string(plain))

	sealed[len(sealed)-1] ^= 0xff
	_, err = enc.Decrypt(sealed)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestNewAESEncryptor_BadKey(t *testing.T) {
	_, err := NewAESEncryptor([]byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestRandomString(t *testing.T) {
	s, err := RandomString("AB", 16)
	require.NoError(t, err)
	assert.Len(t, s, 16)
	assert.Empty(t, strings.Trim(s, "AB"))

	_, err = RandomString("", 4)
	assert.Error(t, err)
}

func TestRandomToken(t *testing.T) {
	a, err := RandomToken(24)
	require.NoError(t, err)
	b, err := RandomToken(24)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}
