package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

type countingVerifier struct {
	inner Ed25519
	calls int
}

func (c *countingVerifier) Verify(pub, msg, sig []byte) bool {
	c.calls++
	return c.inner.Verify(pub, msg, sig)
}

func TestEd25519_Verify(t *testing.T) {
	pub, priv := newKey(t)
	msg := []byte("challenge bytes")
	sig := ed25519.Sign(priv, msg)

	t.Run("Should accept a valid signature", func(t *testing.T) {
		assert.True(t, Ed25519{}.Verify(pub, msg, sig))
	})
	t.Run("Should reject empty and truncated signatures", func(t *testing.T) {
		assert.False(t, Ed25519{}.Verify(pub, msg, nil))
		assert.False(t, Ed25519{}.Verify(pub, msg, sig[:63]))
	})
	t.Run("Should reject a signature from an unrelated key", func(t *testing.T) {
		_, other := newKey(t)
		assert.False(t, Ed25519{}.Verify(pub, msg, ed25519.Sign(other, msg)))
	})
	t.Run("Should return false for malformed keys", func(t *testing.T) {
		assert.False(t, Ed25519{}.Verify(pub[:31], msg, sig))
		assert.False(t, Ed25519{}.Verify(nil, msg, sig))
	})
	t.Run("Should reject a tampered message", func(t *testing.T) {
		assert.False(t, Ed25519{}.Verify(pub, []byte("challenge bytez"), sig))
	})
}

func TestVerifyAny(t *testing.T) {
	pub1, _ := newKey(t)
	pub2, priv2 := newKey(t)
	pub3, _ := newKey(t)
	msg := []byte("nonce")
	sig := ed25519.Sign(priv2, msg)

	t.Run("Should succeed when any key matches and still check all keys", func(t *testing.T) {
		v := &countingVerifier{}
		assert.True(t, VerifyAny(v, [][]byte{pub1, pub2, pub3}, msg, sig))
		assert.Equal(t, 3, v.calls)
	})
	t.Run("Should fail when no key matches", func(t *testing.T) {
		v := &countingVerifier{}
		assert.False(t, VerifyAny(v, [][]byte{pub1, pub3}, msg, sig))
		assert.Equal(t, 2, v.calls)
	})
	t.Run("Should fail with no keys", func(t *testing.T) {
		assert.False(t, VerifyAny(Ed25519{}, nil, msg, sig))
	})
}

func TestValidatePublicKey(t *testing.T) {
	t.Run("Should accept a generated key", func(t *testing.T) {
		pub, _ := newKey(t)
		assert.NoError(t, ValidatePublicKey(pub))
	})
	t.Run("Should reject wrong lengths", func(t *testing.T) {
		pub, _ := newKey(t)
		assert.ErrorIs(t, ValidatePublicKey(pub[:16]), ErrInvalidPublicKey)
		assert.ErrorIs(t, ValidatePublicKey(append(pub, 0)), ErrInvalidPublicKey)
		assert.ErrorIs(t, ValidatePublicKey(nil), ErrInvalidPublicKey)
	})
	t.Run("Should reject the identity point", func(t *testing.T) {
		identity := make([]byte, 32)
		identity[0] = 1
		assert.ErrorIs(t, ValidatePublicKey(identity), ErrInvalidPublicKey)
	})
}
