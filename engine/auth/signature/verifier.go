// Package signature verifies Ed25519 signatures over login challenges.
package signature

import (
	"crypto/ed25519"
	"crypto/subtle"
	"errors"

	"filippo.io/edwards25519"
)

var ErrInvalidPublicKey = errors.New("invalid ed25519 public key")

// Verifier checks one signature against one public key.
type Verifier interface {
	Verify(publicKey, message, sig []byte) bool
}

// Ed25519 implements Verifier with RFC 8032 Ed25519.
type Ed25519 struct{}

// Verify returns false for malformed keys or signatures instead of panicking.
func (Ed25519) Verify(publicKey, message, sig []byte) bool {
	if len(publicKey) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(publicKey), message, sig)
}

// VerifyAny checks sig against every key and combines the results without
// short-circuiting, so timing does not depend on which key matched.
func VerifyAny(v Verifier, keys [][]byte, message, sig []byte) bool {
	matched := 0
	for _, key := range keys {
		ok := 0
		if v.Verify(key, message, sig) {
			ok = 1
		}
		matched |= ok
	}
	return subtle.ConstantTimeEq(int32(matched), 1) == 1
}

// ValidatePublicKey accepts only 32-byte encodings of a curve point that is
// not of small order.
func ValidatePublicKey(b []byte) error {
	if len(b) != ed25519.PublicKeySize {
		return ErrInvalidPublicKey
	}
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return ErrInvalidPublicKey
	}
	if new(edwards25519.Point).MultByCofactor(p).Equal(edwards25519.NewIdentityPoint()) == 1 {
		return ErrInvalidPublicKey
	}
	return nil
}
