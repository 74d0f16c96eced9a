package core

import (
	"crypto/rand"
	"fmt"
	"io"
)

// Random is a source of cryptographically strong bytes.
type Random interface {
	Read(p []byte) (int, error)
}

type cryptoRandom struct{}

func (cryptoRandom) Read(p []byte) (int, error) {
	return rand.Read(p)
}

// CryptoRandom returns the operating system CSPRNG.
func CryptoRandom() Random {
	return cryptoRandom{}
}

// RandomBytes reads exactly n bytes from r.
func RandomBytes(r Random, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("failed to read %d random bytes: %w", n, err)
	}
	return buf, nil
}
