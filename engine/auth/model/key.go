package model

import (
	"time"

	"github.com/sigauth/sigauth/engine/core"
)

// UserKey is a registered Ed25519 public key. Only unrevoked keys may sign in.
type UserKey struct {
	ID        core.ID    `db:"id"`
	UserID    core.ID    `db:"user_id"`
	PublicKey []byte     `db:"public_key"`
	CreatedAt time.Time  `db:"created_at"`
	Revoked   bool       `db:"revoked"`
	RevokedAt *time.Time `db:"revoked_at"`
}

// Usable reports whether the key may verify a challenge.
func (k *UserKey) Usable() bool {
	return !k.Revoked
}

// PublicKeys extracts the raw key bytes in order.
func PublicKeys(keys []UserKey) [][]byte {
	out := make([][]byte, 0, len(keys))
	for i := range keys {
		out = append(out, keys[i].PublicKey)
	}
	return out
}
