package model

import (
	"crypto/sha256"
	"time"

	"github.com/sigauth/sigauth/engine/core"
)

// RefreshToken is a long-lived credential exchangeable for bearer tokens.
// Only the SHA-256 digest of the secret is persisted.
type RefreshToken struct {
	ID         core.ID    `db:"id"`
	UserID     core.ID    `db:"user_id"`
	SecretHash []byte     `db:"secret_hash"`
	CreatedAt  time.Time  `db:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at"`
	Revoked    bool       `db:"revoked"`
	RevokedAt  *time.Time `db:"revoked_at"`
}

// Usable reports whether the token may mint a bearer at now.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && now.Before(t.ExpiresAt)
}

// HashRefreshSecret returns the lookup digest for a refresh secret.
func HashRefreshSecret(secret string) []byte {
	sum := sha256.Sum256([]byte(secret))
	return sum[:]
}
