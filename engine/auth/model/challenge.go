package model

import (
	"time"

	"github.com/sigauth/sigauth/engine/core"
)

const ChallengeSize = 32

// Challenge is a single-use nonce bound to a user.
type Challenge struct {
	ID        core.ID   `db:"id"`
	UserID    core.ID   `db:"user_id"`
	Value     []byte    `db:"value"`
	CreatedAt time.Time `db:"created_at"`
	ExpiresAt time.Time `db:"expires_at"`
	Consumed  bool      `db:"consumed"`
}

// Expired is true from expires_at onwards.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Active reports whether the challenge may still be claimed.
func (c *Challenge) Active(now time.Time) bool {
	return !c.Consumed && !c.Expired(now)
}

// ConsumeResult is the outcome of the atomic claim on a challenge.
type ConsumeResult int

const (
	ConsumeOK ConsumeResult = iota
	ConsumeNotFound
	ConsumeAlreadyConsumed
)

func (r ConsumeResult) String() string {
	switch r {
	case ConsumeOK:
		return "ok"
	case ConsumeNotFound:
		return "not_found"
	case ConsumeAlreadyConsumed:
		return "already_consumed"
	default:
		return "unknown"
	}
}
