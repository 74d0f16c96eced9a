package uc

import (
	"errors"

	"github.com/sigauth/sigauth/engine/core"
)

var (
	// ErrUserNotFound is returned when a user is not found in the repository
	ErrUserNotFound         = errors.New("user not found")
	ErrUsernameTaken        = errors.New("username already taken")
	ErrInvalidUsername      = errors.New("invalid username")
	ErrInvalidPublicKey     = errors.New("invalid public key")
	ErrKeyLimitReached      = errors.New("active key limit reached")
	ErrKeyNotFound          = errors.New("key not found")
	ErrNotKeyOwner          = errors.New("key belongs to another user")
	ErrChallengeNotFound    = errors.New("challenge not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrUnauthorized         = errors.New("unauthorized")
	// ErrInvariantViolation marks stored state that should be impossible.
	ErrInvariantViolation = errors.New("invariant violation")
)

// Kind classifies err into the transport-independent taxonomy. Anything not
// recognized is internal.
func Kind(err error) core.ErrorKind {
	switch {
	case errors.Is(err, ErrInvariantViolation):
		return core.KindInternal
	case errors.Is(err, ErrInvalidUsername),
		errors.Is(err, ErrInvalidPublicKey),
		errors.Is(err, ErrKeyLimitReached):
		return core.KindInvalidInput
	case errors.Is(err, ErrUsernameTaken):
		return core.KindConflict
	case errors.Is(err, ErrUserNotFound),
		errors.Is(err, ErrKeyNotFound),
		errors.Is(err, ErrNotKeyOwner),
		errors.Is(err, ErrChallengeNotFound),
		errors.Is(err, ErrRefreshTokenNotFound):
		return core.KindNotFound
	case errors.Is(err, ErrUnauthorized):
		return core.KindUnauthorized
	default:
		return core.KindInternal
	}
}
