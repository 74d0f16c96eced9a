// Package bearer issues and validates the short-lived HS256 tokens handed out
// after a successful challenge verification.
package bearer

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/core"
)

const (
	MinSecretLength = 32
	DefaultTTL      = 15 * time.Minute
)

var (
	ErrSecretTooShort = fmt.Errorf("bearer signing secret must be at least %d bytes", MinSecretLength)
	ErrInvalidToken   = errors.New("invalid bearer token")
	ErrTTLPrecision   = errors.New("bearer ttl must be a whole number of seconds")
)

// Issuer signs tokens carrying only sub and exp. The secret is fixed at construction.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  core.Clock
	parser *jwt.Parser
}

func NewIssuer(secret []byte, ttl time.Duration, clock core.Clock) (*Issuer, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrSecretTooShort
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl%jwt.TimePrecision != 0 {
		return nil, ErrTTLPrecision
	}
	if clock == nil {
		clock = core.SystemClock()
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &Issuer{
		secret: key,
		ttl:    ttl,
		clock:  clock,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// TTL returns the lifetime given to issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue mints a token for subject valid for [t, t+ttl), where t is the clock
// reading truncated to the whole second exp is encoded at.
func (i *Issuer) Issue(subject core.ID) (string, time.Time, error) {
	if subject.IsZero() {
		return "", time.Time{}, errors.New("bearer subject is required")
	}
	issuedAt := i.clock.Now().Truncate(jwt.TimePrecision)
	expiresAt := issuedAt.Add(i.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign bearer token: %w", err)
	}
	return token, expiresAt, nil
}

// Validate checks signature, algorithm, expiry and the subject format.
func (i *Issuer) Validate(token string) (model.Subject, error) {
	var claims jwt.RegisteredClaims
	_, err := i.parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return model.Subject{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !claims.VerifyExpiresAt(i.clock.Now(), true) {
		return model.Subject{}, fmt.Errorf("%w: token expired", ErrInvalidToken)
	}
	userID, err := core.ParseID(claims.Subject)
	if err != nil {
		return model.Subject{}, fmt.Errorf("%w: malformed subject", ErrInvalidToken)
	}
	return model.Subject{UserID: userID}, nil
}
