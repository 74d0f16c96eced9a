package uc

import (
	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/signature"
	"github.com/sigauth/sigauth/engine/core"
)

// Factory wires use cases to their shared collaborators
type Factory struct {
	repo     Repository
	issuer   *bearer.Issuer
	clock    core.Clock
	random   core.Random
	verifier signature.Verifier
	cfg      *auth.Config
}

// Option customizes a Factory
type Option func(*Factory)

func WithClock(clock core.Clock) Option {
	return func(f *Factory) { f.clock = clock }
}

func WithRandom(random core.Random) Option {
	return func(f *Factory) { f.random = random }
}

func WithVerifier(v signature.Verifier) Option {
	return func(f *Factory) { f.verifier = v }
}

func WithConfig(cfg *auth.Config) Option {
	return func(f *Factory) { f.cfg = cfg }
}

// NewFactory creates a new use case factory. The issuer should share the
// factory's clock.
func NewFactory(repo Repository, issuer *bearer.Issuer, opts ...Option) *Factory {
	f := &Factory{
		repo:     repo,
		issuer:   issuer,
		clock:    core.SystemClock(),
		random:   core.CryptoRandom(),
		verifier: signature.Ed25519{},
		cfg:      auth.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Issuer exposes the bearer issuer for the authentication middleware
func (f *Factory) Issuer() *bearer.Issuer {
	return f.issuer
}

func (f *Factory) Config() *auth.Config {
	return f.cfg
}

func (f *Factory) RegisterUser(username string) *RegisterUser {
	return NewRegisterUser(f.repo, f.clock, f.random, f.cfg, username)
}

func (f *Factory) RegisterKey(userID core.ID, publicKey []byte) *RegisterKey {
	return NewRegisterKey(f.repo, f.clock, f.random, f.cfg, userID, publicKey)
}

func (f *Factory) AddKey(subject model.Subject, publicKey []byte, clientIP string) *AddKey {
	return NewAddKey(f.repo, f.clock, f.random, f.cfg, subject, publicKey, clientIP)
}

func (f *Factory) RevokeKey(subject model.Subject, keyID core.ID, clientIP string) *RevokeKey {
	return NewRevokeKey(f.repo, f.clock, f.random, subject, keyID, clientIP)
}

func (f *Factory) ListKeys(subject model.Subject) *ListKeys {
	return NewListKeys(f.repo, subject)
}

func (f *Factory) RequestChallenge(username string) *RequestChallenge {
	return NewRequestChallenge(f.repo, f.clock, f.random, f.cfg, username)
}

func (f *Factory) VerifyChallenge(input *VerifyChallengeInput) *VerifyChallenge {
	return NewVerifyChallenge(f.repo, f.clock, f.random, f.verifier, f.issuer, f.cfg, input)
}

func (f *Factory) RefreshToken(secret string) *RefreshToken {
	return NewRefreshToken(f.repo, f.clock, f.issuer, secret)
}

func (f *Factory) RevokeRefresh(secret string, clientIP string) *RevokeRefresh {
	return NewRevokeRefresh(f.repo, f.clock, f.random, secret, clientIP)
}

func (f *Factory) Logout(subject model.Subject, clientIP string) *Logout {
	return NewLogout(f.repo, f.clock, f.random, subject, clientIP)
}

func (f *Factory) PurgeChallenges() *PurgeChallenges {
	return NewPurgeChallenges(f.repo, f.clock)
}
