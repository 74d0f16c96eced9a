package uc_test

import (
	"context"
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sigauth/sigauth/engine/auth"
	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/model"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
	"github.com/sigauth/sigauth/pkg/logger"
)

var (
	startTime  = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	testSecret = []byte("0123456789abcdef0123456789abcdef")
)

type testEnv struct {
	ctx     context.Context
	repo    *sqlite.AuthRepo
	clock   *core.ManualClock
	issuer  *bearer.Issuer
	cfg     *auth.Config
	factory *uc.Factory
}

func newTestEnv(t *testing.T, mutate ...func(*auth.Config)) *testEnv {
	t.Helper()
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	path := filepath.Join(t.TempDir(), "auth.db")
	require.NoError(t, sqlite.ApplyMigrations(ctx, path))
	store, err := sqlite.NewStore(ctx, &sqlite.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	cfg := auth.DefaultConfig()
	for _, m := range mutate {
		m(cfg)
	}
	clock := core.NewManualClock(startTime)
	issuer, err := bearer.NewIssuer(testSecret, cfg.BearerTTL, clock)
	require.NoError(t, err)
	repo := sqlite.NewAuthRepo(store.DB())
	return &testEnv{
		ctx:     ctx,
		repo:    repo,
		clock:   clock,
		issuer:  issuer,
		cfg:     cfg,
		factory: uc.NewFactory(repo, issuer, uc.WithClock(clock), uc.WithConfig(cfg)),
	}
}

func (e *testEnv) withRandom(r core.Random) *uc.Factory {
	return uc.NewFactory(e.repo, e.issuer, uc.WithClock(e.clock), uc.WithConfig(e.cfg), uc.WithRandom(r))
}

func newKeyPair(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return pub, priv
}

// enroll registers a user with one key and returns the user and its private key.
func (e *testEnv) enroll(t *testing.T, username string) (*model.User, ed25519.PrivateKey) {
	t.Helper()
	user, err := e.factory.RegisterUser(username).Execute(e.ctx)
	require.NoError(t, err)
	pub, priv := newKeyPair(t)
	_, err = e.factory.RegisterKey(user.ID, pub).Execute(e.ctx)
	require.NoError(t, err)
	return user, priv
}

func (e *testEnv) challenge(t *testing.T, username string) *uc.IssuedChallenge {
	t.Helper()
	ch, err := e.factory.RequestChallenge(username).Execute(e.ctx)
	require.NoError(t, err)
	return ch
}

func (e *testEnv) verify(ch *uc.IssuedChallenge, sig []byte) (*uc.TokenPair, error) {
	return e.factory.VerifyChallenge(&uc.VerifyChallengeInput{
		ChallengeID: ch.ID.String(),
		Signature:   sig,
		ClientIP:    "192.0.2.10",
	}).Execute(e.ctx)
}

func (e *testEnv) login(t *testing.T, username string, priv ed25519.PrivateKey) *uc.TokenPair {
	t.Helper()
	ch := e.challenge(t, username)
	pair, err := e.verify(ch, ed25519.Sign(priv, ch.Value))
	require.NoError(t, err)
	return pair
}

func (e *testEnv) auditActions(t *testing.T, userID core.ID) []model.AuditAction {
	t.Helper()
	entries, err := e.repo.ListAudit(e.ctx, userID)
	require.NoError(t, err)
	out := make([]model.AuditAction, 0, len(entries))
	for _, entry := range entries {
		out = append(out, entry.Action)
	}
	return out
}

type failingRandom struct{}

func (failingRandom) Read([]byte) (int, error) { return 0, errors.New("entropy unavailable") }
