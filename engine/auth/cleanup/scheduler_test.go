package cleanup_test

import (
	"context"
	"crypto/ed25519"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigauth/sigauth/engine/auth/bearer"
	"github.com/sigauth/sigauth/engine/auth/cleanup"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/engine/infra/sqlite"
	"github.com/sigauth/sigauth/pkg/logger"
)

func setup(t *testing.T) (context.Context, *uc.Factory, *sqlite.AuthRepo, *core.ManualClock) {
	t.Helper()
	ctx := logger.ContextWithLogger(t.Context(), logger.NewForTests())
	path := filepath.Join(t.TempDir(), "auth.db")
	require.NoError(t, sqlite.ApplyMigrations(ctx, path))
	store, err := sqlite.NewStore(ctx, &sqlite.Config{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(context.Background()) })
	clock := core.NewManualClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	issuer, err := bearer.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), 0, clock)
	require.NoError(t, err)
	repo := sqlite.NewAuthRepo(store.DB())
	return ctx, uc.NewFactory(repo, issuer, uc.WithClock(clock)), repo, clock
}

func issueChallenge(t *testing.T, ctx context.Context, f *uc.Factory) *uc.IssuedChallenge {
	t.Helper()
	ch, err := f.RequestChallenge("alice").Execute(ctx)
	require.NoError(t, err)
	return ch
}

func enroll(t *testing.T, ctx context.Context, f *uc.Factory) {
	t.Helper()
	user, err := f.RegisterUser("alice").Execute(ctx)
	require.NoError(t, err)
	pub, _, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	_, err = f.RegisterKey(user.ID, pub).Execute(ctx)
	require.NoError(t, err)
}

func TestNewScheduler(t *testing.T) {
	t.Run("Should accept descriptors and standard expressions", func(t *testing.T) {
		for _, spec := range []string{"", "@every 30s", "*/5 * * * *", "@hourly"} {
			_, err := cleanup.NewScheduler(nil, spec)
			assert.NoError(t, err, spec)
		}
	})

	t.Run("Should reject malformed schedules", func(t *testing.T) {
		_, err := cleanup.NewScheduler(nil, "every minute")
		require.ErrorContains(t, err, "invalid challenge cleanup schedule")
	})
}

func TestScheduler(t *testing.T) {
	t.Run("Should purge only expired challenges", func(t *testing.T) {
		ctx, factory, repo, clock := setup(t)
		enroll(t, ctx, factory)
		old := issueChallenge(t, ctx, factory)
		clock.Advance(6 * time.Minute)
		fresh := issueChallenge(t, ctx, factory)

		s, err := cleanup.NewScheduler(factory, "@every 1m")
		require.NoError(t, err)
		n, err := s.RunOnce(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		_, err = repo.GetChallenge(ctx, old.ID)
		assert.ErrorIs(t, err, uc.ErrChallengeNotFound)
		_, err = repo.GetChallenge(ctx, fresh.ID)
		assert.NoError(t, err)
	})

	t.Run("Should run on schedule until cancelled", func(t *testing.T) {
		ctx, factory, repo, clock := setup(t)
		enroll(t, ctx, factory)
		old := issueChallenge(t, ctx, factory)
		clock.Advance(6 * time.Minute)

		s, err := cleanup.NewScheduler(factory, "@every 1s")
		require.NoError(t, err)
		runCtx, cancel := context.WithCancel(ctx)
		done := make(chan error, 1)
		go func() { done <- s.Run(runCtx) }()

		require.Eventually(t, func() bool {
			_, err := repo.GetChallenge(ctx, old.ID)
			return err != nil
		}, 5*time.Second, 100*time.Millisecond)
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("scheduler did not stop")
		}
	})
}
