package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sigauth/sigauth/engine/auth/cleanup"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/engine/core"
	"github.com/sigauth/sigauth/engine/infra/cache"
	"github.com/sigauth/sigauth/engine/infra/monitoring"
	"github.com/sigauth/sigauth/engine/infra/server/middleware/ratelimit"
	"github.com/sigauth/sigauth/engine/infra/store"
	"github.com/sigauth/sigauth/pkg/config"
	"github.com/sigauth/sigauth/pkg/logger"
	"golang.org/x/sync/errgroup"
)

const (
	defaultShutdownTimeout = 5 * time.Second
	hostAny                = "0.0.0.0"
	hostLoopback           = "127.0.0.1"
)

// Option customizes a Server
type Option func(*Server)

// WithClock replaces the wall clock shared by the token issuer and use cases.
func WithClock(clock core.Clock) Option {
	return func(s *Server) { s.clock = clock }
}

type Server struct {
	cfg        *config.Config
	ctx        context.Context
	cancel     context.CancelFunc
	clock      core.Clock
	router     *gin.Engine
	monitoring *monitoring.Service
	store      *store.Store
	redis      *cache.Redis
	factory    *uc.Factory
	scheduler  *cleanup.Scheduler
	rateLimit  *ratelimit.Manager
	userCache  string
	cleanupMu  sync.Mutex
	cleanups   []func()
	closeOnce  sync.Once
}

// NewServer prepares a server for cfg. A nil cfg falls back to the
// configuration attached to ctx.
func NewServer(ctx context.Context, cfg *config.Config, opts ...Option) (*Server, error) {
	if cfg == nil {
		cfg = config.FromContext(ctx)
	}
	if cfg == nil {
		return nil, fmt.Errorf("configuration missing; attach a manager with config.ContextWithManager")
	}
	serverCtx, cancel := context.WithCancel(ctx)
	s := &Server{
		cfg:    cfg,
		ctx:    serverCtx,
		cancel: cancel,
		clock:  core.SystemClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Setup builds every dependency and the router. Resources acquired before a
// failure are released.
func (s *Server) Setup() error {
	issuer, err := s.newIssuer()
	if err != nil {
		return err
	}
	s.setupMonitoring()
	steps := []func() error{
		s.setupStore,
		s.setupRedis,
		func() error { return s.setupAuth(issuer) },
		s.setupRateLimit,
		s.recordDeployment,
		s.buildRouter,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			s.Close()
			return err
		}
	}
	return nil
}

// Handler returns the assembled router; Setup must have succeeded.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Factory exposes the use case factory bound to the open store.
func (s *Server) Factory() *uc.Factory {
	return s.factory
}

// Run sets the server up, listens on the configured address and blocks until
// SIGINT or SIGTERM, then drains in-flight requests.
func (s *Server) Run() error {
	if err := s.Setup(); err != nil {
		return err
	}
	defer s.Close()
	addr := net.JoinHostPort(s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	s.logStartup(ln.Addr())
	return s.Serve(ctx, ln)
}

// Serve handles HTTP on ln and runs the challenge cleanup job until ctx ends.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	log := logger.FromContext(s.ctx)
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return s.ctx },
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.scheduler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server")
		timeout := s.cfg.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = defaultShutdownTimeout
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server shutdown completed successfully")
	return nil
}

// Close releases resources in reverse acquisition order. Safe to call twice.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		s.cleanupMu.Lock()
		fns := s.cleanups
		s.cleanups = nil
		s.cleanupMu.Unlock()
		for i := len(fns) - 1; i >= 0; i-- {
			fns[i]()
		}
		s.cancel()
	})
}

func (s *Server) addCleanup(fn func()) {
	s.cleanupMu.Lock()
	defer s.cleanupMu.Unlock()
	s.cleanups = append(s.cleanups, fn)
}

func (s *Server) logStartup(addr net.Addr) {
	host, port, err := net.SplitHostPort(addr.String())
	if err != nil {
		host, port = s.cfg.Server.Host, strconv.Itoa(s.cfg.Server.Port)
	}
	base := fmt.Sprintf("http://%s", net.JoinHostPort(friendlyHost(host), port))
	fields := []any{
		"address", base,
		"health", base + "/health",
		"store_driver", s.store.Driver(),
		"ratelimit_driver", s.rateLimit.Driver(),
	}
	if s.monitoring != nil && s.monitoring.IsInitialized() {
		fields = append(fields, "metrics", base+s.cfg.Monitoring.Path)
	}
	logger.FromContext(s.ctx).Info("Auth server listening", fields...)
}

func friendlyHost(h string) string {
	if h == hostAny || h == "::" || h == "" {
		return hostLoopback
	}
	return h
}
