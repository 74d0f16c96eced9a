// Package cleanup garbage-collects expired challenges on a cron schedule.
package cleanup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sigauth/sigauth/engine/auth/uc"
	"github.com/sigauth/sigauth/pkg/logger"
)

const (
	DefaultSchedule = "@every 1m"
	runTimeout      = 30 * time.Second
)

// Scheduler runs PurgeChallenges on a cron schedule. Runs never overlap.
type Scheduler struct {
	factory  *uc.Factory
	schedule cron.Schedule
	mu       sync.Mutex
}

// NewScheduler parses spec as a standard cron expression or descriptor such as
// "@every 1m". An empty spec uses DefaultSchedule.
func NewScheduler(factory *uc.Factory, spec string) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid challenge cleanup schedule %q: %w", spec, err)
	}
	return &Scheduler{factory: factory, schedule: schedule}, nil
}

// RunOnce purges expired challenges now.
func (s *Scheduler) RunOnce(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runCtx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()
	return s.factory.PurgeChallenges().Execute(runCtx)
}

// Run starts the cron loop and blocks until ctx is cancelled, then waits for
// an in-flight run to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	log := logger.FromContext(ctx)
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Error("Challenge cleanup failed", "error", err)
		}
	}))
	c.Start()
	log.Info("Challenge cleanup scheduler started")
	<-ctx.Done()
	<-c.Stop().Done()
	log.Info("Challenge cleanup scheduler stopped")
	return nil
}
