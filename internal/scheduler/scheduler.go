// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// resyncTimeout bounds how long loading the wallet portfolios may take.
const resyncTimeout = 30 * time.Second

// Resyncer queues a background sync for every wallet portfolio.
type Resyncer interface {
	ResyncWallets(ctx context.Context) (int, error)
}

// Scheduler owns the cron runner. Jobs that are still running when their next
// tick arrives are skipped, and panics inside jobs are recovered and logged.
type Scheduler struct {
	cron     *cron.Cron
	resyncer Resyncer
	logger   zerolog.Logger
}

// New creates a stopped Scheduler.
func New(resyncer Resyncer, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	cronLogger := cronLog{logger: logger}

	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		resyncer: resyncer,
		logger:   logger,
	}
}

// ScheduleWalletResync registers the wallet re-sync on spec, for example "@every 6h".
// An empty spec disables the job.
func (s *Scheduler) ScheduleWalletResync(spec string) error {
	if spec == "" {
		s.logger.Info().Msg("wallet resync disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, s.resyncWallets); err != nil {
		return fmt.Errorf("invalid wallet resync schedule %q: %w", spec, err)
	}
	s.logger.Info().Str("schedule", spec).Msg("wallet resync scheduled")
	return nil
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs returns the number of registered jobs.
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

func (s *Scheduler) resyncWallets() {
	ctx, cancel := context.WithTimeout(context.Background(), resyncTimeout)
	defer cancel()

	queued, err := s.resyncer.ResyncWallets(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("wallet resync failed")
		return
	}
	s.logger.Info().Int("queued", queued).Msg("wallet resync queued")
}

// cronLog routes cron's own messages to zerolog.
type cronLog struct {
	logger zerolog.Logger
}

func (l cronLog) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLog) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
