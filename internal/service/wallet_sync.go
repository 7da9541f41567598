package service

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/reconcile"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// WalletSource is the reconciliation surface the services need from the wallet adapter.
type WalletSource interface {
	FetchSnapshot(ctx context.Context, address string) (model.WalletSnapshot, error)
	FetchTransactions(ctx context.Context, address, connectionID string, limit int, portfolioID, userID string) ([]model.Transaction, error)
	RequestRefresh(ctx context.Context, address, connectionID string) error
	AwaitRefresh(ctx context.Context, address, connectionID string, minDelay, pollInterval, maxWait time.Duration) error
}

// WalletSyncJob asks the runner to catch up one wallet portfolio.
type WalletSyncJob struct {
	PortfolioID  string
	ConnectionID string
}

// WalletSyncOptions configures the background runner.
type WalletSyncOptions struct {
	Workers          int
	QueueSize        int
	MaxAttempts      int
	RetryBackoff     time.Duration
	SyncDelay        time.Duration
	PollInterval     time.Duration
	MaxWait          time.Duration
	TransactionLimit int
}

func (o WalletSyncOptions) withDefaults() WalletSyncOptions {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 64
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 1
	}
	if o.TransactionLimit <= 0 {
		o.TransactionLimit = 1000
	}
	return o
}

// WalletSyncRunner processes wallet history jobs on a fixed pool of workers.
//
// Callers never wait for a job: Enqueue drops the job when the queue is full,
// and job failures are logged after the last attempt instead of being returned.
type WalletSyncRunner struct {
	wallet        WalletSource
	portfolioRepo *repository.PortfolioRepository
	snapshots     *snapshotWriter
	opts          WalletSyncOptions
	logger        zerolog.Logger

	queue  chan WalletSyncJob
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewWalletSyncRunner creates a runner. Call Start before enqueuing jobs.
func NewWalletSyncRunner(
	db *sql.DB,
	wallet WalletSource,
	portfolioRepo *repository.PortfolioRepository,
	transactionRepo *repository.TransactionRepository,
	snapshotRepo *repository.SnapshotRepository,
	locks *PortfolioLocker,
	opts WalletSyncOptions,
	logger zerolog.Logger,
) *WalletSyncRunner {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	return &WalletSyncRunner{
		wallet:        wallet,
		portfolioRepo: portfolioRepo,
		snapshots: &snapshotWriter{
			db:              db,
			portfolioRepo:   portfolioRepo,
			transactionRepo: transactionRepo,
			snapshotRepo:    snapshotRepo,
			locks:           locks,
			now:             time.Now,
		},
		opts:   opts,
		logger: logger.With().Str("component", "wallet_sync").Logger(),
		queue:  make(chan WalletSyncJob, opts.QueueSize),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start launches the workers. Calling it twice has no effect.
func (r *WalletSyncRunner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true

	for i := range r.opts.Workers {
		r.wg.Add(1)
		go r.work(i)
	}
	r.logger.Info().Int("workers", r.opts.Workers).Msg("wallet sync runner started")
}

// Enqueue schedules a job and reports whether it was accepted.
// It never blocks: a full or stopped queue drops the job.
func (r *WalletSyncRunner) Enqueue(job WalletSyncJob) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.logger.Warn().Str("portfolio_id", job.PortfolioID).Msg("wallet sync job dropped, runner stopped")
		return false
	}

	select {
	case r.queue <- job:
		r.logger.Debug().Str("portfolio_id", job.PortfolioID).Msg("wallet sync job queued")
		return true
	default:
		r.logger.Warn().Str("portfolio_id", job.PortfolioID).Msg("wallet sync job dropped, queue full")
		return false
	}
}

// ResyncWallets queues a job for every wallet portfolio and returns how many were accepted.
func (r *WalletSyncRunner) ResyncWallets(ctx context.Context) (int, error) {
	portfolios, err := r.portfolioRepo.GetWalletPortfolios(ctx)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, p := range portfolios {
		if r.Enqueue(WalletSyncJob{PortfolioID: p.ID}) {
			queued++
		}
	}
	return queued, nil
}

// Shutdown stops accepting jobs and waits for queued ones to finish.
// When ctx expires first, in-flight jobs are cancelled and ctx.Err is returned.
func (r *WalletSyncRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}

func (r *WalletSyncRunner) work(id int) {
	defer r.wg.Done()
	for job := range r.queue {
		r.process(job, id)
	}
}

// process runs a job with linear backoff between attempts.
func (r *WalletSyncRunner) process(job WalletSyncJob, worker int) {
	log := r.logger.With().Str("portfolio_id", job.PortfolioID).Int("worker", worker).Logger()

	var err error
	for attempt := 1; attempt <= r.opts.MaxAttempts; attempt++ {
		err = r.sync(r.ctx, job)
		if err == nil {
			return
		}
		if r.ctx.Err() != nil {
			log.Warn().Err(err).Msg("wallet sync cancelled")
			return
		}

		log.Warn().Err(err).Int("attempt", attempt).Msg("wallet sync attempt failed")
		if attempt == r.opts.MaxAttempts {
			break
		}

		select {
		case <-time.After(r.opts.RetryBackoff * time.Duration(attempt)):
		case <-r.ctx.Done():
			return
		}
	}

	log.Error().Err(err).Int("attempts", r.opts.MaxAttempts).Msg("wallet sync failed")
	if stateErr := r.portfolioRepo.UpdateSyncState(r.ctx, job.PortfolioID, model.SyncStatusFailed, nil); stateErr != nil {
		log.Error().Err(stateErr).Msg("failed to record wallet sync failure")
	}
}

// sync refreshes the provider view, then replaces positions from balances and
// appends the new history as external transactions.
func (r *WalletSyncRunner) sync(ctx context.Context, job WalletSyncJob) error {
	p, err := r.portfolioRepo.GetPortfolio(ctx, job.PortfolioID)
	if errors.Is(err, apperrors.ErrNotFound) {
		r.logger.Debug().Str("portfolio_id", job.PortfolioID).Msg("wallet sync skipped, portfolio deleted")
		return nil
	}
	if err != nil {
		return err
	}
	if !p.IsWallet() {
		return nil
	}

	connectionID := job.ConnectionID
	if connectionID == "" {
		connectionID = coinstats.DefaultNetwork
	}

	if err := r.wallet.RequestRefresh(ctx, p.WalletAddress, connectionID); err != nil {
		return err
	}
	err = r.wallet.AwaitRefresh(ctx, p.WalletAddress, connectionID, r.opts.SyncDelay, r.opts.PollInterval, r.opts.MaxWait)
	switch {
	case errors.Is(err, reconcile.ErrSyncTimeout):
		r.logger.Warn().Err(err).Str("portfolio_id", p.ID).Msg("wallet provider still syncing, using its current data")
	case err != nil:
		return err
	}

	var (
		snapshot model.WalletSnapshot
		history  []model.Transaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snapshot, err = r.wallet.FetchSnapshot(gctx, p.WalletAddress)
		return err
	})
	g.Go(func() error {
		var err error
		history, err = r.wallet.FetchTransactions(gctx, p.WalletAddress, connectionID, r.opts.TransactionLimit, p.ID, p.OwnerID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	outcome, err := r.snapshots.apply(ctx, p.ID, snapshot, history, model.SyncStatusSynced)
	if err != nil {
		return err
	}

	r.logger.Info().
		Str("portfolio_id", p.ID).
		Int("positions", len(outcome.Portfolio.Assets)).
		Int("fetched", len(history)).
		Int("inserted", outcome.Inserted).
		Msg("wallet synced")
	return nil
}
