package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/reconcile"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
	"github.com/shopspring/decimal"
)

// snapshotWriter replaces a wallet portfolio's positions with a provider snapshot.
// It is shared by the on-demand sync and the background runner.
type snapshotWriter struct {
	db              *sql.DB
	portfolioRepo   *repository.PortfolioRepository
	transactionRepo *repository.TransactionRepository
	snapshotRepo    *repository.SnapshotRepository
	locks           *PortfolioLocker
	now             func() time.Time
}

// snapshotOutcome describes what one write changed.
type snapshotOutcome struct {
	Portfolio model.Portfolio
	Inserted  int
	SyncedAt  time.Time
}

// apply stores the snapshot positions, a balance snapshot row, the new
// external history and the sync state in one database transaction.
func (w *snapshotWriter) apply(ctx context.Context, portfolioID string, snapshot model.WalletSnapshot, history []model.Transaction, status string) (snapshotOutcome, error) {
	unlock := w.locks.Lock(portfolioID)
	defer unlock()

	syncedAt := w.now().UTC()
	positions := reconcile.Positions(snapshot)

	var outcome snapshotOutcome
	err := withRetry(func() error {
		return withTx(ctx, w.db, func(tx *sql.Tx) error {
			portfolio, err := w.portfolioRepo.WithTx(tx).GetPortfolio(ctx, portfolioID)
			if err != nil {
				return err
			}

			portfolio.Assets = positions
			if err := w.portfolioRepo.WithTx(tx).SavePositions(ctx, &portfolio); err != nil {
				return err
			}

			err = w.snapshotRepo.WithTx(tx).InsertSnapshot(ctx, &model.BalanceSnapshot{
				PortfolioID: portfolioID,
				Balance:     snapshotBalance(snapshot),
				Positions:   positions,
				CreatedAt:   syncedAt,
			})
			if err != nil {
				return err
			}

			inserted := 0
			if len(history) > 0 {
				inserted, err = w.transactionRepo.WithTx(tx).InsertExternalTransactions(ctx, history)
				if err != nil {
					return err
				}
			}

			if err := w.portfolioRepo.WithTx(tx).UpdateSyncState(ctx, portfolioID, status, &syncedAt); err != nil {
				return err
			}

			portfolio.SyncStatus = status
			portfolio.LastSync = &syncedAt
			outcome = snapshotOutcome{Portfolio: portfolio, Inserted: inserted, SyncedAt: syncedAt}
			return nil
		})
	})
	return outcome, err
}

// snapshotBalance is the market value of a snapshot at provider prices.
func snapshotBalance(snapshot model.WalletSnapshot) decimal.Decimal {
	total := decimal.Zero
	for _, b := range snapshot.Balances {
		total = total.Add(b.Amount.Mul(b.Price))
	}
	return total
}
