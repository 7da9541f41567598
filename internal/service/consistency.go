package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ndewijer/coinfolio-ledger/internal/ledger"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
)

// loadLedgerState reads a portfolio and its local transactions in one database
// transaction so both come from the same committed state.
func loadLedgerState(
	ctx context.Context,
	db *sql.DB,
	portfolios *repository.PortfolioRepository,
	transactions *repository.TransactionRepository,
	portfolioID string,
) (model.Portfolio, []model.Transaction, error) {
	var (
		portfolio model.Portfolio
		txs       []model.Transaction
	)
	err := withTx(ctx, db, func(tx *sql.Tx) error {
		var err error
		portfolio, err = portfolios.WithTx(tx).GetPortfolio(ctx, portfolioID)
		if err != nil {
			return err
		}
		txs, err = transactions.WithTx(tx).GetLocalTransactionsChronological(ctx, portfolioID)
		return err
	})
	if err != nil {
		return model.Portfolio{}, nil, err
	}
	return portfolio, txs, nil
}

// replayLocal rebuilds positions from an empty ledger by applying txs in order.
func replayLocal(engine EffectEngine, txs []model.Transaction) ([]model.Position, error) {
	positions := []model.Position{}
	for _, t := range txs {
		next, err := engine.Apply(positions, ledger.EffectOf(t))
		if err != nil {
			return nil, fmt.Errorf("transaction %s cannot be replayed: %w", t.ID, err)
		}
		positions = next
	}
	return positions, nil
}

// compareAmounts lists every asset whose stored amount differs from the replayed one.
func compareAmounts(stored, replayed []model.Position) []string {
	var mismatches []string

	for _, s := range stored {
		i := ledger.Find(replayed, s.AssetID)
		if i == ledger.NotFound {
			mismatches = append(mismatches, fmt.Sprintf("asset %s: stored %s, no transactions", s.AssetID, s.Amount))
			continue
		}
		if !replayed[i].Amount.Equal(s.Amount) {
			mismatches = append(mismatches, fmt.Sprintf("asset %s: stored %s, transactions %s", s.AssetID, s.Amount, replayed[i].Amount))
		}
	}

	for _, r := range replayed {
		if ledger.Find(stored, r.AssetID) == ledger.NotFound {
			mismatches = append(mismatches, fmt.Sprintf("asset %s: no position, transactions %s", r.AssetID, r.Amount))
		}
	}

	return mismatches
}
