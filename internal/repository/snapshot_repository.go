package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
)

// SnapshotRepository provides data access methods for the balance_snapshot table.
type SnapshotRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewSnapshotRepository creates a new SnapshotRepository with the provided database connection.
func NewSnapshotRepository(db *sql.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

// WithTx returns a repository that runs its statements inside tx.
func (r *SnapshotRepository) WithTx(tx *sql.Tx) *SnapshotRepository {
	return &SnapshotRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *SnapshotRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

// snapshotPosition is the stored form of a position; asset details are not duplicated.
type snapshotPosition struct {
	AssetID         string `json:"assetId"`
	Amount          string `json:"amount"`
	AverageBuyPrice string `json:"averageBuyPrice"`
}

// InsertSnapshot stores a balance snapshot.
func (r *SnapshotRepository) InsertSnapshot(ctx context.Context, s *model.BalanceSnapshot) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}

	stored := make([]snapshotPosition, len(s.Positions))
	for i, p := range s.Positions {
		stored[i] = snapshotPosition{
			AssetID:         p.AssetID,
			Amount:          p.Amount.String(),
			AverageBuyPrice: p.AverageBuyPrice.String(),
		}
	}
	positions, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot positions: %w", err)
	}

	query := `
		INSERT INTO balance_snapshot (id, portfolio_id, balance, positions, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err = r.getQuerier().ExecContext(ctx, query,
		s.ID,
		s.PortfolioID,
		s.Balance,
		string(positions),
		dbTime(s.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert balance snapshot: %w", err)
	}
	return nil
}

// GetSnapshots returns the snapshots of a portfolio, newest first.
// A limit of zero or less returns all of them.
func (r *SnapshotRepository) GetSnapshots(ctx context.Context, portfolioID string, limit int) ([]model.BalanceSnapshot, error) {
	query := `
		SELECT id, portfolio_id, balance, positions, created_at
		FROM balance_snapshot
		WHERE portfolio_id = ?
		ORDER BY created_at DESC
	`
	args := []any{portfolioID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query balance_snapshot table: %w", err)
	}
	defer rows.Close()

	snapshots := []model.BalanceSnapshot{}
	for rows.Next() {
		var (
			s         model.BalanceSnapshot
			positions string
		)
		if err := rows.Scan(&s.ID, &s.PortfolioID, &s.Balance, &positions, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan balance_snapshot table results: %w", err)
		}

		var stored []snapshotPosition
		if err := json.Unmarshal([]byte(positions), &stored); err != nil {
			return nil, fmt.Errorf("failed to decode snapshot positions: %w", err)
		}
		s.Positions = make([]model.Position, 0, len(stored))
		for _, sp := range stored {
			p := model.Position{AssetID: sp.AssetID}
			if err := p.Amount.UnmarshalText([]byte(sp.Amount)); err != nil {
				return nil, fmt.Errorf("failed to decode snapshot amount: %w", err)
			}
			if err := p.AverageBuyPrice.UnmarshalText([]byte(sp.AverageBuyPrice)); err != nil {
				return nil, fmt.Errorf("failed to decode snapshot price: %w", err)
			}
			s.Positions = append(s.Positions, p)
		}
		snapshots = append(snapshots, s)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating balance_snapshot table: %w", err)
	}

	return snapshots, nil
}
