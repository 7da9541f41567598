package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/secret"
)

// PortfolioRepository provides data access methods for the portfolio and position tables.
// Positions are always read and written together with their portfolio row.
// Wallet addresses are encrypted before they reach the database.
type PortfolioRepository struct {
	db  *sql.DB
	tx  *sql.Tx
	box *secret.Box
}

// NewPortfolioRepository creates a new PortfolioRepository with the provided database connection.
func NewPortfolioRepository(db *sql.DB, box *secret.Box) *PortfolioRepository {
	return &PortfolioRepository{db: db, box: box}
}

// WithTx returns a repository that runs its statements inside tx.
func (r *PortfolioRepository) WithTx(tx *sql.Tx) *PortfolioRepository {
	return &PortfolioRepository{
		db:  r.db,
		tx:  tx,
		box: r.box,
	}
}

func (r *PortfolioRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const portfolioColumns = `
	id, owner_id, name, description, type, tracker_mode, wallet_address_enc,
	is_main, has_asset, display_currency, is_public, show_amounts,
	sync_status, last_sync, version, created_at, updated_at`

func (r *PortfolioRepository) scanPortfolio(row interface{ Scan(dest ...any) error }) (model.Portfolio, error) {
	var (
		p             model.Portfolio
		walletAddress string
		lastSync      sql.NullTime
	)

	err := row.Scan(
		&p.ID,
		&p.OwnerID,
		&p.Name,
		&p.Description,
		&p.Type,
		&p.TrackerMode,
		&walletAddress,
		&p.IsMain,
		&p.HasAsset,
		&p.Settings.DisplayCurrency,
		&p.Settings.IsPublic,
		&p.Settings.ShowAmounts,
		&p.SyncStatus,
		&lastSync,
		&p.Version,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return model.Portfolio{}, err
	}

	if lastSync.Valid {
		t := lastSync.Time
		p.LastSync = &t
	}

	p.WalletAddress, err = r.box.Decrypt(walletAddress)
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to decrypt wallet address of portfolio %s: %w", p.ID, err)
	}

	p.Assets = []model.Position{}
	return p, nil
}

// GetPortfolio retrieves a portfolio and its positions.
func (r *PortfolioRepository) GetPortfolio(ctx context.Context, portfolioID string) (model.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolio WHERE id = ?`

	p, err := r.scanPortfolio(r.getQuerier().QueryRowContext(ctx, query, portfolioID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Portfolio{}, apperrors.ErrPortfolioNotFound
	}
	if err != nil {
		return model.Portfolio{}, fmt.Errorf("failed to query portfolio: %w", err)
	}

	positions, err := r.getPositions(ctx, []string{p.ID})
	if err != nil {
		return model.Portfolio{}, err
	}
	if ps, ok := positions[p.ID]; ok {
		p.Assets = ps
	}

	return p, nil
}

// GetPortfoliosByOwner returns every portfolio owned by ownerID, oldest first.
func (r *PortfolioRepository) GetPortfoliosByOwner(ctx context.Context, ownerID string) ([]model.Portfolio, error) {
	query := `SELECT ` + portfolioColumns + ` FROM portfolio WHERE owner_id = ? ORDER BY created_at, id`
	return r.queryPortfolios(ctx, query, ownerID)
}

// GetWalletPortfolios returns every wallet tracked portfolio.
func (r *PortfolioRepository) GetWalletPortfolios(ctx context.Context) ([]model.Portfolio, error) {
	query := `
		SELECT ` + portfolioColumns + ` FROM portfolio
		WHERE tracker_mode = ? AND wallet_address_enc != ''
		ORDER BY created_at, id
	`
	return r.queryPortfolios(ctx, query, model.TrackerWallet)
}

func (r *PortfolioRepository) queryPortfolios(ctx context.Context, query string, args ...any) ([]model.Portfolio, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolio table: %w", err)
	}

	portfolios := []model.Portfolio{}
	for rows.Next() {
		p, err := r.scanPortfolio(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan portfolio table results: %w", err)
		}
		portfolios = append(portfolios, p)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating portfolio table: %w", err)
	}
	// Release the connection before the position query.
	rows.Close()

	if len(portfolios) == 0 {
		return portfolios, nil
	}

	ids := make([]string, len(portfolios))
	for i, p := range portfolios {
		ids[i] = p.ID
	}

	positions, err := r.getPositions(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range portfolios {
		if ps, ok := positions[portfolios[i].ID]; ok {
			portfolios[i].Assets = ps
		}
	}

	return portfolios, nil
}

// getPositions loads the positions of the given portfolios in stored order, with their asset.
func (r *PortfolioRepository) getPositions(ctx context.Context, portfolioIDs []string) (map[string][]model.Position, error) {
	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `
		SELECT p.portfolio_id, p.asset_id, p.amount, p.average_buy_price,
		       a.id, a.symbol, a.name, a.type, a.trading_pair, a.image_url, a.created_at
		FROM position p
		JOIN asset a ON a.id = p.asset_id
		WHERE p.portfolio_id IN (` + placeholders(len(portfolioIDs)) + `)
		ORDER BY p.portfolio_id, p.sort_order
	`

	args := make([]any, len(portfolioIDs))
	for i, id := range portfolioIDs {
		args[i] = id
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query position table: %w", err)
	}
	defer rows.Close()

	result := make(map[string][]model.Position)
	for rows.Next() {
		var (
			portfolioID string
			pos         model.Position
			a           model.Asset
		)
		err := rows.Scan(
			&portfolioID,
			&pos.AssetID,
			&pos.Amount,
			&pos.AverageBuyPrice,
			&a.ID,
			&a.Symbol,
			&a.Name,
			&a.Type,
			&a.TradingPair,
			&a.ImageURL,
			&a.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan position table results: %w", err)
		}
		pos.Asset = &a
		result[portfolioID] = append(result[portfolioID], pos)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating position table: %w", err)
	}

	return result, nil
}

// InsertPortfolio stores a new portfolio together with any initial positions.
func (r *PortfolioRepository) InsertPortfolio(ctx context.Context, p *model.Portfolio) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	p.Version = 1
	p.HasAsset = len(p.Assets) > 0
	if p.Assets == nil {
		p.Assets = []model.Position{}
	}

	walletAddress, err := r.box.Encrypt(p.WalletAddress)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO portfolio (` + portfolioColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.getQuerier().ExecContext(ctx, query,
		p.ID,
		p.OwnerID,
		p.Name,
		p.Description,
		p.Type,
		p.TrackerMode,
		walletAddress,
		p.IsMain,
		p.HasAsset,
		p.Settings.DisplayCurrency,
		p.Settings.IsPublic,
		p.Settings.ShowAmounts,
		p.SyncStatus,
		nullTime(p.LastSync),
		p.Version,
		dbTime(p.CreatedAt),
		dbTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert portfolio: %w", err)
	}

	return r.insertPositions(ctx, p.ID, p.Assets)
}

// UpdatePortfolio writes the descriptive and privacy fields of p. Positions are not touched.
func (r *PortfolioRepository) UpdatePortfolio(ctx context.Context, p *model.Portfolio) error {
	p.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE portfolio
		SET name = ?, description = ?, type = ?, is_main = ?,
		    display_currency = ?, is_public = ?, show_amounts = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		p.Name,
		p.Description,
		p.Type,
		p.IsMain,
		p.Settings.DisplayCurrency,
		p.Settings.IsPublic,
		p.Settings.ShowAmounts,
		dbTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update portfolio: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}

// SavePositions replaces the stored positions of p with p.Assets.
//
// The write succeeds only when the stored version still equals p.Version, so a
// caller working from a stale read gets apperrors.ErrConflict instead of
// overwriting a concurrent change. On success p.Version and p.HasAsset are updated.
func (r *PortfolioRepository) SavePositions(ctx context.Context, p *model.Portfolio) error {
	hasAsset := len(p.Assets) > 0
	now := time.Now().UTC()

	query := `
		UPDATE portfolio
		SET has_asset = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query, hasAsset, dbTime(now), p.ID, p.Version)
	if err != nil {
		return fmt.Errorf("failed to update portfolio version: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: portfolio %s was modified concurrently", apperrors.ErrConflict, p.ID)
	}

	if _, err := r.getQuerier().ExecContext(ctx, `DELETE FROM position WHERE portfolio_id = ?`, p.ID); err != nil {
		return fmt.Errorf("failed to clear positions: %w", err)
	}

	if err := r.insertPositions(ctx, p.ID, p.Assets); err != nil {
		return err
	}

	p.Version++
	p.HasAsset = hasAsset
	p.UpdatedAt = now
	return nil
}

func (r *PortfolioRepository) insertPositions(ctx context.Context, portfolioID string, positions []model.Position) error {
	query := `
		INSERT INTO position (portfolio_id, asset_id, amount, average_buy_price, sort_order)
		VALUES (?, ?, ?, ?, ?)
	`

	for i, pos := range positions {
		_, err := r.getQuerier().ExecContext(ctx, query,
			portfolioID,
			pos.AssetID,
			pos.Amount,
			pos.AverageBuyPrice,
			i,
		)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: asset %s appears twice in portfolio %s", apperrors.ErrInconsistentState, pos.AssetID, portfolioID)
		}
		if err != nil {
			return fmt.Errorf("failed to insert position: %w", err)
		}
	}
	return nil
}

// UpdateSyncState records the outcome of a wallet sync.
func (r *PortfolioRepository) UpdateSyncState(ctx context.Context, portfolioID, status string, lastSync *time.Time) error {
	query := `
		UPDATE portfolio
		SET sync_status = ?, last_sync = COALESCE(?, last_sync)
		WHERE id = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query, status, nullTime(lastSync), portfolioID)
	if err != nil {
		return fmt.Errorf("failed to update sync state: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}

// DeletePortfolio removes a portfolio. Positions, transactions and snapshots cascade.
func (r *PortfolioRepository) DeletePortfolio(ctx context.Context, portfolioID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM portfolio WHERE id = ?`, portfolioID)
	if err != nil {
		return fmt.Errorf("failed to delete portfolio: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrPortfolioNotFound
	}
	return nil
}
