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
)

// AssetRepository provides data access methods for the asset table.
type AssetRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewAssetRepository creates a new AssetRepository with the provided database connection.
func NewAssetRepository(db *sql.DB) *AssetRepository {
	return &AssetRepository{db: db}
}

// WithTx returns a repository that runs its statements inside tx.
func (r *AssetRepository) WithTx(tx *sql.Tx) *AssetRepository {
	return &AssetRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *AssetRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const assetColumns = `id, symbol, name, type, trading_pair, image_url, created_at`

func scanAsset(row interface{ Scan(dest ...any) error }) (model.Asset, error) {
	var a model.Asset
	err := row.Scan(
		&a.ID,
		&a.Symbol,
		&a.Name,
		&a.Type,
		&a.TradingPair,
		&a.ImageURL,
		&a.CreatedAt,
	)
	return a, err
}

// GetAssets returns all assets ordered by symbol.
func (r *AssetRepository) GetAssets(ctx context.Context) ([]model.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset ORDER BY symbol`

	rows, err := r.getQuerier().QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset table: %w", err)
	}
	defer rows.Close()

	assets := []model.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset table results: %w", err)
		}
		assets = append(assets, a)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset table: %w", err)
	}

	return assets, nil
}

// GetAsset retrieves a single asset by ID.
func (r *AssetRepository) GetAsset(ctx context.Context, assetID string) (model.Asset, error) {
	query := `SELECT ` + assetColumns + ` FROM asset WHERE id = ?`

	a, err := scanAsset(r.getQuerier().QueryRowContext(ctx, query, assetID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Asset{}, apperrors.ErrAssetNotFound
	}
	if err != nil {
		return model.Asset{}, fmt.Errorf("failed to query asset: %w", err)
	}
	return a, nil
}

// GetAssetsByIDs returns the assets for the given IDs keyed by ID.
// Unknown IDs are absent from the map.
func (r *AssetRepository) GetAssetsByIDs(ctx context.Context, ids []string) (map[string]model.Asset, error) {
	result := make(map[string]model.Asset, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `SELECT ` + assetColumns + ` FROM asset WHERE id IN (` + placeholders(len(ids)) + `)`

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query asset table: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan asset table results: %w", err)
		}
		result[a.ID] = a
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset table: %w", err)
	}

	return result, nil
}

// GetAssetsBySymbols resolves symbols to asset references in a single query.
// Symbols must already be normalized. Unknown symbols are omitted from the result.
func (r *AssetRepository) GetAssetsBySymbols(ctx context.Context, symbols []string) ([]model.AssetRef, error) {
	if len(symbols) == 0 {
		return []model.AssetRef{}, nil
	}

	//#nosec G202 -- Safe: placeholders are generated programmatically, not from user input
	query := `SELECT id, symbol FROM asset WHERE symbol IN (` + placeholders(len(symbols)) + `)`

	args := make([]any, len(symbols))
	for i, s := range symbols {
		args[i] = s
	}

	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve asset symbols: %w", err)
	}
	defer rows.Close()

	refs := []model.AssetRef{}
	for rows.Next() {
		var ref model.AssetRef
		if err := rows.Scan(&ref.ID, &ref.Symbol); err != nil {
			return nil, fmt.Errorf("failed to scan asset symbol: %w", err)
		}
		refs = append(refs, ref)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating asset symbols: %w", err)
	}

	return refs, nil
}

// InsertAsset stores a new asset. A duplicate symbol returns apperrors.ErrConflict.
func (r *AssetRepository) InsertAsset(ctx context.Context, a *model.Asset) error {
	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	a.Symbol = model.NormalizeSymbol(a.Symbol)

	query := `
		INSERT INTO asset (` + assetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.getQuerier().ExecContext(ctx, query,
		a.ID,
		a.Symbol,
		a.Name,
		a.Type,
		a.TradingPair,
		a.ImageURL,
		dbTime(a.CreatedAt),
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: asset %s already exists", apperrors.ErrConflict, a.Symbol)
	}
	if err != nil {
		return fmt.Errorf("failed to insert asset: %w", err)
	}
	return nil
}

// InsertMissingAssets creates placeholder assets for symbols that do not exist yet.
// Existing symbols are left untouched.
func (r *AssetRepository) InsertMissingAssets(ctx context.Context, symbols []string, assetType string) error {
	query := `
		INSERT INTO asset (` + assetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(symbol) DO NOTHING
	`

	now := dbTime(time.Now())
	for _, symbol := range symbols {
		_, err := r.getQuerier().ExecContext(ctx, query,
			uuid.New().String(),
			symbol,
			symbol,
			assetType,
			symbol+"USDT",
			"",
			now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert asset %s: %w", symbol, err)
		}
	}
	return nil
}
