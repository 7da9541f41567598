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

// TransactionRepository provides data access methods for the transaction table.
type TransactionRepository struct {
	db *sql.DB
	tx *sql.Tx
}

// NewTransactionRepository creates a new TransactionRepository with the provided database connection.
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// WithTx returns a repository that runs its statements inside tx.
func (r *TransactionRepository) WithTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{
		db: r.db,
		tx: tx,
	}
}

func (r *TransactionRepository) getQuerier() querier {
	if r.tx != nil {
		return r.tx
	}
	return r.db
}

const transactionColumns = `
	id, portfolio_id, user_id, asset_id, symbol, type, origin, direction,
	amount, price, fee, date, notes, external_type, chain, icon, hash_url,
	created_at, updated_at`

func scanTransaction(row interface{ Scan(dest ...any) error }) (model.Transaction, error) {
	var (
		t       model.Transaction
		assetID sql.NullString
	)

	err := row.Scan(
		&t.ID,
		&t.PortfolioID,
		&t.UserID,
		&assetID,
		&t.Symbol,
		&t.Type,
		&t.Origin,
		&t.Direction,
		&t.Amount,
		&t.Price,
		&t.Fee,
		&t.Date,
		&t.Notes,
		&t.ExternalType,
		&t.Chain,
		&t.Icon,
		&t.HashURL,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return model.Transaction{}, err
	}
	t.AssetID = assetID.String
	return t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func transactionArgs(t *model.Transaction) []any {
	return []any{
		t.ID,
		t.PortfolioID,
		t.UserID,
		nullString(t.AssetID),
		t.Symbol,
		t.Type,
		t.Origin,
		t.Direction,
		t.Amount,
		t.Price,
		t.Fee,
		dbTime(t.Date),
		t.Notes,
		t.ExternalType,
		t.Chain,
		t.Icon,
		t.HashURL,
		dbTime(t.CreatedAt),
		dbTime(t.UpdatedAt),
	}
}

func prepareInsert(t *model.Transaction, now time.Time) {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Date.IsZero() {
		t.Date = now
	}
	t.CreatedAt = now
	t.UpdatedAt = now
}

const insertTransactionQuery = `
	INSERT INTO "transaction" (` + transactionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// InsertTransaction stores a new transaction, assigning its ID and timestamps.
func (r *TransactionRepository) InsertTransaction(ctx context.Context, t *model.Transaction) error {
	prepareInsert(t, time.Now().UTC())

	_, err := r.getQuerier().ExecContext(ctx, insertTransactionQuery, transactionArgs(t)...)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

// InsertExternalTransactions stores wallet sourced transactions in one pass.
// Entries that duplicate an already stored explorer hash are skipped. Entries
// without a hash are matched on date, symbol, amount and type instead. The
// number of newly stored rows is returned.
func (r *TransactionRepository) InsertExternalTransactions(ctx context.Context, txs []model.Transaction) (int, error) {
	query := `
		INSERT INTO "transaction" (` + transactionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`

	now := time.Now().UTC()
	inserted := 0
	for i := range txs {
		t := &txs[i]
		if t.Origin != model.OriginExternal {
			return inserted, fmt.Errorf("%w: batch insert accepts external transactions only", apperrors.ErrInvalidInput)
		}
		prepareInsert(t, now)

		result, err := r.getQuerier().ExecContext(ctx, query, transactionArgs(t)...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert external transaction: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		inserted += int(n)
	}
	return inserted, nil
}

// UpdateTransaction writes the mutable fields of a local transaction.
func (r *TransactionRepository) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	t.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE "transaction"
		SET asset_id = ?, symbol = ?, type = ?, direction = ?, amount = ?, price = ?,
		    fee = ?, date = ?, notes = ?, updated_at = ?
		WHERE id = ? AND origin = ?
	`

	result, err := r.getQuerier().ExecContext(ctx, query,
		nullString(t.AssetID),
		t.Symbol,
		t.Type,
		t.Direction,
		t.Amount,
		t.Price,
		t.Fee,
		dbTime(t.Date),
		t.Notes,
		dbTime(t.UpdatedAt),
		t.ID,
		model.OriginLocal,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}

// DeleteTransaction removes a transaction by ID.
func (r *TransactionRepository) DeleteTransaction(ctx context.Context, transactionID string) error {
	result, err := r.getQuerier().ExecContext(ctx, `DELETE FROM "transaction" WHERE id = ?`, transactionID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.ErrTransactionNotFound
	}
	return nil
}

// GetTransaction retrieves a single transaction by ID.
func (r *TransactionRepository) GetTransaction(ctx context.Context, transactionID string) (model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM "transaction" WHERE id = ?`

	t, err := scanTransaction(r.getQuerier().QueryRowContext(ctx, query, transactionID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, apperrors.ErrTransactionNotFound
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to query transaction: %w", err)
	}
	return t, nil
}

// GetTransactionsPerPortfolio returns all transactions of a portfolio, newest first.
func (r *TransactionRepository) GetTransactionsPerPortfolio(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM "transaction"
		WHERE portfolio_id = ?
		ORDER BY date DESC, created_at DESC
	`
	return r.queryTransactions(ctx, query, portfolioID)
}

// GetLocalTransactionsChronological returns the locally entered transactions of a
// portfolio in the order they were applied to the ledger.
func (r *TransactionRepository) GetLocalTransactionsChronological(ctx context.Context, portfolioID string) ([]model.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + ` FROM "transaction"
		WHERE portfolio_id = ? AND origin = ?
		ORDER BY created_at ASC, id ASC
	`
	return r.queryTransactions(ctx, query, portfolioID, model.OriginLocal)
}

func (r *TransactionRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.getQuerier().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transaction table: %w", err)
	}
	defer rows.Close()

	transactions := []model.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction table results: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction table: %w", err)
	}

	return transactions, nil
}
