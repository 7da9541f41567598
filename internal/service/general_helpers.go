package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
)

// maxSaveAttempts bounds optimistic retries when a portfolio version moved underneath us.
const maxSaveAttempts = 3

// withTx runs fn in a database transaction, committing when fn returns nil.
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// withRetry repeats fn while it fails with apperrors.ErrConflict.
func withRetry(fn func() error) error {
	var err error
	for range maxSaveAttempts {
		err = fn()
		if !errors.Is(err, apperrors.ErrConflict) {
			return err
		}
	}
	return err
}

// checkOwner returns apperrors.ErrOwnership unless userID owns the portfolio.
func checkOwner(p model.Portfolio, userID string) error {
	if p.OwnerID != userID {
		return apperrors.ErrOwnership
	}
	return nil
}
