package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/ledger"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// EffectEngine applies and reverts transaction effects on a position collection.
// Implementations must not modify the slice they are given.
type EffectEngine interface {
	Apply(positions []model.Position, e ledger.Effect) ([]model.Position, error)
	Revert(positions []model.Position, e ledger.Effect) ([]model.Position, error)
}

// TransactionService handles the lifecycle of local transactions.
//
// Every mutation runs as load, pure transform, save inside one database
// transaction while holding the portfolio's lock, so concurrent edits of the
// same portfolio cannot interleave their read-modify-write cycles.
type TransactionService struct {
	db              *sql.DB
	transactionRepo *repository.TransactionRepository
	portfolioRepo   *repository.PortfolioRepository
	assetRepo       *repository.AssetRepository
	engine          EffectEngine
	locks           *PortfolioLocker
	logger          zerolog.Logger
}

// NewTransactionService creates a new TransactionService with the provided repository dependencies.
func NewTransactionService(
	db *sql.DB,
	transactionRepo *repository.TransactionRepository,
	portfolioRepo *repository.PortfolioRepository,
	assetRepo *repository.AssetRepository,
	engine EffectEngine,
	locks *PortfolioLocker,
	logger zerolog.Logger,
) *TransactionService {
	return &TransactionService{
		db:              db,
		transactionRepo: transactionRepo,
		portfolioRepo:   portfolioRepo,
		assetRepo:       assetRepo,
		engine:          engine,
		locks:           locks,
		logger:          logger.With().Str("service", "transaction").Logger(),
	}
}

// GetTransaction retrieves a single transaction owned by userID.
func (s *TransactionService) GetTransaction(ctx context.Context, userID, transactionID string) (model.Transaction, error) {
	t, err := s.transactionRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.UserID != userID {
		return model.Transaction{}, apperrors.ErrOwnership
	}
	return t, nil
}

// ListTransactions returns all transactions of a portfolio owned by userID, newest first.
func (s *TransactionService) ListTransactions(ctx context.Context, userID, portfolioID string) ([]model.Transaction, error) {
	p, err := s.portfolioRepo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if err := checkOwner(p, userID); err != nil {
		return nil, err
	}
	return s.transactionRepo.GetTransactionsPerPortfolio(ctx, portfolioID)
}

// CreateTransaction records a local transaction and applies its effect to the portfolio.
// The transaction row and the updated positions are committed together.
func (s *TransactionService) CreateTransaction(ctx context.Context, userID string, req request.CreateTransactionRequest) (*model.Transaction, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}

	asset, err := s.assetRepo.GetAsset(ctx, req.AssetID)
	if err != nil {
		return nil, err
	}

	t := &model.Transaction{
		PortfolioID: req.PortfolioID,
		UserID:      userID,
		AssetID:     asset.ID,
		Symbol:      asset.Symbol,
		Type:        model.TransactionType(req.Type),
		Origin:      model.OriginLocal,
		Amount:      req.Amount,
		Price:       nullDecimal(req.Price),
		Fee:         decimalOrZero(req.Fee),
		Date:        date,
		Notes:       req.Notes,
	}
	if t.Type == model.TransactionTransfer {
		t.Direction = model.Direction(req.Direction)
	}

	unlock := s.locks.Lock(t.PortfolioID)
	defer unlock()

	err = withRetry(func() error {
		return withTx(ctx, s.db, func(tx *sql.Tx) error {
			portfolio, err := s.loadMutablePortfolio(ctx, tx, t.PortfolioID, userID)
			if err != nil {
				return err
			}

			positions, err := s.engine.Apply(portfolio.Assets, ledger.EffectOf(*t))
			if err != nil {
				return err
			}

			if err := s.transactionRepo.WithTx(tx).InsertTransaction(ctx, t); err != nil {
				return err
			}

			portfolio.Assets = positions
			return s.portfolioRepo.WithTx(tx).SavePositions(ctx, &portfolio)
		})
	})
	if err != nil {
		s.afterFailedSave(ctx, t.PortfolioID, err)
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", t.ID).
		Str("portfolio_id", t.PortfolioID).
		Str("type", string(t.Type)).
		Msg("transaction created")
	return t, nil
}

// UpdateTransaction reverts the stored effect of a local transaction and applies
// the merged new values. External transactions cannot be updated.
func (s *TransactionService) UpdateTransaction(ctx context.Context, userID, transactionID string, req request.UpdateTransactionRequest) (*model.Transaction, error) {
	original, err := s.checkMutable(ctx, userID, transactionID)
	if err != nil {
		return nil, err
	}

	var asset *model.Asset
	if req.AssetID != nil && *req.AssetID != original.AssetID {
		a, err := s.assetRepo.GetAsset(ctx, *req.AssetID)
		if err != nil {
			return nil, err
		}
		asset = &a
	}

	var date *time.Time
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return nil, err
		}
		date = &d
	}

	unlock := s.locks.Lock(original.PortfolioID)
	defer unlock()

	var updated model.Transaction
	err = withRetry(func() error {
		return withTx(ctx, s.db, func(tx *sql.Tx) error {
			current, err := s.transactionRepo.WithTx(tx).GetTransaction(ctx, transactionID)
			if err != nil {
				return err
			}
			if current.IsExternal() {
				return apperrors.ErrImmutableRecord
			}

			portfolio, err := s.loadMutablePortfolio(ctx, tx, current.PortfolioID, userID)
			if err != nil {
				return err
			}

			positions, err := s.engine.Revert(portfolio.Assets, ledger.EffectOf(current))
			if err != nil {
				return fmt.Errorf("cannot revert transaction %s: %w", current.ID, err)
			}

			updated = mergeTransaction(current, req, asset, date)

			positions, err = s.engine.Apply(positions, ledger.EffectOf(updated))
			if err != nil {
				return err
			}

			if err := s.transactionRepo.WithTx(tx).UpdateTransaction(ctx, &updated); err != nil {
				return err
			}

			portfolio.Assets = positions
			return s.portfolioRepo.WithTx(tx).SavePositions(ctx, &portfolio)
		})
	})
	if err != nil {
		s.afterFailedSave(ctx, original.PortfolioID, err)
		return nil, err
	}

	s.logger.Info().
		Str("transaction_id", updated.ID).
		Str("portfolio_id", updated.PortfolioID).
		Msg("transaction updated")
	return &updated, nil
}

// DeleteTransaction reverts the effect of a local transaction and removes it.
// External transactions cannot be deleted.
func (s *TransactionService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	original, err := s.checkMutable(ctx, userID, transactionID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(original.PortfolioID)
	defer unlock()

	err = withRetry(func() error {
		return withTx(ctx, s.db, func(tx *sql.Tx) error {
			current, err := s.transactionRepo.WithTx(tx).GetTransaction(ctx, transactionID)
			if err != nil {
				return err
			}
			if current.IsExternal() {
				return apperrors.ErrImmutableRecord
			}

			portfolio, err := s.loadMutablePortfolio(ctx, tx, current.PortfolioID, userID)
			if err != nil {
				return err
			}

			positions, err := s.engine.Revert(portfolio.Assets, ledger.EffectOf(current))
			if err != nil {
				return fmt.Errorf("cannot revert transaction %s: %w", current.ID, err)
			}

			portfolio.Assets = positions
			if err := s.portfolioRepo.WithTx(tx).SavePositions(ctx, &portfolio); err != nil {
				return err
			}

			return s.transactionRepo.WithTx(tx).DeleteTransaction(ctx, transactionID)
		})
	})
	if err != nil {
		s.afterFailedSave(ctx, original.PortfolioID, err)
		return err
	}

	s.logger.Info().
		Str("transaction_id", transactionID).
		Str("portfolio_id", original.PortfolioID).
		Msg("transaction deleted")
	return nil
}

// checkMutable loads a transaction and rejects foreign or external ones before any lock is taken.
func (s *TransactionService) checkMutable(ctx context.Context, userID, transactionID string) (model.Transaction, error) {
	t, err := s.transactionRepo.GetTransaction(ctx, transactionID)
	if err != nil {
		return model.Transaction{}, err
	}
	if t.UserID != userID {
		return model.Transaction{}, apperrors.ErrOwnership
	}
	if t.IsExternal() {
		return model.Transaction{}, apperrors.ErrImmutableRecord
	}
	return t, nil
}

// loadMutablePortfolio reads a portfolio inside tx and checks that userID may edit its positions.
func (s *TransactionService) loadMutablePortfolio(ctx context.Context, tx *sql.Tx, portfolioID, userID string) (model.Portfolio, error) {
	portfolio, err := s.portfolioRepo.WithTx(tx).GetPortfolio(ctx, portfolioID)
	if err != nil {
		return model.Portfolio{}, err
	}
	if err := checkOwner(portfolio, userID); err != nil {
		return model.Portfolio{}, err
	}
	if portfolio.TrackerMode == model.TrackerWallet {
		return model.Portfolio{}, fmt.Errorf("%w: positions of wallet portfolios come from the wallet provider", apperrors.ErrInvalidInput)
	}
	return portfolio, nil
}

// afterFailedSave checks whether an unexpected failure left positions and
// transactions disagreeing, and logs what it finds. The caller holds the
// portfolio lock.
func (s *TransactionService) afterFailedSave(ctx context.Context, portfolioID string, cause error) {
	if apperrors.HTTPStatus(cause) != http.StatusInternalServerError {
		return
	}

	log := s.logger.With().Str("portfolio_id", portfolioID).Logger()
	log.Error().Err(cause).Msg("transaction save failed")

	portfolio, txs, err := loadLedgerState(ctx, s.db, s.portfolioRepo, s.transactionRepo, portfolioID)
	if err != nil {
		log.Error().Err(err).Msg("consistency check skipped")
		return
	}

	replayed, err := replayLocal(s.engine, txs)
	if err != nil {
		log.Error().Err(err).Msg(apperrors.ErrInconsistentState.Error())
		return
	}
	if mismatches := compareAmounts(portfolio.Assets, replayed); len(mismatches) > 0 {
		log.Error().Strs("mismatches", mismatches).Msg(apperrors.ErrInconsistentState.Error())
	}
}

// mergeTransaction applies the provided fields of req on top of current.
func mergeTransaction(current model.Transaction, req request.UpdateTransactionRequest, asset *model.Asset, date *time.Time) model.Transaction {
	updated := current

	if asset != nil {
		updated.AssetID = asset.ID
		updated.Symbol = asset.Symbol
	}
	if req.Type != nil {
		updated.Type = model.TransactionType(*req.Type)
	}
	if req.Direction != nil {
		updated.Direction = model.Direction(*req.Direction)
	}
	if updated.Type != model.TransactionTransfer {
		updated.Direction = ""
	}
	if req.Amount != nil {
		updated.Amount = *req.Amount
	}
	if req.Price != nil {
		updated.Price = decimal.NewNullDecimal(*req.Price)
	}
	if req.Fee != nil {
		updated.Fee = *req.Fee
	}
	if date != nil {
		updated.Date = *date
	}
	if req.Notes != nil {
		updated.Notes = *req.Notes
	}

	return updated
}

// parseDate accepts "2006-01-02" or RFC3339.
func parseDate(value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		t, err = time.Parse(time.RFC3339, value)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: invalid date %q", apperrors.ErrInvalidInput, value)
		}
	}
	return t.UTC(), nil
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(*d)
}

func decimalOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}
