package ledger

import (
	"fmt"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// Effect is the part of a transaction that touches the ledger.
type Effect struct {
	AssetID   string
	Type      model.TransactionType
	Direction model.Direction
	Amount    decimal.Decimal
	Price     decimal.Decimal
}

// EffectOf extracts the ledger effect of t. An absent price counts as zero.
func EffectOf(t model.Transaction) Effect {
	return Effect{
		AssetID:   t.AssetID,
		Type:      t.Type,
		Direction: t.Direction,
		Amount:    t.Amount,
		Price:     t.PriceOrZero(),
	}
}

// Engine applies and reverts transaction effects on a position collection.
// It holds no state; the zero value is ready to use.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() Engine {
	return Engine{}
}

// Apply returns positions with e applied.
//
//	buy, deposit, transfer/incoming      -> credit (increase, or add when absent)
//	sell, withdrawal, transfer/outgoing  -> debit  (decrease, fails when absent)
func (Engine) Apply(positions []model.Position, e Effect) ([]model.Position, error) {
	credit, err := IsCredit(e.Type, e.Direction)
	if err != nil {
		return nil, err
	}
	if credit {
		return creditPosition(positions, e.AssetID, e.Amount, e.Price)
	}
	return debitPosition(positions, e.AssetID, e.Amount)
}

// Revert returns positions with e undone.
//
// The amount is restored exactly. The average is not: undoing a credit keeps
// the merged average, and undoing a debit re-credits at the transaction's own
// price, so the average drifts after buy and sell cycles on the same asset.
func (Engine) Revert(positions []model.Position, e Effect) ([]model.Position, error) {
	credit, err := IsCredit(e.Type, e.Direction)
	if err != nil {
		return nil, err
	}
	if credit {
		return debitPosition(positions, e.AssetID, e.Amount)
	}
	return creditPosition(positions, e.AssetID, e.Amount, e.Price)
}

// IsCredit reports whether a transaction of the given type and direction increases holdings.
func IsCredit(t model.TransactionType, d model.Direction) (bool, error) {
	switch t {
	case model.TransactionBuy, model.TransactionDeposit:
		return true, nil
	case model.TransactionSell, model.TransactionWithdrawal:
		return false, nil
	case model.TransactionTransfer:
		switch d {
		case "":
			return false, apperrors.ErrMissingDirection
		case model.DirectionIncoming:
			return true, nil
		case model.DirectionOutgoing:
			return false, nil
		default:
			return false, fmt.Errorf("%w: %q", apperrors.ErrInvalidDirection, d)
		}
	default:
		return false, fmt.Errorf("%w: %q", apperrors.ErrUnsupportedTransactionType, t)
	}
}

func creditPosition(positions []model.Position, assetID string, amount, price decimal.Decimal) ([]model.Position, error) {
	i := Find(positions, assetID)
	if i == NotFound {
		return Add(positions, assetID, amount, price)
	}
	return Increase(positions, i, amount, price)
}

func debitPosition(positions []model.Position, assetID string, amount decimal.Decimal) ([]model.Position, error) {
	i := Find(positions, assetID)
	if i == NotFound {
		return nil, fmt.Errorf("%w: asset %s is not held in this portfolio", apperrors.ErrInsufficientBalance, assetID)
	}
	return Decrease(positions, i, amount)
}
