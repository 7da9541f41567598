// Package ledger maintains a portfolio's position collection.
//
// All functions are pure: they never modify the slice they are given and return
// a new collection instead, so a failed operation leaves the caller's state untouched.
// The invariants kept here are:
//   - each asset appears at most once;
//   - every amount is strictly positive (a position reduced to zero is removed);
//   - the average buy price only moves on increases.
package ledger

import (
	"fmt"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// AveragePrecision is the number of decimal places kept on a weighted average price.
const AveragePrecision int32 = 18

// NotFound is returned by Find when the asset has no position.
const NotFound = -1

// Find returns the index of the position holding assetID, or NotFound.
func Find(positions []model.Position, assetID string) int {
	for i, p := range positions {
		if p.AssetID == assetID {
			return i
		}
	}
	return NotFound
}

// Clone returns an independent copy of positions.
func Clone(positions []model.Position) []model.Position {
	out := make([]model.Position, len(positions))
	copy(out, positions)
	return out
}

// Add appends a new position for assetID.
// The asset must not already be held; callers check with Find first.
func Add(positions []model.Position, assetID string, amount, price decimal.Decimal) ([]model.Position, error) {
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkPrice(price); err != nil {
		return nil, err
	}
	if Find(positions, assetID) != NotFound {
		return nil, fmt.Errorf("%w: asset %s already has a position", apperrors.ErrInconsistentState, assetID)
	}

	out := make([]model.Position, len(positions), len(positions)+1)
	copy(out, positions)
	return append(out, model.Position{
		AssetID:         assetID,
		Amount:          amount,
		AverageBuyPrice: price,
	}), nil
}

// Increase adds amount to the position at index and recomputes the weighted average:
//
//	newAmount = oldAmount + amount
//	newAvg    = (oldAvg*oldAmount + price*amount) / newAmount
func Increase(positions []model.Position, index int, amount, price decimal.Decimal) ([]model.Position, error) {
	if err := checkIndex(positions, index); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}
	if err := checkPrice(price); err != nil {
		return nil, err
	}

	out := Clone(positions)
	p := out[index]
	newAmount := p.Amount.Add(amount)
	cost := p.AverageBuyPrice.Mul(p.Amount).Add(price.Mul(amount))

	p.Amount = newAmount
	p.AverageBuyPrice = cost.DivRound(newAmount, AveragePrecision)
	out[index] = p
	return out, nil
}

// Decrease removes amount from the position at index. The average price is untouched.
// A position reduced to exactly zero is removed from the collection.
func Decrease(positions []model.Position, index int, amount decimal.Decimal) ([]model.Position, error) {
	if err := checkIndex(positions, index); err != nil {
		return nil, err
	}
	if err := checkAmount(amount); err != nil {
		return nil, err
	}

	held := positions[index].Amount
	if amount.GreaterThan(held) {
		return nil, fmt.Errorf("%w: requested %s, held %s", apperrors.ErrInsufficientBalance, amount, held)
	}

	remaining := held.Sub(amount)
	if remaining.IsZero() {
		out := make([]model.Position, 0, len(positions)-1)
		out = append(out, positions[:index]...)
		return append(out, positions[index+1:]...), nil
	}

	out := Clone(positions)
	out[index].Amount = remaining
	return out, nil
}

// TotalCost returns the sum of amount*averageBuyPrice over all positions.
func TotalCost(positions []model.Position) decimal.Decimal {
	total := decimal.Zero
	for _, p := range positions {
		total = total.Add(p.Amount.Mul(p.AverageBuyPrice))
	}
	return total
}

func checkIndex(positions []model.Position, index int) error {
	if index < 0 || index >= len(positions) {
		return fmt.Errorf("%w: position index %d out of range", apperrors.ErrInconsistentState, index)
	}
	return nil
}

func checkAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", apperrors.ErrInvalidInput, amount)
	}
	return nil
}

func checkPrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return fmt.Errorf("%w: price cannot be negative, got %s", apperrors.ErrInvalidInput, price)
	}
	return nil
}
