package validation_test

import (
	"errors"
	"testing"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/validation"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fields returns the failing field names of a validation error.
func fields(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *validation.Error
	require.True(t, errors.As(err, &verr), "expected *validation.Error, got %v", err)
	return verr.Fields
}

func TestValidateCreateTransaction(t *testing.T) {
	valid := func() request.CreateTransactionRequest {
		price := decimal.NewFromInt(100)
		return request.CreateTransactionRequest{
			PortfolioID: "550e8400-e29b-41d4-a716-446655440000",
			AssetID:     "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
			Type:        "buy",
			Amount:      decimal.NewFromInt(2),
			Price:       &price,
			Date:        "2024-01-15",
		}
	}

	t.Run("accepts a complete buy", func(t *testing.T) {
		assert.NoError(t, validation.ValidateCreateTransaction(valid()))
	})

	t.Run("errors classify as invalid input", func(t *testing.T) {
		req := valid()
		req.Amount = decimal.Zero

		err := validation.ValidateCreateTransaction(req)

		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		assert.Contains(t, fields(t, err), "amount")
	})

	t.Run("reports every failing field", func(t *testing.T) {
		fee := decimal.NewFromInt(-1)
		req := valid()
		req.PortfolioID = "nope"
		req.Type = "stake"
		req.Fee = &fee
		req.Date = "15/01/2024"

		got := fields(t, validation.ValidateCreateTransaction(req))

		assert.Contains(t, got, "portfolioId")
		assert.Contains(t, got, "type")
		assert.Contains(t, got, "fee")
		assert.Contains(t, got, "date")
	})

	t.Run("direction only on transfers", func(t *testing.T) {
		req := valid()
		req.Direction = "incoming"
		assert.Contains(t, fields(t, validation.ValidateCreateTransaction(req)), "direction")

		req.Type = "transfer"
		assert.NoError(t, validation.ValidateCreateTransaction(req))
	})

	t.Run("transfer without direction is left to the ledger", func(t *testing.T) {
		req := valid()
		req.Type = "transfer"
		assert.NoError(t, validation.ValidateCreateTransaction(req))
	})
}

func TestValidateUpdateTransaction(t *testing.T) {
	t.Run("empty update is valid", func(t *testing.T) {
		assert.NoError(t, validation.ValidateUpdateTransaction(request.UpdateTransactionRequest{}))
	})

	t.Run("provided fields are checked", func(t *testing.T) {
		amount := decimal.NewFromInt(-3)
		date := "yesterday"

		got := fields(t, validation.ValidateUpdateTransaction(request.UpdateTransactionRequest{
			Amount: &amount,
			Date:   &date,
		}))

		assert.Contains(t, got, "amount")
		assert.Contains(t, got, "date")
	})
}

func TestValidateCreatePortfolio(t *testing.T) {
	t.Run("manual portfolio", func(t *testing.T) {
		assert.NoError(t, validation.ValidateCreatePortfolio(request.CreatePortfolioRequest{Name: "Main", Type: "crypto"}))
	})

	t.Run("wallet portfolio needs an address", func(t *testing.T) {
		err := validation.ValidateCreatePortfolio(request.CreatePortfolioRequest{
			Name: "Cold", Type: "crypto", TrackerMode: "wallet",
		})
		assert.Contains(t, fields(t, err), "walletAddress")
	})

	t.Run("address only on wallet portfolios", func(t *testing.T) {
		err := validation.ValidateCreatePortfolio(request.CreatePortfolioRequest{
			Name: "Main", Type: "crypto", TrackerMode: "manual", WalletAddress: "0xabc",
		})
		assert.Contains(t, fields(t, err), "walletAddress")
	})

	t.Run("unknown type and mode", func(t *testing.T) {
		got := fields(t, validation.ValidateCreatePortfolio(request.CreatePortfolioRequest{
			Name: "Main", Type: "bonds", TrackerMode: "broker",
		}))
		assert.Contains(t, got, "type")
		assert.Contains(t, got, "trackerMode")
	})
}

func TestValidateCreateAsset(t *testing.T) {
	assert.NoError(t, validation.ValidateCreateAsset(request.CreateAssetRequest{
		Symbol: "BTC", Name: "Bitcoin", Type: "crypto", TradingPair: "BTCUSDT",
	}))

	got := fields(t, validation.ValidateCreateAsset(request.CreateAssetRequest{}))
	assert.Len(t, got, 4)
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, validation.ValidateUUID("550e8400-e29b-41d4-a716-446655440000"))
	assert.ErrorIs(t, validation.ValidateUUID("123"), validation.ErrInvalidUUID)
}
