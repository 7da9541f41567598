package ledger

import (
	"testing"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestFind(t *testing.T) {
	positions := []model.Position{
		{AssetID: "btc", Amount: d("1"), AverageBuyPrice: d("30000")},
		{AssetID: "eth", Amount: d("2"), AverageBuyPrice: d("2000")},
	}

	t.Run("returns index of held asset", func(t *testing.T) {
		assert.Equal(t, 1, Find(positions, "eth"))
	})

	t.Run("returns NotFound for absent asset", func(t *testing.T) {
		assert.Equal(t, NotFound, Find(positions, "sol"))
		assert.Equal(t, NotFound, Find(nil, "sol"))
	})
}

func TestAdd(t *testing.T) {
	t.Run("appends a new position", func(t *testing.T) {
		out, err := Add(nil, "btc", d("0.5"), d("40000"))
		require.NoError(t, err)
		require.Len(t, out, 1)
		assert.True(t, out[0].Amount.Equal(d("0.5")))
		assert.True(t, out[0].AverageBuyPrice.Equal(d("40000")))
	})

	t.Run("rejects a second position for the same asset", func(t *testing.T) {
		in := []model.Position{{AssetID: "btc", Amount: d("1"), AverageBuyPrice: d("1")}}
		_, err := Add(in, "btc", d("1"), d("1"))
		assert.ErrorIs(t, err, apperrors.ErrInconsistentState)
	})

	t.Run("rejects non-positive amount", func(t *testing.T) {
		_, err := Add(nil, "btc", decimal.Zero, d("1"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("rejects negative price", func(t *testing.T) {
		_, err := Add(nil, "btc", d("1"), d("-1"))
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	})

	t.Run("does not modify the input slice", func(t *testing.T) {
		in := make([]model.Position, 1, 4)
		in[0] = model.Position{AssetID: "eth", Amount: d("1"), AverageBuyPrice: d("1")}
		out, err := Add(in, "btc", d("1"), d("1"))
		require.NoError(t, err)
		assert.Len(t, in, 1)
		assert.Len(t, out, 2)
		assert.Equal(t, "eth", in[0].AssetID)
	})
}

func TestIncrease(t *testing.T) {
	t.Run("recomputes weighted average", func(t *testing.T) {
		in := []model.Position{{AssetID: "x", Amount: d("10"), AverageBuyPrice: d("100")}}
		out, err := Increase(in, 0, d("5"), d("200"))
		require.NoError(t, err)

		assert.True(t, out[0].Amount.Equal(d("15")))
		assert.InDelta(t, 2000.0/15.0, out[0].AverageBuyPrice.InexactFloat64(), 1e-12)
		assert.True(t, in[0].Amount.Equal(d("10")), "input must stay untouched")
	})

	t.Run("average of n buys equals sum(a*p)/sum(a) across magnitudes", func(t *testing.T) {
		lots := []struct{ amount, price string }{
			{"0.00012345", "30123.45"},
			{"1500", "0.52"},
			{"3", "29000"},
			{"0.000000001", "1000000"},
			{"250000", "0.0001"},
			{"42", "1.5"},
		}

		var positions []model.Position
		engine := NewEngine()
		cost, amount := decimal.Zero, decimal.Zero
		for _, lot := range lots {
			var err error
			positions, err = engine.Apply(positions, Effect{
				AssetID: "x", Type: model.TransactionBuy, Amount: d(lot.amount), Price: d(lot.price),
			})
			require.NoError(t, err)
			cost = cost.Add(d(lot.amount).Mul(d(lot.price)))
			amount = amount.Add(d(lot.amount))
		}

		require.Len(t, positions, 1)
		assert.True(t, positions[0].Amount.Equal(amount))
		expected := cost.DivRound(amount, AveragePrecision)
		diff := positions[0].AverageBuyPrice.Sub(expected).Abs()
		assert.True(t, diff.LessThan(d("0.000000000001")), "average drifted by %s", diff)
	})

	t.Run("rejects out of range index", func(t *testing.T) {
		_, err := Increase(nil, 0, d("1"), d("1"))
		assert.ErrorIs(t, err, apperrors.ErrInconsistentState)
	})
}

func TestDecrease(t *testing.T) {
	t.Run("reduces amount and keeps average", func(t *testing.T) {
		in := []model.Position{{AssetID: "x", Amount: d("10"), AverageBuyPrice: d("100")}}
		out, err := Decrease(in, 0, d("4"))
		require.NoError(t, err)
		assert.True(t, out[0].Amount.Equal(d("6")))
		assert.True(t, out[0].AverageBuyPrice.Equal(d("100")))
	})

	t.Run("removes a position reduced to zero", func(t *testing.T) {
		in := []model.Position{
			{AssetID: "a", Amount: d("1"), AverageBuyPrice: d("1")},
			{AssetID: "x", Amount: d("10"), AverageBuyPrice: d("100")},
			{AssetID: "b", Amount: d("2"), AverageBuyPrice: d("2")},
		}
		out, err := Decrease(in, 1, d("10"))
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, NotFound, Find(out, "x"))
		assert.Equal(t, "a", out[0].AssetID)
		assert.Equal(t, "b", out[1].AssetID)
		assert.Len(t, in, 3)
	})

	t.Run("rejects decrease beyond holdings without mutation", func(t *testing.T) {
		in := []model.Position{{AssetID: "x", Amount: d("1.5"), AverageBuyPrice: d("10")}}
		out, err := Decrease(in, 0, d("1.5000001"))
		assert.ErrorIs(t, err, apperrors.ErrInsufficientBalance)
		assert.Nil(t, out)
		assert.True(t, in[0].Amount.Equal(d("1.5")))
	})
}

func TestTotalCost(t *testing.T) {
	positions := []model.Position{
		{AssetID: "a", Amount: d("2"), AverageBuyPrice: d("10")},
		{AssetID: "b", Amount: d("0.5"), AverageBuyPrice: d("4")},
	}
	assert.True(t, TotalCost(positions).Equal(d("22")))
}
