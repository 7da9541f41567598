package service_test

import (
	"context"
	"testing"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAssetService tests the asset catalog and symbol resolution.
//
// WHY: Wallet reconciliation identifies assets purely by symbol, so symbols
// must be unique and case insensitive and resolution must be one batch.
func TestAssetService(t *testing.T) {
	ctx := context.Background()

	t.Run("create uppercases the symbol and derives the trading pair", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)

		asset, err := svc.CreateAsset(ctx, request.CreateAssetRequest{Symbol: " sol ", Name: "Solana"})

		require.NoError(t, err)
		assert.Equal(t, "SOL", asset.Symbol)
		assert.Equal(t, "SOLUSDT", asset.TradingPair)
		assert.Equal(t, "crypto", asset.Type)

		got, err := svc.GetAsset(ctx, asset.ID)
		require.NoError(t, err)
		assert.Equal(t, "Solana", got.Name)
	})

	t.Run("duplicate symbol conflicts", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		testutil.CreateAsset(t, db, "BTC")

		_, err := svc.CreateAsset(ctx, request.CreateAssetRequest{Symbol: "btc", Name: "Bitcoin"})

		require.ErrorIs(t, err, apperrors.ErrConflict)
	})

	t.Run("missing asset", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)

		_, err := svc.GetAsset(ctx, testutil.MakeID())

		require.ErrorIs(t, err, apperrors.ErrAssetNotFound)
	})

	t.Run("list returns the catalog", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		testutil.CreateAsset(t, db, "BTC")
		testutil.CreateAsset(t, db, "ETH")

		assets, err := svc.ListAssets(ctx)

		require.NoError(t, err)
		assert.Len(t, assets, 2)
	})

	t.Run("resolve skips unknown symbols", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		btc := testutil.CreateAsset(t, db, "BTC")

		refs, err := svc.ResolveAssetsBySymbols(ctx, []string{"btc", "BTC", "NOPE", ""})

		require.NoError(t, err)
		require.Len(t, refs, 1)
		assert.Equal(t, btc.ID, refs[0].ID)
		testutil.AssertRowCount(t, db, "asset", 1)
	})

	t.Run("ensure creates missing assets once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		svc := testutil.NewTestAssetService(t, db)
		btc := testutil.CreateAsset(t, db, "BTC")

		refs, err := svc.EnsureAssets(ctx, []string{"btc", "pepe"})
		require.NoError(t, err)
		require.Len(t, refs, 2)

		ids := map[string]string{}
		for _, ref := range refs {
			ids[ref.Symbol] = ref.ID
		}
		assert.Equal(t, btc.ID, ids["BTC"])
		assert.NotEmpty(t, ids["PEPE"])

		again, err := svc.EnsureAssets(ctx, []string{"PEPE"})
		require.NoError(t, err)
		require.Len(t, again, 1)
		assert.Equal(t, ids["PEPE"], again[0].ID)
		testutil.AssertRowCount(t, db, "asset", 2)
	})
}
