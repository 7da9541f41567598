package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/ndewijer/coinfolio-ledger/internal/logging"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct {
	mu      sync.Mutex
	calls   [][]string
	unknown map[string]bool
	err     error
	delay   time.Duration
}

func (f *fakeResolver) EnsureAssets(ctx context.Context, symbols []string) ([]model.AssetRef, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, append([]string(nil), symbols...))
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	refs := make([]model.AssetRef, 0, len(symbols))
	for _, s := range symbols {
		if f.unknown[s] {
			continue
		}
		refs = append(refs, model.AssetRef{ID: "id-" + s, Symbol: s})
	}
	return refs, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeClient struct {
	balances     coinstats.WalletBalances
	transactions []coinstats.RawTransaction
	statuses     []string
	statusCalls  atomic.Int32
	err          error
}

func (f *fakeClient) GetBalances(context.Context, string, string) (coinstats.WalletBalances, error) {
	return f.balances, f.err
}

func (f *fakeClient) RequestSync(context.Context, string, string) error {
	return f.err
}

func (f *fakeClient) GetSyncStatus(context.Context, string, string) (string, error) {
	n := int(f.statusCalls.Add(1)) - 1
	if f.err != nil {
		return "", f.err
	}
	if n >= len(f.statuses) {
		return f.statuses[len(f.statuses)-1], nil
	}
	return f.statuses[n], nil
}

func (f *fakeClient) GetTransactions(context.Context, string, string, int) ([]coinstats.RawTransaction, error) {
	return f.transactions, f.err
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func str(s string) *string {
	return &s
}

func rawTx(typ, symbol, count string) coinstats.RawTransaction {
	entry := coinstats.RawTransaction{
		Type: typ,
		Date: "2024-03-01T10:00:00Z",
		CoinData: &coinstats.RawCoinData{
			Count: dec(count),
		},
	}
	if symbol != "" {
		entry.CoinData.Symbol = str(symbol)
	}
	return entry
}

func newTestAdapter(client coinstats.Client, resolver AssetResolver) *Adapter {
	return NewAdapter(client, NewSymbolCache(resolver, time.Hour, time.Hour), logging.Nop())
}

func TestSymbolCache_Resolve(t *testing.T) {
	t.Run("resolves only missing symbols in one call", func(t *testing.T) {
		resolver := &fakeResolver{}
		c := NewSymbolCache(resolver, time.Hour, time.Hour)

		ids, err := c.Resolve(context.Background(), []string{"eth", "BTC", " eth "})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"ETH": "id-ETH", "BTC": "id-BTC"}, ids)
		require.Equal(t, 1, resolver.callCount())
		assert.Equal(t, []string{"BTC", "ETH"}, resolver.calls[0])

		ids, err = c.Resolve(context.Background(), []string{"ETH", "SOL"})
		require.NoError(t, err)
		assert.Equal(t, "id-SOL", ids["SOL"])
		require.Equal(t, 2, resolver.callCount())
		assert.Equal(t, []string{"SOL"}, resolver.calls[1])

		_, err = c.Resolve(context.Background(), []string{"sol", "btc", "eth"})
		require.NoError(t, err)
		assert.Equal(t, 2, resolver.callCount())
		assert.Equal(t, 3, c.Len())
	})

	t.Run("unknown symbols are absent and not cached", func(t *testing.T) {
		resolver := &fakeResolver{unknown: map[string]bool{"ZZZ": true}}
		c := NewSymbolCache(resolver, time.Hour, time.Hour)

		ids, err := c.Resolve(context.Background(), []string{"ZZZ", "ETH"})
		require.NoError(t, err)
		assert.NotContains(t, ids, "ZZZ")
		assert.Equal(t, 1, c.Len())
	})

	t.Run("expired entries are resolved again", func(t *testing.T) {
		resolver := &fakeResolver{}
		c := NewSymbolCache(resolver, 10*time.Millisecond, time.Hour)

		_, err := c.Resolve(context.Background(), []string{"ETH"})
		require.NoError(t, err)
		time.Sleep(20 * time.Millisecond)
		_, err = c.Resolve(context.Background(), []string{"ETH"})
		require.NoError(t, err)
		assert.Equal(t, 2, resolver.callCount())
	})

	t.Run("concurrent lookups of the same set share one call", func(t *testing.T) {
		resolver := &fakeResolver{delay: 50 * time.Millisecond}
		c := NewSymbolCache(resolver, time.Hour, time.Hour)

		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ids, err := c.Resolve(context.Background(), []string{"ETH", "BTC"})
				assert.NoError(t, err)
				assert.Len(t, ids, 2)
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, resolver.callCount())
	})

	t.Run("a cancelled caller does not fail others sharing its lookup", func(t *testing.T) {
		resolver := &fakeResolver{delay: 100 * time.Millisecond}
		c := NewSymbolCache(resolver, time.Hour, time.Hour)

		firstCtx, cancel := context.WithCancel(context.Background())
		first := make(chan error, 1)
		go func() {
			_, err := c.Resolve(firstCtx, []string{"ETH"})
			first <- err
		}()
		time.Sleep(20 * time.Millisecond)

		type outcome struct {
			ids map[string]string
			err error
		}
		second := make(chan outcome, 1)
		go func() {
			ids, err := c.Resolve(context.Background(), []string{"ETH"})
			second <- outcome{ids, err}
		}()
		time.Sleep(20 * time.Millisecond)
		cancel()

		assert.ErrorIs(t, <-first, context.Canceled)
		got := <-second
		require.NoError(t, got.err)
		assert.Equal(t, "id-ETH", got.ids["ETH"])
		assert.Equal(t, 1, resolver.callCount())
		assert.Equal(t, 1, c.Len())
	})

	t.Run("resolver failures are returned", func(t *testing.T) {
		resolver := &fakeResolver{err: errors.New("db down")}
		c := NewSymbolCache(resolver, time.Hour, time.Hour)

		_, err := c.Resolve(context.Background(), []string{"ETH"})
		assert.Error(t, err)
		assert.Equal(t, 0, c.Len())
	})
}

func TestFilterTransactions(t *testing.T) {
	t.Run("keeps only the valid entry of a mixed batch", func(t *testing.T) {
		nft := rawTx("Received", "APE", "1")
		nft.Transactions = []coinstats.RawTransfer{{
			Action: "receive",
			Items:  []coinstats.RawTransferItem{{ID: "x", NFT: &coinstats.RawNFT{Address: "0xnft", TokenID: "7"}}},
		}}
		dust := rawTx("Received", "ETH", "0.0005")
		noSymbol := rawTx("Received", "", "3")
		valid := rawTx("Received", "ETH", "2")

		kept := FilterTransactions([]coinstats.RawTransaction{nft, dust, noSymbol, valid})
		require.Len(t, kept, 1)
		assert.Equal(t, "ETH", *kept[0].CoinData.Symbol)
		assert.Equal(t, "2", kept[0].CoinData.Count.String())
	})

	t.Run("dust is measured on the absolute amount", func(t *testing.T) {
		kept := FilterTransactions([]coinstats.RawTransaction{
			rawTx("Sent", "ETH", "-0.0009"),
			rawTx("Sent", "ETH", "-0.001"),
		})
		require.Len(t, kept, 1)
		assert.Equal(t, "-0.001", kept[0].CoinData.Count.String())
	})

	t.Run("entries without coin data are dropped", func(t *testing.T) {
		kept := FilterTransactions([]coinstats.RawTransaction{{Type: "Received"}})
		assert.Empty(t, kept)
	})

	t.Run("nft types are dropped even without items", func(t *testing.T) {
		kept := FilterTransactions([]coinstats.RawTransaction{rawTx("NFT Transfer", "PUNK", "1")})
		assert.Empty(t, kept)
	})
}

func TestAdapter_MapTransactions(t *testing.T) {
	target := Target{PortfolioID: "p1", UserID: "u1", Chain: "ethereum"}

	t.Run("maps surviving entries into external transactions", func(t *testing.T) {
		resolver := &fakeResolver{}
		a := newTestAdapter(&fakeClient{}, resolver)

		entry := rawTx("Received", "eth", "0.5")
		entry.CoinData.TotalWorth = dec("1000")
		entry.Fee = &coinstats.RawFee{TotalWorth: dec("1.25")}
		entry.MainContent = &coinstats.RawMainContent{CoinIcons: []string{"https://icons/eth.png"}}
		entry.Hash = &coinstats.RawHash{ExplorerURL: "https://etherscan.io/tx/1"}

		txs, err := a.MapTransactions(context.Background(), []coinstats.RawTransaction{entry, rawTx("Received", "ETH", "0.0001")}, target)
		require.NoError(t, err)
		require.Len(t, txs, 1)

		tx := txs[0]
		assert.Equal(t, model.OriginExternal, tx.Origin)
		assert.Equal(t, model.TransactionTransfer, tx.Type)
		assert.Equal(t, model.DirectionIncoming, tx.Direction)
		assert.Equal(t, "ETH", tx.Symbol)
		assert.Equal(t, "id-ETH", tx.AssetID)
		assert.Equal(t, "0.5", tx.Amount.String())
		require.True(t, tx.Price.Valid)
		assert.True(t, tx.Price.Decimal.Equal(decimal.NewFromInt(2000)))
		assert.Equal(t, "1.25", tx.Fee.String())
		assert.Equal(t, "https://icons/eth.png", tx.Icon)
		assert.Equal(t, "https://etherscan.io/tx/1", tx.HashURL)
		assert.Equal(t, "ethereum", tx.Chain)
		assert.Equal(t, "p1", tx.PortfolioID)
		assert.Equal(t, "u1", tx.UserID)
		assert.Equal(t, "Received", tx.ExternalType)
		assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), tx.Date)
	})

	t.Run("amount is the absolute value of the raw amount", func(t *testing.T) {
		a := newTestAdapter(&fakeClient{}, &fakeResolver{})

		txs, err := a.MapTransactions(context.Background(), []coinstats.RawTransaction{rawTx("Sent", "ETH", "-1.5")}, target)
		require.NoError(t, err)
		require.Len(t, txs, 1)
		assert.Equal(t, "1.5", txs[0].Amount.String())
		assert.Equal(t, model.DirectionOutgoing, txs[0].Direction)
		assert.False(t, txs[0].Price.Valid)
	})

	t.Run("resolves all symbols of a batch in one call", func(t *testing.T) {
		resolver := &fakeResolver{}
		a := newTestAdapter(&fakeClient{}, resolver)

		raw := []coinstats.RawTransaction{
			rawTx("Received", "ETH", "1"),
			rawTx("Received", "BTC", "1"),
			rawTx("Sent", "ETH", "-1"),
		}
		_, err := a.MapTransactions(context.Background(), raw, target)
		require.NoError(t, err)
		assert.Equal(t, 1, resolver.callCount())
	})

	t.Run("empty after filtering skips the resolver", func(t *testing.T) {
		resolver := &fakeResolver{}
		a := newTestAdapter(&fakeClient{}, resolver)

		txs, err := a.MapTransactions(context.Background(), []coinstats.RawTransaction{rawTx("Received", "", "1")}, target)
		require.NoError(t, err)
		assert.Empty(t, txs)
		assert.Equal(t, 0, resolver.callCount())
	})

	t.Run("unparseable dates fall back to the sync time", func(t *testing.T) {
		a := newTestAdapter(&fakeClient{}, &fakeResolver{})
		fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
		a.now = func() time.Time { return fixed }

		entry := rawTx("Received", "ETH", "1")
		entry.Date = "yesterday"
		txs, err := a.MapTransactions(context.Background(), []coinstats.RawTransaction{entry}, target)
		require.NoError(t, err)
		assert.Equal(t, fixed, txs[0].Date)
	})
}

func TestLedgerType(t *testing.T) {
	cases := []struct {
		providerType string
		count        string
		wantType     model.TransactionType
		wantDir      model.Direction
	}{
		{"Received", "1", model.TransactionTransfer, model.DirectionIncoming},
		{"Sent", "-1", model.TransactionTransfer, model.DirectionOutgoing},
		{"Trade", "1", model.TransactionBuy, ""},
		{"Trade", "-1", model.TransactionSell, ""},
		{"Contract Execution", "2", model.TransactionDeposit, ""},
		{"Contract Execution", "-2", model.TransactionWithdrawal, ""},
	}

	for _, tc := range cases {
		t.Run(fmt.Sprintf("%s %s", tc.providerType, tc.count), func(t *testing.T) {
			gotType, gotDir := ledgerType(tc.providerType, decimal.RequireFromString(tc.count))
			assert.Equal(t, tc.wantType, gotType)
			assert.Equal(t, tc.wantDir, gotDir)
		})
	}
}

func TestAdapter_FetchSnapshot(t *testing.T) {
	t.Run("sums chains and resolves symbols", func(t *testing.T) {
		client := &fakeClient{balances: coinstats.WalletBalances{
			ConnectionID: "ethereum",
			Balances: []coinstats.RawBalance{
				{Symbol: "eth", Amount: dec("1.5"), Price: dec("2000")},
				{Symbol: "ETH", Amount: dec("0.5"), Price: dec("2001")},
				{Symbol: "USDC", Amount: dec("10")},
				{Symbol: "", Amount: dec("3")},
				{Symbol: "DOGE"},
				{Symbol: "ZERO", Amount: dec("0")},
				{Symbol: "ZZZ", Amount: dec("1")},
			},
		}}
		resolver := &fakeResolver{unknown: map[string]bool{"ZZZ": true}}
		a := newTestAdapter(client, resolver)

		snapshot, err := a.FetchSnapshot(context.Background(), "0xabc")
		require.NoError(t, err)

		assert.Equal(t, "ethereum", snapshot.ConnectionID)
		require.Len(t, snapshot.Balances, 2)
		assert.Equal(t, "ETH", snapshot.Balances[0].Symbol)
		assert.Equal(t, "id-ETH", snapshot.Balances[0].AssetID)
		assert.Equal(t, "2", snapshot.Balances[0].Amount.String())
		assert.Equal(t, "2000", snapshot.Balances[0].Price.String())
		assert.Equal(t, "USDC", snapshot.Balances[1].Symbol)
		assert.True(t, snapshot.Balances[1].Price.IsZero())
		assert.Equal(t, []string{"ZZZ"}, snapshot.Unresolved)
		assert.Equal(t, 1, resolver.callCount())

		positions := Positions(snapshot)
		require.Len(t, positions, 2)
		assert.Equal(t, "id-ETH", positions[0].AssetID)
		assert.Equal(t, "2000", positions[0].AverageBuyPrice.String())
	})

	t.Run("provider errors are returned", func(t *testing.T) {
		a := newTestAdapter(&fakeClient{err: errors.New("boom")}, &fakeResolver{})

		_, err := a.FetchSnapshot(context.Background(), "0xabc")
		assert.Error(t, err)
	})
}

func TestAdapter_AwaitRefresh(t *testing.T) {
	t.Run("polls until synced", func(t *testing.T) {
		client := &fakeClient{statuses: []string{"syncing", "syncing", "synced"}}
		a := newTestAdapter(client, &fakeResolver{})

		err := a.AwaitRefresh(context.Background(), "0xabc", "all", time.Millisecond, time.Millisecond, time.Second)
		require.NoError(t, err)
		assert.Equal(t, int32(3), client.statusCalls.Load())
	})

	t.Run("never polls before the minimum delay", func(t *testing.T) {
		client := &fakeClient{statuses: []string{"synced"}}
		a := newTestAdapter(client, &fakeResolver{})

		start := time.Now()
		err := a.AwaitRefresh(context.Background(), "0xabc", "all", 30*time.Millisecond, time.Millisecond, time.Second)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("gives up after the maximum wait", func(t *testing.T) {
		client := &fakeClient{statuses: []string{"syncing"}}
		a := newTestAdapter(client, &fakeResolver{})

		err := a.AwaitRefresh(context.Background(), "0xabc", "all", time.Millisecond, 5*time.Millisecond, 40*time.Millisecond)
		assert.ErrorIs(t, err, ErrSyncTimeout)
		assert.ErrorIs(t, err, apperrors.ErrExternalProvider)
	})

	t.Run("stops on context cancellation", func(t *testing.T) {
		client := &fakeClient{statuses: []string{"syncing"}}
		a := newTestAdapter(client, &fakeResolver{})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := a.AwaitRefresh(ctx, "0xabc", "all", time.Second, time.Second, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
