// Package reconcile turns wallet provider payloads into ledger positions and
// audit transactions.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Provider transaction types with a fixed ledger mapping.
const (
	providerReceived = "Received"
	providerSent     = "Sent"
	providerTrade    = "Trade"
)

// ErrSyncTimeout is returned when the provider did not finish refreshing in time.
var ErrSyncTimeout = fmt.Errorf("%w: wallet did not finish syncing in time", apperrors.ErrExternalProvider)

// Adapter reads a wallet from the provider and maps it into ledger shapes.
type Adapter struct {
	client  coinstats.Client
	symbols *SymbolCache
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAdapter creates an Adapter.
func NewAdapter(client coinstats.Client, symbols *SymbolCache, logger zerolog.Logger) *Adapter {
	return &Adapter{
		client:  client,
		symbols: symbols,
		logger:  logger.With().Str("component", "reconcile").Logger(),
		now:     time.Now,
	}
}

// FetchSnapshot reads the current balances of address and resolves them to assets.
func (a *Adapter) FetchSnapshot(ctx context.Context, address string) (model.WalletSnapshot, error) {
	raw, err := a.client.GetBalances(ctx, address, coinstats.DefaultNetwork)
	if err != nil {
		return model.WalletSnapshot{}, err
	}

	balances, unresolved, err := a.MapBalances(ctx, raw.Balances)
	if err != nil {
		return model.WalletSnapshot{}, err
	}

	return model.WalletSnapshot{
		ConnectionID: raw.ConnectionID,
		Balances:     balances,
		Unresolved:   unresolved,
	}, nil
}

// MapBalances resolves provider balances to assets with a single batch lookup.
// Balances of the same symbol on several chains are summed. Entries without a
// symbol or a positive amount are skipped; symbols that could not be resolved
// are returned separately.
func (a *Adapter) MapBalances(ctx context.Context, raw []coinstats.RawBalance) ([]model.WalletBalance, []string, error) {
	type total struct {
		amount decimal.Decimal
		price  decimal.Decimal
	}

	var order []string
	totals := make(map[string]*total)
	for _, b := range raw {
		symbol := model.NormalizeSymbol(b.Symbol)
		if symbol == "" || b.Amount == nil || !b.Amount.IsPositive() {
			continue
		}
		t, ok := totals[symbol]
		if !ok {
			t = &total{}
			totals[symbol] = t
			order = append(order, symbol)
		}
		t.amount = t.amount.Add(*b.Amount)
		if t.price.IsZero() && b.Price != nil && !b.Price.IsNegative() {
			t.price = *b.Price
		}
	}

	if len(order) == 0 {
		return []model.WalletBalance{}, nil, nil
	}

	ids, err := a.symbols.Resolve(ctx, order)
	if err != nil {
		return nil, nil, err
	}

	balances := make([]model.WalletBalance, 0, len(order))
	var unresolved []string
	for _, symbol := range order {
		id, ok := ids[symbol]
		if !ok {
			unresolved = append(unresolved, symbol)
			continue
		}
		t := totals[symbol]
		balances = append(balances, model.WalletBalance{
			AssetID: id,
			Symbol:  symbol,
			Amount:  t.amount,
			Price:   t.price,
		})
	}

	if len(unresolved) > 0 {
		a.logger.Warn().Strs("symbols", unresolved).Msg("wallet balances with unresolved symbols skipped")
	}
	return balances, unresolved, nil
}

// Positions converts a snapshot into the position collection that replaces a
// wallet portfolio's holdings.
func Positions(snapshot model.WalletSnapshot) []model.Position {
	positions := make([]model.Position, 0, len(snapshot.Balances))
	for _, b := range snapshot.Balances {
		positions = append(positions, model.Position{
			AssetID:         b.AssetID,
			Amount:          b.Amount,
			AverageBuyPrice: b.Price,
		})
	}
	return positions
}

// FetchTransactions reads the wallet history and maps it into external transactions.
func (a *Adapter) FetchTransactions(ctx context.Context, address, connectionID string, limit int, portfolioID, userID string) ([]model.Transaction, error) {
	raw, err := a.client.GetTransactions(ctx, address, connectionID, limit)
	if err != nil {
		return nil, err
	}
	return a.MapTransactions(ctx, raw, Target{PortfolioID: portfolioID, UserID: userID, Chain: connectionID})
}

// Target identifies where mapped transactions belong.
type Target struct {
	PortfolioID string
	UserID      string
	Chain       string
}

// MapTransactions filters raw history entries and maps the survivors into
// external transactions. Symbols are resolved in one batch.
func (a *Adapter) MapTransactions(ctx context.Context, raw []coinstats.RawTransaction, target Target) ([]model.Transaction, error) {
	kept := FilterTransactions(raw)
	if len(kept) == 0 {
		return []model.Transaction{}, nil
	}

	symbols := make([]string, len(kept))
	for i, entry := range kept {
		symbols[i] = symbolOf(entry)
	}
	ids, err := a.symbols.Resolve(ctx, symbols)
	if err != nil {
		return nil, err
	}

	syncedAt := a.now().UTC()
	txs := make([]model.Transaction, 0, len(kept))
	for _, entry := range kept {
		symbol := model.NormalizeSymbol(symbolOf(entry))
		tx := mapTransaction(entry, target, syncedAt)
		tx.Symbol = symbol
		tx.AssetID = ids[symbol]
		txs = append(txs, tx)
	}
	return txs, nil
}

func mapTransaction(entry coinstats.RawTransaction, target Target, syncedAt time.Time) model.Transaction {
	count := *entry.CoinData.Count
	txType, direction := ledgerType(entry.Type, count)

	tx := model.Transaction{
		PortfolioID:  target.PortfolioID,
		UserID:       target.UserID,
		Type:         txType,
		Direction:    direction,
		Origin:       model.OriginExternal,
		Amount:       count.Abs(),
		Date:         parseDate(entry.Date, syncedAt),
		ExternalType: entry.Type,
		Chain:        target.Chain,
	}

	if worth := entry.CoinData.TotalWorth; worth != nil && !tx.Amount.IsZero() {
		tx.Price = decimal.NewNullDecimal(worth.Abs().DivRound(tx.Amount, 18))
	}
	if entry.Fee != nil && entry.Fee.TotalWorth != nil {
		tx.Fee = entry.Fee.TotalWorth.Abs()
	}
	if entry.MainContent != nil && len(entry.MainContent.CoinIcons) > 0 {
		tx.Icon = entry.MainContent.CoinIcons[0]
	}
	if entry.Hash != nil {
		tx.HashURL = entry.Hash.ExplorerURL
	}
	return tx
}

// ledgerType maps a provider type and signed amount to a ledger type.
func ledgerType(providerType string, count decimal.Decimal) (model.TransactionType, model.Direction) {
	switch providerType {
	case providerReceived:
		return model.TransactionTransfer, model.DirectionIncoming
	case providerSent:
		return model.TransactionTransfer, model.DirectionOutgoing
	case providerTrade:
		if count.IsNegative() {
			return model.TransactionSell, ""
		}
		return model.TransactionBuy, ""
	}
	if count.IsNegative() {
		return model.TransactionWithdrawal, ""
	}
	return model.TransactionDeposit, ""
}

func parseDate(value string, fallback time.Time) time.Time {
	if value == "" {
		return fallback
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return fallback
}

// RequestRefresh asks the provider to refresh the wallet's history.
func (a *Adapter) RequestRefresh(ctx context.Context, address, connectionID string) error {
	return a.client.RequestSync(ctx, address, connectionID)
}

// AwaitRefresh blocks until the provider reports the wallet as synced.
//
// The provider is never polled before minDelay has passed. After that the
// status is checked every pollInterval until maxWait elapses, which returns
// ErrSyncTimeout.
func (a *Adapter) AwaitRefresh(ctx context.Context, address, connectionID string, minDelay, pollInterval, maxWait time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxWait <= minDelay {
		maxWait = minDelay + pollInterval
	}
	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()

	wait := minDelay
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("%w: gave up after %s", ErrSyncTimeout, maxWait)
		case <-time.After(wait):
		}

		status, err := a.client.GetSyncStatus(ctx, address, connectionID)
		if err != nil {
			return err
		}
		if status == coinstats.StatusSynced {
			return nil
		}
		a.logger.Debug().Str("status", status).Msg("wallet provider still syncing")
		wait = pollInterval
	}
}
