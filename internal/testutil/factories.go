package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// AssetBuilder provides a fluent interface for creating test assets.
//
// Example usage:
//
//	asset := testutil.NewAsset().WithSymbol("BTC").Build(t, db)
type AssetBuilder struct {
	ID          string
	Symbol      string
	Name        string
	Type        string
	TradingPair string
}

// NewAsset creates an AssetBuilder with a random symbol.
func NewAsset() *AssetBuilder {
	symbol := MakeSymbol("")
	return &AssetBuilder{
		ID:          MakeID(),
		Symbol:      symbol,
		Name:        MakeAssetName(symbol),
		Type:        "crypto",
		TradingPair: symbol + "USDT",
	}
}

// WithID sets a custom ID.
func (b *AssetBuilder) WithID(id string) *AssetBuilder {
	b.ID = id
	return b
}

// WithSymbol sets the symbol and the derived trading pair.
func (b *AssetBuilder) WithSymbol(symbol string) *AssetBuilder {
	b.Symbol = model.NormalizeSymbol(symbol)
	b.TradingPair = b.Symbol + "USDT"
	return b
}

// WithName sets a custom name.
func (b *AssetBuilder) WithName(name string) *AssetBuilder {
	b.Name = name
	return b
}

// Build creates the asset in the database.
func (b *AssetBuilder) Build(t *testing.T, db *sql.DB) model.Asset {
	t.Helper()

	now := time.Now().UTC()
	query := `
		INSERT INTO asset (id, symbol, name, type, trading_pair, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, '', ?)
	`

	_, err := db.Exec(query, b.ID, b.Symbol, b.Name, b.Type, b.TradingPair, now)
	if err != nil {
		t.Fatalf("Failed to create test asset: %v", err)
	}

	return model.Asset{
		ID:          b.ID,
		Symbol:      b.Symbol,
		Name:        b.Name,
		Type:        b.Type,
		TradingPair: b.TradingPair,
		CreatedAt:   now,
	}
}

// CreateAsset creates an asset with the given symbol.
func CreateAsset(t *testing.T, db *sql.DB, symbol string) model.Asset {
	t.Helper()
	return NewAsset().WithSymbol(symbol).Build(t, db)
}

// PortfolioBuilder provides a fluent interface for creating test portfolios.
//
// Example usage:
//
//	// Simple manual portfolio
//	portfolio := testutil.NewPortfolio().WithOwner("user-1").Build(t, db)
//
//	// Public wallet portfolio holding one asset
//	portfolio := testutil.NewPortfolio().
//	    WithWallet("0xabc").
//	    Public().
//	    WithPosition(asset.ID, "1.5", "2000").
//	    Build(t, db)
type PortfolioBuilder struct {
	ID            string
	OwnerID       string
	Name          string
	Description   string
	Type          string
	TrackerMode   model.TrackerMode
	WalletAddress string
	IsPublic      bool
	ShowAmounts   bool
	Positions     []model.Position
}

// NewPortfolio creates a PortfolioBuilder with sensible defaults.
func NewPortfolio() *PortfolioBuilder {
	return &PortfolioBuilder{
		ID:          MakeID(),
		OwnerID:     DefaultUserID,
		Name:        MakePortfolioName("Test Portfolio"),
		Description: "Test description",
		Type:        "crypto",
		TrackerMode: model.TrackerManual,
		ShowAmounts: true,
	}
}

// WithID sets a custom ID.
func (b *PortfolioBuilder) WithID(id string) *PortfolioBuilder {
	b.ID = id
	return b
}

// WithOwner sets the owning user.
func (b *PortfolioBuilder) WithOwner(ownerID string) *PortfolioBuilder {
	b.OwnerID = ownerID
	return b
}

// WithName sets a custom name.
func (b *PortfolioBuilder) WithName(name string) *PortfolioBuilder {
	b.Name = name
	return b
}

// WithTrackerMode sets the tracker mode.
func (b *PortfolioBuilder) WithTrackerMode(mode model.TrackerMode) *PortfolioBuilder {
	b.TrackerMode = mode
	return b
}

// WithWallet turns the portfolio into a wallet portfolio for address.
func (b *PortfolioBuilder) WithWallet(address string) *PortfolioBuilder {
	b.TrackerMode = model.TrackerWallet
	b.WalletAddress = address
	return b
}

// Public marks the portfolio as publicly viewable.
func (b *PortfolioBuilder) Public() *PortfolioBuilder {
	b.IsPublic = true
	return b
}

// HideAmounts hides amounts from public viewers.
func (b *PortfolioBuilder) HideAmounts() *PortfolioBuilder {
	b.ShowAmounts = false
	return b
}

// WithPosition adds an initial position.
func (b *PortfolioBuilder) WithPosition(assetID, amount, averageBuyPrice string) *PortfolioBuilder {
	b.Positions = append(b.Positions, model.Position{
		AssetID:         assetID,
		Amount:          decimal.RequireFromString(amount),
		AverageBuyPrice: decimal.RequireFromString(averageBuyPrice),
	})
	return b
}

// Build creates the portfolio and its positions in the database.
func (b *PortfolioBuilder) Build(t *testing.T, db *sql.DB) model.Portfolio {
	t.Helper()

	walletAddress, err := TestBox(t).Encrypt(b.WalletAddress)
	if err != nil {
		t.Fatalf("Failed to encrypt wallet address: %v", err)
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO portfolio (
			id, owner_id, name, description, type, tracker_mode, wallet_address_enc,
			is_main, has_asset, display_currency, is_public, show_amounts,
			sync_status, last_sync, version, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE, ?, 'USD', ?, ?, '', NULL, 1, ?, ?)
	`

	_, err = db.Exec(query,
		b.ID, b.OwnerID, b.Name, b.Description, b.Type, b.TrackerMode, walletAddress,
		len(b.Positions) > 0, b.IsPublic, b.ShowAmounts, now, now,
	)
	if err != nil {
		t.Fatalf("Failed to create test portfolio: %v", err)
	}

	for i, p := range b.Positions {
		_, err := db.Exec(`
			INSERT INTO position (portfolio_id, asset_id, amount, average_buy_price, sort_order)
			VALUES (?, ?, ?, ?, ?)
		`, b.ID, p.AssetID, p.Amount.String(), p.AverageBuyPrice.String(), i)
		if err != nil {
			t.Fatalf("Failed to create test position: %v", err)
		}
	}

	positions := b.Positions
	if positions == nil {
		positions = []model.Position{}
	}

	return model.Portfolio{
		ID:            b.ID,
		OwnerID:       b.OwnerID,
		Name:          b.Name,
		Description:   b.Description,
		Type:          b.Type,
		TrackerMode:   b.TrackerMode,
		WalletAddress: b.WalletAddress,
		HasAsset:      len(positions) > 0,
		Assets:        positions,
		Settings: model.PortfolioSettings{
			DisplayCurrency: "USD",
			IsPublic:        b.IsPublic,
			ShowAmounts:     b.ShowAmounts,
		},
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreatePortfolio creates a manual portfolio owned by ownerID.
func CreatePortfolio(t *testing.T, db *sql.DB, ownerID string) model.Portfolio {
	t.Helper()
	return NewPortfolio().WithOwner(ownerID).Build(t, db)
}

// TransactionBuilder provides a fluent interface for creating transactions.
// Building a transaction does not touch positions.
type TransactionBuilder struct {
	ID          string
	PortfolioID string
	UserID      string
	AssetID     string
	Symbol      string
	Type        model.TransactionType
	Origin      model.Origin
	Direction   model.Direction
	Amount      decimal.Decimal
	Price       decimal.NullDecimal
	Date        time.Time
	HashURL     string
}

// NewTransaction creates a local buy of 1 unit at 100.
func NewTransaction(portfolio model.Portfolio, asset model.Asset) *TransactionBuilder {
	return &TransactionBuilder{
		ID:          MakeID(),
		PortfolioID: portfolio.ID,
		UserID:      portfolio.OwnerID,
		AssetID:     asset.ID,
		Symbol:      asset.Symbol,
		Type:        model.TransactionBuy,
		Origin:      model.OriginLocal,
		Amount:      decimal.NewFromInt(1),
		Price:       decimal.NewNullDecimal(decimal.NewFromInt(100)),
		Date:        time.Now().UTC(),
	}
}

// WithType sets the transaction type.
func (b *TransactionBuilder) WithType(txType model.TransactionType) *TransactionBuilder {
	b.Type = txType
	return b
}

// WithDirection sets the transfer direction.
func (b *TransactionBuilder) WithDirection(direction model.Direction) *TransactionBuilder {
	b.Direction = direction
	return b
}

// WithAmount sets the amount.
func (b *TransactionBuilder) WithAmount(amount string) *TransactionBuilder {
	b.Amount = decimal.RequireFromString(amount)
	return b
}

// WithPrice sets the unit price.
func (b *TransactionBuilder) WithPrice(price string) *TransactionBuilder {
	b.Price = decimal.NewNullDecimal(decimal.RequireFromString(price))
	return b
}

// WithDate sets the transaction date.
func (b *TransactionBuilder) WithDate(date time.Time) *TransactionBuilder {
	b.Date = date.UTC()
	return b
}

// External marks the transaction as coming from a wallet provider.
func (b *TransactionBuilder) External(hashURL string) *TransactionBuilder {
	b.Origin = model.OriginExternal
	b.HashURL = hashURL
	return b
}

// Build creates the transaction in the database.
func (b *TransactionBuilder) Build(t *testing.T, db *sql.DB) model.Transaction {
	t.Helper()

	now := time.Now().UTC()
	query := `
		INSERT INTO "transaction" (
			id, portfolio_id, user_id, asset_id, symbol, type, origin, direction,
			amount, price, fee, date, notes, external_type, chain, icon, hash_url,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '0', ?, '', '', '', '', ?, ?, ?)
	`

	_, err := db.Exec(query,
		b.ID, b.PortfolioID, b.UserID, b.AssetID, b.Symbol, b.Type, b.Origin, b.Direction,
		b.Amount, b.Price, b.Date, b.HashURL, now, now,
	)
	if err != nil {
		t.Fatalf("Failed to create transaction: %v", err)
	}

	return model.Transaction{
		ID:          b.ID,
		PortfolioID: b.PortfolioID,
		UserID:      b.UserID,
		AssetID:     b.AssetID,
		Symbol:      b.Symbol,
		Type:        b.Type,
		Origin:      b.Origin,
		Direction:   b.Direction,
		Amount:      b.Amount,
		Price:       b.Price,
		Fee:         decimal.Zero,
		Date:        b.Date,
		HashURL:     b.HashURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
