package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the ledger-affecting kind of a transaction.
type TransactionType string

const (
	TransactionBuy        TransactionType = "buy"
	TransactionSell       TransactionType = "sell"
	TransactionTransfer   TransactionType = "transfer"
	TransactionDeposit    TransactionType = "deposit"
	TransactionWithdrawal TransactionType = "withdrawal"
)

// Origin records whether a transaction was user entered or derived from a wallet feed.
type Origin string

const (
	OriginLocal    Origin = "local"
	OriginExternal Origin = "external"
)

// Direction is required on transfers.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Transaction is a ledger-affecting event. External transactions are immutable.
type Transaction struct {
	ID           string              `json:"id"`
	PortfolioID  string              `json:"portfolioId"`
	UserID       string              `json:"userId"`
	AssetID      string              `json:"assetId,omitempty"`
	Symbol       string              `json:"symbol"`
	Type         TransactionType     `json:"type"`
	Origin       Origin              `json:"origin"`
	Direction    Direction           `json:"direction,omitempty"`
	Amount       decimal.Decimal     `json:"amount"`
	Price        decimal.NullDecimal `json:"price"`
	Fee          decimal.Decimal     `json:"fee"`
	Date         time.Time           `json:"date"`
	Notes        string              `json:"notes,omitempty"`
	ExternalType string              `json:"externalType,omitempty"`
	Chain        string              `json:"chain,omitempty"`
	Icon         string              `json:"icon,omitempty"`
	HashURL      string              `json:"hashUrl,omitempty"`
	CreatedAt    time.Time           `json:"createdAt"`
	UpdatedAt    time.Time           `json:"updatedAt"`
}

// IsExternal reports whether the transaction came from a wallet provider.
func (t Transaction) IsExternal() bool {
	return t.Origin == OriginExternal
}

// PriceOrZero returns the price, treating an absent price as zero.
func (t Transaction) PriceOrZero() decimal.Decimal {
	if t.Price.Valid {
		return t.Price.Decimal
	}
	return decimal.Zero
}
