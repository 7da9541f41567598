package model

import "github.com/shopspring/decimal"

// WalletBalance is a provider balance resolved to a local asset.
type WalletBalance struct {
	AssetID string          `json:"assetId"`
	Symbol  string          `json:"symbol"`
	Amount  decimal.Decimal `json:"amount"`
	Price   decimal.Decimal `json:"price"`
}

// WalletSnapshot is the reconciled view of a wallet at one point in time.
type WalletSnapshot struct {
	ConnectionID string          `json:"connectionId"`
	Balances     []WalletBalance `json:"balances"`
	Unresolved   []string        `json:"unresolved,omitempty"`
}
