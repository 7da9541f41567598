package request

import "github.com/shopspring/decimal"

// CreateTransactionRequest represents the request body for creating a transaction.
// Amounts accept JSON numbers or strings.
type CreateTransactionRequest struct {
	PortfolioID string           `json:"portfolioId"`
	AssetID     string           `json:"assetId"`
	Type        string           `json:"type"`
	Direction   string           `json:"direction,omitempty"`
	Amount      decimal.Decimal  `json:"amount"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Fee         *decimal.Decimal `json:"fee,omitempty"`
	Date        string           `json:"date"`
	Notes       string           `json:"notes,omitempty"`
}

// UpdateTransactionRequest represents the request body for updating a local transaction.
// Omitted fields keep their stored value.
type UpdateTransactionRequest struct {
	AssetID   *string          `json:"assetId,omitempty"`
	Type      *string          `json:"type,omitempty"`
	Direction *string          `json:"direction,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Price     *decimal.Decimal `json:"price,omitempty"`
	Fee       *decimal.Decimal `json:"fee,omitempty"`
	Date      *string          `json:"date,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
}
