package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrackerMode determines whether positions are user edited or externally synchronized.
type TrackerMode string

const (
	TrackerManual   TrackerMode = "manual"
	TrackerWallet   TrackerMode = "wallet"
	TrackerExchange TrackerMode = "exchange"
)

// Valid reports whether m is a known tracker mode.
func (m TrackerMode) Valid() bool {
	switch m {
	case TrackerManual, TrackerWallet, TrackerExchange:
		return true
	}
	return false
}

// ValidPortfolioTypes contains the allowed portfolio type values.
var ValidPortfolioTypes = map[string]bool{
	"crypto": true, "stocks": true, "cash": true, "trading": true, "custom": true,
}

// Sync status values stored on wallet portfolios.
const (
	SyncStatusSynced  = "synced"
	SyncStatusPending = "pending"
	SyncStatusFailed  = "failed"
)

// Position is a portfolio's current holding of one asset.
// Amount is always positive: a position reduced to zero is removed.
type Position struct {
	AssetID         string          `json:"assetId"`
	Amount          decimal.Decimal `json:"amount"`
	AverageBuyPrice decimal.Decimal `json:"averageBuyPrice"`
	Asset           *Asset          `json:"asset,omitempty"`
}

// PortfolioSettings holds display and privacy preferences.
type PortfolioSettings struct {
	DisplayCurrency string `json:"displayCurrency"`
	IsPublic        bool   `json:"isPublic"`
	ShowAmounts     bool   `json:"showAmounts"`
}

// Portfolio is a container of positions owned by exactly one user.
type Portfolio struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"ownerId"`
	Name          string            `json:"name"`
	Description   string            `json:"description"`
	Type          string            `json:"type"`
	TrackerMode   TrackerMode       `json:"trackerMode"`
	WalletAddress string            `json:"walletAddress,omitempty"`
	IsMain        bool              `json:"isMain"`
	HasAsset      bool              `json:"hasAsset"`
	Assets        []Position        `json:"assets"`
	Settings      PortfolioSettings `json:"settings"`
	SyncStatus    string            `json:"syncStatus,omitempty"`
	LastSync      *time.Time        `json:"lastSync,omitempty"`
	Version       int64             `json:"-"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// IsWallet reports whether the portfolio's positions come from a wallet snapshot.
func (p Portfolio) IsWallet() bool {
	return p.TrackerMode == TrackerWallet && p.WalletAddress != ""
}

// BalanceSnapshot records the positions a wallet sync replaced the ledger with.
type BalanceSnapshot struct {
	ID          string          `json:"id"`
	PortfolioID string          `json:"portfolioId"`
	Balance     decimal.Decimal `json:"balance"`
	Positions   []Position      `json:"positions"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// SyncResult is returned by a wallet sync trigger.
type SyncResult struct {
	Status    string    `json:"status"`
	Positions int       `json:"positions"`
	SyncedAt  time.Time `json:"syncedAt"`
}

// VerificationResult reports whether stored positions match replayed local transactions.
type VerificationResult struct {
	PortfolioID  string   `json:"portfolioId"`
	Consistent   bool     `json:"consistent"`
	Transactions int      `json:"transactions"`
	Mismatches   []string `json:"mismatches,omitempty"`
}
