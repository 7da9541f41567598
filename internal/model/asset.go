package model

import (
	"strings"
	"time"
)

// Asset is a fungible instrument identified by its upper-cased symbol.
type Asset struct {
	ID          string    `json:"id"`
	Symbol      string    `json:"symbol"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	TradingPair string    `json:"tradingPair"`
	ImageURL    string    `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NormalizeSymbol returns the canonical form of an asset symbol.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// AssetRef is the minimal identity returned by batch symbol resolution.
type AssetRef struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
}
