package coinstats

import "github.com/shopspring/decimal"

// Every field of a provider payload is optional. Pointers distinguish a missing
// value from a zero one, and callers must check them before use.

// walletBalancesResponse is one element of the GET /wallet/balances array.
type walletBalancesResponse struct {
	Blockchain string       `json:"blockchain"`
	Balances   []RawBalance `json:"balances"`
}

// RawBalance is a single token balance as reported by the provider.
type RawBalance struct {
	CoinID   string           `json:"coinId"`
	Symbol   string           `json:"symbol"`
	Name     string           `json:"name"`
	Chain    string           `json:"chain"`
	Amount   *decimal.Decimal `json:"amount"`
	Price    *decimal.Decimal `json:"price"`
	ImageURL string           `json:"imgUrl"`
}

// WalletBalances is the balance view of one address.
// ConnectionID identifies the network(s) the balances were read from and is
// required when requesting transaction history for the same wallet.
type WalletBalances struct {
	ConnectionID string
	Balances     []RawBalance
}

// syncStatusResponse is the body of GET /wallet/status and PATCH /wallet/transactions.
type syncStatusResponse struct {
	Status string `json:"status"`
}

// Sync status values reported by the provider.
const (
	StatusSyncing = "syncing"
	StatusSynced  = "synced"
)

// transactionsResponse is the body of GET /wallet/transactions.
type transactionsResponse struct {
	Result []RawTransaction `json:"result"`
	Meta   *struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	} `json:"meta"`
}

// RawTransaction is a wallet history entry as reported by the provider.
type RawTransaction struct {
	Type         string          `json:"type"`
	Date         string          `json:"date"`
	CoinData     *RawCoinData    `json:"coinData"`
	Fee          *RawFee         `json:"fee"`
	MainContent  *RawMainContent `json:"mainContent"`
	Hash         *RawHash        `json:"hash"`
	Transactions []RawTransfer   `json:"transactions"`
}

// RawCoinData describes the asset and signed amount an entry moved.
type RawCoinData struct {
	Symbol     *string          `json:"symbol"`
	Identifier string           `json:"identifier"`
	Count      *decimal.Decimal `json:"count"`
	TotalWorth *decimal.Decimal `json:"totalWorth"`
}

// RawFee is the network fee paid for an entry.
type RawFee struct {
	TotalWorth *decimal.Decimal `json:"totalWorth"`
	Count      *decimal.Decimal `json:"count"`
	Coin       *RawCoin         `json:"coin"`
}

// RawCoin identifies a coin inside nested payloads.
type RawCoin struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
	Icon   string `json:"icon"`
}

// RawMainContent carries display data for an entry.
type RawMainContent struct {
	CoinIcons []string `json:"coinIcons"`
}

// RawHash links an entry to a block explorer.
type RawHash struct {
	ID          string `json:"id"`
	ExplorerURL string `json:"explorerUrl"`
}

// RawTransfer is one action inside a history entry.
type RawTransfer struct {
	Action string            `json:"action"`
	Items  []RawTransferItem `json:"items"`
}

// RawTransferItem is a single movement inside an action. NFT is set for non-fungible tokens.
type RawTransferItem struct {
	ID    string           `json:"id"`
	Count *decimal.Decimal `json:"count"`
	Coin  *RawCoin         `json:"coin"`
	NFT   *RawNFT          `json:"nft"`
}

// RawNFT identifies a non-fungible token.
type RawNFT struct {
	Address string `json:"address"`
	TokenID string `json:"tokenId"`
	Name    string `json:"name"`
}
