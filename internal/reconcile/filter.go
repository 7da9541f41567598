package reconcile

import (
	"strings"

	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/shopspring/decimal"
)

// DustThreshold is the smallest absolute amount treated as a real position change.
var DustThreshold = decimal.RequireFromString("0.001")

// FilterTransactions drops history entries that must not reach the ledger.
// The checks run in a fixed order: NFT transfers, then dust, then entries
// without a symbol. The input is not modified.
func FilterTransactions(raw []coinstats.RawTransaction) []coinstats.RawTransaction {
	kept := make([]coinstats.RawTransaction, 0, len(raw))
	for _, entry := range raw {
		if isNFT(entry) {
			continue
		}
		if isDust(entry) {
			continue
		}
		if symbolOf(entry) == "" {
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// isNFT reports whether an entry moves a non-fungible token.
func isNFT(entry coinstats.RawTransaction) bool {
	if strings.Contains(strings.ToLower(entry.Type), "nft") {
		return true
	}
	for _, transfer := range entry.Transactions {
		for _, item := range transfer.Items {
			if item.NFT != nil {
				return true
			}
		}
	}
	return false
}

// isDust reports whether the entry's amount is missing or below DustThreshold.
func isDust(entry coinstats.RawTransaction) bool {
	if entry.CoinData == nil || entry.CoinData.Count == nil {
		return true
	}
	return entry.CoinData.Count.Abs().LessThan(DustThreshold)
}

func symbolOf(entry coinstats.RawTransaction) string {
	if entry.CoinData == nil || entry.CoinData.Symbol == nil {
		return ""
	}
	return strings.TrimSpace(*entry.CoinData.Symbol)
}
