package validation

import (
	"strings"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
)

// ValidateCreateAsset validates an asset registration request.
func ValidateCreateAsset(req request.CreateAssetRequest) error {
	errors := make(map[string]string)

	symbol := strings.TrimSpace(req.Symbol)
	if symbol == "" {
		errors["symbol"] = "symbol is required"
	} else if len(symbol) > 32 {
		errors["symbol"] = "symbol must be 32 characters or less"
	}

	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	}

	if strings.TrimSpace(req.Type) == "" {
		errors["type"] = "type is required"
	}

	if strings.TrimSpace(req.TradingPair) == "" {
		errors["tradingPair"] = "tradingPair is required"
	}

	return result(errors)
}
