package validation

import (
	"fmt"
	"strings"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/shopspring/decimal"
)

// ValidTransactionType contains the allowed transaction type values.
var ValidTransactionType = map[string]bool{
	string(model.TransactionBuy):        true,
	string(model.TransactionSell):       true,
	string(model.TransactionTransfer):   true,
	string(model.TransactionDeposit):    true,
	string(model.TransactionWithdrawal): true,
}

// ValidDirection contains the allowed transfer direction values.
var ValidDirection = map[string]bool{
	string(model.DirectionIncoming): true,
	string(model.DirectionOutgoing): true,
}

// ValidateCreateTransaction validates a transaction creation request.
//
// Required fields:
//   - portfolioId, assetId: valid UUIDs
//   - type: buy, sell, transfer, deposit or withdrawal
//   - direction: incoming or outgoing, only for transfers
//   - amount: positive
//   - date: YYYY-MM-DD or RFC3339
//
// price and fee are optional but must not be negative.
func ValidateCreateTransaction(req request.CreateTransactionRequest) error {
	errors := make(map[string]string)

	if err := ValidateUUID(req.PortfolioID); err != nil {
		errors["portfolioId"] = "portfolioId must be a valid UUID"
	}
	if err := ValidateUUID(req.AssetID); err != nil {
		errors["assetId"] = "assetId must be a valid UUID"
	}

	validateType(errors, req.Type)
	// Direction rules depend on the type; missing and invalid directions on
	// transfers are reported by the ledger with their own error kinds.
	if req.Type != string(model.TransactionTransfer) && req.Direction != "" {
		errors["direction"] = "direction is only allowed on transfers"
	}

	validateAmount(errors, "amount", req.Amount)
	validateNonNegative(errors, "price", req.Price)
	validateNonNegative(errors, "fee", req.Fee)

	if strings.TrimSpace(req.Date) == "" {
		errors["date"] = "date is required"
	} else if _, err := ParseTime(req.Date); err != nil {
		errors["date"] = err.Error()
	}

	if len(req.Notes) > 500 {
		errors["notes"] = "notes must be 500 characters or less"
	}

	return result(errors)
}

// ValidateUpdateTransaction validates a transaction update request.
// All fields are optional, but if provided, they must meet the same constraints as create.
func ValidateUpdateTransaction(req request.UpdateTransactionRequest) error {
	errors := make(map[string]string)

	if req.AssetID != nil {
		if err := ValidateUUID(*req.AssetID); err != nil {
			errors["assetId"] = "assetId must be a valid UUID"
		}
	}
	if req.Type != nil {
		validateType(errors, *req.Type)
	}
	if req.Amount != nil {
		validateAmount(errors, "amount", *req.Amount)
	}
	validateNonNegative(errors, "price", req.Price)
	validateNonNegative(errors, "fee", req.Fee)

	if req.Date != nil {
		if _, err := ParseTime(*req.Date); err != nil {
			errors["date"] = err.Error()
		}
	}

	if req.Notes != nil && len(*req.Notes) > 500 {
		errors["notes"] = "notes must be 500 characters or less"
	}

	return result(errors)
}

func validateType(errors map[string]string, t string) {
	if strings.TrimSpace(t) == "" {
		errors["type"] = "type is required"
	} else if !ValidTransactionType[t] {
		errors["type"] = fmt.Sprintf("invalid type: %s", t)
	}
}

func validateAmount(errors map[string]string, field string, amount decimal.Decimal) {
	if !amount.IsPositive() {
		errors[field] = field + " must be positive"
	}
}

func validateNonNegative(errors map[string]string, field string, value *decimal.Decimal) {
	if value != nil && value.IsNegative() {
		errors[field] = field + " cannot be negative"
	}
}
