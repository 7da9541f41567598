package validation

import (
	"fmt"
	"strings"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
)

func ValidateCreatePortfolio(req request.CreatePortfolioRequest) error {
	errors := make(map[string]string)

	// Required field
	if strings.TrimSpace(req.Name) == "" {
		errors["name"] = "name is required"
	} else if len(req.Name) > 100 {
		errors["name"] = "name must be 100 characters or less"
	}

	// Optional but has constraints
	if len(req.Description) > 500 {
		errors["description"] = "description must be 500 characters or less"
	}

	if !model.ValidPortfolioTypes[req.Type] {
		errors["type"] = fmt.Sprintf("invalid type: %s", req.Type)
	}

	mode := model.TrackerMode(req.TrackerMode)
	switch {
	case req.TrackerMode == "":
	case !mode.Valid():
		errors["trackerMode"] = fmt.Sprintf("invalid tracker mode: %s", req.TrackerMode)
	case mode == model.TrackerWallet && strings.TrimSpace(req.WalletAddress) == "":
		errors["walletAddress"] = "walletAddress is required for wallet portfolios"
	}
	if mode != model.TrackerWallet && req.WalletAddress != "" {
		errors["walletAddress"] = "walletAddress is only allowed for wallet portfolios"
	}

	if req.Settings != nil {
		validateCurrency(errors, req.Settings.DisplayCurrency)
	}

	return result(errors)
}

func ValidateUpdatePortfolio(req request.UpdatePortfolioRequest) error {
	errors := make(map[string]string)

	// Only validate provided fields
	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			errors["name"] = "name cannot be empty"
		} else if len(*req.Name) > 100 {
			errors["name"] = "name must be 100 characters or less"
		}
	}

	if req.Description != nil && len(*req.Description) > 500 {
		errors["description"] = "description must be 500 characters or less"
	}

	if req.Type != nil && !model.ValidPortfolioTypes[*req.Type] {
		errors["type"] = fmt.Sprintf("invalid type: %s", *req.Type)
	}

	if req.DisplayCurrency != nil {
		validateCurrency(errors, *req.DisplayCurrency)
	}

	return result(errors)
}

func validateCurrency(errors map[string]string, currency string) {
	if currency == "" {
		return
	}
	if len(currency) < 3 || len(currency) > 8 {
		errors["displayCurrency"] = "displayCurrency must be 3 to 8 characters"
	}
}
