package request

// PortfolioSettingsRequest holds the display and privacy settings of a portfolio.
type PortfolioSettingsRequest struct {
	DisplayCurrency string `json:"displayCurrency"`
	IsPublic        bool   `json:"isPublic"`
	ShowAmounts     *bool  `json:"showAmounts,omitempty"`
}

// CreatePortfolioRequest represents the request body for creating a portfolio
type CreatePortfolioRequest struct {
	Name          string                    `json:"name"`
	Description   string                    `json:"description"`
	Type          string                    `json:"type"`
	TrackerMode   string                    `json:"trackerMode"`
	WalletAddress string                    `json:"walletAddress,omitempty"`
	IsMain        bool                      `json:"isMain"`
	Settings      *PortfolioSettingsRequest `json:"settings,omitempty"`
}

// UpdatePortfolioRequest changes descriptive fields and settings only.
// Tracker mode, wallet address and positions cannot be changed here.
type UpdatePortfolioRequest struct {
	Name            *string `json:"name,omitempty"`
	Description     *string `json:"description,omitempty"`
	Type            *string `json:"type,omitempty"`
	IsMain          *bool   `json:"isMain,omitempty"`
	DisplayCurrency *string `json:"displayCurrency,omitempty"`
	IsPublic        *bool   `json:"isPublic,omitempty"`
	ShowAmounts     *bool   `json:"showAmounts,omitempty"`
}
