package request

// CreateAssetRequest represents the request body for registering an asset.
type CreateAssetRequest struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	TradingPair string `json:"tradingPair"`
	ImageURL    string `json:"imageUrl,omitempty"`
}
