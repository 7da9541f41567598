package service

import (
	"context"
	"slices"

	"github.com/ndewijer/coinfolio-ledger/internal/api/request"
	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
)

// placeholderAssetType is the type given to assets created while resolving provider symbols.
const placeholderAssetType = "crypto"

// AssetService handles asset catalog operations and symbol resolution.
type AssetService struct {
	assetRepo *repository.AssetRepository
}

// NewAssetService creates a new AssetService with the provided repository dependencies.
func NewAssetService(assetRepo *repository.AssetRepository) *AssetService {
	return &AssetService{assetRepo: assetRepo}
}

// ListAssets returns the full asset catalog ordered by symbol.
func (s *AssetService) ListAssets(ctx context.Context) ([]model.Asset, error) {
	return s.assetRepo.GetAssets(ctx)
}

// GetAsset returns a single asset.
func (s *AssetService) GetAsset(ctx context.Context, assetID string) (model.Asset, error) {
	return s.assetRepo.GetAsset(ctx, assetID)
}

// CreateAsset adds an asset to the catalog. The trading pair defaults to SYMBOLUSDT.
func (s *AssetService) CreateAsset(ctx context.Context, req request.CreateAssetRequest) (*model.Asset, error) {
	asset := &model.Asset{
		Symbol:      model.NormalizeSymbol(req.Symbol),
		Name:        req.Name,
		Type:        req.Type,
		TradingPair: req.TradingPair,
		ImageURL:    req.ImageURL,
	}
	if asset.TradingPair == "" {
		asset.TradingPair = asset.Symbol + "USDT"
	}
	if asset.Type == "" {
		asset.Type = placeholderAssetType
	}

	if err := s.assetRepo.InsertAsset(ctx, asset); err != nil {
		return nil, err
	}
	return asset, nil
}

// ResolveAssetsBySymbols returns the assets known for the given symbols in one lookup.
// Unknown symbols are absent from the result.
func (s *AssetService) ResolveAssetsBySymbols(ctx context.Context, symbols []string) ([]model.AssetRef, error) {
	normalized := normalizeSymbols(symbols)
	if len(normalized) == 0 {
		return []model.AssetRef{}, nil
	}
	return s.assetRepo.GetAssetsBySymbols(ctx, normalized)
}

// EnsureAssets resolves symbols and creates placeholder assets for the ones
// the catalog does not know yet.
func (s *AssetService) EnsureAssets(ctx context.Context, symbols []string) ([]model.AssetRef, error) {
	normalized := normalizeSymbols(symbols)
	if len(normalized) == 0 {
		return []model.AssetRef{}, nil
	}

	refs, err := s.assetRepo.GetAssetsBySymbols(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if len(refs) == len(normalized) {
		return refs, nil
	}

	known := make(map[string]bool, len(refs))
	for _, ref := range refs {
		known[ref.Symbol] = true
	}
	var missing []string
	for _, symbol := range normalized {
		if !known[symbol] {
			missing = append(missing, symbol)
		}
	}

	if err := s.assetRepo.InsertMissingAssets(ctx, missing, placeholderAssetType); err != nil {
		return nil, err
	}
	return s.assetRepo.GetAssetsBySymbols(ctx, normalized)
}

func normalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if n := model.NormalizeSymbol(symbol); n != "" {
			out = append(out, n)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
