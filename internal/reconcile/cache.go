package reconcile

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/model"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// AssetResolver maps normalized symbols to assets in one batch call.
// Symbols without an asset are created, so every requested symbol is returned.
type AssetResolver interface {
	EnsureAssets(ctx context.Context, symbols []string) ([]model.AssetRef, error)
}

// SymbolCache memoizes symbol to asset ID lookups.
//
// Entries expire after the configured TTL so the cache stays bounded on a
// long running process. Concurrent lookups for the same missing set share
// a single resolver call.
type SymbolCache struct {
	resolver AssetResolver
	entries  *cache.Cache
	group    singleflight.Group
}

// NewSymbolCache creates a cache backed by resolver.
func NewSymbolCache(resolver AssetResolver, ttl, cleanupInterval time.Duration) *SymbolCache {
	return &SymbolCache{
		resolver: resolver,
		entries:  cache.New(ttl, cleanupInterval),
	}
}

// Resolve returns asset IDs keyed by normalized symbol.
// Only symbols absent from the cache reach the resolver, in a single call.
func (c *SymbolCache) Resolve(ctx context.Context, symbols []string) (map[string]string, error) {
	result := make(map[string]string, len(symbols))
	var missing []string

	for _, raw := range symbols {
		symbol := model.NormalizeSymbol(raw)
		if symbol == "" {
			continue
		}
		if _, seen := result[symbol]; seen {
			continue
		}
		if id, found := c.entries.Get(symbol); found {
			result[symbol] = id.(string)
			continue
		}
		if !slices.Contains(missing, symbol) {
			missing = append(missing, symbol)
		}
	}

	if len(missing) == 0 {
		return result, nil
	}

	slices.Sort(missing)
	key := strings.Join(missing, ",")

	// The flight is shared, so one caller's cancellation must not fail the others.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		refs, err := c.resolver.EnsureAssets(flightCtx, missing)
		if err != nil {
			return nil, err
		}
		resolved := make(map[string]string, len(refs))
		for _, ref := range refs {
			symbol := model.NormalizeSymbol(ref.Symbol)
			c.entries.SetDefault(symbol, ref.ID)
			resolved[symbol] = ref.ID
		}
		return resolved, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to resolve asset symbols: %w", res.Err)
		}
		for symbol, id := range res.Val.(map[string]string) {
			result[symbol] = id
		}
		return result, nil
	}
}

// Len reports the number of cached symbols, including expired entries not yet cleaned up.
func (c *SymbolCache) Len() int {
	return c.entries.ItemCount()
}

// Flush empties the cache.
func (c *SymbolCache) Flush() {
	c.entries.Flush()
}
