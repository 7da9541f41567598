// Package coinstats is a client for the CoinStats wallet API, the external
// source of wallet balances and transaction history.
package coinstats

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ndewijer/coinfolio-ledger/internal/apperrors"
	"golang.org/x/time/rate"
)

// DefaultNetwork queries every supported network.
const DefaultNetwork = "all"

// maxErrorBody bounds how much of an error response is kept for the error message.
const maxErrorBody = 512

// Client defines the interface for talking to the wallet provider.
// This interface enables dependency injection and testing with mock implementations.
type Client interface {
	GetBalances(ctx context.Context, address, network string) (WalletBalances, error)
	RequestSync(ctx context.Context, address, connectionID string) error
	GetSyncStatus(ctx context.Context, address, connectionID string) (string, error)
	GetTransactions(ctx context.Context, address, connectionID string, limit int) ([]RawTransaction, error)
}

// WalletClient is the HTTP implementation of Client.
// Requests are throttled by a token bucket so background syncs cannot exhaust the API quota.
type WalletClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
}

// Options configures a WalletClient.
type Options struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// NewWalletClient creates a new wallet provider client.
func NewWalletClient(opts Options) *WalletClient {
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &WalletClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// GetBalances returns the token balances of address on the given network.
// An empty network means all networks.
func (c *WalletClient) GetBalances(ctx context.Context, address, network string) (WalletBalances, error) {
	if address == "" {
		return WalletBalances{}, fmt.Errorf("%w: wallet address is required", apperrors.ErrInvalidInput)
	}
	if network == "" {
		network = DefaultNetwork
	}

	query := url.Values{}
	query.Set("address", address)
	query.Set("networks", network)

	var response []walletBalancesResponse
	if err := c.do(ctx, http.MethodGet, "/wallet/balances", query, &response); err != nil {
		return WalletBalances{}, err
	}

	result := WalletBalances{ConnectionID: network}
	for i, chain := range response {
		if i == 0 && chain.Blockchain != "" {
			result.ConnectionID = chain.Blockchain
		}
		result.Balances = append(result.Balances, chain.Balances...)
	}
	return result, nil
}

// RequestSync asks the provider to refresh its view of the wallet. It does not wait
// for the refresh to finish; use GetSyncStatus to follow it.
func (c *WalletClient) RequestSync(ctx context.Context, address, connectionID string) error {
	var response syncStatusResponse
	return c.do(ctx, http.MethodPatch, "/wallet/transactions", walletQuery(address, connectionID), &response)
}

// GetSyncStatus returns the provider's refresh state for the wallet.
func (c *WalletClient) GetSyncStatus(ctx context.Context, address, connectionID string) (string, error) {
	var response syncStatusResponse
	if err := c.do(ctx, http.MethodGet, "/wallet/status", walletQuery(address, connectionID), &response); err != nil {
		return "", err
	}
	return response.Status, nil
}

// GetTransactions returns up to limit history entries for the wallet, newest first.
func (c *WalletClient) GetTransactions(ctx context.Context, address, connectionID string, limit int) ([]RawTransaction, error) {
	query := walletQuery(address, connectionID)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var response transactionsResponse
	if err := c.do(ctx, http.MethodGet, "/wallet/transactions", query, &response); err != nil {
		return nil, err
	}
	return response.Result, nil
}

func walletQuery(address, connectionID string) url.Values {
	if connectionID == "" {
		connectionID = DefaultNetwork
	}
	query := url.Values{}
	query.Set("address", address)
	query.Set("connectionId", connectionID)
	return query
}

// do executes a request and decodes the JSON body into out.
// Every failure is wrapped in apperrors.ErrExternalProvider.
func (c *WalletClient) do(ctx context.Context, method, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrExternalProvider, method, path, err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrExternalProvider, method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", apperrors.ErrExternalProvider, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s %s: failed to read response: %w", apperrors.ErrExternalProvider, method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(data)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return fmt.Errorf("%w: %s %s returned %d: %s", apperrors.ErrExternalProvider, method, path, resp.StatusCode, strings.TrimSpace(body))
	}

	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: failed to decode response: %w", apperrors.ErrExternalProvider, method, path, err)
	}
	return nil
}
