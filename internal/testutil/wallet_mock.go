package testutil

import (
	"context"
	"sync"

	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/shopspring/decimal"
)

// MockWalletClient is a mock implementation of coinstats.Client for testing.
// It returns predefined data instead of calling the provider and is safe for
// concurrent use by background workers.
type MockWalletClient struct {
	mu sync.Mutex

	// Balances is returned from GetBalances
	Balances coinstats.WalletBalances
	// Transactions is returned from GetTransactions
	Transactions []coinstats.RawTransaction
	// Status is returned from GetSyncStatus; defaults to synced
	Status string
	// Err is returned from every call when set
	Err error

	calls map[string]int
}

// NewMockWalletClient creates a mock with an empty synced wallet.
func NewMockWalletClient() *MockWalletClient {
	return &MockWalletClient{
		Balances: coinstats.WalletBalances{ConnectionID: "ethereum"},
		Status:   coinstats.StatusSynced,
		calls:    make(map[string]int),
	}
}

// WithBalance adds a balance entry.
func (m *MockWalletClient) WithBalance(symbol, amount, price string) *MockWalletClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	a := decimal.RequireFromString(amount)
	p := decimal.RequireFromString(price)
	m.Balances.Balances = append(m.Balances.Balances, coinstats.RawBalance{
		Symbol: symbol,
		Amount: &a,
		Price:  &p,
	})
	return m
}

// WithTransaction adds a history entry for symbol.
func (m *MockWalletClient) WithTransaction(txType, symbol, count, hashURL string) *MockWalletClient {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := decimal.RequireFromString(count)
	worth := c.Mul(decimal.NewFromInt(10))
	m.Transactions = append(m.Transactions, coinstats.RawTransaction{
		Type: txType,
		Date: "2024-05-01T10:00:00Z",
		CoinData: &coinstats.RawCoinData{
			Symbol:     &symbol,
			Count:      &c,
			TotalWorth: &worth,
		},
		Hash: &coinstats.RawHash{ExplorerURL: hashURL},
	})
	return m
}

// WithError configures the mock to fail every call with err.
func (m *MockWalletClient) WithError(err error) *MockWalletClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
	return m
}

// Calls returns how often method was invoked.
func (m *MockWalletClient) Calls(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[method]
}

func (m *MockWalletClient) record(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[method]++
	return m.Err
}

func (m *MockWalletClient) GetBalances(_ context.Context, _, _ string) (coinstats.WalletBalances, error) {
	if err := m.record("GetBalances"); err != nil {
		return coinstats.WalletBalances{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Balances, nil
}

func (m *MockWalletClient) RequestSync(_ context.Context, _, _ string) error {
	return m.record("RequestSync")
}

func (m *MockWalletClient) GetSyncStatus(_ context.Context, _, _ string) (string, error) {
	if err := m.record("GetSyncStatus"); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Status, nil
}

func (m *MockWalletClient) GetTransactions(_ context.Context, _, _ string, _ int) ([]coinstats.RawTransaction, error) {
	if err := m.record("GetTransactions"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Transactions, nil
}
