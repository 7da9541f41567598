package testutil

import (
	"context"
	"database/sql"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/ndewijer/coinfolio-ledger/internal/coinstats"
	"github.com/ndewijer/coinfolio-ledger/internal/ledger"
	"github.com/ndewijer/coinfolio-ledger/internal/logging"
	"github.com/ndewijer/coinfolio-ledger/internal/reconcile"
	"github.com/ndewijer/coinfolio-ledger/internal/repository"
	"github.com/ndewijer/coinfolio-ledger/internal/secret"
	"github.com/ndewijer/coinfolio-ledger/internal/service"
)

// Users the builders and request helpers act as.
const (
	DefaultUserID = "user-owner"
	OtherUserID   = "user-other"
)

// TestFernetKey is a fixed key so builders and repositories share one box.
const TestFernetKey = "cw_0x689RpI-jtRR7oE8h_eQsKImvJapLeSbXpwF4e4="

var (
	boxOnce sync.Once
	testBox *secret.Box
	boxErr  error
)

// TestBox returns the box wallet addresses are encrypted with in tests.
func TestBox(t *testing.T) *secret.Box {
	t.Helper()
	boxOnce.Do(func() {
		testBox, boxErr = secret.NewBox(TestFernetKey)
	})
	if boxErr != nil {
		t.Fatalf("Failed to create test box: %v", boxErr)
	}
	return testBox
}

// TestRepositories groups the repositories services are built from.
type TestRepositories struct {
	Assets       *repository.AssetRepository
	Portfolios   *repository.PortfolioRepository
	Transactions *repository.TransactionRepository
	Snapshots    *repository.SnapshotRepository
}

// NewTestRepositories creates every repository on db.
func NewTestRepositories(t *testing.T, db *sql.DB) TestRepositories {
	t.Helper()

	return TestRepositories{
		Assets:       repository.NewAssetRepository(db),
		Portfolios:   repository.NewPortfolioRepository(db, TestBox(t)),
		Transactions: repository.NewTransactionRepository(db),
		Snapshots:    repository.NewSnapshotRepository(db),
	}
}

func NewTestAssetService(t *testing.T, db *sql.DB) *service.AssetService {
	t.Helper()

	return service.NewAssetService(repository.NewAssetRepository(db))
}

func NewTestTransactionService(t *testing.T, db *sql.DB) *service.TransactionService {
	t.Helper()

	repos := NewTestRepositories(t, db)

	return service.NewTransactionService(
		db,
		repos.Transactions,
		repos.Portfolios,
		repos.Assets,
		ledger.NewEngine(),
		service.NewPortfolioLocker(),
		logging.Nop(),
	)
}

// NewTestWalletAdapter builds the real reconciliation adapter on top of client,
// resolving symbols against db.
func NewTestWalletAdapter(t *testing.T, db *sql.DB, client coinstats.Client) *reconcile.Adapter {
	t.Helper()

	symbols := reconcile.NewSymbolCache(NewTestAssetService(t, db), time.Minute, time.Minute)
	return reconcile.NewAdapter(client, symbols, logging.Nop())
}

// NewTestPortfolioService builds a PortfolioService whose wallet calls go to client.
// queue may be nil.
func NewTestPortfolioService(t *testing.T, db *sql.DB, client coinstats.Client, queue service.SyncQueue) *service.PortfolioService {
	t.Helper()

	repos := NewTestRepositories(t, db)

	return service.NewPortfolioService(
		db,
		repos.Portfolios,
		repos.Transactions,
		repos.Snapshots,
		NewTestWalletAdapter(t, db, client),
		queue,
		ledger.NewEngine(),
		service.NewPortfolioLocker(),
		logging.Nop(),
	)
}

// NewTestWalletSyncRunner builds a started runner with millisecond timings.
// It is shut down when the test completes.
func NewTestWalletSyncRunner(t *testing.T, db *sql.DB, client coinstats.Client) *service.WalletSyncRunner {
	t.Helper()

	repos := NewTestRepositories(t, db)
	runner := service.NewWalletSyncRunner(
		db,
		NewTestWalletAdapter(t, db, client),
		repos.Portfolios,
		repos.Transactions,
		repos.Snapshots,
		service.NewPortfolioLocker(),
		service.WalletSyncOptions{
			Workers:          2,
			QueueSize:        8,
			MaxAttempts:      2,
			RetryBackoff:     time.Millisecond,
			SyncDelay:        time.Millisecond,
			PollInterval:     time.Millisecond,
			MaxWait:          50 * time.Millisecond,
			TransactionLimit: 100,
		},
		logging.Nop(),
	)
	runner.Start()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		//nolint:errcheck // Shutdown error is irrelevant once the test is over
		runner.Shutdown(ctx)
	})

	return runner
}

func NewTestSystemService(t *testing.T, db *sql.DB) *service.SystemService {
	t.Helper()

	return service.NewSystemService(db)
}

// MakeID generates a UUID string for use in tests.
//
// Example usage:
//
//	id := testutil.MakeID()
//	// Returns: "550e8400-e29b-41d4-a716-446655440000"
func MakeID() string {
	return uuid.New().String()
}

// MakeSymbol generates an asset symbol for testing.
//
// Example usage:
//
//	symbol := testutil.MakeSymbol("ETH")
//	// Returns: "ETH1A2B"
func MakeSymbol(base string) string {
	if base == "" {
		base = "TST"
	}
	return base + randomAlphanumeric(4)
}

// MakePortfolioName generates a unique portfolio name for testing.
//
// Example usage:
//
//	name := testutil.MakePortfolioName("MyPortfolio")
//	// Returns: "MyPortfolio ABC123"
func MakePortfolioName(base string) string {
	if base == "" {
		base = "Portfolio"
	}
	return base + " " + randomAlphanumeric(6)
}

// MakeAssetName generates a display name for an asset symbol.
func MakeAssetName(symbol string) string {
	return symbol + " Token"
}

// randomAlphanumeric generates a random alphanumeric string of specified length.
func randomAlphanumeric(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)
	for i := range result {
		//nolint:gosec // G404: Using math/rand for test data generation is acceptable
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
