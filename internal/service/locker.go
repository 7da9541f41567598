package service

import "sync"

// PortfolioLocker serializes mutations per portfolio.
// Different portfolios never block each other; idle entries are released.
type PortfolioLocker struct {
	mu    sync.Mutex
	locks map[string]*portfolioLock
}

type portfolioLock struct {
	mu   sync.Mutex
	refs int
}

// NewPortfolioLocker creates an empty PortfolioLocker.
func NewPortfolioLocker() *PortfolioLocker {
	return &PortfolioLocker{locks: make(map[string]*portfolioLock)}
}

// Lock blocks until the caller holds the lock for portfolioID and returns the unlock function.
func (l *PortfolioLocker) Lock(portfolioID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[portfolioID]
	if !ok {
		entry = &portfolioLock{}
		l.locks[portfolioID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, portfolioID)
		}
		l.mu.Unlock()
	}
}

// held reports how many portfolios currently have a holder or waiter.
func (l *PortfolioLocker) held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
