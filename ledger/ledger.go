// Package ledger owns every balance mutation. Game code never writes a
// balance; it asks the ledger to apply a delta, and the ledger serializes
// per-user access on top of the store's atomic conditional update.
package ledger

import (
	"sync"
	"time"

	"github.com/winzone/casino-server/logger"
	"github.com/winzone/casino-server/models"
	"github.com/winzone/casino-server/persistence"
)

var ErrInsufficientFunds = persistence.ErrInsufficientFunds

// Store is the slice of the persistence layer the ledger needs.
type Store interface {
	GetUser(userID int64) (*models.User, error)
	AdjustBalance(userID int64, delta int64) (int64, error)
	SaveLedgerEntry(entry *models.LedgerEntry) error
}

// Notifier pushes balance updates to the user's live sessions.
type Notifier interface {
	BalanceChanged(userID int64, balance int64)
}

type Ledger struct {
	store    Store
	notifier Notifier
	mu       sync.Mutex
	locks    map[int64]*sync.Mutex
}

func New(store Store, notifier Notifier) *Ledger {
	return &Ledger{
		store:    store,
		notifier: notifier,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// userLock returns the mutex serializing all deltas for one user. Locks
// are never evicted; the map is bounded by the user population.
func (l *Ledger) userLock(userID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// Apply adds delta (negative for a debit) to the user's balance and
// returns the new balance. An overdraft fails with ErrInsufficientFunds
// and changes nothing. Every applied delta is recorded with its reason
// and pushed to the user's sessions.
func (l *Ledger) Apply(userID int64, delta int64, reason string) (int64, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	balance, err := l.store.AdjustBalance(userID, delta)
	if err != nil {
		return 0, err
	}

	if err := l.store.SaveLedgerEntry(&models.LedgerEntry{
		UserID:    userID,
		Delta:     delta,
		Balance:   balance,
		Reason:    reason,
		CreatedAt: time.Now(),
	}); err != nil {
		// The balance change is already durable; the entry is audit trail.
		logger.Log.Errorf("Failed to record ledger entry for user %d (%s): %v", userID, reason, err)
	}

	if l.notifier != nil {
		l.notifier.BalanceChanged(userID, balance)
	}

	return balance, nil
}

// Balance reads the current balance without mutating it.
func (l *Ledger) Balance(userID int64) (int64, error) {
	user, err := l.store.GetUser(userID)
	if err != nil {
		return 0, err
	}
	return user.Balance, nil
}
