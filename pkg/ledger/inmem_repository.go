package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemLedgerRepository implements LedgerRepository using an in-memory slice
type InMemLedgerRepository struct {
	transactions []Transaction
	mu           sync.Mutex
}

// NewInMemLedgerRepository creates a new in-memory ledger repository
func NewInMemLedgerRepository() *InMemLedgerRepository {
	return &InMemLedgerRepository{}
}

// AppendTransaction appends a write-once row
func (r *InMemLedgerRepository) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}
	r.transactions = append(r.transactions, txn)
	return txn, nil
}

// FindTransactionsByReseller returns the reseller's rows, newest first
func (r *InMemLedgerRepository) FindTransactionsByReseller(ctx context.Context, resellerID uuid.UUID) ([]Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var txns []Transaction
	for _, txn := range r.transactions {
		if txn.ResellerAccountID == resellerID {
			txns = append(txns, txn)
		}
	}
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].CreatedAt.After(txns[j].CreatedAt)
	})
	return txns, nil
}

// WithTx returns the repository itself since the in-memory implementation
// doesn't support transactions
func (r *InMemLedgerRepository) WithTx(tx interface{}) LedgerRepository {
	return r
}

// InMemTransactor serializes balance mutations with an index-addressed mutex
// per reseller. No snapshot rollback: callers order their steps so nothing
// can fail after the first mutation (see reseller.ProvisioningService).
type InMemTransactor struct {
	locks map[uuid.UUID]*sync.Mutex
	mu    sync.Mutex
}

// NewInMemTransactor creates a new in-memory transactor
func NewInMemTransactor() *InMemTransactor {
	return &InMemTransactor{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

func (t *InMemTransactor) lockFor(resellerID uuid.UUID) *sync.Mutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, exists := t.locks[resellerID]
	if !exists {
		lock = &sync.Mutex{}
		t.locks[resellerID] = lock
	}
	return lock
}

// WithinBalanceLock runs fn while holding the reseller's mutex
func (t *InMemTransactor) WithinBalanceLock(ctx context.Context, resellerID uuid.UUID, fn func(ctx context.Context, tx interface{}) error) error {
	lock := t.lockFor(resellerID)
	lock.Lock()
	defer lock.Unlock()

	return fn(ctx, nil)
}
