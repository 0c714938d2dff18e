package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemAccountRepository implements AccountRepository using an in-memory map
type InMemAccountRepository struct {
	accounts map[uuid.UUID]Account
	byEmail  map[string]uuid.UUID
	mu       sync.Mutex
}

// NewInMemAccountRepository creates a new in-memory account repository
func NewInMemAccountRepository() *InMemAccountRepository {
	return &InMemAccountRepository{
		accounts: make(map[uuid.UUID]Account),
		byEmail:  make(map[string]uuid.UUID),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateAccount creates a new account in memory
func (r *InMemAccountRepository) CreateAccount(ctx context.Context, acct Account) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	email := normalizeEmail(acct.Email)
	if _, exists := r.byEmail[email]; exists {
		return Account{}, errors.New("account already exists")
	}

	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	now := time.Now().UTC()
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = now
	}
	acct.UpdatedAt = now
	acct.Email = email

	r.accounts[acct.ID] = acct
	r.byEmail[email] = acct.ID
	slog.Debug("Account created", "id", acct.ID, "role", acct.Role)
	return acct, nil
}

// GetAccountByID retrieves an account by its id
func (r *InMemAccountRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return Account{}, errors.New("account not found")
	}
	return acct, nil
}

// GetAccountByEmail retrieves an account by its email
func (r *InMemAccountRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, exists := r.byEmail[normalizeEmail(email)]
	if !exists {
		return Account{}, errors.New("account not found")
	}
	return r.accounts[id], nil
}

// FindAccountsByOwner returns all accounts provisioned by a reseller
func (r *InMemAccountRepository) FindAccountsByOwner(ctx context.Context, resellerID uuid.UUID) ([]Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	accounts := make([]Account, 0)
	for _, acct := range r.accounts {
		if acct.OwnerReseller.Valid && acct.OwnerReseller.UUID == resellerID {
			accounts = append(accounts, acct)
		}
	}
	return accounts, nil
}

// BindDeviceIfUnbound writes the binding only when still absent
func (r *InMemAccountRepository) BindDeviceIfUnbound(ctx context.Context, id uuid.UUID, token string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return false, errors.New("account not found")
	}
	if acct.DeviceBoundTo != "" {
		return false, nil
	}
	acct.DeviceBoundTo = token
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	slog.Debug("Device bound on first use", "id", id)
	return true, nil
}

// RebindDevice unconditionally overwrites the stored binding
func (r *InMemAccountRepository) RebindDevice(ctx context.Context, id uuid.UUID, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return errors.New("account not found")
	}
	acct.DeviceBoundTo = token
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	slog.Debug("Device rebound", "id", id)
	return nil
}

// GetBalanceForUpdate reads the balance. Callers serialize balance mutations
// per reseller via ledger.InMemTransactor, so no row lock is needed here.
func (r *InMemAccountRepository) GetBalanceForUpdate(ctx context.Context, id uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return 0, errors.New("account not found")
	}
	return acct.PointsBalance, nil
}

// DebitPoints subtracts amount only when the balance covers it
func (r *InMemAccountRepository) DebitPoints(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return false, errors.New("account not found")
	}
	if acct.PointsBalance < amount {
		return false, nil
	}
	acct.PointsBalance -= amount
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return true, nil
}

// CreditPoints adds amount to the balance
func (r *InMemAccountRepository) CreditPoints(ctx context.Context, id uuid.UUID, amount int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	acct, exists := r.accounts[id]
	if !exists {
		return errors.New("account not found")
	}
	acct.PointsBalance += amount
	acct.UpdatedAt = time.Now().UTC()
	r.accounts[id] = acct
	return nil
}

// WithTx returns the repository itself since the in-memory implementation
// doesn't support transactions
func (r *InMemAccountRepository) WithTx(tx interface{}) AccountRepository {
	return r
}
