package account

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role of an account
type Role string

const (
	RoleUser     Role = "user"
	RoleReseller Role = "reseller"
	RoleAdmin    Role = "admin"
)

// Account is an identity row. PasswordHash and DeviceBoundTo never serialize
// into API responses.
type Account struct {
	ID            uuid.UUID     `json:"id"`
	Email         string        `json:"email"`
	PasswordHash  string        `json:"-"`
	Role          Role          `json:"role"`
	IsActive      bool          `json:"isActive"`
	DeviceBoundTo string        `json:"-"` // opaque binding token, empty when unbound
	PointsBalance int64         `json:"pointsBalance,omitempty"`
	OwnerReseller uuid.NullUUID `json:"-"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// IsBound reports whether the account has a device binding
func (a Account) IsBound() bool {
	return a.DeviceBoundTo != ""
}

// AccountRepository defines the interface for account storage operations
type AccountRepository interface {
	CreateAccount(ctx context.Context, acct Account) (Account, error)
	GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetAccountByEmail(ctx context.Context, email string) (Account, error)
	FindAccountsByOwner(ctx context.Context, resellerID uuid.UUID) ([]Account, error)

	// BindDeviceIfUnbound is an atomic compare-and-set: the binding is written
	// only when the stored binding is still absent. Returns false when another
	// login won the race; the caller must re-read and re-evaluate.
	BindDeviceIfUnbound(ctx context.Context, id uuid.UUID, token string) (bool, error)

	// RebindDevice unconditionally overwrites the stored binding. The prior
	// binding is invalidated with no grace period.
	RebindDevice(ctx context.Context, id uuid.UUID, token string) error

	// GetBalanceForUpdate reads the reseller's balance under an exclusive
	// row-scoped lock held until the owning transaction ends.
	GetBalanceForUpdate(ctx context.Context, id uuid.UUID) (int64, error)

	// DebitPoints subtracts amount from the balance only when the balance
	// covers it; returns false otherwise. The balance never goes negative.
	DebitPoints(ctx context.Context, id uuid.UUID, amount int64) (bool, error)

	CreditPoints(ctx context.Context, id uuid.UUID, amount int64) error

	// Transaction support
	WithTx(tx interface{}) AccountRepository
}
