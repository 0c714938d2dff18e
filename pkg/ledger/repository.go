package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// TransactionKind classifies a ledger entry
type TransactionKind string

const (
	// KindAllocation records points spent provisioning a sub-account
	KindAllocation TransactionKind = "ALLOCATION"
	// KindPurchase records points bought through an external payment event
	KindPurchase TransactionKind = "PURCHASE"
)

// Transaction is one append-only ledger row. Rows are never updated or
// deleted after creation. PointsAmount is always positive; the kind encodes
// direction, so the balance reconciles as
// initial - sum(ALLOCATION) + sum(PURCHASE).
type Transaction struct {
	ID                uuid.UUID       `json:"id"`
	ResellerAccountID uuid.UUID       `json:"resellerAccountId"`
	Kind              TransactionKind `json:"kind"`
	PointsAmount      int64           `json:"pointsAmount"`
	AmountCents       sql.NullInt64   `json:"amountCents,omitempty"`
	Description       string          `json:"description"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// LedgerRepository defines the interface for ledger storage operations.
// Append-only: there is no update or delete.
type LedgerRepository interface {
	AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error)
	FindTransactionsByReseller(ctx context.Context, resellerID uuid.UUID) ([]Transaction, error)

	// Transaction support
	WithTx(tx interface{}) LedgerRepository
}

// Transactor runs fn inside the critical section guarding one reseller's
// balance. The section is scoped to that reseller only; provisioning for
// different resellers proceeds concurrently. Every mutation fn performs
// through tx-bound repositories commits or rolls back as one unit.
type Transactor interface {
	WithinBalanceLock(ctx context.Context, resellerID uuid.UUID, fn func(ctx context.Context, tx interface{}) error) error
}
