package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedgerRepository implements LedgerRepository using PostgreSQL
type PostgresLedgerRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresLedgerRepository creates a new PostgreSQL ledger repository
func NewPostgresLedgerRepository(db DBTX) *PostgresLedgerRepository {
	return &PostgresLedgerRepository{db: db}
}

const transactionColumns = `id, reseller_account_id, kind, points_amount, amount_cents, description, created_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var txn Transaction
	err := row.Scan(
		&txn.ID,
		&txn.ResellerAccountID,
		&txn.Kind,
		&txn.PointsAmount,
		&txn.AmountCents,
		&txn.Description,
		&txn.CreatedAt,
	)
	if err != nil {
		return Transaction{}, err
	}
	return txn, nil
}

// AppendTransaction inserts one ledger row. There is no corresponding update
// or delete statement anywhere in this repository.
func (r *PostgresLedgerRepository) AppendTransaction(ctx context.Context, txn Transaction) (Transaction, error) {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}

	query := `
		INSERT INTO ledger_transaction (
			id, reseller_account_id, kind, points_amount, amount_cents, description, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7
		) RETURNING ` + transactionColumns

	row := r.db.QueryRow(ctx, query,
		txn.ID,
		txn.ResellerAccountID,
		txn.Kind,
		txn.PointsAmount,
		txn.AmountCents,
		txn.Description,
		time.Now().UTC(),
	)

	created, err := scanTransaction(row)
	if err != nil {
		slog.Error("Failed to append ledger transaction", "err", err, "resellerID", txn.ResellerAccountID, "kind", txn.Kind)
		return Transaction{}, fmt.Errorf("failed to append ledger transaction: %w", err)
	}
	return created, nil
}

// FindTransactionsByReseller returns the reseller's rows, newest first
func (r *PostgresLedgerRepository) FindTransactionsByReseller(ctx context.Context, resellerID uuid.UUID) ([]Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transaction
		WHERE reseller_account_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, resellerID)
	if err != nil {
		slog.Error("Failed to find ledger transactions", "err", err, "resellerID", resellerID)
		return nil, fmt.Errorf("failed to find ledger transactions: %w", err)
	}
	defer rows.Close()

	var txns []Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger transaction: %w", err)
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over ledger transactions: %w", err)
	}
	return txns, nil
}

// WithTx returns a new repository with the given transaction
func (r *PostgresLedgerRepository) WithTx(tx interface{}) LedgerRepository {
	if tx == nil {
		return r
	}

	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		slog.Warn("Unsupported transaction type", "type", reflect.TypeOf(tx))
		return r
	}

	return NewPostgresLedgerRepository(pgxTx)
}

// PgxTransactor implements Transactor on a pgx connection pool. The critical
// section is a database transaction; the per-reseller scope comes from the
// FOR UPDATE lock taken on the reseller's balance row inside fn.
type PgxTransactor struct {
	pool *pgxpool.Pool
}

// NewPgxTransactor creates a new pgx-backed transactor
func NewPgxTransactor(pool *pgxpool.Pool) *PgxTransactor {
	return &PgxTransactor{pool: pool}
}

// WithinBalanceLock begins a transaction, runs fn with it, and commits only
// if fn succeeds. Any error rolls back every mutation fn made.
func (t *PgxTransactor) WithinBalanceLock(ctx context.Context, resellerID uuid.UUID, fn func(ctx context.Context, tx interface{}) error) error {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		slog.Error("Failed to begin transaction", "err", err, "resellerID", resellerID)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Failed to commit transaction", "err", err, "resellerID", resellerID)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
