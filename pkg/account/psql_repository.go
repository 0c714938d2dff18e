package account

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/bluecast/streampanel/pkg/utils"
)

// PostgresAccountRepository implements AccountRepository using PostgreSQL
type PostgresAccountRepository struct {
	db DBTX
}

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// NewPostgresAccountRepository creates a new PostgreSQL account repository
func NewPostgresAccountRepository(db DBTX) *PostgresAccountRepository {
	return &PostgresAccountRepository{db: db}
}

const accountColumns = `id, email, password_hash, role, is_active, device_bound_to, points_balance, owner_reseller_id, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	var deviceBoundTo sql.NullString
	var owner uuid.NullUUID
	err := row.Scan(
		&acct.ID,
		&acct.Email,
		&acct.PasswordHash,
		&acct.Role,
		&acct.IsActive,
		&deviceBoundTo,
		&acct.PointsBalance,
		&owner,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	acct.DeviceBoundTo = utils.FromNullString(deviceBoundTo)
	acct.OwnerReseller = owner
	return acct, nil
}

// CreateAccount creates a new account in the database
func (r *PostgresAccountRepository) CreateAccount(ctx context.Context, acct Account) (Account, error) {
	if acct.ID == uuid.Nil {
		acct.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO account (
			id, email, password_hash, role, is_active, device_bound_to, points_balance, owner_reseller_id, created_at, updated_at
		) VALUES (
			$1, lower($2), $3, $4, $5, $6, $7, $8, $9, $9
		) RETURNING ` + accountColumns

	row := r.db.QueryRow(ctx, query,
		acct.ID,
		acct.Email,
		acct.PasswordHash,
		acct.Role,
		acct.IsActive,
		utils.ToNullString(acct.DeviceBoundTo),
		acct.PointsBalance,
		acct.OwnerReseller,
		now,
	)

	created, err := scanAccount(row)
	if err != nil {
		slog.Error("Failed to create account", "err", err, "email", acct.Email)
		return Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	slog.Debug("Account created", "id", created.ID, "role", created.Role)
	return created, nil
}

// GetAccountByID retrieves an account by its id
func (r *PostgresAccountRepository) GetAccountByID(ctx context.Context, id uuid.UUID) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE id = $1`

	acct, err := scanAccount(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, errors.New("account not found")
		}
		slog.Error("Failed to get account", "err", err, "id", id)
		return Account{}, fmt.Errorf("failed to get account: %w", err)
	}
	return acct, nil
}

// GetAccountByEmail retrieves an account by its email
func (r *PostgresAccountRepository) GetAccountByEmail(ctx context.Context, email string) (Account, error) {
	query := `SELECT ` + accountColumns + ` FROM account WHERE email = lower($1)`

	acct, err := scanAccount(r.db.QueryRow(ctx, query, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, errors.New("account not found")
		}
		slog.Error("Failed to get account by email", "err", err)
		return Account{}, fmt.Errorf("failed to get account by email: %w", err)
	}
	return acct, nil
}

// FindAccountsByOwner returns all accounts provisioned by a reseller
func (r *PostgresAccountRepository) FindAccountsByOwner(ctx context.Context, resellerID uuid.UUID) ([]Account, error) {
	query := `
		SELECT ` + accountColumns + `
		FROM account
		WHERE owner_reseller_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.Query(ctx, query, resellerID)
	if err != nil {
		slog.Error("Failed to find accounts by owner", "err", err, "resellerID", resellerID)
		return nil, fmt.Errorf("failed to find accounts by owner: %w", err)
	}
	defer rows.Close()

	var accounts []Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}
	return accounts, nil
}

// BindDeviceIfUnbound writes the binding only when still absent. The
// conditional update closes the bind-on-first-use race: of two concurrent
// first logins exactly one sees RowsAffected == 1.
func (r *PostgresAccountRepository) BindDeviceIfUnbound(ctx context.Context, id uuid.UUID, token string) (bool, error) {
	query := `
		UPDATE account
		SET device_bound_to = $2, updated_at = $3
		WHERE id = $1 AND device_bound_to IS NULL
	`

	result, err := r.db.Exec(ctx, query, id, token, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to bind device", "err", err, "id", id)
		return false, fmt.Errorf("failed to bind device: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// RebindDevice unconditionally overwrites the stored binding
func (r *PostgresAccountRepository) RebindDevice(ctx context.Context, id uuid.UUID, token string) error {
	query := `
		UPDATE account
		SET device_bound_to = $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, token, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to rebind device", "err", err, "id", id)
		return fmt.Errorf("failed to rebind device: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("account not found")
	}
	return nil
}

// GetBalanceForUpdate reads the balance under an exclusive row lock. The lock
// is held until the enclosing transaction commits or rolls back; other
// resellers' rows stay unaffected.
func (r *PostgresAccountRepository) GetBalanceForUpdate(ctx context.Context, id uuid.UUID) (int64, error) {
	query := `SELECT points_balance FROM account WHERE id = $1 FOR UPDATE`

	var balance int64
	err := r.db.QueryRow(ctx, query, id).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.New("account not found")
		}
		slog.Error("Failed to lock balance row", "err", err, "id", id)
		return 0, fmt.Errorf("failed to lock balance row: %w", err)
	}
	return balance, nil
}

// DebitPoints subtracts amount only when the balance covers it
func (r *PostgresAccountRepository) DebitPoints(ctx context.Context, id uuid.UUID, amount int64) (bool, error) {
	query := `
		UPDATE account
		SET points_balance = points_balance - $2, updated_at = $3
		WHERE id = $1 AND points_balance >= $2
	`

	result, err := r.db.Exec(ctx, query, id, amount, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to debit points", "err", err, "id", id, "amount", amount)
		return false, fmt.Errorf("failed to debit points: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// CreditPoints adds amount to the balance
func (r *PostgresAccountRepository) CreditPoints(ctx context.Context, id uuid.UUID, amount int64) error {
	query := `
		UPDATE account
		SET points_balance = points_balance + $2, updated_at = $3
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, id, amount, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to credit points", "err", err, "id", id, "amount", amount)
		return fmt.Errorf("failed to credit points: %w", err)
	}
	if result.RowsAffected() == 0 {
		return errors.New("account not found")
	}
	return nil
}

// WithTx returns a new repository with the given transaction
func (r *PostgresAccountRepository) WithTx(tx interface{}) AccountRepository {
	if tx == nil {
		return r
	}

	pgxTx, ok := tx.(pgx.Tx)
	if !ok {
		slog.Warn("Unsupported transaction type", "type", reflect.TypeOf(tx))
		return r
	}

	return NewPostgresAccountRepository(pgxTx)
}
