package policy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bluecast/streampanel/pkg/account"
)

// singletonID is the fixed id of the only admin_policy row
const singletonID = 1

// PostgresPolicyRepository implements PolicyRepository using PostgreSQL
type PostgresPolicyRepository struct {
	db account.DBTX
}

// NewPostgresPolicyRepository creates a new PostgreSQL policy repository
func NewPostgresPolicyRepository(db account.DBTX) *PostgresPolicyRepository {
	return &PostgresPolicyRepository{db: db}
}

// GetPolicy reads the singleton row, falling back to the default policy when
// the row has never been written
func (r *PostgresPolicyRepository) GetPolicy(ctx context.Context) (AdminPolicy, error) {
	query := `
		SELECT allow_multi_device, points_per_user_cost
		FROM admin_policy
		WHERE id = $1
	`

	var policy AdminPolicy
	err := r.db.QueryRow(ctx, query, singletonID).Scan(&policy.AllowMultiDevice, &policy.PointsPerUserCost)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			slog.Debug("Admin policy row missing, using defaults")
			return DefaultPolicy(), nil
		}
		slog.Error("Failed to read admin policy", "err", err)
		return AdminPolicy{}, fmt.Errorf("failed to read admin policy: %w", err)
	}
	return policy, nil
}

// UpdatePolicy upserts the singleton row
func (r *PostgresPolicyRepository) UpdatePolicy(ctx context.Context, policy AdminPolicy) error {
	query := `
		INSERT INTO admin_policy (id, allow_multi_device, points_per_user_cost, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET allow_multi_device = EXCLUDED.allow_multi_device,
		    points_per_user_cost = EXCLUDED.points_per_user_cost,
		    updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.Exec(ctx, query, singletonID, policy.AllowMultiDevice, policy.PointsPerUserCost, time.Now().UTC())
	if err != nil {
		slog.Error("Failed to update admin policy", "err", err)
		return fmt.Errorf("failed to update admin policy: %w", err)
	}
	return nil
}
