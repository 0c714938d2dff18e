package ledger

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryConfig contains configuration for creating a ledger repository
type RepositoryConfig struct {
	// DB is required for PostgreSQL repositories (DBTX interface)
	DB DBTX
}

// NewLedgerRepository creates a new ledger repository based on the persistence type
func NewLedgerRepository(persistenceType string, config RepositoryConfig) (LedgerRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresLedgerRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemLedgerRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}

// NewTransactor creates a transactor matching the persistence type. The pool
// is only required for postgres.
func NewTransactor(persistenceType string, pool *pgxpool.Pool) (Transactor, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if pool == nil {
			return nil, fmt.Errorf("pool required for postgres transactor")
		}
		return NewPgxTransactor(pool), nil
	case "inmem", "memory":
		return NewInMemTransactor(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
