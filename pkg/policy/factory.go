package policy

import (
	"fmt"

	"github.com/bluecast/streampanel/pkg/account"
)

// RepositoryConfig contains configuration for creating a policy repository
type RepositoryConfig struct {
	DB account.DBTX
}

// NewPolicyRepository creates a new policy repository based on the persistence type
func NewPolicyRepository(persistenceType string, config RepositoryConfig) (PolicyRepository, error) {
	switch persistenceType {
	case "postgres", "postgresql":
		if config.DB == nil {
			return nil, fmt.Errorf("db required for postgres repository")
		}
		return NewPostgresPolicyRepository(config.DB), nil
	case "inmem", "memory":
		return NewInMemPolicyRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported persistence type: %s (supported: postgres, inmem)", persistenceType)
	}
}
