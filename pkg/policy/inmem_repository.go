package policy

import (
	"context"
	"sync"
)

// InMemPolicyRepository implements PolicyRepository with a guarded struct
type InMemPolicyRepository struct {
	policy AdminPolicy
	mu     sync.Mutex
}

// NewInMemPolicyRepository creates a new in-memory policy repository seeded
// with the default policy
func NewInMemPolicyRepository() *InMemPolicyRepository {
	return &InMemPolicyRepository{
		policy: DefaultPolicy(),
	}
}

func (r *InMemPolicyRepository) GetPolicy(ctx context.Context) (AdminPolicy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.policy, nil
}

func (r *InMemPolicyRepository) UpdatePolicy(ctx context.Context, policy AdminPolicy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policy = policy
	return nil
}
