package policy

import (
	"context"
)

// AdminPolicy is the singleton set of panel-wide knobs read by the binding
// authority and the provisioning coordinator. Mutated only by administrative
// action.
type AdminPolicy struct {
	AllowMultiDevice  bool  `json:"allowMultiDevice"`
	PointsPerUserCost int64 `json:"pointsPerUserCost"`
}

// PolicyRepository defines the interface for policy storage operations
type PolicyRepository interface {
	GetPolicy(ctx context.Context) (AdminPolicy, error)
	UpdatePolicy(ctx context.Context, policy AdminPolicy) error
}

// DefaultPolicy returns the policy applied when the singleton row has never
// been written: single-device enforcement on, one point per provisioned user.
func DefaultPolicy() AdminPolicy {
	return AdminPolicy{
		AllowMultiDevice:  false,
		PointsPerUserCost: 1,
	}
}
