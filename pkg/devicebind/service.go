package devicebind

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/errors"
	"github.com/bluecast/streampanel/pkg/policy"
)

// BindingState is the outcome of evaluating one login attempt against the
// stored device binding
type BindingState string

const (
	// StateMatchedBound: the incoming device matches the stored binding, or
	// the account was unbound and this login bound it
	StateMatchedBound BindingState = "matched_bound"

	// StateMismatchPolicyOpen: the device differs but multi-device is allowed;
	// login proceeds and the original binding is preserved
	StateMismatchPolicyOpen BindingState = "mismatch_policy_open"

	// StateMismatchPolicyClosed: the device differs and multi-device is off;
	// no token is issued and the caller must challenge for verification
	StateMismatchPolicyClosed BindingState = "mismatch_policy_closed"

	// StateRebound: reached only through VerifyDevice; the binding was
	// overwritten with the new device's token
	StateRebound BindingState = "rebound"
)

// Service decides, per login, whether to auto-bind, pass, challenge or rebind
type Service struct {
	accounts account.AccountRepository
	policies policy.PolicyRepository
	hasher   *Hasher
	otp      OTPValidator
}

// NewService creates a new device binding service
func NewService(accounts account.AccountRepository, policies policy.PolicyRepository, hasher *Hasher, otp OTPValidator) *Service {
	return &Service{
		accounts: accounts,
		policies: policies,
		hasher:   hasher,
		otp:      otp,
	}
}

// Hash exposes the keyed device hash for callers that need to compare tokens
func (s *Service) Hash(rawDeviceID string) string {
	return s.hasher.Hash(rawDeviceID)
}

// Evaluate runs the binding state machine for a login attempt.
//
// An unbound account is bound to the incoming device on first use via a
// compare-and-set; the loser of a concurrent first-login race re-reads the
// stored binding and falls through to the match/mismatch rules instead of
// overwriting.
func (s *Service) Evaluate(ctx context.Context, acct account.Account, rawDeviceID string) (BindingState, error) {
	incoming := s.hasher.Hash(rawDeviceID)

	if !acct.IsBound() {
		bound, err := s.accounts.BindDeviceIfUnbound(ctx, acct.ID, incoming)
		if err != nil {
			return "", fmt.Errorf("failed to bind device: %w", err)
		}
		if bound {
			slog.Info("Device bound on first login", "accountID", acct.ID)
			return StateMatchedBound, nil
		}
		// Lost the race: another login bound first. Re-read and compare.
		current, err := s.accounts.GetAccountByID(ctx, acct.ID)
		if err != nil {
			return "", fmt.Errorf("failed to re-read account after bind race: %w", err)
		}
		acct = current
	}

	if acct.DeviceBoundTo == incoming {
		return StateMatchedBound, nil
	}

	pol, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to read admin policy: %w", err)
	}
	if pol.AllowMultiDevice {
		slog.Debug("Device mismatch tolerated by policy", "accountID", acct.ID)
		return StateMismatchPolicyOpen, nil
	}

	slog.Info("Device mismatch, verification required", "accountID", acct.ID)
	return StateMismatchPolicyClosed, nil
}

// VerifyDevice validates a one-time code and, on success, unconditionally
// rebinds the account to the presenting device. The prior binding is
// invalidated with no grace period.
func (s *Service) VerifyDevice(ctx context.Context, email, code, rawDeviceID string) (account.Account, error) {
	valid, err := s.otp.Verify(ctx, email, code)
	if err != nil {
		slog.Error("Code validator failed", "err", err)
		return account.Account{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to validate code")
	}
	if !valid {
		return account.Account{}, errors.New(errors.ErrCodeInvalidVerificationCode, "Invalid verification code")
	}

	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		// Same failure as a bad code so account existence is not leaked here
		return account.Account{}, errors.New(errors.ErrCodeInvalidVerificationCode, "Invalid verification code")
	}
	if !acct.IsActive {
		return account.Account{}, errors.New(errors.ErrCodeAccountDisabled, "Account disabled")
	}

	token := s.hasher.Hash(rawDeviceID)
	if err := s.accounts.RebindDevice(ctx, acct.ID, token); err != nil {
		return account.Account{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to rebind device")
	}
	acct.DeviceBoundTo = token

	slog.Info("Device rebound after verification", "accountID", acct.ID)
	return acct, nil
}
