package login

import (
	"context"
	"log/slog"
	"time"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/devicebind"
	"github.com/bluecast/streampanel/pkg/errors"
	"github.com/bluecast/streampanel/pkg/notification"
	"github.com/bluecast/streampanel/pkg/tokengenerator"
)

// LoginService composes the credential verifier, the device binding
// authority and the token issuer into the login and verify-device flows.
type LoginService struct {
	accounts account.AccountRepository
	binding  *devicebind.Service
	tokens   tokengenerator.TokenGenerator
	notifier notification.DeviceChallengeNotifier
}

// Option is a function that configures a LoginService
type Option func(*LoginService)

// WithNotifier sets the notifier used when a login is challenged
func WithNotifier(n notification.DeviceChallengeNotifier) Option {
	return func(s *LoginService) {
		s.notifier = n
	}
}

// NewLoginService creates a new login service
func NewLoginService(accounts account.AccountRepository, binding *devicebind.Service, tokens tokengenerator.TokenGenerator, opts ...Option) *LoginService {
	s := &LoginService{
		accounts: accounts,
		binding:  binding,
		tokens:   tokens,
		notifier: notification.NewNoopNotifier(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Result of a login or verify-device call
type Result struct {
	// RequiresVerification is set instead of a token when the device did not
	// match and multi-device is off. Soft signal, not an error.
	RequiresVerification bool

	Token     string
	ExpiresAt time.Time
	Account   account.Account
	State     devicebind.BindingState
}

// VerifyCredentials checks a presented secret against the stored hash.
// Unknown email and wrong password are indistinguishable to the caller.
// Disabled status is checked only after a successful credential match so it
// is not leaked to unauthenticated guessers.
func (s *LoginService) VerifyCredentials(ctx context.Context, email, password string) (account.Account, error) {
	acct, err := s.accounts.GetAccountByEmail(ctx, email)
	if err != nil {
		EqualizeTiming(password)
		return account.Account{}, errors.New(errors.ErrCodeInvalidCredentials, "Invalid credentials")
	}

	if !CheckPasswordHash(password, acct.PasswordHash) {
		return account.Account{}, errors.New(errors.ErrCodeInvalidCredentials, "Invalid credentials")
	}

	if !acct.IsActive {
		return account.Account{}, errors.New(errors.ErrCodeAccountDisabled, "Account disabled")
	}

	return acct, nil
}

// Login runs credential verification, then the device binding state machine,
// then token issuance. A challenged login returns RequiresVerification with
// no token and leaves the stored binding untouched.
func (s *LoginService) Login(ctx context.Context, email, password, deviceID string) (Result, error) {
	acct, err := s.VerifyCredentials(ctx, email, password)
	if err != nil {
		return Result{}, err
	}

	state, err := s.binding.Evaluate(ctx, acct, deviceID)
	if err != nil {
		slog.Error("Binding evaluation failed", "err", err, "accountID", acct.ID)
		return Result{}, errors.Wrap(err, errors.ErrCodeInternal, "login failed")
	}

	if state == devicebind.StateMismatchPolicyClosed {
		if err := s.notifier.SendDeviceChallenge(ctx, acct.Email); err != nil {
			// Delivery failure must not block the challenge itself
			slog.Error("Failed to send device challenge notice", "err", err)
		}
		return Result{RequiresVerification: true, Account: acct, State: state}, nil
	}

	token, expiresAt, err := s.tokens.GenerateToken(acct)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to issue token")
	}

	slog.Info("Login succeeded", "accountID", acct.ID, "state", state)
	return Result{Token: token, ExpiresAt: expiresAt, Account: acct, State: state}, nil
}

// VerifyDevice validates the one-time code, rebinds the account to the
// presenting device and issues a token.
func (s *LoginService) VerifyDevice(ctx context.Context, email, code, deviceID string) (Result, error) {
	acct, err := s.binding.VerifyDevice(ctx, email, code, deviceID)
	if err != nil {
		return Result{}, err
	}

	token, expiresAt, err := s.tokens.GenerateToken(acct)
	if err != nil {
		return Result{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to issue token")
	}

	return Result{Token: token, ExpiresAt: expiresAt, Account: acct, State: devicebind.StateRebound}, nil
}
