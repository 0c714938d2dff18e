package reseller

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"

	"github.com/google/uuid"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/errors"
	"github.com/bluecast/streampanel/pkg/ledger"
	"github.com/bluecast/streampanel/pkg/login"
	"github.com/bluecast/streampanel/pkg/policy"
	"github.com/bluecast/streampanel/pkg/utils"
)

// ProvisioningService coordinates reseller balance mutations. Every debit or
// credit and its ledger row happen inside the transactor's critical section,
// so the balance and the log can never disagree.
type ProvisioningService struct {
	accounts account.AccountRepository
	ledger   ledger.LedgerRepository
	policies policy.PolicyRepository
	tx       ledger.Transactor
}

// NewProvisioningService creates a new provisioning service
func NewProvisioningService(accounts account.AccountRepository, ledgerRepo ledger.LedgerRepository, policies policy.PolicyRepository, tx ledger.Transactor) *ProvisioningService {
	return &ProvisioningService{
		accounts: accounts,
		ledger:   ledgerRepo,
		policies: policies,
		tx:       tx,
	}
}

// ProvisionResult reports a successful sub-account creation
type ProvisionResult struct {
	Account account.Account
	Cost    int64
}

func (s *ProvisioningService) requireReseller(ctx context.Context, resellerID uuid.UUID) (account.Account, error) {
	reseller, err := s.accounts.GetAccountByID(ctx, resellerID)
	if err != nil {
		return account.Account{}, errors.Wrap(err, errors.ErrCodeNotFound, "Reseller not found")
	}
	if reseller.Role != account.RoleReseller {
		return account.Account{}, errors.New(errors.ErrCodeForbidden, "Account is not a reseller")
	}
	if !reseller.IsActive {
		return account.Account{}, errors.New(errors.ErrCodeAccountDisabled, "Account disabled")
	}
	return reseller, nil
}

// ProvisionAccount debits the reseller and creates a sub-account as one
// atomic unit. Under concurrent calls against the same reseller the balance
// check and the debit run serialized, so the balance never goes negative and
// at a balance of exactly one cost only one caller succeeds.
//
// Mutation order inside the lock: balance check, account create, debit,
// ledger append. On the in-memory stores no step after the first mutation can
// fail; on postgres any failure rolls the whole unit back.
func (s *ProvisioningService) ProvisionAccount(ctx context.Context, resellerID uuid.UUID, email, password string) (ProvisionResult, error) {
	if _, err := s.requireReseller(ctx, resellerID); err != nil {
		return ProvisionResult{}, err
	}

	if _, err := mail.ParseAddress(email); err != nil {
		return ProvisionResult{}, errors.New(errors.ErrCodeInvalidInput, "Invalid email address")
	}

	// Duplicate check stays outside the lock: uniqueness is ultimately
	// enforced by the account store, this just gives a clean error early.
	if _, err := s.accounts.GetAccountByEmail(ctx, email); err == nil {
		return ProvisionResult{}, errors.New(errors.ErrCodeAccountExists, "An account with this email already exists")
	}

	if password == "" {
		password = uuid.NewString()
	}
	passwordHash, err := login.HashPassword(password)
	if err != nil {
		return ProvisionResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to hash password")
	}

	pol, err := s.policies.GetPolicy(ctx)
	if err != nil {
		return ProvisionResult{}, errors.Wrap(err, errors.ErrCodeInternal, "failed to read policy")
	}
	cost := pol.PointsPerUserCost

	var created account.Account
	err = s.tx.WithinBalanceLock(ctx, resellerID, func(ctx context.Context, tx interface{}) error {
		accounts := s.accounts.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		balance, err := accounts.GetBalanceForUpdate(ctx, resellerID)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to read balance")
		}
		if balance < cost {
			return errors.Newf(errors.ErrCodeInsufficientBalance,
				"Insufficient balance: have %d, need %d", balance, cost)
		}

		created, err = accounts.CreateAccount(ctx, account.Account{
			Email:         email,
			PasswordHash:  passwordHash,
			Role:          account.RoleUser,
			IsActive:      true,
			OwnerReseller: uuid.NullUUID{UUID: resellerID, Valid: true},
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeProvisioningFailed, "Failed to create account")
		}

		debited, err := accounts.DebitPoints(ctx, resellerID, cost)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeProvisioningFailed, "Failed to debit points")
		}
		if !debited {
			// Unreachable while the lock is held, kept as a guard
			return errors.New(errors.ErrCodeInsufficientBalance, "Insufficient balance")
		}

		// Amounts are stored positive; the kind encodes direction, so the
		// balance reconciles as initial - sum(ALLOCATION) + sum(PURCHASE).
		_, err = ledgerRepo.AppendTransaction(ctx, ledger.Transaction{
			ResellerAccountID: resellerID,
			Kind:              ledger.KindAllocation,
			PointsAmount:      cost,
			Description:       fmt.Sprintf("Provisioned account %s", created.Email),
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeProvisioningFailed, "Failed to record allocation")
		}
		return nil
	})
	if err != nil {
		return ProvisionResult{}, err
	}

	slog.Info("Account provisioned", "resellerID", resellerID, "accountID", created.ID, "cost", cost)
	return ProvisionResult{Account: created, Cost: cost}, nil
}

// CreditPurchase credits points to the reseller and records the PURCHASE row
// as one atomic unit. Called after an external payment event is confirmed.
func (s *ProvisioningService) CreditPurchase(ctx context.Context, resellerID uuid.UUID, amountCents, points int64) (ledger.Transaction, error) {
	if _, err := s.requireReseller(ctx, resellerID); err != nil {
		return ledger.Transaction{}, err
	}

	if points <= 0 {
		return ledger.Transaction{}, errors.New(errors.ErrCodeInvalidInput, "Points must be positive")
	}
	if amountCents < 0 {
		return ledger.Transaction{}, errors.New(errors.ErrCodeInvalidInput, "Amount must not be negative")
	}

	var recorded ledger.Transaction
	err := s.tx.WithinBalanceLock(ctx, resellerID, func(ctx context.Context, tx interface{}) error {
		accounts := s.accounts.WithTx(tx)
		ledgerRepo := s.ledger.WithTx(tx)

		if err := accounts.CreditPoints(ctx, resellerID, points); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to credit points")
		}

		var err error
		recorded, err = ledgerRepo.AppendTransaction(ctx, ledger.Transaction{
			ResellerAccountID: resellerID,
			Kind:              ledger.KindPurchase,
			PointsAmount:      points,
			AmountCents:       utils.ToNullInt64(amountCents, true),
			Description:       fmt.Sprintf("Purchased %d points", points),
		})
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to record purchase")
		}
		return nil
	})
	if err != nil {
		return ledger.Transaction{}, err
	}

	slog.Info("Points purchased", "resellerID", resellerID, "points", points, "amountCents", amountCents)
	return recorded, nil
}

// FindProvisionedAccounts lists the reseller's sub-accounts
func (s *ProvisioningService) FindProvisionedAccounts(ctx context.Context, resellerID uuid.UUID) ([]account.Account, error) {
	if _, err := s.requireReseller(ctx, resellerID); err != nil {
		return nil, err
	}
	return s.accounts.FindAccountsByOwner(ctx, resellerID)
}

// FindTransactions lists the reseller's ledger rows, newest first
func (s *ProvisioningService) FindTransactions(ctx context.Context, resellerID uuid.UUID) ([]ledger.Transaction, error) {
	if _, err := s.requireReseller(ctx, resellerID); err != nil {
		return nil, err
	}
	return s.ledger.FindTransactionsByReseller(ctx, resellerID)
}

// GetBalance reads the reseller's current balance
func (s *ProvisioningService) GetBalance(ctx context.Context, resellerID uuid.UUID) (int64, error) {
	reseller, err := s.requireReseller(ctx, resellerID)
	if err != nil {
		return 0, err
	}
	return reseller.PointsBalance, nil
}
