package account

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestAccount(t *testing.T, repo AccountRepository, email string, balance int64) Account {
	t.Helper()
	acct, err := repo.CreateAccount(context.Background(), Account{
		Email:         email,
		PasswordHash:  "irrelevant",
		Role:          RoleUser,
		IsActive:      true,
		PointsBalance: balance,
	})
	require.NoError(t, err)
	return acct
}

func TestCreateAccount_NormalizesEmailAndRejectsDuplicates(t *testing.T) {
	repo := NewInMemAccountRepository()
	ctx := context.Background()

	acct := createTestAccount(t, repo, "User@Example.COM", 0)
	assert.Equal(t, "user@example.com", acct.Email)

	_, err := repo.CreateAccount(ctx, Account{Email: "user@example.com"})
	require.Error(t, err)

	found, err := repo.GetAccountByEmail(ctx, "USER@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, found.ID)
}

func TestBindDeviceIfUnbound_FirstWriteWins(t *testing.T) {
	repo := NewInMemAccountRepository()
	ctx := context.Background()
	acct := createTestAccount(t, repo, "bind@example.com", 0)

	bound, err := repo.BindDeviceIfUnbound(ctx, acct.ID, "token-a")
	require.NoError(t, err)
	assert.True(t, bound)

	bound, err = repo.BindDeviceIfUnbound(ctx, acct.ID, "token-b")
	require.NoError(t, err)
	assert.False(t, bound)

	stored, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-a", stored.DeviceBoundTo)
}

func TestRebindDevice_Overwrites(t *testing.T) {
	repo := NewInMemAccountRepository()
	ctx := context.Background()
	acct := createTestAccount(t, repo, "rebind@example.com", 0)

	_, err := repo.BindDeviceIfUnbound(ctx, acct.ID, "token-a")
	require.NoError(t, err)

	require.NoError(t, repo.RebindDevice(ctx, acct.ID, "token-b"))

	stored, err := repo.GetAccountByID(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, "token-b", stored.DeviceBoundTo)
}

func TestDebitPoints_NeverGoesNegative(t *testing.T) {
	repo := NewInMemAccountRepository()
	ctx := context.Background()
	acct := createTestAccount(t, repo, "debit@example.com", 10)

	ok, err := repo.DebitPoints(ctx, acct.ID, 7)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.DebitPoints(ctx, acct.ID, 4)
	require.NoError(t, err)
	assert.False(t, ok)

	balance, err := repo.GetBalanceForUpdate(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), balance)
}

func TestCreditPoints_AddsToBalance(t *testing.T) {
	repo := NewInMemAccountRepository()
	ctx := context.Background()
	acct := createTestAccount(t, repo, "credit@example.com", 5)

	require.NoError(t, repo.CreditPoints(ctx, acct.ID, 20))

	balance, err := repo.GetBalanceForUpdate(ctx, acct.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(25), balance)
}

func TestFindAccountsByOwner(t *testing.T) {
	repo := NewInMemAccountRepository()
	ctx := context.Background()
	reseller := createTestAccount(t, repo, "owner@example.com", 0)

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := repo.CreateAccount(ctx, Account{
			Email:         email,
			Role:          RoleUser,
			OwnerReseller: uuid.NullUUID{UUID: reseller.ID, Valid: true},
		})
		require.NoError(t, err)
	}
	createTestAccount(t, repo, "unrelated@example.com", 0)

	owned, err := repo.FindAccountsByOwner(ctx, reseller.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}
