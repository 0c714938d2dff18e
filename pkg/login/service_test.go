package login

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/devicebind"
	"github.com/bluecast/streampanel/pkg/errors"
	"github.com/bluecast/streampanel/pkg/policy"
	"github.com/bluecast/streampanel/pkg/tokengenerator"
)

// recordingNotifier counts challenge notices sent
type recordingNotifier struct {
	mu   sync.Mutex
	sent []string
}

func (n *recordingNotifier) SendDeviceChallenge(ctx context.Context, email string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, email)
	return nil
}

func newTestLoginService(t *testing.T) (*LoginService, account.AccountRepository, *recordingNotifier) {
	t.Helper()
	accounts := account.NewInMemAccountRepository()
	policies := policy.NewInMemPolicyRepository()

	hasher := devicebind.NewHasher("test-hash-secret")
	otp := devicebind.NewStaticOTPValidator("123456")
	binding := devicebind.NewService(accounts, policies, hasher, otp)

	tokens := tokengenerator.NewJwtTokenGenerator("test-jwt-secret", "streampanel", "streampanel")
	notifier := &recordingNotifier{}
	svc := NewLoginService(accounts, binding, tokens, WithNotifier(notifier))
	return svc, accounts, notifier
}

func seedAccount(t *testing.T, accounts account.AccountRepository, email, password string, active bool) account.Account {
	t.Helper()
	hash, err := HashPassword(password)
	require.NoError(t, err)
	acct, err := accounts.CreateAccount(context.Background(), account.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         account.RoleUser,
		IsActive:     active,
	})
	require.NoError(t, err)
	return acct
}

func TestVerifyCredentials_UnknownEmailAndWrongPasswordLookAlike(t *testing.T) {
	svc, accounts, _ := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "known@example.com", "correct-password", true)

	_, errUnknown := svc.VerifyCredentials(ctx, "unknown@example.com", "whatever")
	_, errWrongPwd := svc.VerifyCredentials(ctx, "known@example.com", "wrong-password")

	require.Error(t, errUnknown)
	require.Error(t, errWrongPwd)
	assert.True(t, errors.IsCode(errUnknown, errors.ErrCodeInvalidCredentials))
	assert.True(t, errors.IsCode(errWrongPwd, errors.ErrCodeInvalidCredentials))
	assert.Equal(t, errors.GetMessage(errUnknown), errors.GetMessage(errWrongPwd))
}

func TestVerifyCredentials_DisabledOnlyAfterMatch(t *testing.T) {
	svc, accounts, _ := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "disabled@example.com", "correct-password", false)

	// Wrong password on a disabled account must NOT reveal disabled status
	_, err := svc.VerifyCredentials(ctx, "disabled@example.com", "wrong-password")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidCredentials))

	// Correct password does
	_, err = svc.VerifyCredentials(ctx, "disabled@example.com", "correct-password")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccountDisabled))
}

func TestLogin_FirstDeviceGetsToken(t *testing.T) {
	svc, accounts, _ := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "user@example.com", "pwd-123", true)

	result, err := svc.Login(ctx, "user@example.com", "pwd-123", "device-a")
	require.NoError(t, err)
	assert.False(t, result.RequiresVerification)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, devicebind.StateMatchedBound, result.State)
}

func TestLogin_NewDeviceChallengedWithoutToken(t *testing.T) {
	svc, accounts, notifier := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "user@example.com", "pwd-123", true)

	_, err := svc.Login(ctx, "user@example.com", "pwd-123", "device-a")
	require.NoError(t, err)

	result, err := svc.Login(ctx, "user@example.com", "pwd-123", "device-b")
	require.NoError(t, err)
	assert.True(t, result.RequiresVerification)
	assert.Empty(t, result.Token)
	assert.Equal(t, devicebind.StateMismatchPolicyClosed, result.State)
	assert.Equal(t, []string{"user@example.com"}, notifier.sent)
}

func TestVerifyDevice_IssuesTokenAndRebinds(t *testing.T) {
	svc, accounts, _ := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "user@example.com", "pwd-123", true)

	_, err := svc.Login(ctx, "user@example.com", "pwd-123", "device-a")
	require.NoError(t, err)

	result, err := svc.VerifyDevice(ctx, "user@example.com", "123456", "device-b")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, devicebind.StateRebound, result.State)

	// New device now logs in cleanly; the old one is challenged
	clean, err := svc.Login(ctx, "user@example.com", "pwd-123", "device-b")
	require.NoError(t, err)
	assert.False(t, clean.RequiresVerification)

	challenged, err := svc.Login(ctx, "user@example.com", "pwd-123", "device-a")
	require.NoError(t, err)
	assert.True(t, challenged.RequiresVerification)
}

func TestVerifyDevice_DisabledAccountGetsNoToken(t *testing.T) {
	svc, accounts, _ := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "disabled@example.com", "pwd-123", false)

	result, err := svc.VerifyDevice(ctx, "disabled@example.com", "123456", "device-a")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAccountDisabled))
	assert.Empty(t, result.Token)
}

func TestVerifyDevice_BadCodeRejected(t *testing.T) {
	svc, accounts, _ := newTestLoginService(t)
	ctx := context.Background()
	seedAccount(t, accounts, "user@example.com", "pwd-123", true)

	_, err := svc.VerifyDevice(ctx, "user@example.com", "999999", "device-b")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidVerificationCode))
}

func TestHashPassword_EmptyRejected(t *testing.T) {
	_, err := HashPassword("")
	require.Error(t, err)
}

func TestCheckPasswordHash_RoundTrip(t *testing.T) {
	hash, err := HashPassword("s3cret")
	require.NoError(t, err)

	assert.True(t, CheckPasswordHash("s3cret", hash))
	assert.False(t, CheckPasswordHash("other", hash))
	assert.False(t, CheckPasswordHash("", hash))
}
