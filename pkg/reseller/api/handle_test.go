package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/ledger"
	"github.com/bluecast/streampanel/pkg/login"
	"github.com/bluecast/streampanel/pkg/policy"
	"github.com/bluecast/streampanel/pkg/reseller"
	"github.com/bluecast/streampanel/pkg/tokengenerator"
)

const testJwtSecret = "test-jwt-secret"

func newTestRouter(t *testing.T) (chi.Router, account.AccountRepository, tokengenerator.TokenGenerator) {
	t.Helper()
	accounts := account.NewInMemAccountRepository()
	ledgerRepo := ledger.NewInMemLedgerRepository()
	policies := policy.NewInMemPolicyRepository()
	err := policies.UpdatePolicy(context.Background(), policy.AdminPolicy{PointsPerUserCost: 2})
	require.NoError(t, err)

	provisioning := reseller.NewProvisioningService(accounts, ledgerRepo, policies, ledger.NewInMemTransactor())
	handle := NewHandle(WithProvisioningService(provisioning))

	hmacAuth := jwtauth.New("HS256", []byte(testJwtSecret), nil)
	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(jwtauth.Verifier(hmacAuth))
		r.Use(jwtauth.Authenticator(hmacAuth))
		handle.RegisterRoutes(r)
	})

	tokens := tokengenerator.NewJwtTokenGenerator(testJwtSecret, "streampanel", "streampanel")
	return r, accounts, tokens
}

func seedAccount(t *testing.T, accounts account.AccountRepository, email string, role account.Role, balance int64) account.Account {
	t.Helper()
	hash, err := login.HashPassword("pwd-123")
	require.NoError(t, err)
	acct, err := accounts.CreateAccount(context.Background(), account.Account{
		Email:         email,
		PasswordHash:  hash,
		Role:          role,
		IsActive:      true,
		PointsBalance: balance,
	})
	require.NoError(t, err)
	return acct
}

func doRequest(t *testing.T, r chi.Router, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func bearerFor(t *testing.T, tokens tokengenerator.TokenGenerator, acct account.Account) string {
	t.Helper()
	token, _, err := tokens.GenerateToken(acct)
	require.NoError(t, err)
	return token
}

func TestCreateUser_Success(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	res := seedAccount(t, accounts, "reseller@example.com", account.RoleReseller, 10)
	token := bearerFor(t, tokens, res)

	rec := doRequest(t, r, http.MethodPost, "/users", token, CreateUserRequest{Email: "child@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp CreateUserResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "child@example.com", resp.Account.Email)
	assert.Equal(t, int64(2), resp.PointsCost)

	after, err := accounts.GetAccountByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), after.PointsBalance)
}

func TestCreateUser_InsufficientBalance(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	res := seedAccount(t, accounts, "reseller@example.com", account.RoleReseller, 1)
	token := bearerFor(t, tokens, res)

	rec := doRequest(t, r, http.MethodPost, "/users", token, CreateUserRequest{Email: "child@example.com"})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Error, "Insufficient balance")
}

func TestCreateUser_RequiresBearerToken(t *testing.T) {
	r, _, _ := newTestRouter(t)

	rec := doRequest(t, r, http.MethodPost, "/users", "", CreateUserRequest{Email: "child@example.com"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateUser_NonResellerForbidden(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	user := seedAccount(t, accounts, "user@example.com", account.RoleUser, 100)
	token := bearerFor(t, tokens, user)

	rec := doRequest(t, r, http.MethodPost, "/users", token, CreateUserRequest{Email: "child@example.com"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestBuyPoints_Success(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	res := seedAccount(t, accounts, "reseller@example.com", account.RoleReseller, 0)
	token := bearerFor(t, tokens, res)

	rec := doRequest(t, r, http.MethodPost, "/buy-points", token, BuyPointsRequest{AmountCents: 4999, Points: 500})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp BuyPointsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, int64(500), resp.Points)

	after, err := accounts.GetAccountByID(context.Background(), res.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), after.PointsBalance)
}

func TestBuyPoints_InvalidPoints(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	res := seedAccount(t, accounts, "reseller@example.com", account.RoleReseller, 0)
	token := bearerFor(t, tokens, res)

	rec := doRequest(t, r, http.MethodPost, "/buy-points", token, BuyPointsRequest{AmountCents: 100, Points: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFindUsersAndTransactions(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	res := seedAccount(t, accounts, "reseller@example.com", account.RoleReseller, 10)
	token := bearerFor(t, tokens, res)

	rec := doRequest(t, r, http.MethodPost, "/users", token, CreateUserRequest{Email: "child@example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/users", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var users []AccountSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &users))
	require.Len(t, users, 1)
	assert.Equal(t, "child@example.com", users[0].Email)

	rec = doRequest(t, r, http.MethodGet, "/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var txns []TransactionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	require.Len(t, txns, 1)
	assert.Equal(t, ledger.KindAllocation, txns[0].Kind)
	assert.Equal(t, int64(2), txns[0].PointsAmount)
	assert.Nil(t, txns[0].AmountCents)
}

func TestFindTransactions_WireFormat(t *testing.T) {
	r, accounts, tokens := newTestRouter(t)
	res := seedAccount(t, accounts, "reseller@example.com", account.RoleReseller, 0)
	token := bearerFor(t, tokens, res)

	rec := doRequest(t, r, http.MethodPost, "/buy-points", token, BuyPointsRequest{AmountCents: 4999, Points: 500})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, r, http.MethodGet, "/transactions", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Monetary amount serializes as a plain number, no wrapper fields
	assert.Contains(t, rec.Body.String(), `"amountCents":4999`)
	assert.NotContains(t, rec.Body.String(), `"Valid"`)
	assert.NotContains(t, rec.Body.String(), `"Int64"`)

	var txns []TransactionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &txns))
	require.Len(t, txns, 1)
	require.NotNil(t, txns[0].AmountCents)
	assert.Equal(t, int64(4999), *txns[0].AmountCents)
}
