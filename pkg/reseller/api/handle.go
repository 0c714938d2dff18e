package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/jinzhu/copier"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/errors"
	"github.com/bluecast/streampanel/pkg/ledger"
	"github.com/bluecast/streampanel/pkg/reseller"
)

// Handle exposes the reseller panel endpoints. All routes require a bearer
// token carrying the reseller role; the JWT itself is verified by the
// jwtauth middleware mounted ahead of these handlers.
type Handle struct {
	provisioning *reseller.ProvisioningService
}

type Option func(*Handle)

func NewHandle(opts ...Option) Handle {
	h := Handle{}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func WithProvisioningService(ps *reseller.ProvisioningService) Option {
	return func(h *Handle) {
		h.provisioning = ps
	}
}

// CreateUserRequest is the request body for POST /reseller/users. Password is
// optional; a random one is generated when absent.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password,omitempty"`
}

// BuyPointsRequest is the request body for POST /reseller/buy-points
type BuyPointsRequest struct {
	AmountCents int64 `json:"amountCents"`
	Points      int64 `json:"points"`
}

// AccountSummary is the public projection of a provisioned account
type AccountSummary struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

// CreateUserResponse is returned on a successful provisioning
type CreateUserResponse struct {
	Success    bool           `json:"success"`
	Account    AccountSummary `json:"account"`
	PointsCost int64          `json:"pointsCost"`
}

// BuyPointsResponse is returned on a successful purchase
type BuyPointsResponse struct {
	Success bool      `json:"success"`
	Points  int64     `json:"points"`
	TxnID   uuid.UUID `json:"transactionId"`
}

// TransactionSummary is the public projection of a ledger row. AmountCents
// is absent for kinds with no monetary component.
type TransactionSummary struct {
	ID           uuid.UUID              `json:"id"`
	Kind         ledger.TransactionKind `json:"kind"`
	PointsAmount int64                  `json:"pointsAmount"`
	AmountCents  *int64                 `json:"amountCents,omitempty"`
	Description  string                 `json:"description"`
	CreatedAt    time.Time              `json:"createdAt"`
}

func toTransactionSummary(txn ledger.Transaction) TransactionSummary {
	summary := TransactionSummary{
		ID:           txn.ID,
		Kind:         txn.Kind,
		PointsAmount: txn.PointsAmount,
		Description:  txn.Description,
		CreatedAt:    txn.CreatedAt,
	}
	if txn.AmountCents.Valid {
		cents := txn.AmountCents.Int64
		summary.AmountCents = &cents
	}
	return summary
}

// ErrorResponse is the error body shared by all reseller endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Reseller request failed", "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: errors.GetMessage(err)})
}

// resellerFromContext reads the verified token claims set by the jwtauth
// middleware and enforces the reseller role.
func resellerFromContext(r *http.Request) (uuid.UUID, error) {
	_, claims, err := jwtauth.FromContext(r.Context())
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.ErrCodeTokenInvalid, "Invalid token")
	}

	role, _ := claims["role"].(string)
	if account.Role(role) != account.RoleReseller {
		return uuid.Nil, errors.New(errors.ErrCodeForbidden, "Reseller role required")
	}

	accountID, _ := claims["account_id"].(string)
	id, err := uuid.Parse(accountID)
	if err != nil {
		return uuid.Nil, errors.New(errors.ErrCodeTokenInvalid, "Invalid token")
	}
	return id, nil
}

// CreateUser provisions a sub-account against the reseller's balance
// (POST /reseller/users)
func (h Handle) CreateUser(w http.ResponseWriter, r *http.Request) {
	resellerID, err := resellerFromContext(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var data CreateUserRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "Unable to parse request body"))
		return
	}

	data.Email = strings.TrimSpace(data.Email)
	if data.Email == "" {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "email is required"))
		return
	}

	result, err := h.provisioning.ProvisionAccount(r.Context(), resellerID, data.Email, data.Password)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var summary AccountSummary
	if err := copier.Copy(&summary, &result.Account); err != nil {
		renderError(w, r, errors.Wrap(err, errors.ErrCodeInternal, "failed to prepare response"))
		return
	}

	render.JSON(w, r, CreateUserResponse{
		Success:    true,
		Account:    summary,
		PointsCost: result.Cost,
	})
}

// BuyPoints credits purchased points to the reseller's balance
// (POST /reseller/buy-points)
func (h Handle) BuyPoints(w http.ResponseWriter, r *http.Request) {
	resellerID, err := resellerFromContext(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	var data BuyPointsRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "Unable to parse request body"))
		return
	}

	txn, err := h.provisioning.CreditPurchase(r.Context(), resellerID, data.AmountCents, data.Points)
	if err != nil {
		renderError(w, r, err)
		return
	}

	render.JSON(w, r, BuyPointsResponse{
		Success: true,
		Points:  txn.PointsAmount,
		TxnID:   txn.ID,
	})
}

// FindUsers lists the reseller's provisioned accounts
// (GET /reseller/users)
func (h Handle) FindUsers(w http.ResponseWriter, r *http.Request) {
	resellerID, err := resellerFromContext(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	accounts, err := h.provisioning.FindProvisionedAccounts(r.Context(), resellerID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	summaries := make([]AccountSummary, 0, len(accounts))
	for _, acct := range accounts {
		var summary AccountSummary
		if err := copier.Copy(&summary, &acct); err != nil {
			renderError(w, r, errors.Wrap(err, errors.ErrCodeInternal, "failed to prepare response"))
			return
		}
		summaries = append(summaries, summary)
	}

	render.JSON(w, r, summaries)
}

// FindTransactions lists the reseller's ledger rows, newest first
// (GET /reseller/transactions)
func (h Handle) FindTransactions(w http.ResponseWriter, r *http.Request) {
	resellerID, err := resellerFromContext(r)
	if err != nil {
		renderError(w, r, err)
		return
	}

	txns, err := h.provisioning.FindTransactions(r.Context(), resellerID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	summaries := make([]TransactionSummary, 0, len(txns))
	for _, txn := range txns {
		summaries = append(summaries, toTransactionSummary(txn))
	}

	render.JSON(w, r, summaries)
}

// RegisterRoutes mounts the reseller endpoints on the given router
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/users", h.CreateUser)
	r.Get("/users", h.FindUsers)
	r.Post("/buy-points", h.BuyPoints)
	r.Get("/transactions", h.FindTransactions)
}
