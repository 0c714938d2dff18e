package loginapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/errors"
	"github.com/bluecast/streampanel/pkg/login"
)

// Handle exposes the login and device verification endpoints
type Handle struct {
	loginService *login.LoginService
}

type Option func(*Handle)

func NewHandle(opts ...Option) Handle {
	h := Handle{}
	for _, opt := range opts {
		opt(&h)
	}
	return h
}

func WithLoginService(ls *login.LoginService) Option {
	return func(h *Handle) {
		h.loginService = ls
	}
}

// LoginRequest is the request body for POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	DeviceID string `json:"deviceId"`
}

// VerifyDeviceRequest is the request body for POST /auth/verify-device
type VerifyDeviceRequest struct {
	Email    string `json:"email"`
	Code     string `json:"code"`
	DeviceID string `json:"deviceId"`
}

// AccountInfo is the public projection of an account in auth responses
type AccountInfo struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// TokenResponse is returned on a successful login or device verification
type TokenResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Account   AccountInfo `json:"account"`
}

// VerificationRequiredResponse signals the device challenge. Returned with
// status 200: a challenged login is a normal outcome, not an error.
type VerificationRequiredResponse struct {
	RequiresVerification bool   `json:"requiresVerification"`
	Message              string `json:"message"`
}

// ErrorResponse is the error body shared by all auth endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

func toAccountInfo(acct account.Account) AccountInfo {
	return AccountInfo{
		ID:    acct.ID.String(),
		Email: acct.Email,
		Role:  string(acct.Role),
	}
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.MapErrorCodeToHTTPStatus(code)
	if status >= http.StatusInternalServerError {
		slog.Error("Auth request failed", "err", err)
	}
	render.Status(r, status)
	render.JSON(w, r, ErrorResponse{Error: errors.GetMessage(err)})
}

// Login authenticates credentials and evaluates the device binding
// (POST /auth/login)
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	var data LoginRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "Unable to parse request body"))
		return
	}

	data.Email = strings.TrimSpace(data.Email)
	if data.Email == "" || data.Password == "" || data.DeviceID == "" {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "email, password and deviceId are required"))
		return
	}

	result, err := h.loginService.Login(r.Context(), data.Email, data.Password, data.DeviceID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	if result.RequiresVerification {
		render.JSON(w, r, VerificationRequiredResponse{
			RequiresVerification: true,
			Message:              "Sign-in from a new device requires verification",
		})
		return
	}

	render.JSON(w, r, TokenResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Account:   toAccountInfo(result.Account),
	})
}

// VerifyDevice validates a one-time code and rebinds the account
// (POST /auth/verify-device)
func (h Handle) VerifyDevice(w http.ResponseWriter, r *http.Request) {
	var data VerifyDeviceRequest
	if err := render.DecodeJSON(r.Body, &data); err != nil {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "Unable to parse request body"))
		return
	}

	data.Email = strings.TrimSpace(data.Email)
	if data.Email == "" || data.Code == "" || data.DeviceID == "" {
		renderError(w, r, errors.New(errors.ErrCodeInvalidInput, "email, code and deviceId are required"))
		return
	}

	result, err := h.loginService.VerifyDevice(r.Context(), data.Email, data.Code, data.DeviceID)
	if err != nil {
		renderError(w, r, err)
		return
	}

	slog.Info("Device verified", "accountID", result.Account.ID)
	render.JSON(w, r, TokenResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		Account:   toAccountInfo(result.Account),
	})
}

// RegisterRoutes mounts the auth endpoints on the given router
func (h Handle) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/verify-device", h.VerifyDevice)
}
