package tokengenerator

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/bluecast/streampanel/pkg/account"
	"github.com/bluecast/streampanel/pkg/errors"
)

// DefaultTokenExpiry is the fixed validity window of issued session tokens
const DefaultTokenExpiry = 7 * 24 * time.Hour

// Claims embedded in every session token. The device binding is deliberately
// NOT part of the claims: the token proves who, the stored binding proves
// from which device, and the two facts are verified independently.
type Claims struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// TokenGenerator interface defines methods for token operations
type TokenGenerator interface {
	// GenerateToken mints a signed session token for the account
	GenerateToken(acct account.Account) (string, time.Time, error)

	// ParseToken parses and validates a token. Verification is a pure,
	// stateless recomputation; there is no revocation list.
	ParseToken(tokenStr string) (*Claims, error)
}

// JwtTokenGenerator implements the TokenGenerator interface with HS256
type JwtTokenGenerator struct {
	Secret   string
	Issuer   string
	Audience string
	Expiry   time.Duration
}

// NewJwtTokenGenerator creates a new JwtTokenGenerator with the default
// 7-day validity window
func NewJwtTokenGenerator(secret, issuer, audience string) *JwtTokenGenerator {
	return &JwtTokenGenerator{
		Secret:   secret,
		Issuer:   issuer,
		Audience: audience,
		Expiry:   DefaultTokenExpiry,
	}
}

// GenerateToken creates a new signed token for the account
func (g *JwtTokenGenerator) GenerateToken(acct account.Account) (string, time.Time, error) {
	now := time.Now().UTC()
	claims := Claims{
		AccountID: acct.ID.String(),
		Email:     acct.Email,
		Role:      string(acct.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(g.Expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Minute)),
			Issuer:    g.Issuer,
			Subject:   acct.ID.String(),
			ID:        uuid.New().String(),
			Audience:  jwt.ClaimStrings{g.Audience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString([]byte(g.Secret))
	if err != nil {
		slog.Error("Failed to sign session token", "err", err)
		return "", time.Time{}, err
	}
	return ss, claims.ExpiresAt.Time, nil
}

// ParseToken parses and validates a token string
func (g *JwtTokenGenerator) ParseToken(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(g.Secret), nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTokenInvalid, "invalid or expired token")
	}
	if !token.Valid {
		return nil, errors.New(errors.ErrCodeTokenInvalid, "invalid or expired token")
	}
	return claims, nil
}
