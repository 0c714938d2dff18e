package devicebind

import (
	"context"
	"crypto/subtle"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// OTPValidator checks a presented one-time code for an email. Delivery of the
// code is outside this package; implementations only decide validity.
type OTPValidator interface {
	Verify(ctx context.Context, email, code string) (bool, error)
}

// StaticOTPValidator accepts exactly one configured code. This mirrors the
// single-accepted-code behavior of fixed-code deployments and is the default.
type StaticOTPValidator struct {
	Code string
}

// NewStaticOTPValidator creates a validator with a single accepted code
func NewStaticOTPValidator(code string) *StaticOTPValidator {
	return &StaticOTPValidator{Code: code}
}

func (v *StaticOTPValidator) Verify(ctx context.Context, email, code string) (bool, error) {
	if v.Code == "" || code == "" {
		return false, nil
	}
	return subtle.ConstantTimeCompare([]byte(v.Code), []byte(code)) == 1, nil
}

const (
	totpSkew   = 1
	totpPeriod = 300
)

// TOTPValidator validates time-based codes against a deployment-wide secret.
// Drop-in replacement for the static validator behind the same interface.
type TOTPValidator struct {
	Secret string
}

// NewTOTPValidator creates a TOTP validator with the given shared secret
func NewTOTPValidator(secret string) *TOTPValidator {
	return &TOTPValidator{Secret: secret}
}

func (v *TOTPValidator) Verify(ctx context.Context, email, code string) (bool, error) {
	valid, err := totp.ValidateCustom(code, v.Secret, time.Now().UTC(), totp.ValidateOpts{
		Period:    totpPeriod,
		Skew:      totpSkew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false, err
	}
	return valid, nil
}
