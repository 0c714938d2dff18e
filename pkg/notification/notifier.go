package notification

import "context"

// DeviceChallengeNotifier alerts an account holder that a login from an
// unrecognized device was challenged and a verification code is expected.
// Code generation and validity live behind devicebind.OTPValidator; this is
// delivery only.
type DeviceChallengeNotifier interface {
	SendDeviceChallenge(ctx context.Context, email string) error
}

// NoopNotifier discards notifications. Used in tests and deployments where
// codes are distributed out of band.
type NoopNotifier struct{}

func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{}
}

func (n *NoopNotifier) SendDeviceChallenge(ctx context.Context, email string) error {
	return nil
}
