package devicebind

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Hasher turns a raw device identifier into an opaque binding token. The
// transform is deterministic and keyed by a process-wide secret that never
// reaches clients, so a token cannot be forged without the secret.
type Hasher struct {
	secret []byte
}

// NewHasher creates a Hasher keyed with the given secret
func NewHasher(secret string) *Hasher {
	return &Hasher{secret: []byte(secret)}
}

// Hash returns the binding token for a raw device id. Equal raw ids always
// produce equal tokens.
func (h *Hasher) Hash(rawDeviceID string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(rawDeviceID))
	return hex.EncodeToString(mac.Sum(nil))
}
