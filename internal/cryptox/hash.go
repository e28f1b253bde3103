// Package cryptox implements the digest and token scheme used for member
// credentials: a deterministic salted sha512 hex digest that doubles as the
// source of rotating per-device tokens, plus validation-key generation.
package cryptox

import (
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Hasher produces salted digests. The salt is fixed per deployment and comes
// from configuration; documents written with one salt cannot be verified with
// another.
type Hasher struct {
	salt string
}

func NewHasher(salt string) *Hasher {
	return &Hasher{salt: salt}
}

// Hash returns the hex-encoded sha512 digest of secret+salt. Deterministic:
// the same secret always yields the same digest, which is what makes stored
// password and token comparison a plain string equality.
func (h *Hasher) Hash(secret string) string {
	sum := sha512.Sum512([]byte(secret + h.salt))
	return hex.EncodeToString(sum[:])
}

// DeviceToken derives a fresh bearer token for a device. The current time is
// mixed in so repeated logins from the same device produce a new,
// unpredictable token each time.
func (h *Hasher) DeviceToken(clientID string, at time.Time) string {
	return h.Hash(clientID + strconv.FormatInt(at.UnixMilli(), 10))
}

// NewValidationKey returns an opaque 32-character key for email confirmation
// links.
func NewValidationKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
