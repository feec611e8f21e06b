package hashing

import (
	"crypto/sha256"
	"encoding/hex"

	"toilet-map-service/internal/config"
)

// UnknownIdentity is the sentinel callers pass when no client address could
// be determined. It still produces a stable hash so the limiter has a key.
const UnknownIdentity = "unknown"

// IdentityHasher derives pseudonymous rate-limit identities from raw client
// addresses. The raw address is never stored or logged; only the salted
// digest leaves this package.
type IdentityHasher struct {
	salt string
}

func NewIdentityHasher(cfg *config.Config) *IdentityHasher {
	salt := cfg.RateLimit.Salt
	if salt == "" {
		salt = config.DefaultRateLimitSalt
	}
	return &IdentityHasher{salt: salt}
}

// Hash returns the lowercase hex SHA-256 of rawIdentity concatenated with
// the salt. Deterministic for a fixed salt; no error path, any string
// (including empty) hashes to a usable key.
func (h *IdentityHasher) Hash(rawIdentity string) string {
	sum := sha256.Sum256([]byte(rawIdentity + h.salt))
	return hex.EncodeToString(sum[:])
}
