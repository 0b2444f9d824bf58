package domain

import (
	"errors"
	"strings"
	"time"
)

var (
	ErrTokenInvalid = errors.New("token is invalid")
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenUsed    = errors.New("token has already been used")
	ErrRateLimited  = errors.New("too many magic link requests")
	ErrUserNotFound = errors.New("user not found")
)

// RawTokenLength is the length of a hex-encoded 32-byte raw token.
// Anything shorter is rejected before touching the store.
const RawTokenLength = 64

// MagicLinkToken is one issuance of an emailed sign-in link.
// Only the SHA-256 of the raw token is ever persisted; rows are kept
// after use for audit and rate-limit counting.
type MagicLinkToken struct {
	ID        string
	Email     string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// NormalizeEmail lower-cases and trims an address so rate-limit counting
// and lookups agree on a single spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
