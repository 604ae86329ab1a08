package auth

import (
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/cryptox"
)

// RefreshTokenSize is the number of random bytes in a refresh token.
const RefreshTokenSize = 128

// RefreshManager generates opaque refresh tokens and computes their
// expiry. It performs no I/O; callers own persistence.
type RefreshManager struct {
	ttl time.Duration
}

func NewRefreshManager(ttl time.Duration) (*RefreshManager, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("%w: refresh token ttl must be positive", common.ErrConfiguration)
	}
	return &RefreshManager{ttl: ttl}, nil
}

func (m *RefreshManager) TTL() time.Duration {
	return m.ttl
}

// GenerateOpaqueToken returns RefreshTokenSize random bytes, base64 encoded.
func (m *RefreshManager) GenerateOpaqueToken() (string, error) {
	token, err := cryptox.RandomString(RefreshTokenSize)
	if err != nil {
		return "", fmt.Errorf("generate refresh token: %w", err)
	}
	return token, nil
}

// Expiry returns the expiry of a refresh token issued at now.
func (m *RefreshManager) Expiry(now time.Time) time.Time {
	return ComputeExpiry(now, m.ttl)
}

func ComputeExpiry(now time.Time, ttl time.Duration) time.Time {
	return now.Add(ttl)
}

// ValidatePresented checks a presented refresh token against the stored
// slot. It succeeds only when both are equal (constant time) and the
// stored expiry is strictly after now.
func ValidatePresented(presented string, stored *string, storedExpiry *time.Time, now time.Time) error {
	if presented == "" || stored == nil || storedExpiry == nil {
		return common.ErrRefreshTokenInvalid
	}
	if subtle.ConstantTimeCompare([]byte(presented), []byte(*stored)) != 1 {
		return common.ErrRefreshTokenInvalid
	}
	if !storedExpiry.After(now) {
		return common.ErrRefreshTokenInvalid
	}
	return nil
}
