// Package accounts stores accounts, roles and the per-account refresh-token
// slot. Postgres, Redis and in-memory implementations share one contract.
package accounts

import (
	"context"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/server/models"
)

// Repository is the account store used by the auth service.
//
// Error contract:
//   - common.ErrorNotFound when the account (or role, for AddRole) does not exist.
//   - common.ErrorAlreadyExists on duplicate usernames, role names or role assignments.
//   - common.ErrRefreshTokenInvalid from RotateRefreshToken when the slot no
//     longer holds oldToken or has expired.
//   - anything else is a storage failure.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*models.Account, error)
	Create(ctx context.Context, account *models.Account) (*models.Account, error)

	// SetRefreshToken overwrites the refresh-token slot unconditionally. A nil
	// token clears it.
	SetRefreshToken(ctx context.Context, username string, token *string, expiry *time.Time) error

	// RotateRefreshToken replaces the slot with newToken only if it currently
	// holds oldToken with an expiry after now. The check and the write are a
	// single atomic step.
	RotateRefreshToken(ctx context.Context, username, oldToken, newToken string, newExpiry, now time.Time) error

	CreateRole(ctx context.Context, name string) (*models.Role, error)
	RoleExists(ctx context.Context, name string) (bool, error)
	AddRole(ctx context.Context, username, role string) error
}
