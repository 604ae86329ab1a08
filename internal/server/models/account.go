// Package models defines server-side data models persisted by the account store.
package models

import "time"

// Account is a registered user together with its role set and the single
// refresh-token slot. RefreshToken and RefreshTokenExpiry are both nil when
// the account has no active session.
type Account struct {
	ID                 string     `db:"id"`
	UserName           string     `db:"username"`
	Email              string     `db:"email"`
	PasswordHash       string     `db:"password_hash"`
	Roles              []string   `db:"-"`
	RefreshToken       *string    `db:"refresh_token"`
	RefreshTokenExpiry *time.Time `db:"refresh_token_expiry"`
	CreatedAt          time.Time  `db:"created_at"`
}

// HasSession reports whether the refresh-token slot is populated.
func (a *Account) HasSession() bool {
	return a.RefreshToken != nil
}
