// Package admin implements authadmin, the operator CLI that manages
// accounts and roles directly in the configured store. It applies schema
// migrations, creates and assigns roles, revokes refresh tokens and seeds
// the Admin and SuperAdmin roles together with the super-admin account.
package admin
