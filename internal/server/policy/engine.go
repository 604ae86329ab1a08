// Package policy evaluates named authorization policies against a
// principal recovered from an access token.
package policy

import (
	"fmt"
	"sort"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/server/auth"
)

// Policy names.
const (
	AdminOnly       = "AdminOnly"
	SuperAdminOnly  = "SuperAdminOnly"
	ExclusivePolicy = "ExclusivePolicy"
)

// Role names referenced by the built-in policies.
const (
	RoleAdmin      = "Admin"
	RoleSuperAdmin = "SuperAdmin"
)

// Policy is a pure predicate over a principal.
type Policy func(p auth.Principal) bool

func RequireRole(role string) Policy {
	return func(p auth.Principal) bool {
		return p.HasRole(role)
	}
}

func RequireClaim(claimType, value string) Policy {
	return func(p auth.Principal) bool {
		return p.HasClaim(claimType, value)
	}
}

// All is satisfied when every policy is.
func All(policies ...Policy) Policy {
	return func(p auth.Principal) bool {
		for _, pol := range policies {
			if !pol(p) {
				return false
			}
		}
		return true
	}
}

// Any is satisfied when at least one policy is.
func Any(policies ...Policy) Policy {
	return func(p auth.Principal) bool {
		for _, pol := range policies {
			if pol(p) {
				return true
			}
		}
		return false
	}
}

// Engine holds the named policies. The set is built once by NewEngine and
// never modified, so an Engine is safe for concurrent use.
type Engine struct {
	policies map[string]Policy
}

// NewEngine registers AdminOnly, SuperAdminOnly and ExclusivePolicy.
// superAdminName is the "id" claim value that identifies the super admin.
func NewEngine(superAdminName string) *Engine {
	isSuperAdmin := RequireClaim(auth.ClaimID, superAdminName)

	return &Engine{policies: map[string]Policy{
		AdminOnly:       RequireRole(RoleAdmin),
		SuperAdminOnly:  All(RequireRole(RoleSuperAdmin), isSuperAdmin),
		ExclusivePolicy: Any(isSuperAdmin, RequireRole(RoleSuperAdmin)),
	}}
}

// Evaluate reports whether p satisfies the named policy. Unregistered
// names fail with common.ErrUnknownPolicy.
func (e *Engine) Evaluate(name string, p auth.Principal) (bool, error) {
	pol, ok := e.policies[name]
	if !ok {
		return false, fmt.Errorf("%w: %s", common.ErrUnknownPolicy, name)
	}
	return pol(p), nil
}

// Has reports whether name is registered.
func (e *Engine) Has(name string) bool {
	_, ok := e.policies[name]
	return ok
}

// Names returns the registered policy names in sorted order.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.policies))
	for n := range e.policies {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
