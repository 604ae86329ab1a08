package auth

import "slices"

// Claim types carried by access tokens.
const (
	ClaimName  = "name"
	ClaimEmail = "email"
	ClaimID    = "id"
	ClaimRole  = "role"
	ClaimJTI   = "jti"
)

// Claim is a single (type, value) assertion about a principal.
type Claim struct {
	Type  string
	Value string
}

// Principal is the identity recovered from a signed access token. It is
// never persisted.
type Principal struct {
	Name   string
	Email  string
	ID     string
	JTI    string
	Roles  []string
	Claims []Claim
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}

// HasClaim reports whether the principal holds a claim of the given type
// with exactly the given value.
func (p Principal) HasClaim(claimType, value string) bool {
	for _, c := range p.Claims {
		if c.Type == claimType && c.Value == value {
			return true
		}
	}
	return false
}

// ClaimsForAccount builds the claim set minted at login: name, email, id
// (the username) and one role claim per role. The jti is added by the
// Issuer.
func ClaimsForAccount(username, email string, roles []string) []Claim {
	claims := make([]Claim, 0, 3+len(roles))
	claims = append(claims,
		Claim{Type: ClaimName, Value: username},
		Claim{Type: ClaimEmail, Value: email},
		Claim{Type: ClaimID, Value: username},
	)
	for _, r := range roles {
		claims = append(claims, Claim{Type: ClaimRole, Value: r})
	}
	return claims
}
