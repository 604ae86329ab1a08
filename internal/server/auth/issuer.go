// Package auth issues and validates HS256 access tokens and manages opaque
// refresh tokens.
package auth

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SigningConfig is the process-wide signing configuration. It is loaded
// once at startup and never changes afterwards.
type SigningConfig struct {
	SecretKey []byte
	AccessTTL time.Duration
	Issuer    string
	Audience  string
}

// AccessToken is a signed JWT together with the claims it carries.
type AccessToken struct {
	Token     string
	Claims    []Claim
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// accessClaims is the JWT payload. UserID is the "id" claim; the embedded
// RegisteredClaims.ID is the jti.
type accessClaims struct {
	Name   string   `json:"name,omitempty"`
	Email  string   `json:"email,omitempty"`
	UserID string   `json:"id"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer signs access tokens and recovers principals from them.
type Issuer struct {
	cfg     SigningConfig
	now     func() time.Time
	strict  *jwt.Parser
	lenient *jwt.Parser
}

type IssuerOption func(*Issuer)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

var validMethods = []string{jwt.SigningMethodHS256.Alg()}

// NewIssuer validates cfg and returns an Issuer. It fails with
// common.ErrConfiguration when the secret is empty or the TTL is not
// positive.
func NewIssuer(cfg SigningConfig, opts ...IssuerOption) (*Issuer, error) {
	if len(cfg.SecretKey) == 0 {
		return nil, fmt.Errorf("%w: signing secret is empty", common.ErrConfiguration)
	}
	if cfg.AccessTTL <= 0 {
		return nil, fmt.Errorf("%w: access token ttl must be positive", common.ErrConfiguration)
	}

	i := &Issuer{cfg: cfg, now: time.Now}
	for _, o := range opts {
		o(i)
	}

	clock := func() time.Time { return i.now() }

	strictOpts := []jwt.ParserOption{
		jwt.WithValidMethods(validMethods),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(clock),
	}
	if cfg.Issuer != "" {
		strictOpts = append(strictOpts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		strictOpts = append(strictOpts, jwt.WithAudience(cfg.Audience))
	}
	i.strict = jwt.NewParser(strictOpts...)
	i.lenient = jwt.NewParser(jwt.WithValidMethods(validMethods), jwt.WithoutClaimsValidation())

	return i, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *Issuer) AccessTTL() time.Duration {
	return i.cfg.AccessTTL
}

// IssueAccessToken signs a token carrying claims plus a fresh jti, iat,
// exp, iss and aud. Any jti present in claims is replaced. Claim types
// other than name, email, id and role are not carried.
func (i *Issuer) IssueAccessToken(claims []Claim) (*AccessToken, error) {
	now := i.now()
	jti := uuid.NewString()

	payload := accessClaims{Roles: []string{}}
	for _, c := range claims {
		switch c.Type {
		case ClaimName:
			payload.Name = c.Value
		case ClaimEmail:
			payload.Email = c.Value
		case ClaimID:
			payload.UserID = c.Value
		case ClaimRole:
			payload.Roles = append(payload.Roles, c.Value)
		}
	}

	iat := jwt.NewNumericDate(now)
	exp := jwt.NewNumericDate(now.Add(i.cfg.AccessTTL))
	payload.RegisteredClaims = jwt.RegisteredClaims{
		ID:        jti,
		Issuer:    i.cfg.Issuer,
		IssuedAt:  iat,
		ExpiresAt: exp,
	}
	if i.cfg.Audience != "" {
		payload.Audience = jwt.ClaimStrings{i.cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(i.cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	return &AccessToken{
		Token:     signed,
		Claims:    principalFrom(&payload).Claims,
		IssuedAt:  iat.Time,
		ExpiresAt: exp.Time,
	}, nil
}

// ValidateAccessToken fully validates token: signature, algorithm,
// expiry (no leeway), issuer and audience.
func (i *Issuer) ValidateAccessToken(token string) (*Principal, error) {
	return i.parse(i.strict, token)
}

// RecoverPrincipalFromExpiredToken verifies the signature and algorithm of
// token but skips expiry, issuer and audience checks, so that identity can
// be recovered from an access token that has already expired.
func (i *Issuer) RecoverPrincipalFromExpiredToken(token string) (*Principal, error) {
	return i.parse(i.lenient, token)
}

func (i *Issuer) parse(p *jwt.Parser, token string) (*Principal, error) {
	claims := &accessClaims{}
	t, err := p.ParseWithClaims(token, claims, i.keyFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
	}
	if !t.Valid {
		return nil, common.ErrInvalidToken
	}
	return principalFrom(claims), nil
}

func (i *Issuer) keyFunc(t *jwt.Token) (any, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
	}
	return i.cfg.SecretKey, nil
}

func principalFrom(c *accessClaims) *Principal {
	p := &Principal{
		Name:  c.Name,
		Email: c.Email,
		ID:    c.UserID,
		JTI:   c.RegisteredClaims.ID,
		Roles: append([]string{}, c.Roles...),
	}
	p.Claims = make([]Claim, 0, 4+len(c.Roles))
	if c.Name != "" {
		p.Claims = append(p.Claims, Claim{Type: ClaimName, Value: c.Name})
	}
	if c.Email != "" {
		p.Claims = append(p.Claims, Claim{Type: ClaimEmail, Value: c.Email})
	}
	p.Claims = append(p.Claims, Claim{Type: ClaimID, Value: c.UserID})
	if p.JTI != "" {
		p.Claims = append(p.Claims, Claim{Type: ClaimJTI, Value: p.JTI})
	}
	for _, r := range c.Roles {
		p.Claims = append(p.Claims, Claim{Type: ClaimRole, Value: r})
	}
	return p
}
