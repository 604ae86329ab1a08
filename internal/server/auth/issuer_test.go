package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("test-secret-key-of-reasonable-length")

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time { return c.now }

func newTestIssuer(t *testing.T, clock *testClock) *Issuer {
	t.Helper()
	i, err := NewIssuer(SigningConfig{
		SecretKey: testSecret,
		AccessTTL: 10 * time.Minute,
		Issuer:    "catalogauth",
		Audience:  "catalogapi",
	}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	return i
}

func TestNewIssuer_Configuration(t *testing.T) {
	t.Parallel()

	if _, err := NewIssuer(SigningConfig{AccessTTL: time.Minute}); !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("empty secret: expected ErrConfiguration, got %v", err)
	}
	if _, err := NewIssuer(SigningConfig{SecretKey: testSecret}); !errors.Is(err, common.ErrConfiguration) {
		t.Fatalf("zero ttl: expected ErrConfiguration, got %v", err)
	}
}

func TestIssueAndValidate_Success(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, clock)

	tok, err := i.IssueAccessToken(ClaimsForAccount("alice", "alice@example.com", []string{"Admin"}))
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	if !tok.ExpiresAt.Equal(clock.now.Add(10 * time.Minute)) {
		t.Fatalf("exp mismatch: got %v", tok.ExpiresAt)
	}

	p, err := i.ValidateAccessToken(tok.Token)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if p.Name != "alice" || p.Email != "alice@example.com" || p.ID != "alice" {
		t.Fatalf("unexpected principal: %+v", p)
	}
	if !p.HasRole("Admin") || !p.HasClaim(ClaimRole, "Admin") {
		t.Fatalf("expected Admin role, got %v", p.Roles)
	}
	if p.JTI == "" || !p.HasClaim(ClaimJTI, p.JTI) {
		t.Fatalf("expected jti claim, got %+v", p.Claims)
	}
}

func TestIssueAccessToken_FreshJTI(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Now()}
	i := newTestIssuer(t, clock)

	claims := append(ClaimsForAccount("bob", "", nil), Claim{Type: ClaimJTI, Value: "stale"})
	first, err := i.IssueAccessToken(claims)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}
	second, err := i.IssueAccessToken(claims)
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	p1, _ := i.ValidateAccessToken(first.Token)
	p2, _ := i.ValidateAccessToken(second.Token)
	if p1.JTI == "stale" || p2.JTI == "stale" {
		t.Fatalf("incoming jti must be replaced")
	}
	if p1.JTI == p2.JTI {
		t.Fatalf("jti must be unique per token, got %q twice", p1.JTI)
	}
}

func TestIssueAccessToken_NoRoles(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, &testClock{now: time.Now()})
	tok, err := i.IssueAccessToken(ClaimsForAccount("alice", "a@example.com", nil))
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	p, err := i.ValidateAccessToken(tok.Token)
	if err != nil {
		t.Fatalf("ValidateAccessToken error: %v", err)
	}
	if p.Roles == nil || len(p.Roles) != 0 {
		t.Fatalf("expected empty non-nil roles, got %#v", p.Roles)
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	i := newTestIssuer(t, clock)

	tok, err := i.IssueAccessToken(ClaimsForAccount("alice", "", nil))
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	clock.now = clock.now.Add(11 * time.Minute)

	_, err = i.ValidateAccessToken(tok.Token)
	if !errors.Is(err, common.ErrInvalidToken) || !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expired ErrInvalidToken, got %v", err)
	}

	p, err := i.RecoverPrincipalFromExpiredToken(tok.Token)
	if err != nil {
		t.Fatalf("RecoverPrincipalFromExpiredToken error: %v", err)
	}
	if p.ID != "alice" {
		t.Fatalf("recovered id mismatch: %q", p.ID)
	}
}

func TestValidateAccessToken_IssuerAndAudience(t *testing.T) {
	t.Parallel()

	clock := &testClock{now: time.Now()}
	other, err := NewIssuer(SigningConfig{
		SecretKey: testSecret,
		AccessTTL: time.Minute,
		Issuer:    "someone-else",
		Audience:  "another-api",
	}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewIssuer error: %v", err)
	}
	tok, err := other.IssueAccessToken(ClaimsForAccount("mallory", "", nil))
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	i := newTestIssuer(t, clock)
	if _, err := i.ValidateAccessToken(tok.Token); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign iss/aud, got %v", err)
	}
	if _, err := i.RecoverPrincipalFromExpiredToken(tok.Token); err != nil {
		t.Fatalf("recovery skips iss/aud, got %v", err)
	}
}

func TestRecover_RejectsTampering(t *testing.T) {
	t.Parallel()

	i := newTestIssuer(t, &testClock{now: time.Now()})
	tok, err := i.IssueAccessToken(ClaimsForAccount("alice", "", nil))
	if err != nil {
		t.Fatalf("IssueAccessToken error: %v", err)
	}

	parts := strings.Split(tok.Token, ".")
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{UserID: "superadmin", Roles: []string{"SuperAdmin"}}).
		SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	forgedPayload := strings.Split(forged, ".")[1]

	cases := map[string]string{
		"payload swapped":   parts[0] + "." + forgedPayload + "." + parts[2],
		"signature cut":     parts[0] + "." + parts[1] + ".",
		"signature flipped": parts[0] + "." + parts[1] + "." + flipFirst(parts[2]),
		"malformed":         "not.a.jwt",
	}
	for name, bad := range cases {
		if _, err := i.RecoverPrincipalFromExpiredToken(bad); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
	}
}

func TestRecover_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims{UserID: "alice"}).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	i := newTestIssuer(t, &testClock{now: time.Now()})
	if _, err := i.RecoverPrincipalFromExpiredToken(tok); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestRecover_RejectsAlgorithmSubstitution(t *testing.T) {
	t.Parallel()

	claims := accessClaims{UserID: "superadmin", Roles: []string{"SuperAdmin"}}

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString(testSecret)
	if err != nil {
		t.Fatalf("sign HS512: %v", err)
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa key: %v", err)
	}
	rs256, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
	if err != nil {
		t.Fatalf("sign RS256: %v", err)
	}

	i := newTestIssuer(t, &testClock{now: time.Now()})
	for name, tok := range map[string]string{"none": none, "HS512": hs512, "RS256": rs256} {
		if _, err := i.RecoverPrincipalFromExpiredToken(tok); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken, got %v", name, err)
		}
		if _, err := i.ValidateAccessToken(tok); !errors.Is(err, common.ErrInvalidToken) {
			t.Fatalf("%s: expected ErrInvalidToken from strict validation, got %v", name, err)
		}
	}
}

func flipFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b)
}
