// Package services contains server-side business logic. This file implements
// AuthService: login, registration, refresh-token rotation, revocation and
// role administration over an accounts.Repository.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/cryptox"
	"github.com/dmitrijs2005/catalogauth/internal/logging"
	"github.com/dmitrijs2005/catalogauth/internal/server/auth"
	"github.com/dmitrijs2005/catalogauth/internal/server/models"
	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/accounts"
)

// Operation names reported to the Recorder.
const (
	OpLogin      = "login"
	OpRegister   = "register"
	OpRefresh    = "refresh"
	OpRevoke     = "revoke"
	OpCreateRole = "create_role"
	OpAssignRole = "assign_role"
)

// TokenPair is returned by Login and Refresh. ExpiresAt is the access token
// expiry; RefreshExpiresAt is the expiry stored with the refresh token.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	ExpiresAt        time.Time
	RefreshExpiresAt time.Time
}

// Recorder receives one call per finished operation.
type Recorder interface {
	RecordAuthOperation(operation, result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAuthOperation(string, string) {}

// AuthService is stateless apart from its collaborators and is safe for
// concurrent use.
type AuthService struct {
	repo     accounts.Repository
	issuer   *auth.Issuer
	refresh  *auth.RefreshManager
	logger   logging.Logger
	recorder Recorder
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService wires the service. recorder may be nil. issuer and refresh
// may be nil for tools that only administer accounts and roles; Login and
// Refresh then fail with ErrorInternal.
func NewAuthService(repo accounts.Repository, issuer *auth.Issuer, refresh *auth.RefreshManager,
	logger logging.Logger, recorder Recorder) *AuthService {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &AuthService{
		repo:     repo,
		issuer:   issuer,
		refresh:  refresh,
		logger:   logger.With("module", "auth"),
		recorder: recorder,
		now:      time.Now,
	}
}

// Login checks credentials and, on success, issues a token pair and stores
// the new refresh token in the account's slot, replacing any previous one.
func (s *AuthService) Login(ctx context.Context, username, password string) (pair *TokenPair, err error) {
	defer s.record(OpLogin, &err)

	if err := s.canIssue(); err != nil {
		return nil, err
	}

	acct, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			// burn the same time as a real check
			cryptox.CheckPassword(s.dummyPasswordHash(), password)
			return nil, common.ErrorUnauthorized
		}
		s.logger.Error(ctx, "account lookup failed", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}
	if !cryptox.CheckPassword(acct.PasswordHash, password) {
		return nil, common.ErrorUnauthorized
	}

	access, err := s.issuer.IssueAccessToken(auth.ClaimsForAccount(acct.UserName, acct.Email, acct.Roles))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	token, err := s.refresh.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	expiry := s.refresh.Expiry(s.now())

	if err := s.repo.SetRefreshToken(ctx, acct.UserName, &token, &expiry); err != nil {
		s.logger.Error(ctx, "storing refresh token failed", "username", username, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     token,
		ExpiresAt:        access.ExpiresAt,
		RefreshExpiresAt: expiry,
	}, nil
}

// Register creates an account with an argon2id password hash and no roles.
func (s *AuthService) Register(ctx context.Context, username, email, password string) (err error) {
	defer s.record(OpRegister, &err)

	if username == "" || password == "" {
		return fmt.Errorf("%w: username and password are required", common.ErrorValidation)
	}

	_, err = s.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return fmt.Errorf("%w: user %s already exists", common.ErrorConflict, username)
	case !errors.Is(err, common.ErrorNotFound):
		s.logger.Error(ctx, "account lookup failed", "username", username, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	_, err = s.repo.Create(ctx, &models.Account{UserName: username, Email: email, PasswordHash: hash, Roles: []string{}})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("%w: user %s already exists", common.ErrorConflict, username)
		}
		s.logger.Error(ctx, "user creation failed", "username", username, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	s.logger.Info(ctx, "user registered", "username", username)
	return nil
}

// Refresh recovers the principal from a possibly expired access token,
// checks the presented refresh token against the account's slot and
// rotates it. The slot is only replaced if it still holds the presented
// token, so of two concurrent refreshes with the same token exactly one
// succeeds. Any failure leaves the slot unchanged.
func (s *AuthService) Refresh(ctx context.Context, accessToken, refreshToken string) (pair *TokenPair, err error) {
	defer s.record(OpRefresh, &err)

	if err := s.canIssue(); err != nil {
		return nil, err
	}

	if accessToken == "" || refreshToken == "" {
		return nil, fmt.Errorf("%w: access and refresh tokens are required", common.ErrorValidation)
	}

	principal, err := s.issuer.RecoverPrincipalFromExpiredToken(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}

	acct, err := s.repo.FindByUsername(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, fmt.Errorf("%w: unknown principal", common.ErrorValidation)
		}
		s.logger.Error(ctx, "account lookup failed", "username", principal.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	now := s.now()
	if err := auth.ValidatePresented(refreshToken, acct.RefreshToken, acct.RefreshTokenExpiry, now); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, err)
	}

	access, err := s.issuer.IssueAccessToken(principal.Claims)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	next, err := s.refresh.GenerateOpaqueToken()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	expiry := s.refresh.Expiry(now)

	err = s.repo.RotateRefreshToken(ctx, acct.UserName, refreshToken, next, expiry, now)
	switch {
	case err == nil:
	case errors.Is(err, common.ErrRefreshTokenInvalid), errors.Is(err, common.ErrorNotFound):
		s.logger.Warn(ctx, "refresh token rotated concurrently", "username", acct.UserName)
		return nil, fmt.Errorf("%w: %w", common.ErrorValidation, common.ErrRefreshTokenInvalid)
	default:
		s.logger.Error(ctx, "refresh token rotation failed", "username", acct.UserName, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	return &TokenPair{
		AccessToken:      access.Token,
		RefreshToken:     next,
		ExpiresAt:        access.ExpiresAt,
		RefreshExpiresAt: expiry,
	}, nil
}

// Revoke clears the account's refresh-token slot. Revoking an account
// without a session succeeds.
func (s *AuthService) Revoke(ctx context.Context, username string) (err error) {
	defer s.record(OpRevoke, &err)

	if username == "" {
		return fmt.Errorf("%w: username is required", common.ErrorValidation)
	}

	if err := s.repo.SetRefreshToken(ctx, username, nil, nil); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: invalid username", common.ErrorValidation)
		}
		s.logger.Error(ctx, "revoke failed", "username", username, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	s.logger.Info(ctx, "refresh token revoked", "username", username)
	return nil
}

// CreateRole adds a new role.
func (s *AuthService) CreateRole(ctx context.Context, name string) (err error) {
	defer s.record(OpCreateRole, &err)

	if name == "" {
		return fmt.Errorf("%w: role name is required", common.ErrorValidation)
	}

	exists, err := s.repo.RoleExists(ctx, name)
	if err != nil {
		s.logger.Error(ctx, "role lookup failed", "role", name, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}
	if exists {
		return fmt.Errorf("%w: role %s already exists", common.ErrorConflict, name)
	}

	if _, err := s.repo.CreateRole(ctx, name); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("%w: role %s already exists", common.ErrorConflict, name)
		}
		s.logger.Error(ctx, "role creation failed", "role", name, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	s.logger.Info(ctx, "role created", "role", name)
	return nil
}

// AssignRole adds role to the account's role set. The change shows up in
// access tokens issued at the next login.
func (s *AuthService) AssignRole(ctx context.Context, username, role string) (err error) {
	defer s.record(OpAssignRole, &err)

	if username == "" || role == "" {
		return fmt.Errorf("%w: username and role are required", common.ErrorValidation)
	}

	if _, err := s.repo.FindByUsername(ctx, username); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return fmt.Errorf("%w: user %s not found", common.ErrorValidation, username)
		}
		s.logger.Error(ctx, "account lookup failed", "username", username, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	exists, err := s.repo.RoleExists(ctx, role)
	if err != nil {
		s.logger.Error(ctx, "role lookup failed", "role", role, "error", err)
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}
	if !exists {
		return fmt.Errorf("%w: role %s not found", common.ErrorValidation, role)
	}

	if err := s.repo.AddRole(ctx, username, role); err != nil {
		s.logger.Warn(ctx, "failed to add role", "username", username, "role", role, "error", err)
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorAlreadyExists) {
			return fmt.Errorf("%w: %w", common.ErrorValidation, err)
		}
		return fmt.Errorf("%w: %w", common.ErrorPersistence, err)
	}

	s.logger.Info(ctx, "role added to user", "username", username, "role", role)
	return nil
}

// --- helpers below ---

var errSigningDisabled = errors.New("token signing is not configured")

func (s *AuthService) canIssue() error {
	if s.issuer == nil || s.refresh == nil {
		return fmt.Errorf("%w: %w", common.ErrorInternal, errSigningDisabled)
	}
	return nil
}

func (s *AuthService) record(op string, err *error) {
	result := "success"
	if *err != nil {
		result = "failure"
	}
	s.recorder.RecordAuthOperation(op, result)
}

func (s *AuthService) dummyPasswordHash() string {
	s.dummyOnce.Do(func() {
		h, err := cryptox.HashPassword("not-a-real-password")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}
