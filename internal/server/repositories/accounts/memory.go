package accounts

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps everything in process memory. It is used for
// development and tests; all data is lost on restart.
type MemoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.Account
	roles    map[string]*models.Role
	now      func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		accounts: make(map[string]*models.Account),
		roles:    make(map[string]*models.Role),
		now:      time.Now,
	}
}

func (r *MemoryRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[username]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return cloneAccount(a), nil
}

func (r *MemoryRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.UserName]; ok {
		return nil, fmt.Errorf("%w: account %s", common.ErrorAlreadyExists, account.UserName)
	}

	stored := cloneAccount(account)
	stored.ID = uuid.NewString()
	stored.CreatedAt = r.now()
	if stored.Roles == nil {
		stored.Roles = []string{}
	}
	r.accounts[stored.UserName] = stored

	return cloneAccount(stored), nil
}

func (r *MemoryRepository) SetRefreshToken(ctx context.Context, username string, token *string, expiry *time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[username]
	if !ok {
		return common.ErrorNotFound
	}
	a.RefreshToken = clonePtr(token)
	a.RefreshTokenExpiry = clonePtr(expiry)
	return nil
}

func (r *MemoryRepository) RotateRefreshToken(ctx context.Context, username, oldToken, newToken string, newExpiry, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[username]
	if !ok {
		return common.ErrorNotFound
	}
	if a.RefreshToken == nil || *a.RefreshToken != oldToken {
		return common.ErrRefreshTokenInvalid
	}
	if a.RefreshTokenExpiry == nil || !a.RefreshTokenExpiry.After(now) {
		return common.ErrRefreshTokenInvalid
	}

	a.RefreshToken = &newToken
	a.RefreshTokenExpiry = &newExpiry
	return nil
}

func (r *MemoryRepository) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.roles[name]; ok {
		return nil, fmt.Errorf("%w: role %s", common.ErrorAlreadyExists, name)
	}
	role := &models.Role{ID: uuid.NewString(), Name: name, CreatedAt: r.now()}
	r.roles[name] = role

	c := *role
	return &c, nil
}

func (r *MemoryRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.roles[name]
	return ok, nil
}

func (r *MemoryRepository) AddRole(ctx context.Context, username, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.accounts[username]
	if !ok {
		return fmt.Errorf("%w: account %s", common.ErrorNotFound, username)
	}
	if _, ok := r.roles[role]; !ok {
		return fmt.Errorf("%w: role %s", common.ErrorNotFound, role)
	}
	if slices.Contains(a.Roles, role) {
		return fmt.Errorf("%w: %s already has role %s", common.ErrorAlreadyExists, username, role)
	}
	a.Roles = append(a.Roles, role)
	slices.Sort(a.Roles)
	return nil
}

func cloneAccount(a *models.Account) *models.Account {
	c := *a
	if a.Roles != nil {
		c.Roles = slices.Clone(a.Roles)
	}
	c.RefreshToken = clonePtr(a.RefreshToken)
	c.RefreshTokenExpiry = clonePtr(a.RefreshTokenExpiry)
	return &c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
