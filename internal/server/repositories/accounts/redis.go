package accounts

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/server/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Script status codes.
const (
	statusNotFound     int64 = 0
	statusExpired      int64 = 1
	statusMismatch     int64 = 2
	statusOK           int64 = 3
	statusRoleNotFound int64 = 4
	statusExists       int64 = 5
)

// KEYS[1] account hash; ARGV id, username, email, password_hash, created_at.
const createAccountScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 5
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "username", ARGV[2], "email", ARGV[3], "password_hash", ARGV[4], "created_at", ARGV[5])
return 3
`

// KEYS[1] account hash; ARGV token, expiry. Empty token clears the slot.
const setRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if ARGV[1] == "" then
  redis.call("HDEL", KEYS[1], "refresh_token", "refresh_token_expiry")
else
  redis.call("HSET", KEYS[1], "refresh_token", ARGV[1], "refresh_token_expiry", ARGV[2])
end
return 3
`

// KEYS[1] account hash; ARGV old, new, new expiry, now.
const rotateRefreshScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
local current = redis.call("HGET", KEYS[1], "refresh_token")
if not current or current ~= ARGV[1] then
  return 2
end
local expiry = tonumber(redis.call("HGET", KEYS[1], "refresh_token_expiry") or "0")
if expiry <= tonumber(ARGV[4]) then
  return 1
end
redis.call("HSET", KEYS[1], "refresh_token", ARGV[2], "refresh_token_expiry", ARGV[3])
return 3
`

// KEYS[1] role hash; ARGV id, name, created_at.
const createRoleScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 5
end
redis.call("HSET", KEYS[1], "id", ARGV[1], "name", ARGV[2], "created_at", ARGV[3])
return 3
`

// KEYS[1] account hash, KEYS[2] role hash, KEYS[3] account roles set; ARGV role.
const addRoleScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("EXISTS", KEYS[2]) == 0 then
  return 4
end
if redis.call("SADD", KEYS[3], ARGV[1]) == 0 then
  return 5
end
return 3
`

var (
	createAccountLua = redis.NewScript(createAccountScript)
	setRefreshLua    = redis.NewScript(setRefreshScript)
	rotateRefreshLua = redis.NewScript(rotateRefreshScript)
	createRoleLua    = redis.NewScript(createRoleScript)
	addRoleLua       = redis.NewScript(addRoleScript)
)

// RedisRepository stores each account as a hash and its roles as a set.
// Every conditional write runs as a Lua script, so check and write are
// atomic on the server. Timestamps are unix milliseconds.
type RedisRepository struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisRepository(rdb redis.UniversalClient, prefix string) *RedisRepository {
	if prefix == "" {
		prefix = "catalogauth"
	}
	return &RedisRepository{rdb: rdb, prefix: prefix, now: time.Now}
}

// Each key kind has its own namespace segment so that no username can
// produce another account's roles key.
func (r *RedisRepository) accountKey(username string) string {
	return r.prefix + ":account:" + username
}

func (r *RedisRepository) accountRolesKey(username string) string {
	return r.prefix + ":account_roles:" + username
}

func (r *RedisRepository) roleKey(name string) string {
	return r.prefix + ":role:" + name
}

func (r *RedisRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	fields, err := r.rdb.HGetAll(ctx, r.accountKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if len(fields) == 0 {
		return nil, common.ErrorNotFound
	}

	a := &models.Account{
		ID:           fields["id"],
		UserName:     fields["username"],
		Email:        fields["email"],
		PasswordHash: fields["password_hash"],
	}
	if a.CreatedAt, err = parseMillis(fields["created_at"]); err != nil {
		return nil, fmt.Errorf("redis error: created_at: %w", err)
	}
	if tok, ok := fields["refresh_token"]; ok {
		exp, err := parseMillis(fields["refresh_token_expiry"])
		if err != nil {
			return nil, fmt.Errorf("redis error: refresh_token_expiry: %w", err)
		}
		a.RefreshToken = &tok
		a.RefreshTokenExpiry = &exp
	}

	roles, err := r.rdb.SMembers(ctx, r.accountRolesKey(username)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	sort.Strings(roles)
	a.Roles = roles

	return a, nil
}

func (r *RedisRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	id := uuid.NewString()
	created := r.now()

	code, err := createAccountLua.Run(ctx, r.rdb, []string{r.accountKey(account.UserName)},
		id, account.UserName, account.Email, account.PasswordHash, created.UnixMilli()).Int64()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if code == statusExists {
		return nil, fmt.Errorf("%w: account %s", common.ErrorAlreadyExists, account.UserName)
	}

	account.ID = id
	account.CreatedAt = time.UnixMilli(created.UnixMilli())
	if account.Roles == nil {
		account.Roles = []string{}
	}
	return account, nil
}

func (r *RedisRepository) SetRefreshToken(ctx context.Context, username string, token *string, expiry *time.Time) error {
	var tok string
	var exp int64
	if token != nil {
		tok = *token
	}
	if expiry != nil {
		exp = expiry.UnixMilli()
	}

	code, err := setRefreshLua.Run(ctx, r.rdb, []string{r.accountKey(username)}, tok, exp).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	if code == statusNotFound {
		return common.ErrorNotFound
	}
	return nil
}

func (r *RedisRepository) RotateRefreshToken(ctx context.Context, username, oldToken, newToken string, newExpiry, now time.Time) error {
	code, err := rotateRefreshLua.Run(ctx, r.rdb, []string{r.accountKey(username)},
		oldToken, newToken, newExpiry.UnixMilli(), now.UnixMilli()).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	switch code {
	case statusOK:
		return nil
	case statusNotFound:
		return common.ErrorNotFound
	case statusMismatch, statusExpired:
		return common.ErrRefreshTokenInvalid
	default:
		return fmt.Errorf("redis error: unknown rotate status %d", code)
	}
}

func (r *RedisRepository) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	id := uuid.NewString()
	created := r.now()

	code, err := createRoleLua.Run(ctx, r.rdb, []string{r.roleKey(name)}, id, name, created.UnixMilli()).Int64()
	if err != nil {
		return nil, fmt.Errorf("redis error: %w", err)
	}
	if code == statusExists {
		return nil, fmt.Errorf("%w: role %s", common.ErrorAlreadyExists, name)
	}
	return &models.Role{ID: id, Name: name, CreatedAt: time.UnixMilli(created.UnixMilli())}, nil
}

func (r *RedisRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.roleKey(name)).Result()
	if err != nil {
		return false, fmt.Errorf("redis error: %w", err)
	}
	return n == 1, nil
}

func (r *RedisRepository) AddRole(ctx context.Context, username, role string) error {
	keys := []string{r.accountKey(username), r.roleKey(role), r.accountRolesKey(username)}
	code, err := addRoleLua.Run(ctx, r.rdb, keys, role).Int64()
	if err != nil {
		return fmt.Errorf("redis error: %w", err)
	}

	switch code {
	case statusOK:
		return nil
	case statusNotFound:
		return fmt.Errorf("%w: account %s", common.ErrorNotFound, username)
	case statusRoleNotFound:
		return fmt.Errorf("%w: role %s", common.ErrorNotFound, role)
	case statusExists:
		return fmt.Errorf("%w: %s already has role %s", common.ErrorAlreadyExists, username, role)
	default:
		return fmt.Errorf("redis error: unknown add role status %d", code)
	}
}

func parseMillis(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms), nil
}
