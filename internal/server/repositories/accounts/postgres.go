package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/dbx"
	"github.com/dmitrijs2005/catalogauth/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) FindByUsername(ctx context.Context, username string) (*models.Account, error) {
	query :=
		`SELECT id, username, email, password_hash, refresh_token, refresh_token_expiry, created_at
		 FROM accounts
		 WHERE username = $1
		 `

	var (
		a      models.Account
		token  sql.NullString
		expiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, username).
		Scan(&a.ID, &a.UserName, &a.Email, &a.PasswordHash, &token, &expiry, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if token.Valid {
		a.RefreshToken = &token.String
	}
	if expiry.Valid {
		a.RefreshTokenExpiry = &expiry.Time
	}

	roles, err := accountRoles(ctx, r.db, a.ID)
	if err != nil {
		return nil, err
	}
	a.Roles = roles

	return &a, nil
}

func accountRoles(ctx context.Context, db dbx.DBTX, accountID string) ([]string, error) {
	query :=
		`SELECT r.name FROM roles r
		 JOIN account_roles ar ON ar.role_id = r.id
		 WHERE ar.account_id = $1
		 ORDER BY r.name
		 `

	rows, err := db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	roles := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		roles = append(roles, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return roles, nil
}

func (r *PostgresRepository) Create(ctx context.Context, account *models.Account) (*models.Account, error) {
	query :=
		`INSERT INTO accounts (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at
		 `

	err := r.db.QueryRowContext(ctx, query, account.UserName, account.Email, account.PasswordHash).
		Scan(&account.ID, &account.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: account %s", common.ErrorAlreadyExists, account.UserName)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	if account.Roles == nil {
		account.Roles = []string{}
	}

	return account, nil
}

func (r *PostgresRepository) SetRefreshToken(ctx context.Context, username string, token *string, expiry *time.Time) error {
	query :=
		`UPDATE accounts SET refresh_token = $2, refresh_token_expiry = $3
		 WHERE username = $1
		 `

	var tok, exp any
	if token != nil {
		tok = *token
	}
	if expiry != nil {
		exp = *expiry
	}

	res, err := r.db.ExecContext(ctx, query, username, tok, exp)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) RotateRefreshToken(ctx context.Context, username, oldToken, newToken string, newExpiry, now time.Time) error {
	query :=
		`UPDATE accounts SET refresh_token = $3, refresh_token_expiry = $4
		 WHERE username = $1 AND refresh_token = $2 AND refresh_token_expiry > $5
		 `

	res, err := r.db.ExecContext(ctx, query, username, oldToken, newToken, newExpiry, now)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrRefreshTokenInvalid
	}
	return nil
}

func (r *PostgresRepository) CreateRole(ctx context.Context, name string) (*models.Role, error) {
	query :=
		`INSERT INTO roles (name) VALUES ($1)
		 ON CONFLICT (name) DO NOTHING
		 RETURNING id, created_at
		 `

	role := &models.Role{Name: name}
	err := r.db.QueryRowContext(ctx, query, name).Scan(&role.ID, &role.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: role %s", common.ErrorAlreadyExists, name)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return role, nil
}

func (r *PostgresRepository) RoleExists(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM roles WHERE name = $1)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

// AddRole resolves the account and role ids and links them in one
// transaction.
func (r *PostgresRepository) AddRole(ctx context.Context, username, role string) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var accountID, roleID string

		err := tx.QueryRowContext(ctx, `SELECT id FROM accounts WHERE username = $1`, username).Scan(&accountID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: account %s", common.ErrorNotFound, username)
			}
			return fmt.Errorf("db error: %w", err)
		}

		err = tx.QueryRowContext(ctx, `SELECT id FROM roles WHERE name = $1`, role).Scan(&roleID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: role %s", common.ErrorNotFound, role)
			}
			return fmt.Errorf("db error: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO account_roles (account_id, role_id) VALUES ($1, $2)`, accountID, roleID)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s already has role %s", common.ErrorAlreadyExists, username, role)
			}
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
