// Package repomanager opens the configured account store backend and hands
// out its repository.
package repomanager

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/server/config"
	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/accounts"
)

// Manager owns the connection behind the account repository.
type Manager struct {
	accounts accounts.Repository
	closers  []func() error
}

// Open connects to the backend selected by cfg.StorageDriver. For postgres
// the embedded migrations are applied before Open returns.
func Open(ctx context.Context, cfg *config.Config) (*Manager, error) {
	switch cfg.StorageDriver {
	case config.DriverMemory:
		return &Manager{accounts: accounts.NewMemoryRepository()}, nil
	case config.DriverPostgres:
		return openPostgres(ctx, cfg.DatabaseDSN)
	case config.DriverRedis:
		return openRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", common.ErrConfiguration, cfg.StorageDriver)
	}
}

// Accounts returns the account repository.
func (m *Manager) Accounts() accounts.Repository {
	return m.accounts
}

// Close releases the underlying connections.
func (m *Manager) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
