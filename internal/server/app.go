// Package server wires configuration, storage, the auth service and the HTTP
// API together and runs them until the process is told to stop.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/catalogauth/internal/logging"
	"github.com/dmitrijs2005/catalogauth/internal/server/auth"
	"github.com/dmitrijs2005/catalogauth/internal/server/config"
	"github.com/dmitrijs2005/catalogauth/internal/server/metrics"
	"github.com/dmitrijs2005/catalogauth/internal/server/policy"
	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/catalogauth/internal/server/rest"
	"github.com/dmitrijs2005/catalogauth/internal/server/services"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       *repomanager.Manager
	metrics     *metrics.Metrics
	issuer      *auth.Issuer
	policies    *policy.Engine
	authService *services.AuthService
}

// NewApp builds every component from c. It fails fast on bad signing
// configuration or an unreachable store.
func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}
	return newApp(ctx, c, logger)
}

func newApp(ctx context.Context, c *config.Config, logger logging.Logger) (*App, error) {
	issuer, err := auth.NewIssuer(auth.SigningConfig{
		SecretKey: []byte(c.SecretKey),
		AccessTTL: c.AccessTokenValidityDuration,
		Issuer:    c.Issuer,
		Audience:  c.Audience,
	})
	if err != nil {
		return nil, err
	}
	refresh, err := auth.NewRefreshManager(c.RefreshTokenValidityDuration)
	if err != nil {
		return nil, err
	}

	repos, err := repomanager.Open(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	m := metrics.New()
	engine := policy.NewEngine(c.SuperAdminPrincipal)
	svc := services.NewAuthService(repos.Accounts(), issuer, refresh, logger, m)

	logger.Info(ctx, "Components initialized",
		"storage", c.StorageDriver,
		"policies", engine.Names(),
		"access_ttl", c.AccessTokenValidityDuration.String(),
		"refresh_ttl", c.RefreshTokenValidityDuration.String(),
	)

	return &App{
		config:      c,
		logger:      logger,
		repos:       repos,
		metrics:     m,
		issuer:      issuer,
		policies:    engine,
		authService: svc,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := rest.NewServer(app.config.EndpointAddrHTTP, app.logger, app.authService, app.issuer, app.policies, app.metrics)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a termination signal arrives, then
// closes the store.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.repos.Close(); err != nil {
		app.logger.Error(ctx, "closing storage", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
