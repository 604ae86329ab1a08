package admin

import (
	"context"
	"fmt"
	"io"

	"github.com/dmitrijs2005/catalogauth/internal/logging"
	"github.com/dmitrijs2005/catalogauth/internal/server/config"
	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/catalogauth/internal/server/services"
	"github.com/spf13/cobra"
)

// StoreOpener connects to the account store described by cfg and returns the
// repository with a function that releases it.
type StoreOpener func(ctx context.Context, cfg *config.Config) (accounts.Repository, func() error, error)

// App holds the command-line state shared by all authadmin commands.
type App struct {
	out       io.Writer
	openStore StoreOpener
	migrate   func(ctx context.Context, dsn string) error

	configFile string
	envFile    string
	driver     string
	dsn        string
	redisAddr  string
}

// NewApp returns an App that prints to out and talks to the store through
// repomanager.
func NewApp(out io.Writer) *App {
	return &App{
		out:       out,
		openStore: openManager,
		migrate:   migratePostgres,
	}
}

func openManager(ctx context.Context, cfg *config.Config) (accounts.Repository, func() error, error) {
	m, err := repomanager.Open(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return m.Accounts(), m.Close, nil
}

func migratePostgres(ctx context.Context, dsn string) error {
	db, err := repomanager.OpenPostgresDB(ctx, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return repomanager.RunMigrations(ctx, db)
}

// RootCommand builds the authadmin command tree.
func (a *App) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "authadmin",
		Short:         "Administer catalog auth accounts and roles",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.configFile, "config", "c", "", "JSON config file")
	pf.StringVar(&a.envFile, "env-file", ".env", "dotenv file")
	pf.StringVarP(&a.driver, "driver", "D", "", "storage driver: postgres, redis, memory")
	pf.StringVarP(&a.dsn, "dsn", "d", "", "PostgreSQL DSN")
	pf.StringVarP(&a.redisAddr, "redis-addr", "R", "", "Redis address")

	root.AddCommand(
		a.migrateCommand(),
		a.createRoleCommand(),
		a.assignRoleCommand(),
		a.revokeCommand(),
		a.registerCommand(),
		a.seedCommand(),
	)
	return root
}

// loadConfig feeds the persistent flags through the server's config layers
// so the tool reads the same JSON file, .env and environment as the server.
func (a *App) loadConfig() (*config.Config, error) {
	args := []string{"-env-file", a.envFile}
	if a.configFile != "" {
		args = append(args, "-c", a.configFile)
	}
	if a.driver != "" {
		args = append(args, "-D", a.driver)
	}
	if a.dsn != "" {
		args = append(args, "-d", a.dsn)
	}
	if a.redisAddr != "" {
		args = append(args, "-R", a.redisAddr)
	}
	return config.LoadStorageConfig(args)
}

// store is what a command works with: the gateway for every state change
// and the repository for read-only checks.
type store struct {
	cfg   *config.Config
	repo  accounts.Repository
	svc   *services.AuthService
	close func() error
}

func (a *App) openGateway(cmd *cobra.Command) (*store, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewWriter(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	repo, closeFn, err := a.openStore(cmd.Context(), cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	// The tool never signs tokens, so it runs the gateway without an issuer.
	svc := services.NewAuthService(repo, nil, nil, logger.With("tool", "authadmin"), nil)
	return &store{cfg: cfg, repo: repo, svc: svc, close: closeFn}, nil
}

func (a *App) withStore(cmd *cobra.Command, fn func(st *store) error) error {
	st, err := a.openGateway(cmd)
	if err != nil {
		return err
	}
	defer st.close()
	return fn(st)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
