package admin

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/cryptox"
	"github.com/dmitrijs2005/catalogauth/internal/server/config"
	"github.com/dmitrijs2005/catalogauth/internal/server/policy"
	"github.com/spf13/cobra"
)

func (a *App) migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations (postgres only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			if cfg.StorageDriver != config.DriverPostgres {
				return fmt.Errorf("migrate: storage driver %q has no schema", cfg.StorageDriver)
			}
			if err := a.migrate(cmd.Context(), cfg.DatabaseDSN); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			a.printf("Migrations applied\n")
			return nil
		},
	}
}

func (a *App) createRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "create-role ROLE",
		Short: "Create a role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store) error {
				if err := st.svc.CreateRole(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("Role %s created\n", args[0])
				return nil
			})
		},
	}
}

func (a *App) assignRoleCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "assign-role USERNAME ROLE",
		Short: "Add a role to a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			username, role := args[0], args[1]
			return a.withStore(cmd, func(st *store) error {
				if err := st.svc.AssignRole(cmd.Context(), username, role); err != nil {
					if errors.Is(err, common.ErrorAlreadyExists) {
						return fmt.Errorf("user %s already has role %s", username, role)
					}
					return err
				}
				a.printf("Role %s added to %s\n", role, username)
				return nil
			})
		},
	}
}

func (a *App) revokeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "revoke USERNAME",
		Short: "Clear a user's refresh token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store) error {
				if err := st.svc.Revoke(cmd.Context(), args[0]); err != nil {
					return err
				}
				a.printf("Refresh token of %s revoked\n", args[0])
				return nil
			})
		},
	}
}

func (a *App) registerCommand() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "register USERNAME",
		Short: "Create an account, prompting for its password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store) error {
				exists, err := accountExists(cmd.Context(), st, args[0])
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("user %s already exists", args[0])
				}
				if err := a.register(cmd.Context(), st, args[0], email); err != nil {
					return err
				}
				a.printf("User %s created\n", args[0])
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func (a *App) seedCommand() *cobra.Command {
	var username, email string
	var adopt bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the Admin and SuperAdmin roles and the super-admin account",
		Long: "Creates the Admin and SuperAdmin roles and the super-admin account, prompting for its password.\n" +
			"An existing account that lacks the SuperAdmin role is never promoted unless --adopt-existing is given,\n" +
			"because anyone may have registered that username through the public API.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd, func(st *store) error {
				ctx := cmd.Context()
				roles := []string{policy.RoleAdmin, policy.RoleSuperAdmin}

				name := username
				if name == "" {
					name = st.cfg.SuperAdminPrincipal
				}

				// Refuse before touching anything.
				acct, err := st.repo.FindByUsername(ctx, name)
				switch {
				case err == nil:
					if !slices.Contains(acct.Roles, policy.RoleSuperAdmin) && !adopt {
						return fmt.Errorf("account %s already exists without the %s role; verify who owns it and rerun with --adopt-existing to promote it",
							name, policy.RoleSuperAdmin)
					}
				case errors.Is(err, common.ErrorNotFound):
					acct = nil
				default:
					return err
				}

				for _, r := range roles {
					if err := st.svc.CreateRole(ctx, r); err != nil && !errors.Is(err, common.ErrorConflict) {
						return fmt.Errorf("create role %s: %w", r, err)
					}
				}

				if acct == nil {
					if err := a.register(ctx, st, name, email); err != nil {
						return err
					}
					a.printf("User %s created\n", name)
				}

				for _, r := range roles {
					if err := st.svc.AssignRole(ctx, name, r); err != nil && !errors.Is(err, common.ErrorAlreadyExists) {
						return fmt.Errorf("assign role %s: %w", r, err)
					}
				}
				a.printf("Seeded %s with roles %v\n", name, roles)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "super-admin username (defaults to the configured super admin principal)")
	cmd.Flags().StringVar(&email, "email", "", "super-admin email")
	cmd.Flags().BoolVar(&adopt, "adopt-existing", false, "grant the roles to an account that already exists without SuperAdmin")
	return cmd
}

func accountExists(ctx context.Context, st *store, username string) (bool, error) {
	_, err := st.repo.FindByUsername(ctx, username)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, common.ErrorNotFound):
		return false, nil
	default:
		return false, err
	}
}

// register prompts for a password and creates username through the gateway.
func (a *App) register(ctx context.Context, st *store, username, email string) error {
	pw, err := getPassword(a.out, fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return err
	}
	defer cryptox.WipeByteArray(pw)

	return st.svc.Register(ctx, username, email, string(pw))
}
