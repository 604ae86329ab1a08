package admin

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/catalogauth/internal/common"
	"github.com/dmitrijs2005/catalogauth/internal/cryptox"
	"github.com/dmitrijs2005/catalogauth/internal/server/config"
	"github.com/dmitrijs2005/catalogauth/internal/server/models"
	"github.com/dmitrijs2005/catalogauth/internal/server/repositories/accounts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stubPassword(t *testing.T, pw string, err error) {
	t.Helper()
	orig := readPassword
	readPassword = func(int) ([]byte, error) {
		if err != nil {
			return nil, err
		}
		return []byte(pw), nil
	}
	t.Cleanup(func() { readPassword = orig })
}

type harness struct {
	app    *App
	out    *bytes.Buffer
	repo   *accounts.MemoryRepository
	cfg    *config.Config
	closed int
	envArg []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	for _, name := range []string{config.EnvStorageDriver, config.EnvDatabaseDSN, config.EnvSuperAdminPrincipal} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}

	h := &harness{out: &bytes.Buffer{}, repo: accounts.NewMemoryRepository()}
	h.app = NewApp(h.out)
	h.app.openStore = func(_ context.Context, cfg *config.Config) (accounts.Repository, func() error, error) {
		h.cfg = cfg
		return h.repo, func() error { h.closed++; return nil }, nil
	}
	h.envArg = []string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "-D", "memory"}
	return h
}

func (h *harness) run(args ...string) error {
	root := h.app.RootCommand()
	root.SetArgs(append(append([]string{}, h.envArg...), args...))
	root.SetOut(h.out)
	root.SetErr(h.out)
	return root.ExecuteContext(context.Background())
}

func (h *harness) addUser(t *testing.T, name string) {
	t.Helper()
	_, err := h.repo.Create(context.Background(), &models.Account{UserName: name, PasswordHash: "x", Roles: []string{}})
	require.NoError(t, err)
}

func TestCreateRole(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.run("create-role", "Editor"))
	assert.Contains(t, h.out.String(), "Role Editor created")
	assert.Equal(t, 1, h.closed)

	exists, err := h.repo.RoleExists(context.Background(), "Editor")
	require.NoError(t, err)
	assert.True(t, exists)

	err = h.run("create-role", "Editor")
	require.ErrorIs(t, err, common.ErrorConflict)
	assert.Contains(t, err.Error(), "already exists")
}

func TestCreateRole_NeedsName(t *testing.T) {
	h := newHarness(t)
	require.Error(t, h.run("create-role"))
}

func TestAssignRole(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "alice")
	require.NoError(t, h.run("create-role", "Admin"))

	require.NoError(t, h.run("assign-role", "alice", "Admin"))
	acc, err := h.repo.FindByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Admin"}, acc.Roles)

	err = h.run("assign-role", "alice", "Admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already has role")

	err = h.run("assign-role", "alice", "Ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "role Ghost not found")

	err = h.run("assign-role", "bob", "Admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user bob not found")
}

func TestRevoke(t *testing.T) {
	h := newHarness(t)
	h.addUser(t, "alice")
	ctx := context.Background()
	token := "opaque"
	require.NoError(t, h.repo.SetRefreshToken(ctx, "alice", &token, nil))

	require.NoError(t, h.run("revoke", "alice"))
	acc, err := h.repo.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, acc.RefreshToken)
	assert.False(t, acc.HasSession())

	err = h.run("revoke", "ghost")
	require.ErrorIs(t, err, common.ErrorValidation)
	assert.Contains(t, err.Error(), "invalid username")
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "s3cret!", nil)

	require.NoError(t, h.run("register", "carol", "--email", "carol@example.com"))
	assert.Contains(t, h.out.String(), "User carol created")

	acc, err := h.repo.FindByUsername(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol@example.com", acc.Email)
	assert.Empty(t, acc.Roles)
	assert.True(t, cryptox.CheckPassword(acc.PasswordHash, "s3cret!"))

	err = h.run("register", "carol")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestRegister_PasswordErrors(t *testing.T) {
	h := newHarness(t)

	stubPassword(t, "", nil)
	err := h.run("register", "dave")
	require.ErrorIs(t, err, errEmptyPassword)

	stubPassword(t, "", errors.New("not a terminal"))
	err = h.run("register", "dave")
	require.Error(t, err)

	_, err = h.repo.FindByUsername(context.Background(), "dave")
	require.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSeed(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "root-pass", nil)

	require.NoError(t, h.run("seed"))
	assert.Equal(t, "superadmin", h.cfg.SuperAdminPrincipal)

	acc, err := h.repo.FindByUsername(context.Background(), "superadmin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Admin", "SuperAdmin"}, acc.Roles)

	// Seeding again keeps everything in place and does not prompt.
	stubPassword(t, "", errors.New("should not prompt"))
	require.NoError(t, h.run("seed"))
	acc, err = h.repo.FindByUsername(context.Background(), "superadmin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Admin", "SuperAdmin"}, acc.Roles)
}

func TestSeed_CustomUsername(t *testing.T) {
	h := newHarness(t)
	stubPassword(t, "root-pass", nil)

	require.NoError(t, h.run("seed", "--username", "root"))
	acc, err := h.repo.FindByUsername(context.Background(), "root")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Admin", "SuperAdmin"}, acc.Roles)
}

func TestMigrate(t *testing.T) {
	h := newHarness(t)
	h.envArg = []string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "-D", "postgres", "--dsn", "postgres://db/catalog"}

	var gotDSN string
	h.app.migrate = func(_ context.Context, dsn string) error {
		gotDSN = dsn
		return nil
	}

	require.NoError(t, h.run("migrate"))
	assert.Equal(t, "postgres://db/catalog", gotDSN)
	assert.Contains(t, h.out.String(), "Migrations applied")

	h.app.migrate = func(context.Context, string) error { return errors.New("boom") }
	require.Error(t, h.run("migrate"))
}

func TestMigrate_NonPostgresDriver(t *testing.T) {
	h := newHarness(t)
	h.app.migrate = func(context.Context, string) error {
		t.Fatal("migrate must not be called")
		return nil
	}
	err := h.run("migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has no schema")
}

func TestUnknownDriver(t *testing.T) {
	h := newHarness(t)
	h.envArg = []string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "-D", "mongo"}
	err := h.run("create-role", "Editor")
	require.ErrorIs(t, err, common.ErrConfiguration)
}

func TestSeed_RefusesExistingAccountWithoutSuperAdmin(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	hash, err := cryptox.HashPassword("squatter-pw")
	require.NoError(t, err)
	_, err = h.repo.Create(ctx, &models.Account{UserName: "superadmin", PasswordHash: hash, Roles: []string{}})
	require.NoError(t, err)
	stubPassword(t, "", errors.New("should not prompt"))

	err = h.run("seed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--adopt-existing")

	acc, err := h.repo.FindByUsername(ctx, "superadmin")
	require.NoError(t, err)
	assert.Empty(t, acc.Roles)
	exists, err := h.repo.RoleExists(ctx, "SuperAdmin")
	require.NoError(t, err)
	assert.False(t, exists, "nothing is written when seed refuses")
}

func TestSeed_AdoptExisting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "superadmin")
	stubPassword(t, "", errors.New("should not prompt"))

	require.NoError(t, h.run("seed", "--adopt-existing"))

	acc, err := h.repo.FindByUsername(ctx, "superadmin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Admin", "SuperAdmin"}, acc.Roles)
}

func TestSeed_CompletesPartialSeed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.addUser(t, "superadmin")
	_, err := h.repo.CreateRole(ctx, "SuperAdmin")
	require.NoError(t, err)
	require.NoError(t, h.repo.AddRole(ctx, "superadmin", "SuperAdmin"))

	require.NoError(t, h.run("seed"))

	acc, err := h.repo.FindByUsername(ctx, "superadmin")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Admin", "SuperAdmin"}, acc.Roles)
}

func TestCommands_LogThroughGateway(t *testing.T) {
	h := newHarness(t)
	t.Setenv(config.EnvLogFormat, "text")
	t.Setenv(config.EnvLogLevel, "info")

	require.NoError(t, h.run("create-role", "Editor"))
	assert.Contains(t, h.out.String(), "module=auth")
	assert.Contains(t, h.out.String(), "role=Editor")
}
