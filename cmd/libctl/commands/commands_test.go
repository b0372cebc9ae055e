package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/library-lending/internal/database"
	"github.com/iliyamo/library-lending/internal/repository"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	var status bytes.Buffer
	statusOut = &status
	t.Cleanup(func() {
		statusOut = os.Stderr
		dbDriver, sqlitePath, exportOut = "", "", "-"
		adminName, adminEmail, adminPassword = "", "", ""
	})
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(context.Background())
}

func Test_MigrateCreateAdminAndExport(t *testing.T) {
	dir := t.TempDir()
	dbFile := filepath.Join(dir, "lib.db")
	t.Setenv("BCRYPT_COST", "4")

	require.NoError(t, run(t, "migrate", "--driver", "sqlite", "--sqlite", dbFile))
	require.NoError(t, run(t, "create-admin", "--driver", "sqlite", "--sqlite", dbFile,
		"--name", "Root", "--email", "Root@Lib.test", "--password", "rootpass"))

	err := run(t, "create-admin", "--driver", "sqlite", "--sqlite", dbFile,
		"--name", "Again", "--email", "root@lib.test", "--password", "rootpass")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	db, err := database.OpenSQLite(dbFile)
	require.NoError(t, err)
	u, err := repository.NewUserRepo(db).GetByEmail(context.Background(), "root@lib.test")
	require.NoError(t, err)
	assert.Equal(t, "admin", u.Role.String())
	require.NoError(t, db.Close())

	out := filepath.Join(dir, "books.csv")
	require.NoError(t, run(t, "export", "books", "--driver", "sqlite", "--sqlite", dbFile, "-o", out))
	bs, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "ID,Title,Author,Category,ISBN,Available,Stock", strings.TrimSpace(string(bs)))
}

func Test_CreateAdmin_ValidatesInput(t *testing.T) {
	dbFile := filepath.Join(t.TempDir(), "lib.db")

	err := run(t, "create-admin", "--driver", "sqlite", "--sqlite", dbFile, "--email", "a@b.c", "--password", "rootpass")
	assert.EqualError(t, err, "--name and --email are required")

	err = run(t, "create-admin", "--driver", "sqlite", "--sqlite", dbFile, "--name", "A", "--email", "a@b.c", "--password", "123")
	require.Error(t, err)
}
