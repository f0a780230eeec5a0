//go:build !windows

package mysql

import (
	"strings"
	"testing"

	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnixSocketConnection(t *testing.T) {
	sock := testutil.ListenUnixSocket(t, "mysql.sock")

	config := database.Config{
		DbName:   "testdb",
		User:     "testuser",
		Password: "testpass",
		Socket:   sock.Path,
	}

	db, err := NewDatabase(config)
	require.NoError(t, err)
	defer db.Close()

	err = db.DB().Ping()
	require.Error(t, err)

	// "connection refused" means socket path was not used (fell back to TCP).
	if strings.Contains(err.Error(), "connection refused") {
		t.Errorf("expected socket to be used, got: %v", err)
	}

	// The engine lookup failed, which must not disable foreign keys.
	assert.True(t, db.Features().SupportsForeignKeys)
}

func TestMysqlBuildDSN(t *testing.T) {
	dsn := mysqlBuildDSN(database.Config{DbName: "app", User: "root", Host: "127.0.0.1", Port: 3306})
	assert.True(t, strings.HasPrefix(dsn, "root@tcp(127.0.0.1:3306)/app?"), dsn)
	assert.Contains(t, dsn, "interpolateParams=true")
}

func TestCheckClauseColumns(t *testing.T) {
	columns := []string{"age", "name", "agent"}
	assert.Equal(t, []string{"age"}, checkClauseColumns("(`age` >= 0)", columns))
	assert.Equal(t, []string{"age", "name"}, checkClauseColumns("((`name` <> _utf8mb4'') and (`age` > 1))", columns))
	assert.Nil(t, checkClauseColumns("(1 = 1)", columns))
}
