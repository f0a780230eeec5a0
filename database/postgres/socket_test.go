//go:build !windows

package postgres

import (
	"strings"
	"testing"

	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/testutil"
	"github.com/stretchr/testify/require"
)

func TestUnixSocketConnection(t *testing.T) {
	sock := testutil.ListenUnixSocket(t, ".s.PGSQL.5432")

	for _, driver := range []string{"postgres", "pgx"} {
		t.Run(driver, func(t *testing.T) {
			db, err := NewDatabase(database.Config{
				DbName:  "testdb",
				User:    "testuser",
				Socket:  sock.Dir,
				SslMode: "disable",
				Driver:  driver,
			})
			require.NoError(t, err)
			defer db.Close()

			err = db.DB().Ping()
			require.Error(t, err)
			for _, fallback := range []string{"connection refused", "no such file"} {
				if strings.Contains(err.Error(), fallback) {
					t.Errorf("expected the socket in %s to be used, got: %v", sock.Dir, err)
				}
			}
		})
	}
}
