//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
// This is used when the cgo_sqlite build tag is set, and is required for Spatialite.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package sqlite3

import (
	"database/sql"

	sqlite3 "github.com/mattn/go-sqlite3"
)

const (
	driverName = "sqlite3"
	driverType = "cgo"

	spatialiteDriverName = "sqlite3_spatialite"
)

func init() {
	sql.Register(spatialiteDriverName, &sqlite3.SQLiteDriver{
		Extensions: []string{"mod_spatialite"},
	})
}
