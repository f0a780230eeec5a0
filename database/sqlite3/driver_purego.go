//go:build !cgo_sqlite

package sqlite3

import (
	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"
	driverType = "purego"

	// mod_spatialite can only be loaded through the cgo driver.
	spatialiteDriverName = ""
)
