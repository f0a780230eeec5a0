// This package turns model and field descriptors into ordered, dialect-specific
// DDL and runs it through a schema-change session.
package schema

import "fmt"

type GeneratorMode int

const (
	GeneratorModeMysql = GeneratorMode(iota)
	GeneratorModePostgres
	GeneratorModeSQLite3
	GeneratorModeSpatialite
)

func (m GeneratorMode) String() string {
	switch m {
	case GeneratorModeMysql:
		return "mysql"
	case GeneratorModePostgres:
		return "postgres"
	case GeneratorModeSQLite3:
		return "sqlite3"
	case GeneratorModeSpatialite:
		return "spatialite"
	default:
		return fmt.Sprintf("GeneratorMode(%d)", int(m))
	}
}

// newDialect returns a fresh dialect for one session. Dialects may hold
// per-session state, so they are never shared between sessions.
func newDialect(mode GeneratorMode) (Dialect, error) {
	switch mode {
	case GeneratorModePostgres:
		return newPostgresDialect(), nil
	case GeneratorModeMysql:
		return newMysqlDialect(), nil
	case GeneratorModeSQLite3:
		return newSqlite3Dialect(), nil
	case GeneratorModeSpatialite:
		return newSpatialiteDialect(), nil
	default:
		return nil, fmt.Errorf("unsupported generator mode: %s", mode)
	}
}
