package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	driver "github.com/go-sql-driver/mysql"
	"github.com/k0kubun/schemaedit/database"
)

// DefaultFeatures are the DDL capabilities of MySQL with InnoDB.
var DefaultFeatures = database.Features{
	SupportsForeignKeys:      true,
	SupportsAlterConstraints: true,
	RelatedFieldsMatchType:   true,
	MaxIndexNameLength:       64,
}

// ER_UNKNOWN_TABLE, returned for information_schema.check_constraints before MySQL 8.0.16.
const errUnknownTable = 1109

type MysqlDatabase struct {
	config   database.Config
	db       *sql.DB
	features database.Features
}

func NewDatabase(config database.Config) (database.Database, error) {
	if config.SslMode == "custom" {
		err := registerTLSConfig(config.SslCa)
		if err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("mysql", mysqlBuildDSN(config))
	if err != nil {
		return nil, err
	}

	features := DefaultFeatures
	features.SupportsForeignKeys = queryStorageEngine(db) != "MyISAM"

	return &MysqlDatabase{
		db:       db,
		config:   config,
		features: features,
	}, nil
}

// queryStorageEngine returns the default storage engine. Tables created with
// MyISAM silently ignore foreign keys, so no FK DDL should be emitted for them.
func queryStorageEngine(db *sql.DB) string {
	var version string
	if err := db.QueryRow("SELECT VERSION()").Scan(&version); err != nil {
		slog.Debug("Failed to get MySQL version", "error", err)
		return ""
	}
	slog.Debug("MySQL server version", "version", version)

	var engine string
	if err := db.QueryRow("SELECT ENGINE FROM INFORMATION_SCHEMA.ENGINES WHERE SUPPORT = 'DEFAULT'").Scan(&engine); err != nil {
		slog.Debug("Failed to get default storage engine", "error", err)
		return ""
	}
	slog.Debug("MySQL default storage engine", "engine", engine)
	return engine
}

func (d *MysqlDatabase) Features() database.Features {
	return d.features
}

func (d *MysqlDatabase) GetConstraints(ctx context.Context, q database.Queryer, table string) (map[string]database.Constraint, error) {
	constraints := map[string]database.Constraint{}

	const keyQuery = `SELECT kc.constraint_name, kc.column_name,
	coalesce(kc.referenced_table_name, ''), coalesce(kc.referenced_column_name, ''),
	c.constraint_type
FROM information_schema.key_column_usage AS kc
JOIN information_schema.table_constraints AS c
	ON kc.table_schema = c.table_schema
	AND kc.table_name = c.table_name
	AND kc.constraint_name = c.constraint_name
WHERE kc.table_schema = DATABASE() AND kc.table_name = ?
ORDER BY kc.constraint_name, kc.ordinal_position`
	rows, err := q.QueryContext(ctx, keyQuery, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, column, refTable, refColumn, kind string
		if err := rows.Scan(&name, &column, &refTable, &refColumn, &kind); err != nil {
			return nil, err
		}
		constraint := constraints[name]
		constraint.Columns = append(constraint.Columns, column)
		constraint.PrimaryKey = kind == "PRIMARY KEY"
		constraint.Unique = kind == "PRIMARY KEY" || kind == "UNIQUE"
		if kind == "FOREIGN KEY" && constraint.ForeignKey == nil {
			constraint.ForeignKey = &database.ForeignKeyTarget{Table: refTable, Column: refColumn}
		}
		constraints[name] = constraint
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := d.addCheckConstraints(ctx, q, table, constraints); err != nil {
		return nil, err
	}

	const indexQuery = `SELECT index_name, column_name, non_unique
FROM information_schema.statistics
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY index_name, seq_in_index`
	indexRows, err := q.QueryContext(ctx, indexQuery, table)
	if err != nil {
		return nil, err
	}
	defer indexRows.Close()

	indexColumns := map[string][]string{}
	for indexRows.Next() {
		var name, column string
		var nonUnique int
		if err := indexRows.Scan(&name, &column, &nonUnique); err != nil {
			return nil, err
		}
		indexColumns[name] = append(indexColumns[name], column)

		constraint, ok := constraints[name]
		if !ok {
			constraint = database.Constraint{
				PrimaryKey: name == "PRIMARY",
				Unique:     nonUnique == 0,
			}
		}
		constraint.Index = true
		constraints[name] = constraint
	}
	for name, columns := range indexColumns {
		constraint := constraints[name]
		if len(constraint.Columns) == 0 {
			constraint.Columns = columns
			constraints[name] = constraint
		}
	}
	return constraints, indexRows.Err()
}

// addCheckConstraints adds CHECK constraints. MySQL does not record which
// columns a check covers, so any column quoted in the clause counts.
func (d *MysqlDatabase) addCheckConstraints(ctx context.Context, q database.Queryer, table string, constraints map[string]database.Constraint) error {
	columns, err := d.columnNames(ctx, q, table)
	if err != nil {
		return err
	}

	const query = `SELECT cc.constraint_name, cc.check_clause
FROM information_schema.check_constraints AS cc
JOIN information_schema.table_constraints AS tc
	ON cc.constraint_schema = tc.constraint_schema
	AND cc.constraint_name = tc.constraint_name
WHERE tc.table_schema = DATABASE() AND tc.table_name = ? AND tc.constraint_type = 'CHECK'`
	rows, err := q.QueryContext(ctx, query, table)
	if err != nil {
		var mysqlErr *driver.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == errUnknownTable {
			slog.Debug("CHECK constraints are not introspectable on this server", "table", table)
			return nil
		}
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name, clause string
		if err := rows.Scan(&name, &clause); err != nil {
			return err
		}
		constraints[name] = database.Constraint{
			Columns: checkClauseColumns(clause, columns),
			Check:   true,
		}
	}
	return rows.Err()
}

func checkClauseColumns(clause string, columns []string) []string {
	var found []string
	for _, column := range columns {
		if strings.Contains(clause, "`"+column+"`") && !slices.Contains(found, column) {
			found = append(found, column)
		}
	}
	return found
}

func (d *MysqlDatabase) columnNames(ctx context.Context, q database.Queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT column_name FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var column string
		if err := rows.Scan(&column); err != nil {
			return nil, err
		}
		columns = append(columns, column)
	}
	return columns, rows.Err()
}

// GetSequences returns nothing: MySQL keeps AUTO_INCREMENT counters on the table itself.
func (d *MysqlDatabase) GetSequences(context.Context, database.Queryer, string) ([]database.Sequence, error) {
	return nil, nil
}

func (d *MysqlDatabase) DB() *sql.DB {
	return d.db
}

func (d *MysqlDatabase) Close() error {
	return d.db.Close()
}

func (d *MysqlDatabase) GetDefaultSchema() string {
	return ""
}

func mysqlBuildDSN(config database.Config) string {
	c := driver.NewConfig()
	c.User = config.User
	c.Passwd = config.Password
	c.DBName = config.DbName
	c.AllowCleartextPasswords = config.MySQLEnableCleartextPlugin
	c.TLSConfig = config.SslMode
	c.InterpolateParams = true
	if config.Socket == "" {
		c.Net = "tcp"
		c.Addr = fmt.Sprintf("%s:%d", config.Host, config.Port)
	} else {
		c.Net = "unix"
		c.Addr = config.Socket
	}
	return c.FormatDSN()
}

func registerTLSConfig(pemPath string) error {
	rootCertPool := x509.NewCertPool()
	pem, err := os.ReadFile(pemPath)
	if err != nil {
		return err
	}

	if ok := rootCertPool.AppendCertsFromPEM(pem); !ok {
		return fmt.Errorf("failed to append PEM")
	}

	return driver.RegisterTLSConfig("custom", &tls.Config{
		RootCAs: rootCertPool,
	})
}
