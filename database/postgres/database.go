package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/k0kubun/schemaedit/database"
	"github.com/lib/pq"
)

// DefaultFeatures are the DDL capabilities of PostgreSQL.
var DefaultFeatures = database.Features{
	CanRollbackDDL:           true,
	SupportsCombinedAlters:   true,
	SupportsForeignKeys:      true,
	SupportsTablespaces:      true,
	SupportsAlterConstraints: true,
	MaxIndexNameLength:       63,
}

type PostgresDatabase struct {
	config        database.Config
	db            *sql.DB
	defaultSchema *string
}

func NewDatabase(config database.Config) (database.Database, error) {
	db, err := sql.Open(driverName(config), postgresBuildDSN(config))
	if err != nil {
		return nil, err
	}

	return &PostgresDatabase{
		db:     db,
		config: config,
	}, nil
}

func driverName(config database.Config) string {
	if config.Driver == "pgx" {
		return "pgx"
	}
	return "postgres"
}

func (d *PostgresDatabase) Features() database.Features {
	return DefaultFeatures
}

func (d *PostgresDatabase) GetConstraints(ctx context.Context, q database.Queryer, table string) (map[string]database.Constraint, error) {
	schema, table := splitTableName(table, d.GetDefaultSchema())
	constraints := map[string]database.Constraint{}

	const constraintQuery = `SELECT
	c.conname,
	array(
		SELECT ca.attname
		FROM unnest(c.conkey) WITH ORDINALITY AS cols(colid, arridx)
		JOIN pg_attribute AS ca ON cols.colid = ca.attnum
		WHERE ca.attrelid = c.conrelid
		ORDER BY cols.arridx
	),
	c.contype,
	coalesce(fkc.relname, ''),
	coalesce(fka.attname, '')
FROM pg_constraint AS c
JOIN pg_class AS cl ON c.conrelid = cl.oid
JOIN pg_namespace AS ns ON cl.relnamespace = ns.oid
LEFT JOIN pg_class AS fkc ON fkc.oid = c.confrelid
LEFT JOIN pg_attribute AS fka ON fka.attrelid = c.confrelid AND fka.attnum = c.confkey[1]
WHERE ns.nspname = $1 AND cl.relname = $2`
	rows, err := q.QueryContext(ctx, constraintQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var name, kind, fkTable, fkColumn string
		var columns []string
		if err := rows.Scan(&name, pq.Array(&columns), &kind, &fkTable, &fkColumn); err != nil {
			return nil, err
		}
		constraint := database.Constraint{
			Columns:    columns,
			PrimaryKey: kind == "p",
			Unique:     kind == "p" || kind == "u",
			Check:      kind == "c",
		}
		if kind == "f" {
			constraint.ForeignKey = &database.ForeignKeyTarget{Table: fkTable, Column: fkColumn}
		}
		constraints[name] = constraint
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const indexQuery = `SELECT
	ic.relname,
	array(
		SELECT a.attname
		FROM unnest(i.indkey::int2[]) WITH ORDINALITY AS k(attnum, ord)
		JOIN pg_attribute AS a ON a.attrelid = i.indrelid AND a.attnum = k.attnum
		ORDER BY k.ord
	),
	i.indisunique,
	i.indisprimary
FROM pg_index AS i
JOIN pg_class AS ic ON ic.oid = i.indexrelid
JOIN pg_class AS tc ON tc.oid = i.indrelid
JOIN pg_namespace AS ns ON tc.relnamespace = ns.oid
WHERE ns.nspname = $1 AND tc.relname = $2`
	indexRows, err := q.QueryContext(ctx, indexQuery, schema, table)
	if err != nil {
		return nil, err
	}
	defer indexRows.Close()

	for indexRows.Next() {
		var name string
		var columns []string
		var unique, primary bool
		if err := indexRows.Scan(&name, pq.Array(&columns), &unique, &primary); err != nil {
			return nil, err
		}
		// Unique and primary key constraints already listed their backing index.
		if _, ok := constraints[name]; ok {
			continue
		}
		constraints[name] = database.Constraint{
			Columns:    columns,
			PrimaryKey: primary,
			Unique:     unique,
			Index:      true,
		}
	}
	return constraints, indexRows.Err()
}

func (d *PostgresDatabase) GetSequences(ctx context.Context, q database.Queryer, table string) ([]database.Sequence, error) {
	const query = `SELECT s.relname, a.attname
FROM pg_class AS s
JOIN pg_depend AS d ON d.objid = s.oid
	AND d.classid = 'pg_class'::regclass
	AND d.refclassid = 'pg_class'::regclass
JOIN pg_attribute AS a ON d.refobjid = a.attrelid AND d.refobjsubid = a.attnum
JOIN pg_class AS tbl ON tbl.oid = d.refobjid
JOIN pg_namespace AS ns ON tbl.relnamespace = ns.oid
WHERE s.relkind = 'S'
	AND d.deptype IN ('a', 'n')
	AND ns.nspname = $1
	AND tbl.relname = $2`
	schema, tableName := splitTableName(table, d.GetDefaultSchema())
	rows, err := q.QueryContext(ctx, query, schema, tableName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sequences []database.Sequence
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, err
		}
		sequences = append(sequences, database.Sequence{Name: name, Table: table, Column: column})
	}
	return sequences, rows.Err()
}

func (d *PostgresDatabase) IsCollationDeterministic(ctx context.Context, q database.Queryer, collation string) (bool, error) {
	rows, err := q.QueryContext(ctx, `SELECT collisdeterministic FROM pg_collation WHERE collname = $1`, collation)
	if err != nil {
		return false, err
	}
	defer rows.Close()

	if !rows.Next() {
		return true, rows.Err()
	}
	var deterministic bool
	if err := rows.Scan(&deterministic); err != nil {
		return false, err
	}
	return deterministic, nil
}

func (d *PostgresDatabase) DB() *sql.DB {
	return d.db
}

func (d *PostgresDatabase) Close() error {
	return d.db.Close()
}

func (d *PostgresDatabase) GetDefaultSchema() string {
	if d.defaultSchema != nil {
		return *d.defaultSchema
	}

	var defaultSchema string
	err := d.db.QueryRow(`SELECT current_schema()`).Scan(&defaultSchema)
	if err != nil {
		return "public"
	}

	d.defaultSchema = &defaultSchema
	return defaultSchema
}

func postgresBuildDSN(config database.Config) string {
	user := config.User
	password := config.Password
	database := config.DbName
	host := ""
	var options []string

	if config.Socket == "" {
		host = fmt.Sprintf("%s:%d", config.Host, config.Port)
	} else {
		// postgres://user:@%2Fvar%2Frun%2Fpostgresql/dbname is rejected by
		// the URL parser, so the socket directory goes to the host option.
		options = append(options, fmt.Sprintf("host=%s", config.Socket))
	}

	if config.SslMode != "" {
		options = append(options, fmt.Sprintf("sslmode=%s", config.SslMode))
	} else if sslmode, ok := os.LookupEnv("PGSSLMODE"); ok {
		options = append(options, fmt.Sprintf("sslmode=%s", sslmode))
	}

	if sslrootcert, ok := os.LookupEnv("PGSSLROOTCERT"); ok {
		options = append(options, fmt.Sprintf("sslrootcert=%s", sslrootcert))
	}

	// `QueryEscape` instead of `PathEscape` so that colon can be escaped.
	return fmt.Sprintf("postgres://%s:%s@%s/%s?%s", url.QueryEscape(user), url.QueryEscape(password), host, database, strings.Join(options, "&"))
}

func splitTableName(table string, defaultSchema string) (string, string) {
	schema := defaultSchema
	schemaTable := strings.SplitN(table, ".", 2)
	if len(schemaTable) == 2 {
		schema = schemaTable[0]
		table = schemaTable[1]
	}
	return schema, table
}
