package sqlite3

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/k0kubun/schemaedit/database"
)

// DefaultFeatures are the DDL capabilities of SQLite. Constraints cannot be
// altered in place, so column changes go through a table remake, and foreign
// keys are not managed.
var DefaultFeatures = database.Features{
	CanRollbackDDL: true,
}

var ErrSpatialiteUnavailable = errors.New("spatialite requires a binary built with -tags cgo_sqlite")

type Sqlite3Database struct {
	config database.Config
	db     *sql.DB
}

func NewDatabase(config database.Config) (database.Database, error) {
	db, err := sql.Open(driverName, config.DbName)
	if err != nil {
		return nil, err
	}

	return &Sqlite3Database{
		db:     db,
		config: config,
	}, nil
}

// NewSpatialiteDatabase opens the database with mod_spatialite loaded.
func NewSpatialiteDatabase(config database.Config) (database.Database, error) {
	if spatialiteDriverName == "" {
		return nil, ErrSpatialiteUnavailable
	}
	db, err := sql.Open(spatialiteDriverName, config.DbName)
	if err != nil {
		return nil, err
	}

	return &Sqlite3Database{
		db:     db,
		config: config,
	}, nil
}

// DriverType reports "purego" for modernc.org/sqlite and "cgo" for mattn/go-sqlite3.
func DriverType() string {
	return driverType
}

func (d *Sqlite3Database) Features() database.Features {
	return DefaultFeatures
}

func (d *Sqlite3Database) GetConstraints(ctx context.Context, q database.Queryer, table string) (map[string]database.Constraint, error) {
	constraints := map[string]database.Constraint{}

	pkColumns, err := primaryKeyColumns(ctx, q, table)
	if err != nil {
		return nil, err
	}
	if len(pkColumns) > 0 {
		constraints["__primary__"] = database.Constraint{
			Columns:    pkColumns,
			PrimaryKey: true,
			Unique:     true,
		}
	}

	type indexEntry struct {
		name   string
		unique bool
		origin string
	}
	var indexes []indexEntry
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_list(%s)", quoteName(table)))
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		indexes = append(indexes, indexEntry{name: name, unique: unique == 1, origin: origin})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, index := range indexes {
		// The primary key's backing index is already reported as __primary__.
		if index.origin == "pk" {
			continue
		}
		columns, err := indexColumns(ctx, q, index.name)
		if err != nil {
			return nil, err
		}
		constraints[index.name] = database.Constraint{
			Columns: columns,
			Unique:  index.unique,
			Index:   true,
		}
	}

	fkRows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteName(table)))
	if err != nil {
		return nil, err
	}
	defer fkRows.Close()

	foreignKeys := map[int]*database.Constraint{}
	for fkRows.Next() {
		var id, seq int
		var targetTable, fromColumn, onUpdate, onDelete, match string
		var toColumn sql.NullString
		if err := fkRows.Scan(&id, &seq, &targetTable, &fromColumn, &toColumn, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fk, ok := foreignKeys[id]
		if !ok {
			fk = &database.Constraint{ForeignKey: &database.ForeignKeyTarget{Table: targetTable, Column: toColumn.String}}
			foreignKeys[id] = fk
		}
		fk.Columns = append(fk.Columns, fromColumn)
	}
	for id, fk := range foreignKeys {
		constraints[fmt.Sprintf("fk_%d", id)] = *fk
	}
	return constraints, fkRows.Err()
}

func primaryKeyColumns(ctx context.Context, q database.Queryer, table string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteName(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type pkColumn struct {
		name  string
		order int
	}
	var columns []pkColumn
	for rows.Next() {
		var cid, notNull, pkOrder int
		var name, columnType string
		var defaultValue sql.NullString
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &defaultValue, &pkOrder); err != nil {
			return nil, err
		}
		if pkOrder > 0 {
			columns = append(columns, pkColumn{name: name, order: pkOrder})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(columns, func(i, j int) bool { return columns[i].order < columns[j].order })
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names, nil
}

func indexColumns(ctx context.Context, q database.Queryer, index string) ([]string, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA index_info(%s)", quoteName(index)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			columns = append(columns, name.String)
		}
	}
	return columns, rows.Err()
}

// GetSequences returns the AUTOINCREMENT counter of table, if any.
func (d *Sqlite3Database) GetSequences(ctx context.Context, q database.Queryer, table string) ([]database.Sequence, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`)
	if err != nil {
		return nil, err
	}
	hasSequences := rows.Next()
	rows.Close()
	if !hasSequences {
		return nil, nil
	}

	rows, err = q.QueryContext(ctx, `SELECT name FROM sqlite_sequence WHERE name = ?`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sequences []database.Sequence
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		sequences = append(sequences, database.Sequence{Name: name, Table: table})
	}
	return sequences, rows.Err()
}

func (d *Sqlite3Database) DB() *sql.DB {
	return d.db
}

func (d *Sqlite3Database) Close() error {
	return d.db.Close()
}

func (d *Sqlite3Database) GetDefaultSchema() string {
	return ""
}

func quoteName(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
