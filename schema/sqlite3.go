package schema

import (
	"context"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

type sqlite3Dialect struct {
	baseDialect
}

var sqlite3DataTypes = map[string]string{
	"AutoField":                 "integer",
	"BigAutoField":              "integer",
	"SmallAutoField":            "integer",
	"BinaryField":               "BLOB",
	"BooleanField":              "bool",
	"CharField":                 "varchar({max_length})",
	"DateField":                 "date",
	"DateTimeField":             "datetime",
	"DecimalField":              "decimal",
	"DurationField":             "bigint",
	"EmailField":                "varchar({max_length})",
	"FileField":                 "varchar({max_length})",
	"FilePathField":             "varchar({max_length})",
	"ImageField":                "varchar({max_length})",
	"FloatField":                "real",
	"IntegerField":              "integer",
	"BigIntegerField":           "bigint",
	"SmallIntegerField":         "smallint",
	"PositiveIntegerField":      "integer unsigned",
	"PositiveSmallIntegerField": "smallint unsigned",
	"PositiveBigIntegerField":   "bigint unsigned",
	"GenericIPAddressField":     "char(39)",
	"JSONField":                 "text",
	"SlugField":                 "varchar({max_length})",
	"TextField":                 "text",
	"TimeField":                 "time",
	"URLField":                  "varchar({max_length})",
	"UUIDField":                 "char(32)",
}

func newSqlite3Dialect() *sqlite3Dialect {
	t := baseTemplates()
	t.CreateTableUnique = ""
	t.RetablespaceTable = ""
	t.DeleteTable = "DROP TABLE {table}"
	t.DeleteColumn = "ALTER TABLE {table} DROP COLUMN {column}"
	t.CreateUnique = "CREATE UNIQUE INDEX {name} ON {table} ({columns})"
	t.DeleteUnique = "DROP INDEX {name}"
	// Everything else needs a table rebuild.
	for _, template := range []*string{
		&t.AlterColumn, &t.AlterColumnType, &t.AlterColumnNull, &t.AlterColumnNotNull,
		&t.AlterColumnDefault, &t.AlterColumnNoDefault,
		&t.CreateCheck, &t.DeleteCheck, &t.CreateFK, &t.DeleteFK, &t.CreatePK, &t.DeletePK,
	} {
		*template = ""
	}

	checks := map[string]string{
		"PositiveIntegerField":      "{column} >= 0",
		"PositiveSmallIntegerField": "{column} >= 0",
		"PositiveBigIntegerField":   "{column} >= 0",
	}
	return &sqlite3Dialect{baseDialect{
		templates: t,
		dataTypes: sqlite3DataTypes,
		suffixes: map[string]string{
			"AutoField":      "AUTOINCREMENT",
			"BigAutoField":   "AUTOINCREMENT",
			"SmallAutoField": "AUTOINCREMENT",
		},
		checks: checks,
		literals: literalStyle{
			trueLiteral:  "1",
			falseLiteral: "0",
			quoteString:  StringConstant,
			quoteBytes: func(b []byte) string {
				return "X'" + hex.EncodeToString(b) + "'"
			},
			compactUUID: true,
		},
	}}
}

// PrepareDefault inlines the default because SQLite does not accept
// parameters in DDL.
func (d *sqlite3Dialect) PrepareDefault(value any) (Statement, error) {
	literal, err := d.QuoteValue(value)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: literal}, nil
}

// RemakeTable copies the table into a new one with the changed column, then
// swaps the two: create new__<table>, copy rows, drop, rename, recreate indexes.
func (d *sqlite3Dialect) RemakeTable(ctx context.Context, ed *Editor, m *Model, old, new *Field) error {
	remade := remadeModel(m, old, new)
	temp := *remade
	temp.Table = "new__" + m.Table
	temp.ReferencedBy = nil

	var columns, selects []string
	for _, f := range remade.Fields {
		dbType, err := ed.dbType(f)
		if err != nil {
			return err
		}
		if dbType == "" {
			continue
		}

		if new == nil || f != new {
			columns = append(columns, d.QuoteName(f.ColumnName()))
			selects = append(selects, d.QuoteName(f.ColumnName()))
			continue
		}

		def := ed.effectiveDefault(new)
		var defaultSQL string
		if def != nil {
			stmt, err := ed.dialect.PrepareDefault(def)
			if err != nil {
				return err
			}
			defaultSQL = stmt.SQL
		}
		switch {
		case old != nil && old.Null && !new.Null && defaultSQL != "":
			selects = append(selects, fmt.Sprintf("coalesce(%s, %s)", d.QuoteName(old.ColumnName()), defaultSQL))
		case old != nil:
			selects = append(selects, d.QuoteName(old.ColumnName()))
		case defaultSQL != "":
			selects = append(selects, defaultSQL)
		default:
			continue // added nullable column without default stays NULL
		}
		columns = append(columns, d.QuoteName(new.ColumnName()))
	}

	create, err := ed.tableSQL(ctx, &temp)
	if err != nil {
		return err
	}
	stmts := []Statement{
		create,
		{SQL: fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
			d.QuoteName(temp.Table), strings.Join(columns, ", "), strings.Join(selects, ", "), d.QuoteName(m.Table))},
		{SQL: expand(d.templates.DeleteTable, "table", d.QuoteName(m.Table))},
		{SQL: expand(d.templates.RenameTable, "old_table", d.QuoteName(temp.Table), "new_table", d.QuoteName(m.Table))},
	}
	if err := ed.executeAll(ctx, stmts); err != nil {
		return err
	}

	indexes, err := ed.modelIndexesSQL(ctx, remade)
	if err != nil {
		return err
	}
	if err := ed.executeAll(ctx, indexes); err != nil {
		return err
	}
	if new != nil && old == nil {
		return ed.dialect.AfterAddField(ctx, ed, remade, new)
	}
	return nil
}

// remadeModel returns m with old replaced by new. A nil old appends new, a
// nil new removes old together with groupings that mention it.
func remadeModel(m *Model, old, new *Field) *Model {
	remade := *m
	remade.Fields = nil

	replaced := false
	for _, f := range m.Fields {
		if (old != nil && f.Name == old.Name) || (new != nil && f.Name == new.Name) {
			if new != nil && !replaced {
				remade.Fields = append(remade.Fields, new)
				replaced = true
			}
			continue
		}
		remade.Fields = append(remade.Fields, f)
	}
	if new != nil && !replaced {
		remade.Fields = append(remade.Fields, new)
	}

	if new == nil && old != nil {
		remade.UniqueTogether = groupsWithout(m.UniqueTogether, old.Name)
		remade.IndexTogether = groupsWithout(m.IndexTogether, old.Name)
		var indexes []*Index
		for _, index := range m.Indexes {
			if !slices.Contains(index.Fields, old.Name) {
				indexes = append(indexes, index)
			}
		}
		remade.Indexes = indexes
	}
	if new != nil && old != nil && old.Name != new.Name {
		remade.UniqueTogether = renameInGroups(m.UniqueTogether, old.Name, new.Name)
		remade.IndexTogether = renameInGroups(m.IndexTogether, old.Name, new.Name)
	}
	return &remade
}

func groupsWithout(groups [][]string, name string) [][]string {
	var out [][]string
	for _, group := range groups {
		if !slices.Contains(group, name) {
			out = append(out, group)
		}
	}
	return out
}

func renameInGroups(groups [][]string, from, to string) [][]string {
	out := make([][]string, len(groups))
	for i, group := range groups {
		out[i] = make([]string, len(group))
		for j, name := range group {
			if name == from {
				name = to
			}
			out[i][j] = name
		}
	}
	return out
}

func (d *sqlite3Dialect) SequenceResetSQL(ctx context.Context, ed *Editor, m *Model) ([]Statement, error) {
	sequences, err := ed.sequences(ctx, m)
	if err != nil {
		return nil, err
	}
	if len(sequences) == 0 {
		return nil, nil
	}

	var stmts []Statement
	for _, f := range m.Fields {
		if !f.isAutoField() {
			continue
		}
		stmts = append(stmts, Statement{SQL: fmt.Sprintf(
			"UPDATE sqlite_sequence SET seq = (SELECT max(%s) FROM %s) WHERE name = %s",
			d.QuoteName(f.ColumnName()), d.QuoteName(m.Table), StringConstant(m.Table),
		)})
	}
	return stmts, nil
}
