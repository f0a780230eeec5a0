package schema

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/lib/pq"
)

type postgresDialect struct {
	baseDialect
}

var postgresDataTypes = map[string]string{
	"AutoField":                 "integer",
	"BigAutoField":              "bigint",
	"SmallAutoField":            "smallint",
	"SerialField":               "serial",
	"BigSerialField":            "bigserial",
	"SmallSerialField":          "smallserial",
	"BinaryField":               "bytea",
	"BooleanField":              "boolean",
	"CharField":                 "varchar({max_length})",
	"DateField":                 "date",
	"DateTimeField":             "timestamp with time zone",
	"DecimalField":              "numeric({max_digits}, {decimal_places})",
	"DurationField":             "interval",
	"EmailField":                "varchar({max_length})",
	"FileField":                 "varchar({max_length})",
	"FilePathField":             "varchar({max_length})",
	"ImageField":                "varchar({max_length})",
	"FloatField":                "double precision",
	"IntegerField":              "integer",
	"BigIntegerField":           "bigint",
	"SmallIntegerField":         "smallint",
	"PositiveIntegerField":      "integer",
	"PositiveSmallIntegerField": "smallint",
	"PositiveBigIntegerField":   "bigint",
	"GenericIPAddressField":     "inet",
	"JSONField":                 "jsonb",
	"SlugField":                 "varchar({max_length})",
	"TextField":                 "text",
	"TimeField":                 "time",
	"URLField":                  "varchar({max_length})",
	"UUIDField":                 "uuid",
	"GeometryField":             "geometry({geom_type},{srid})",
}

func newPostgresDialect() *postgresDialect {
	t := baseTemplates()
	t.CreateIndex = "CREATE INDEX {name} ON {table}{using} ({columns}){extra}"
	t.CreateIndexConcurrently = "CREATE INDEX CONCURRENTLY {name} ON {table}{using} ({columns}){extra}"
	t.DeleteIndex = "DROP INDEX IF EXISTS {name}"
	t.DeleteIndexConcurrently = "DROP INDEX CONCURRENTLY IF EXISTS {name}"
	// Pending deferred checks of the constraint must fire before it can go.
	t.DeleteFK = "SET CONSTRAINTS {name} IMMEDIATE; ALTER TABLE {table} DROP CONSTRAINT {name}"
	t.UpdateWithDefault = "UPDATE {table} SET {column} = {default} WHERE {column} IS NULL; SET CONSTRAINTS ALL IMMEDIATE"
	t.AlterSequenceType = "ALTER SEQUENCE IF EXISTS {sequence} AS {type}"
	t.DeleteSequence = "DROP SEQUENCE IF EXISTS {sequence} CASCADE"
	t.AddIdentity = "ALTER TABLE {table} ALTER COLUMN {column} ADD GENERATED BY DEFAULT AS IDENTITY"
	t.DropIdentity = "ALTER TABLE {table} ALTER COLUMN {column} DROP IDENTITY IF EXISTS"

	return &postgresDialect{baseDialect{
		templates: t,
		dataTypes: postgresDataTypes,
		suffixes: map[string]string{
			"AutoField":      "GENERATED BY DEFAULT AS IDENTITY",
			"BigAutoField":   "GENERATED BY DEFAULT AS IDENTITY",
			"SmallAutoField": "GENERATED BY DEFAULT AS IDENTITY",
		},
		checks: map[string]string{
			"PositiveIntegerField":      "{column} >= 0",
			"PositiveSmallIntegerField": "{column} >= 0",
			"PositiveBigIntegerField":   "{column} >= 0",
		},
		literals: literalStyle{
			trueLiteral:  "true",
			falseLiteral: "false",
			quoteString: func(s string) string {
				return strings.TrimSpace(pq.QuoteLiteral(s))
			},
			quoteBytes: func(b []byte) string {
				return `'\x` + hex.EncodeToString(b) + `'::bytea`
			},
		},
	}}
}

func (d *postgresDialect) QuoteName(name string) string {
	if strings.HasPrefix(name, `"`) && strings.HasSuffix(name, `"`) && len(name) > 1 {
		return name
	}
	return pq.QuoteIdentifier(name)
}

// Prepare inlines parameters. DDL has no bind parameters in PostgreSQL.
func (d *postgresDialect) Prepare(stmt Statement) (Statement, error) {
	sql, err := interpolate(stmt, d.QuoteValue)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: sql}, nil
}

func (d *postgresDialect) TablespaceSQL(tablespace string, inline bool) string {
	if inline {
		return "USING INDEX TABLESPACE " + d.QuoteName(tablespace)
	}
	return "TABLESPACE " + d.QuoteName(tablespace)
}

func (d *postgresDialect) AlterColumnTypeSQL(ctx context.Context, ed *Editor, m *Model, old, new *Field, newType string) (Statement, []Statement, error) {
	t := d.Templates()
	table, column := d.QuoteName(m.Table), d.QuoteName(new.ColumnName())

	oldType, err := ed.dbType(old)
	if err != nil {
		return Statement{}, nil, err
	}
	if (old.DBIndex || old.IsUnique()) && isPatternOpsType(oldType) && !isPatternOpsType(newType) {
		likeName := ed.CreateIndexName(m.Table, []string{old.ColumnName()}, "_like")
		if err := ed.Execute(ctx, d.DeleteIndexSQL(ed, m, likeName, false)); err != nil {
			return Statement{}, nil, err
		}
	}

	using := ""
	oldTemplate, err := ed.typeTemplate(old)
	if err != nil {
		return Statement{}, nil, err
	}
	newTemplate, err := ed.typeTemplate(new)
	if err != nil {
		return Statement{}, nil, err
	}
	if oldTemplate != newTemplate {
		using = fmt.Sprintf(" USING %s::%s", column, newType)
	}
	fragment := alterColumnTypeFragment(ed, new, newType, using)

	var post []Statement
	oldAuto, newAuto := old.isAutoField(), new.isAutoField()
	switch {
	case newAuto && !oldAuto:
		post = append(post, Statement{SQL: expand(t.AddIdentity, "table", table, "column", column)})
	case oldAuto && !newAuto:
		if err := ed.Execute(ctx, Statement{SQL: expand(t.DropIdentity, "table", table, "column", d.QuoteName(old.ColumnName()))}); err != nil {
			return Statement{}, nil, err
		}
		if sequence, err := d.columnSequence(ctx, ed, m, old.ColumnName()); err != nil {
			return Statement{}, nil, err
		} else if sequence != "" {
			post = append(post, Statement{SQL: expand(t.DeleteSequence, "sequence", d.QuoteName(sequence))})
		}
	case oldAuto && newAuto && old.Type != new.Type:
		if sequence, err := d.columnSequence(ctx, ed, m, old.ColumnName()); err != nil {
			return Statement{}, nil, err
		} else if sequence != "" {
			post = append(post, Statement{SQL: expand(t.AlterSequenceType, "sequence", d.QuoteName(sequence), "type", newType)})
		}
	}
	return fragment, post, nil
}

func (d *postgresDialect) columnSequence(ctx context.Context, ed *Editor, m *Model, column string) (string, error) {
	sequences, err := ed.sequences(ctx, m)
	if err != nil {
		return "", err
	}
	for _, sequence := range sequences {
		if sequence.Column == column {
			return sequence.Name, nil
		}
	}
	return "", nil
}

func (d *postgresDialect) FieldIndexesSQL(ctx context.Context, ed *Editor, m *Model, f *Field) ([]Statement, error) {
	stmts, err := d.baseDialect.FieldIndexesSQL(ctx, ed, m, f)
	if err != nil {
		return nil, err
	}
	like, err := d.likeIndexSQL(ctx, ed, m, f)
	if err != nil || like == nil {
		return stmts, err
	}
	return append(stmts, *like), nil
}

// likeIndexSQL returns the pattern-ops index that makes LIKE 'prefix%'
// queries on varchar and text columns use an index.
func (d *postgresDialect) likeIndexSQL(ctx context.Context, ed *Editor, m *Model, f *Field) (*Statement, error) {
	if !f.DBIndex && !f.IsUnique() {
		return nil, nil
	}
	dbType, err := ed.dbType(f)
	if err != nil {
		return nil, err
	}
	if strings.Contains(dbType, "[") {
		return nil, nil
	}

	var opclass string
	switch {
	case strings.HasPrefix(dbType, "varchar"):
		opclass = "varchar_pattern_ops"
	case strings.HasPrefix(dbType, "text"):
		opclass = "text_pattern_ops"
	default:
		return nil, nil
	}

	if f.DBCollation != "" {
		deterministic, err := ed.collationDeterministic(ctx, f.DBCollation)
		if err != nil {
			return nil, err
		}
		if !deterministic {
			return nil, nil
		}
	}

	stmt := d.CreateIndexSQL(ed, m, IndexSpec{
		Name:      ed.CreateIndexName(m.Table, []string{f.ColumnName()}, "_like"),
		Columns:   []string{f.ColumnName()},
		Opclasses: []string{opclass},
	})
	return &stmt, nil
}

func (d *postgresDialect) AfterAlterField(ctx context.Context, ed *Editor, m *Model, old, new *Field) error {
	oldIndexed, newIndexed := old.DBIndex || old.IsUnique(), new.DBIndex || new.IsUnique()
	oldType, err := ed.dbType(old)
	if err != nil {
		return err
	}
	newType, err := ed.dbType(new)
	if err != nil {
		return err
	}

	switch {
	case newIndexed && (!oldIndexed || (!isPatternOpsType(oldType) && isPatternOpsType(newType))):
		like, err := d.likeIndexSQL(ctx, ed, m, new)
		if err != nil || like == nil {
			return err
		}
		return ed.Execute(ctx, *like)
	case oldIndexed && !newIndexed && isPatternOpsType(oldType):
		likeName := ed.CreateIndexName(m.Table, []string{old.ColumnName()}, "_like")
		return ed.Execute(ctx, d.DeleteIndexSQL(ed, m, likeName, false))
	}
	return nil
}

func isPatternOpsType(dbType string) bool {
	return (strings.HasPrefix(dbType, "varchar") || strings.HasPrefix(dbType, "text")) && !strings.Contains(dbType, "[")
}

func (d *postgresDialect) SequenceResetSQL(ctx context.Context, ed *Editor, m *Model) ([]Statement, error) {
	var stmts []Statement
	table := d.QuoteName(m.Table)
	for _, f := range m.Fields {
		if !f.isAutoField() && !f.isSerialField() {
			continue
		}
		column := d.QuoteName(f.ColumnName())
		stmts = append(stmts, Statement{SQL: fmt.Sprintf(
			"SELECT setval(pg_get_serial_sequence(%s, %s), coalesce(max(%s), 1), max(%s) IS NOT null) FROM %s",
			StringConstant(table), StringConstant(f.ColumnName()), column, column, table,
		)})
	}
	return stmts, nil
}
