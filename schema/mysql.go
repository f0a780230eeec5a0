package schema

import (
	"context"
	"encoding/hex"
	"strings"
)

type mysqlDialect struct {
	baseDialect
}

var mysqlDataTypes = map[string]string{
	"AutoField":                 "integer AUTO_INCREMENT",
	"BigAutoField":              "bigint AUTO_INCREMENT",
	"SmallAutoField":            "smallint AUTO_INCREMENT",
	"BinaryField":               "longblob",
	"BooleanField":              "bool",
	"CharField":                 "varchar({max_length})",
	"DateField":                 "date",
	"DateTimeField":             "datetime(6)",
	"DecimalField":              "numeric({max_digits}, {decimal_places})",
	"DurationField":             "bigint",
	"EmailField":                "varchar({max_length})",
	"FileField":                 "varchar({max_length})",
	"FilePathField":             "varchar({max_length})",
	"ImageField":                "varchar({max_length})",
	"FloatField":                "double precision",
	"IntegerField":              "integer",
	"BigIntegerField":           "bigint",
	"SmallIntegerField":         "smallint",
	"PositiveIntegerField":      "integer UNSIGNED",
	"PositiveSmallIntegerField": "smallint UNSIGNED",
	"PositiveBigIntegerField":   "bigint UNSIGNED",
	"GenericIPAddressField":     "char(39)",
	"JSONField":                 "json",
	"SlugField":                 "varchar({max_length})",
	"TextField":                 "longtext",
	"TimeField":                 "time(6)",
	"URLField":                  "varchar({max_length})",
	"UUIDField":                 "char(32)",
}

func newMysqlDialect() *mysqlDialect {
	t := baseTemplates()
	t.RenameTable = "RENAME TABLE {old_table} TO {new_table}"
	t.RetablespaceTable = ""
	t.AlterColumnNull = "MODIFY {column} {type} NULL"
	t.AlterColumnNotNull = "MODIFY {column} {type} NOT NULL"
	t.AlterColumnType = "MODIFY {column} {type}{collation}"
	t.DeleteColumn = "ALTER TABLE {table} DROP COLUMN {column}"
	t.DeleteUnique = "ALTER TABLE {table} DROP INDEX {name}"
	t.CreateFK = "ALTER TABLE {table} ADD CONSTRAINT {name} FOREIGN KEY ({column}) REFERENCES {to_table} ({to_column})"
	t.DeleteFK = "ALTER TABLE {table} DROP FOREIGN KEY {name}"
	t.DeleteIndex = "DROP INDEX {name} ON {table}"
	t.DeleteCheck = "ALTER TABLE {table} DROP CHECK {name}"
	t.DeletePK = "ALTER TABLE {table} DROP PRIMARY KEY"

	return &mysqlDialect{baseDialect{
		templates: t,
		dataTypes: mysqlDataTypes,
		suffixes:  map[string]string{},
		checks:    map[string]string{},
		literals: literalStyle{
			trueLiteral:  "1",
			falseLiteral: "0",
			quoteString:  mysqlStringConstant,
			quoteBytes: func(b []byte) string {
				return "X'" + hex.EncodeToString(b) + "'"
			},
			compactUUID: true,
		},
	}}
}

func mysqlStringConstant(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *mysqlDialect) QuoteName(name string) string {
	if strings.HasPrefix(name, "`") && strings.HasSuffix(name, "`") && len(name) > 1 {
		return name
	}
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// PrepareDefault inlines the default because MySQL does not accept
// parameters in DDL.
func (d *mysqlDialect) PrepareDefault(value any) (Statement, error) {
	literal, err := d.QuoteValue(value)
	if err != nil {
		return Statement{}, err
	}
	return Statement{SQL: literal}, nil
}

// SkipDefault is true for column types that cannot carry a literal default.
func (d *mysqlDialect) SkipDefault(f *Field) bool {
	switch f.Type {
	case "TextField", "BinaryField", "JSONField":
		return f.DBType == ""
	}
	lower := strings.ToLower(f.DBType)
	return strings.Contains(lower, "text") || strings.Contains(lower, "blob") || lower == "json"
}

// AlterColumnTypeSQL restates nullability since MODIFY replaces the whole
// column definition.
func (d *mysqlDialect) AlterColumnTypeSQL(ctx context.Context, ed *Editor, m *Model, old, new *Field, newType string) (Statement, []Statement, error) {
	if new.Null {
		newType += " NULL"
	} else {
		newType += " NOT NULL"
	}
	return alterColumnTypeFragment(ed, new, newType, ""), nil, nil
}

func (d *mysqlDialect) SequenceResetSQL(ctx context.Context, ed *Editor, m *Model) ([]Statement, error) {
	for _, f := range m.Fields {
		if f.isAutoField() {
			return []Statement{{SQL: "ALTER TABLE " + d.QuoteName(m.Table) + " AUTO_INCREMENT = 1"}}, nil
		}
	}
	return nil, nil
}
