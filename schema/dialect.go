package schema

import (
	"context"
	"strings"
)

// Templates are the statement shapes of a dialect. Placeholders are written
// as {name}. An empty template means the dialect cannot express the statement.
type Templates struct {
	CreateTable       string
	CreateTableUnique string
	RenameTable       string
	RetablespaceTable string
	DeleteTable       string

	CreateColumn         string
	AlterColumn          string
	AlterColumnType      string
	AlterColumnNull      string
	AlterColumnNotNull   string
	AlterColumnDefault   string
	AlterColumnNoDefault string
	UpdateWithDefault    string
	DeleteColumn         string
	RenameColumn         string

	CreateCheck  string
	DeleteCheck  string
	CreateUnique string
	DeleteUnique string
	CreateFK     string
	DeleteFK     string

	CreateIndex             string
	CreateIndexConcurrently string
	DeleteIndex             string
	DeleteIndexConcurrently string
	CreatePK                string
	DeletePK                string

	AlterSequenceType string
	DeleteSequence    string
	AddIdentity       string
	DropIdentity      string
}

func baseTemplates() Templates {
	return Templates{
		CreateTable:       "CREATE TABLE {table} ({definition})",
		CreateTableUnique: "UNIQUE ({columns})",
		RenameTable:       "ALTER TABLE {old_table} RENAME TO {new_table}",
		RetablespaceTable: "ALTER TABLE {table} SET TABLESPACE {new_tablespace}",
		DeleteTable:       "DROP TABLE {table} CASCADE",

		CreateColumn:         "ALTER TABLE {table} ADD COLUMN {column} {definition}",
		AlterColumn:          "ALTER TABLE {table} {changes}",
		AlterColumnType:      "ALTER COLUMN {column} TYPE {type}{collation}",
		AlterColumnNull:      "ALTER COLUMN {column} DROP NOT NULL",
		AlterColumnNotNull:   "ALTER COLUMN {column} SET NOT NULL",
		AlterColumnDefault:   "ALTER COLUMN {column} SET DEFAULT {default}",
		AlterColumnNoDefault: "ALTER COLUMN {column} DROP DEFAULT",
		UpdateWithDefault:    "UPDATE {table} SET {column} = {default} WHERE {column} IS NULL",
		DeleteColumn:         "ALTER TABLE {table} DROP COLUMN {column} CASCADE",
		RenameColumn:         "ALTER TABLE {table} RENAME COLUMN {old_column} TO {new_column}",

		CreateCheck:  "ALTER TABLE {table} ADD CONSTRAINT {name} CHECK ({check})",
		DeleteCheck:  "ALTER TABLE {table} DROP CONSTRAINT {name}",
		CreateUnique: "ALTER TABLE {table} ADD CONSTRAINT {name} UNIQUE ({columns})",
		DeleteUnique: "ALTER TABLE {table} DROP CONSTRAINT {name}",
		CreateFK:     "ALTER TABLE {table} ADD CONSTRAINT {name} FOREIGN KEY ({column}) REFERENCES {to_table} ({to_column}) DEFERRABLE INITIALLY DEFERRED",
		DeleteFK:     "ALTER TABLE {table} DROP CONSTRAINT {name}",

		CreateIndex: "CREATE INDEX {name} ON {table} ({columns}){extra}",
		DeleteIndex: "DROP INDEX {name}",
		CreatePK:    "ALTER TABLE {table} ADD CONSTRAINT {name} PRIMARY KEY ({columns})",
		DeletePK:    "ALTER TABLE {table} DROP CONSTRAINT {name}",
	}
}

// IndexSpec is a fully resolved index: a name and physical columns.
type IndexSpec struct {
	Name         string
	Columns      []string
	Opclasses    []string
	Condition    string
	Tablespace   string
	Concurrently bool
}

// Dialect holds everything that differs between backends. The editor calls
// these hooks at fixed points of each operation; dialects call back into the
// editor to execute statements and to reach the introspection layer.
type Dialect interface {
	Templates() *Templates
	QuoteName(name string) string
	QuoteValue(value any) (string, error)

	DataTypes() map[string]string
	DataTypeSuffixes() map[string]string
	CheckConstraints() map[string]string

	ColumnSQL(ctx context.Context, ed *Editor, m *Model, f *Field, includeDefault bool) (Statement, error)
	PrepareDefault(value any) (Statement, error)
	SkipDefault(f *Field) bool
	TablespaceSQL(tablespace string, inline bool) string
	AlterColumnTypeSQL(ctx context.Context, ed *Editor, m *Model, old, new *Field, newType string) (Statement, []Statement, error)
	CreateIndexSQL(ed *Editor, m *Model, spec IndexSpec) Statement
	DeleteIndexSQL(ed *Editor, m *Model, name string, concurrently bool) Statement
	FieldIndexesSQL(ctx context.Context, ed *Editor, m *Model, f *Field) ([]Statement, error)
	AutoincSQL(m *Model, f *Field) []Statement
	SequenceResetSQL(ctx context.Context, ed *Editor, m *Model) ([]Statement, error)

	// Prepare runs right before a statement is executed or collected.
	Prepare(stmt Statement) (Statement, error)

	// RemakeTable rebuilds a table for backends that cannot alter columns in
	// place. A nil old field adds new, a nil new field drops old.
	RemakeTable(ctx context.Context, ed *Editor, m *Model, old, new *Field) error

	AfterCreateModel(ctx context.Context, ed *Editor, m *Model) error
	BeforeDeleteModel(ctx context.Context, ed *Editor, m *Model) error
	AfterAddField(ctx context.Context, ed *Editor, m *Model, f *Field) error
	BeforeRemoveField(ctx context.Context, ed *Editor, m *Model, f *Field) error
	AfterAlterField(ctx context.Context, ed *Editor, m *Model, old, new *Field) error
	AfterAlterDBTable(ctx context.Context, ed *Editor, m *Model, oldTable, newTable string) error
}

// baseDialect implements the shared behavior. Methods that need other hooks
// of the concrete dialect go through ed.dialect.
type baseDialect struct {
	templates Templates
	dataTypes map[string]string
	suffixes  map[string]string
	checks    map[string]string
	literals  literalStyle
}

func (d *baseDialect) Templates() *Templates {
	return &d.templates
}

func (d *baseDialect) QuoteName(name string) string {
	return ansiQuoteName(name)
}

func (d *baseDialect) QuoteValue(value any) (string, error) {
	return d.literals.quoteValue(value)
}

func (d *baseDialect) DataTypes() map[string]string {
	return d.dataTypes
}

func (d *baseDialect) DataTypeSuffixes() map[string]string {
	return d.suffixes
}

func (d *baseDialect) CheckConstraints() map[string]string {
	return d.checks
}

func (d *baseDialect) ColumnSQL(ctx context.Context, ed *Editor, m *Model, f *Field, includeDefault bool) (Statement, error) {
	dbType, err := ed.dbType(f)
	if err != nil || dbType == "" {
		return Statement{}, err
	}

	parts := []string{dbType}
	var params []any
	if f.DBCollation != "" {
		parts = append(parts, "COLLATE "+ed.dialect.QuoteName(f.DBCollation))
	}
	if includeDefault {
		if def := ed.effectiveDefault(f); def != nil && !ed.dialect.SkipDefault(f) {
			stmt, err := ed.dialect.PrepareDefault(def)
			if err != nil {
				return Statement{}, err
			}
			parts = append(parts, "DEFAULT "+stmt.SQL)
			params = append(params, stmt.Params...)
		}
	}

	null := f.Null
	if ed.features.InterpretsEmptyStringsAsNulls && f.emptyStringsAllowed() && !f.PrimaryKey {
		null = true
	}
	if null {
		parts = append(parts, "NULL")
	} else {
		parts = append(parts, "NOT NULL")
	}

	if f.PrimaryKey && !m.hasCompositePrimaryKey() {
		parts = append(parts, "PRIMARY KEY")
	} else if f.Unique {
		parts = append(parts, "UNIQUE")
		if tablespace := fieldTablespace(m, f); tablespace != "" && ed.features.SupportsTablespaces {
			if sql := ed.dialect.TablespaceSQL(tablespace, true); sql != "" {
				parts = append(parts, sql)
			}
		}
	}

	if suffix := ed.typeSuffix(f); suffix != "" {
		parts = append(parts, suffix)
	}
	return Statement{SQL: strings.Join(parts, " "), Params: params}, nil
}

func (d *baseDialect) PrepareDefault(value any) (Statement, error) {
	return Statement{SQL: paramMarker, Params: []any{value}}, nil
}

func (d *baseDialect) SkipDefault(f *Field) bool {
	return false
}

func (d *baseDialect) TablespaceSQL(tablespace string, inline bool) string {
	return ""
}

func (d *baseDialect) AlterColumnTypeSQL(ctx context.Context, ed *Editor, m *Model, old, new *Field, newType string) (Statement, []Statement, error) {
	return alterColumnTypeFragment(ed, new, newType, ""), nil, nil
}

func alterColumnTypeFragment(ed *Editor, new *Field, newType string, using string) Statement {
	collation := ""
	if new.DBCollation != "" {
		collation = " COLLATE " + ed.dialect.QuoteName(new.DBCollation)
	}
	sql := expand(ed.dialect.Templates().AlterColumnType,
		"column", ed.dialect.QuoteName(new.ColumnName()),
		"type", newType,
		"collation", collation,
	)
	return Statement{SQL: sql + using}
}

func (d *baseDialect) CreateIndexSQL(ed *Editor, m *Model, spec IndexSpec) Statement {
	t := ed.dialect.Templates()
	template := t.CreateIndex
	if spec.Concurrently && t.CreateIndexConcurrently != "" {
		template = t.CreateIndexConcurrently
	}

	columns := make([]string, len(spec.Columns))
	for i, column := range spec.Columns {
		columns[i] = ed.dialect.QuoteName(column)
		if i < len(spec.Opclasses) && spec.Opclasses[i] != "" {
			columns[i] += " " + spec.Opclasses[i]
		}
	}

	extra := ""
	if spec.Tablespace != "" && ed.features.SupportsTablespaces {
		if sql := ed.dialect.TablespaceSQL(spec.Tablespace, false); sql != "" {
			extra += " " + sql
		}
	}
	if spec.Condition != "" {
		extra += " WHERE " + spec.Condition
	}

	return Statement{SQL: expand(template,
		"name", ed.dialect.QuoteName(spec.Name),
		"table", ed.dialect.QuoteName(m.Table),
		"using", "",
		"columns", strings.Join(columns, ", "),
		"extra", extra,
	)}
}

func (d *baseDialect) DeleteIndexSQL(ed *Editor, m *Model, name string, concurrently bool) Statement {
	t := ed.dialect.Templates()
	template := t.DeleteIndex
	if concurrently && t.DeleteIndexConcurrently != "" {
		template = t.DeleteIndexConcurrently
	}
	return Statement{SQL: expand(template, "name", ed.dialect.QuoteName(name), "table", ed.dialect.QuoteName(m.Table))}
}

// FieldIndexesSQL returns the indexes a single field implies.
func (d *baseDialect) FieldIndexesSQL(ctx context.Context, ed *Editor, m *Model, f *Field) ([]Statement, error) {
	if !f.DBIndex || f.IsUnique() {
		return nil, nil
	}
	return []Statement{ed.fieldIndexSQL(m, f)}, nil
}

func (d *baseDialect) AutoincSQL(m *Model, f *Field) []Statement {
	return nil
}

func (d *baseDialect) SequenceResetSQL(ctx context.Context, ed *Editor, m *Model) ([]Statement, error) {
	return nil, nil
}

func (d *baseDialect) Prepare(stmt Statement) (Statement, error) {
	return stmt, nil
}

func (d *baseDialect) RemakeTable(ctx context.Context, ed *Editor, m *Model, old, new *Field) error {
	return ErrUnsupported
}

func (d *baseDialect) AfterCreateModel(ctx context.Context, ed *Editor, m *Model) error {
	return nil
}

func (d *baseDialect) BeforeDeleteModel(ctx context.Context, ed *Editor, m *Model) error {
	return nil
}

func (d *baseDialect) AfterAddField(ctx context.Context, ed *Editor, m *Model, f *Field) error {
	return nil
}

func (d *baseDialect) BeforeRemoveField(ctx context.Context, ed *Editor, m *Model, f *Field) error {
	return nil
}

func (d *baseDialect) AfterAlterField(ctx context.Context, ed *Editor, m *Model, old, new *Field) error {
	return nil
}

func (d *baseDialect) AfterAlterDBTable(ctx context.Context, ed *Editor, m *Model, oldTable, newTable string) error {
	return nil
}

func fieldTablespace(m *Model, f *Field) string {
	if f.DBTablespace != "" {
		return f.DBTablespace
	}
	return m.Tablespace
}
