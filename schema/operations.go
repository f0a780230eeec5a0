package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/k0kubun/schemaedit/util"
)

// CreateModel creates the table of m with its indexes and the junction
// tables of its auto-created many-to-many fields. Foreign keys are deferred.
func (ed *Editor) CreateModel(ctx context.Context, m *Model) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}

	stmt, err := ed.tableSQL(ctx, m)
	if err != nil {
		return err
	}
	if err := ed.Execute(ctx, stmt); err != nil {
		return err
	}
	for _, f := range m.Fields {
		if f.isAutoField() {
			if err := ed.executeAll(ctx, ed.dialect.AutoincSQL(m, f)); err != nil {
				return err
			}
		}
	}

	indexes, err := ed.modelIndexesSQL(ctx, m)
	if err != nil {
		return err
	}
	if err := ed.executeAll(ctx, indexes); err != nil {
		return err
	}
	if err := ed.dialect.AfterCreateModel(ctx, ed, m); err != nil {
		return err
	}

	for _, f := range m.Fields {
		if m2m, ok := f.manyToMany(); ok && m2m.AutoCreated && m2m.Through != nil {
			if err := ed.CreateModel(ctx, m2m.Through); err != nil {
				return err
			}
		}
	}
	return nil
}

// tableSQL builds CREATE TABLE for m and queues its foreign keys.
func (ed *Editor) tableSQL(ctx context.Context, m *Model) (Statement, error) {
	t := ed.dialect.Templates()
	q := ed.dialect.QuoteName

	var definitions []string
	var params []any
	for _, f := range m.Fields {
		column, err := ed.dialect.ColumnSQL(ctx, ed, m, f, false)
		if err != nil {
			return Statement{}, err
		}
		if column.SQL == "" {
			continue
		}
		if check := ed.checkSQL(f); check != "" {
			column.SQL += " CHECK (" + check + ")"
		}
		if fk, ok := f.foreignKey(); ok && ed.features.SupportsForeignKeys {
			ed.Defer(ed.createFKSQL(m, f, fk))
		}
		definitions = append(definitions, q(f.ColumnName())+" "+column.SQL)
		params = append(params, column.Params...)
	}

	if m.hasCompositePrimaryKey() {
		columns, err := m.columnsFor(m.PrimaryKey)
		if err != nil {
			return Statement{}, err
		}
		definitions = append(definitions, "PRIMARY KEY ("+ed.quoteColumns(columns)+")")
	}
	if t.CreateTableUnique != "" {
		for _, fields := range m.UniqueTogether {
			columns, err := m.columnsFor(fields)
			if err != nil {
				return Statement{}, err
			}
			definitions = append(definitions, expand(t.CreateTableUnique, "columns", ed.quoteColumns(columns)))
		}
	}

	sql := expand(t.CreateTable, "table", q(m.Table), "definition", strings.Join(definitions, ", "))
	if m.Tablespace != "" && ed.features.SupportsTablespaces {
		if tablespace := ed.dialect.TablespaceSQL(m.Tablespace, false); tablespace != "" {
			sql += " " + tablespace
		}
	}
	return Statement{SQL: sql, Params: params}, nil
}

// modelIndexesSQL returns the indexes created right after the table: field
// indexes, groupings and explicit indexes.
func (ed *Editor) modelIndexesSQL(ctx context.Context, m *Model) ([]Statement, error) {
	var stmts []Statement
	for _, f := range m.Fields {
		if _, ok := f.manyToMany(); ok {
			continue
		}
		fieldIndexes, err := ed.dialect.FieldIndexesSQL(ctx, ed, m, f)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, fieldIndexes...)
	}

	if ed.dialect.Templates().CreateTableUnique == "" {
		for _, fields := range m.UniqueTogether {
			columns, err := m.columnsFor(fields)
			if err != nil {
				return nil, err
			}
			stmts = append(stmts, ed.createUniqueSQL(m, columns))
		}
	}
	for _, fields := range m.IndexTogether {
		stmt, err := ed.indexTogetherSQL(m, fields)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	for _, index := range m.Indexes {
		stmt, err := ed.indexSQL(m, index)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

func (ed *Editor) indexTogetherSQL(m *Model, fields []string) (Statement, error) {
	columns, err := m.columnsFor(fields)
	if err != nil {
		return Statement{}, err
	}
	return ed.dialect.CreateIndexSQL(ed, m, IndexSpec{
		Name:       ed.CreateIndexName(m.Table, columns, "_idx"),
		Columns:    columns,
		Tablespace: m.Tablespace,
	}), nil
}

func (ed *Editor) indexSQL(m *Model, index *Index) (Statement, error) {
	columns, err := m.columnsFor(index.Fields)
	if err != nil {
		return Statement{}, err
	}
	return ed.dialect.CreateIndexSQL(ed, m, IndexSpec{
		Name:         ed.indexName(m, index, columns),
		Columns:      columns,
		Opclasses:    index.Opclasses,
		Condition:    index.Condition,
		Tablespace:   index.Tablespace,
		Concurrently: index.Concurrently || ed.config.CreateIndexConcurrently,
	}), nil
}

func (ed *Editor) indexName(m *Model, index *Index, columns []string) string {
	if index.Name != "" {
		return index.Name
	}
	return ed.CreateIndexName(m.Table, columns, "_idx")
}

// DeleteModel drops the junction tables of auto-created many-to-many fields
// and then the table of m.
func (ed *Editor) DeleteModel(ctx context.Context, m *Model) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}

	for _, f := range m.Fields {
		if m2m, ok := f.manyToMany(); ok && m2m.AutoCreated && m2m.Through != nil {
			if err := ed.DeleteModel(ctx, m2m.Through); err != nil {
				return err
			}
		}
	}
	if err := ed.dialect.BeforeDeleteModel(ctx, ed, m); err != nil {
		return err
	}
	return ed.Execute(ctx, Statement{SQL: expand(ed.dialect.Templates().DeleteTable, "table", ed.dialect.QuoteName(m.Table))})
}

// AddField adds the column of f to m. Existing rows receive the effective
// default, which is dropped from the column afterwards.
func (ed *Editor) AddField(ctx context.Context, m *Model, f *Field) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}

	if m2m, ok := f.manyToMany(); ok {
		if m2m.AutoCreated && m2m.Through != nil {
			return ed.CreateModel(ctx, m2m.Through)
		}
		return nil
	}

	dbType, err := ed.dbType(f)
	if err != nil {
		return err
	}
	def := ed.effectiveDefault(f)
	if dbType != "" && !ed.features.SupportsAlterConstraints && (!f.Null || def != nil || f.IsUnique()) {
		return ed.dialect.RemakeTable(ctx, ed, m, nil, f)
	}

	column, err := ed.dialect.ColumnSQL(ctx, ed, m, f, true)
	if err != nil {
		return err
	}
	if column.SQL != "" {
		if check := ed.checkSQL(f); check != "" {
			column.SQL += " CHECK (" + check + ")"
		}
		if fk, ok := f.foreignKey(); ok && ed.features.SupportsForeignKeys {
			ed.Defer(ed.createFKSQL(m, f, fk))
		}

		q := ed.dialect.QuoteName
		if err := ed.Execute(ctx, Statement{
			SQL:    expand(ed.dialect.Templates().CreateColumn, "table", q(m.Table), "column", q(f.ColumnName()), "definition", column.SQL),
			Params: column.Params,
		}); err != nil {
			return err
		}

		if def != nil && !ed.dialect.SkipDefault(f) {
			dropDefault := Statement{SQL: expand(ed.dialect.Templates().AlterColumnNoDefault, "column", q(f.ColumnName()))}
			if err := ed.Execute(ctx, ed.alterColumnSQL(m, dropDefault)); err != nil {
				return err
			}
		}

		indexes, err := ed.dialect.FieldIndexesSQL(ctx, ed, m, f)
		if err != nil {
			return err
		}
		if err := ed.executeAll(ctx, indexes); err != nil {
			return err
		}
	}

	if err := ed.dialect.AfterAddField(ctx, ed, m, f); err != nil {
		return err
	}
	ed.resetConnection()
	return nil
}

// RemoveField drops the column of f, or the junction table of an
// auto-created many-to-many field.
func (ed *Editor) RemoveField(ctx context.Context, m *Model, f *Field) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}

	if m2m, ok := f.manyToMany(); ok {
		if m2m.AutoCreated && m2m.Through != nil {
			return ed.DeleteModel(ctx, m2m.Through)
		}
		return nil
	}

	dbType, err := ed.dbType(f)
	if err != nil {
		return err
	}
	if dbType != "" && !ed.features.SupportsAlterConstraints && (f.IsUnique() || f.DBIndex) {
		return ed.dialect.RemakeTable(ctx, ed, m, f, nil)
	}
	if err := ed.dialect.BeforeRemoveField(ctx, ed, m, f); err != nil {
		return err
	}
	if dbType == "" {
		return nil
	}

	if fk, ok := f.foreignKey(); ok && ed.features.SupportsForeignKeys {
		names, err := ed.dropTargets(ctx, m, []string{f.ColumnName()}, foreignKeyFilter, "foreign key", false, ed.fkName(m.Table, f.ColumnName(), fk))
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dropConstraintSQL(ed.dialect.Templates().DeleteFK, m, name)); err != nil {
				return err
			}
		}
	}

	q := ed.dialect.QuoteName
	if err := ed.Execute(ctx, Statement{SQL: expand(ed.dialect.Templates().DeleteColumn, "table", q(m.Table), "column", q(f.ColumnName()))}); err != nil {
		return err
	}
	ed.resetConnection()
	return nil
}

// AlterUniqueTogether drops groups only in old and creates groups only in new.
// With strict set every dropped group must match exactly one constraint.
func (ed *Editor) AlterUniqueTogether(ctx context.Context, m *Model, old, new [][]string, strict bool) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}

	t := ed.dialect.Templates()
	for _, fields := range util.GroupDifference(old, new) {
		columns, err := m.columnsFor(fields)
		if err != nil {
			return err
		}
		names, err := ed.dropTargets(ctx, m, columns, uniqueFilter, "unique", strict || ed.config.Strict, ed.CreateIndexName(m.Table, columns, "_uniq"))
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dropConstraintSQL(t.DeleteUnique, m, name)); err != nil {
				return err
			}
		}
	}

	for _, fields := range util.GroupDifference(new, old) {
		columns, err := m.columnsFor(fields)
		if err != nil {
			return err
		}
		if err := ed.Execute(ctx, ed.createUniqueSQL(m, columns)); err != nil {
			return err
		}
	}
	return nil
}

// AlterIndexTogether drops groups only in old and creates groups only in new.
func (ed *Editor) AlterIndexTogether(ctx context.Context, m *Model, old, new [][]string, strict bool) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}

	for _, fields := range util.GroupDifference(old, new) {
		columns, err := m.columnsFor(fields)
		if err != nil {
			return err
		}
		var exclude []string
		if len(columns) == 1 {
			exclude = append(exclude, ed.likeIndexName(m, columns[0]))
		}
		names, err := ed.dropTargets(ctx, m, columns, indexFilter, "index", strict || ed.config.Strict, ed.CreateIndexName(m.Table, columns, "_idx"), exclude...)
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dialect.DeleteIndexSQL(ed, m, name, false)); err != nil {
				return err
			}
		}
	}

	for _, fields := range util.GroupDifference(new, old) {
		stmt, err := ed.indexTogetherSQL(m, fields)
		if err != nil {
			return err
		}
		if err := ed.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// AlterDBTable renames the table of m. Equal names are a no-op.
func (ed *Editor) AlterDBTable(ctx context.Context, m *Model, oldTable, newTable string) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	if oldTable == newTable {
		return nil
	}

	q := ed.dialect.QuoteName
	if err := ed.Execute(ctx, Statement{SQL: expand(ed.dialect.Templates().RenameTable, "old_table", q(oldTable), "new_table", q(newTable))}); err != nil {
		return err
	}
	return ed.dialect.AfterAlterDBTable(ctx, ed, m, oldTable, newTable)
}

// AlterDBTablespace moves the table of m. Backends without tablespaces ignore it.
func (ed *Editor) AlterDBTablespace(ctx context.Context, m *Model, oldTablespace, newTablespace string) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	if !ed.features.SupportsTablespaces {
		ed.log.Debug("Skipping tablespace change on backend without tablespaces", "table", m.Table)
		return nil
	}
	if oldTablespace == newTablespace {
		return nil
	}

	q := ed.dialect.QuoteName
	return ed.Execute(ctx, Statement{SQL: expand(ed.dialect.Templates().RetablespaceTable,
		"table", q(m.Table),
		"old_tablespace", q(oldTablespace),
		"new_tablespace", q(newTablespace),
	)})
}

// AddIndex creates an explicit index of m.
func (ed *Editor) AddIndex(ctx context.Context, m *Model, index *Index) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	stmt, err := ed.indexSQL(m, index)
	if err != nil {
		return err
	}
	return ed.Execute(ctx, stmt)
}

// RemoveIndex drops an explicit index of m.
func (ed *Editor) RemoveIndex(ctx context.Context, m *Model, index *Index) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	columns, err := m.columnsFor(index.Fields)
	if err != nil {
		return err
	}
	concurrently := index.Concurrently || ed.config.CreateIndexConcurrently
	return ed.Execute(ctx, ed.dialect.DeleteIndexSQL(ed, m, ed.indexName(m, index, columns), concurrently))
}

// ResetSequences moves auto-increment counters of models past their data.
func (ed *Editor) ResetSequences(ctx context.Context, models ...*Model) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	for _, m := range models {
		stmts, err := ed.dialect.SequenceResetSQL(ctx, ed, m)
		if err != nil {
			return fmt.Errorf("resetting sequences of %s: %w", m.Table, err)
		}
		if err := ed.executeAll(ctx, stmts); err != nil {
			return err
		}
	}
	return nil
}
