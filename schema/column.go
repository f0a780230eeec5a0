package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/k0kubun/schemaedit/util"
)

// Types a foreign key column takes when it points at an auto-increment key.
var relatedAutoTypes = map[string]string{
	"AutoField":        "IntegerField",
	"BigAutoField":     "BigIntegerField",
	"SmallAutoField":   "SmallIntegerField",
	"SerialField":      "IntegerField",
	"BigSerialField":   "BigIntegerField",
	"SmallSerialField": "SmallIntegerField",
}

// Unsigned types keep their range on the referencing side only where the
// backend needs matching column types.
var relatedPositiveTypes = map[string]string{
	"PositiveIntegerField":      "IntegerField",
	"PositiveSmallIntegerField": "SmallIntegerField",
	"PositiveBigIntegerField":   "BigIntegerField",
}

// typeTemplate returns the uninterpolated column type of a field, or "" when
// the field has no column.
func (ed *Editor) typeTemplate(f *Field) (string, error) {
	if _, ok := f.manyToMany(); ok {
		return "", nil
	}
	if f.DBType != "" {
		return f.DBType, nil
	}

	typ := f.Type
	if _, ok := f.foreignKey(); ok {
		if related, ok := relatedAutoTypes[typ]; ok {
			typ = related
		} else if related, ok := relatedPositiveTypes[typ]; ok && !ed.features.RelatedFieldsMatchType {
			typ = related
		}
	}

	template, ok := ed.dialect.DataTypes()[typ]
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ErrUnknownType, f.Name, f.Type)
	}
	return template, nil
}

// dbType returns the column type of a field, or "" when it has no column.
func (ed *Editor) dbType(f *Field) (string, error) {
	template, err := ed.typeTemplate(f)
	if err != nil || template == "" {
		return "", err
	}

	geomType, srid, dim := "GEOMETRY", "4326", "2"
	if g := f.Geometry; g != nil {
		if g.GeomType != "" {
			geomType = strings.ToUpper(g.GeomType)
		}
		if g.SRID != 0 {
			srid = strconv.Itoa(g.SRID)
		}
		if g.Dim != 0 {
			dim = strconv.Itoa(g.Dim)
		}
	}
	return expand(template,
		"max_length", strconv.Itoa(f.MaxLength),
		"max_digits", strconv.Itoa(f.MaxDigits),
		"decimal_places", strconv.Itoa(f.DecimalPlaces),
		"geom_type", geomType,
		"srid", srid,
		"dim", dim,
	), nil
}

// typeSuffix is the part of an auto-increment column definition that
// follows the constraints, such as an identity clause.
func (ed *Editor) typeSuffix(f *Field) string {
	if !f.isAutoField() {
		return ""
	}
	return ed.dialect.DataTypeSuffixes()[f.Type]
}

// effectiveDefault is the value existing rows get when a column is added or
// made NOT NULL. Callable defaults are evaluated on every call.
func (ed *Editor) effectiveDefault(f *Field) any {
	if f.Default != nil {
		if fn, ok := f.Default.(func() any); ok {
			return fn()
		}
		return f.Default
	}
	if !f.Null && f.Blank && f.emptyStringsAllowed() {
		return ""
	}
	return nil
}

// checkSQL returns the CHECK expression for a field, or "".
func (ed *Editor) checkSQL(f *Field) string {
	if f.Check != "" {
		return f.Check
	}
	if _, ok := f.kind().(Scalar); !ok {
		return ""
	}
	check := ed.dialect.CheckConstraints()[f.Type]
	return expand(check, "column", ed.dialect.QuoteName(f.ColumnName()))
}

// CreateIndexName derives a constraint or index name within the backend's
// identifier length limit.
func (ed *Editor) CreateIndexName(table string, columns []string, suffix string) string {
	return util.CreateIndexName(table, columns, suffix, ed.features.MaxIndexNameLength)
}

func (ed *Editor) fkName(table, column string, fk ForeignKey) string {
	return ed.CreateIndexName(table, []string{column}, "_fk_"+fk.TargetTable+"_"+fk.TargetColumn)
}

func (ed *Editor) quoteColumns(columns []string) string {
	return strings.Join(util.TransformSlice(columns, ed.dialect.QuoteName), ", ")
}

func (ed *Editor) fieldIndexSQL(m *Model, f *Field) Statement {
	return ed.dialect.CreateIndexSQL(ed, m, IndexSpec{
		Name:       ed.CreateIndexName(m.Table, []string{f.ColumnName()}, ""),
		Columns:    []string{f.ColumnName()},
		Tablespace: fieldTablespace(m, f),
	})
}

func (ed *Editor) createFKSQL(m *Model, f *Field, fk ForeignKey) Statement {
	q := ed.dialect.QuoteName
	return Statement{SQL: expand(ed.dialect.Templates().CreateFK,
		"table", q(m.Table),
		"name", q(ed.fkName(m.Table, f.ColumnName(), fk)),
		"column", q(f.ColumnName()),
		"to_table", q(fk.TargetTable),
		"to_column", q(fk.TargetColumn),
	)}
}

func (ed *Editor) createUniqueSQL(m *Model, columns []string) Statement {
	q := ed.dialect.QuoteName
	return Statement{SQL: expand(ed.dialect.Templates().CreateUnique,
		"table", q(m.Table),
		"name", q(ed.CreateIndexName(m.Table, columns, "_uniq")),
		"columns", ed.quoteColumns(columns),
	)}
}

func (ed *Editor) createCheckSQL(m *Model, f *Field, check string) Statement {
	q := ed.dialect.QuoteName
	return Statement{SQL: expand(ed.dialect.Templates().CreateCheck,
		"table", q(m.Table),
		"name", q(ed.CreateIndexName(m.Table, []string{f.ColumnName()}, "_check")),
		"check", check,
	)}
}

func (ed *Editor) alterColumnSQL(m *Model, changes Statement) Statement {
	return Statement{
		SQL:    expand(ed.dialect.Templates().AlterColumn, "table", ed.dialect.QuoteName(m.Table), "changes", changes.SQL),
		Params: changes.Params,
	}
}

func (ed *Editor) dropConstraintSQL(template string, m *Model, name string) Statement {
	return Statement{SQL: expand(template, "table", ed.dialect.QuoteName(m.Table), "name", ed.dialect.QuoteName(name))}
}
