package schema

import (
	"fmt"
	"reflect"
	"strings"
)

// FieldKind tells whether a field is a plain column, a reference to another
// table, or a many-to-many relation that lives in a junction table.
type FieldKind interface {
	fieldKind()
}

type Scalar struct{}

type ForeignKey struct {
	TargetTable  string
	TargetColumn string
}

type ManyToMany struct {
	Through     *Model
	AutoCreated bool
	// Names of the junction fields pointing at the owning and related models.
	SourceField string
	TargetField string
}

func (Scalar) fieldKind()     {}
func (ForeignKey) fieldKind() {}
func (ManyToMany) fieldKind() {}

type GeometryOptions struct {
	GeomType     string
	SRID         int
	Dim          int
	SpatialIndex bool
}

type Field struct {
	Name   string
	Column string
	// Type is the semantic type name such as "CharField" or "AutoField".
	// For foreign keys it is the type of the referenced field.
	Type string
	// DBType overrides the dialect's type mapping when set.
	DBType string

	MaxLength     int
	MaxDigits     int
	DecimalPlaces int

	Null       bool
	Blank      bool
	Unique     bool
	PrimaryKey bool
	DBIndex    bool

	// Default is a literal value or a func() any evaluated at every use.
	Default any
	Check   string

	DBCollation  string
	DBTablespace string

	Kind     FieldKind
	Geometry *GeometryOptions
}

func (f *Field) ColumnName() string {
	if f.Column != "" {
		return f.Column
	}
	return f.Name
}

// IsUnique is true for unique fields and primary keys.
func (f *Field) IsUnique() bool {
	return f.Unique || f.PrimaryKey
}

func (f *Field) kind() FieldKind {
	if f.Kind == nil {
		return Scalar{}
	}
	return f.Kind
}

func (f *Field) foreignKey() (ForeignKey, bool) {
	fk, ok := f.kind().(ForeignKey)
	return fk, ok
}

func (f *Field) manyToMany() (ManyToMany, bool) {
	m2m, ok := f.kind().(ManyToMany)
	return m2m, ok
}

func (f *Field) isAutoField() bool {
	if _, ok := f.kind().(Scalar); !ok {
		return false
	}
	return autoFieldTypes[f.Type]
}

func (f *Field) isSerialField() bool {
	if _, ok := f.kind().(Scalar); !ok {
		return false
	}
	return serialFieldTypes[f.Type]
}

func (f *Field) emptyStringsAllowed() bool {
	if _, ok := f.kind().(Scalar); !ok {
		return false
	}
	return stringFieldTypes[f.Type]
}

var autoFieldTypes = map[string]bool{
	"AutoField":      true,
	"BigAutoField":   true,
	"SmallAutoField": true,
}

var serialFieldTypes = map[string]bool{
	"SerialField":      true,
	"BigSerialField":   true,
	"SmallSerialField": true,
}

var stringFieldTypes = map[string]bool{
	"CharField":     true,
	"TextField":     true,
	"SlugField":     true,
	"EmailField":    true,
	"URLField":      true,
	"FileField":     true,
	"FilePathField": true,
	"ImageField":    true,
}

// Reference is an incoming foreign key: Field on Model points at the owner.
type Reference struct {
	Model *Model
	Field *Field
}

type Model struct {
	Name   string
	Table  string
	Fields []*Field
	// PrimaryKey lists field names of a composite primary key.
	PrimaryKey     []string
	UniqueTogether [][]string
	IndexTogether  [][]string
	Indexes        []*Index
	Tablespace     string
	ReferencedBy   []Reference
}

type Index struct {
	Name         string
	Fields       []string
	Opclasses    []string
	Condition    string
	Tablespace   string
	Concurrently bool
}

func (m *Model) modelName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.Table
}

func (m *Model) Field(name string) *Field {
	for _, f := range m.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

func (m *Model) primaryKeyField() *Field {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

func (m *Model) hasCompositePrimaryKey() bool {
	return len(m.PrimaryKey) > 1
}

// columnsFor resolves field names to column names.
func (m *Model) columnsFor(fieldNames []string) ([]string, error) {
	columns := make([]string, 0, len(fieldNames))
	for _, name := range fieldNames {
		f := m.Field(name)
		if f == nil {
			return nil, fmt.Errorf("model %q has no field %q", m.modelName(), name)
		}
		columns = append(columns, f.ColumnName())
	}
	return columns, nil
}

// NewManyToMany builds a many-to-many field on model pointing at target,
// together with its auto-created junction model.
func NewManyToMany(model *Model, name string, target *Model) (*Field, error) {
	sourcePK, targetPK := model.primaryKeyField(), target.primaryKeyField()
	if sourcePK == nil || targetPK == nil {
		return nil, fmt.Errorf("many-to-many %s.%s needs single-column primary keys on both sides", model.modelName(), name)
	}

	from := strings.ToLower(model.modelName())
	to := strings.ToLower(target.modelName())
	if from == to {
		from, to = "from_"+from, "to_"+to
	}

	through := &Model{
		Name:  model.modelName() + "_" + name,
		Table: model.Table + "_" + name,
		Fields: []*Field{
			{Name: "id", Type: "AutoField", PrimaryKey: true},
			{
				Name:    from,
				Column:  from + "_id",
				Type:    sourcePK.Type,
				DBIndex: true,
				Kind:    ForeignKey{TargetTable: model.Table, TargetColumn: sourcePK.ColumnName()},
			},
			{
				Name:    to,
				Column:  to + "_id",
				Type:    targetPK.Type,
				DBIndex: true,
				Kind:    ForeignKey{TargetTable: target.Table, TargetColumn: targetPK.ColumnName()},
			},
		},
		UniqueTogether: [][]string{{from, to}},
	}
	return &Field{
		Name: name,
		Kind: ManyToMany{Through: through, AutoCreated: true, SourceField: from, TargetField: to},
	}, nil
}

// fieldsEqual reports whether two descriptors would produce the same column.
// Callable defaults compare by identity.
func fieldsEqual(a, b *Field) bool {
	ac, bc := *a, *b
	ac.Default, bc.Default = nil, nil
	ac.Kind, bc.Kind = nil, nil
	ac.Geometry, bc.Geometry = nil, nil
	if ac != bc {
		return false
	}
	if !kindsEqual(a.kind(), b.kind()) {
		return false
	}
	if (a.Geometry == nil) != (b.Geometry == nil) || (a.Geometry != nil && *a.Geometry != *b.Geometry) {
		return false
	}
	return defaultsEqual(a.Default, b.Default)
}

func kindsEqual(a, b FieldKind) bool {
	am, aok := a.(ManyToMany)
	bm, bok := b.(ManyToMany)
	if aok || bok {
		if !aok || !bok || am.AutoCreated != bm.AutoCreated || am.SourceField != bm.SourceField || am.TargetField != bm.TargetField {
			return false
		}
		if am.Through == nil || bm.Through == nil {
			return am.Through == bm.Through
		}
		if am.Through.Table != bm.Through.Table {
			return false
		}
		ar, br := am.Through.Field(am.TargetField), bm.Through.Field(bm.TargetField)
		if ar == nil || br == nil {
			return ar == br
		}
		return fieldsEqual(ar, br)
	}
	return a == b
}

func defaultsEqual(a, b any) bool {
	av, bv := reflect.ValueOf(a), reflect.ValueOf(b)
	if av.Kind() == reflect.Func || bv.Kind() == reflect.Func {
		return av.Kind() == bv.Kind() && av.Pointer() == bv.Pointer()
	}
	return reflect.DeepEqual(a, b)
}
