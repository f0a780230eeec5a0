// Package plan reads schema-change plans from YAML and replays them on a
// schema editor session.
package plan

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"github.com/k0kubun/schemaedit/schema"
	"gopkg.in/yaml.v2"
)

// Plan is a parsed plan document. Models hold the state before the first
// operation and are updated while the plan is applied.
type Plan struct {
	Models     map[string]*schema.Model
	Operations []OperationSpec
}

func Parse(buf []byte) (*Plan, error) {
	var doc Document
	if err := yaml.UnmarshalStrict(buf, &doc); err != nil {
		return nil, fmt.Errorf("parsing plan: %w", err)
	}

	p := &Plan{Models: map[string]*schema.Model{}, Operations: doc.Operations}
	names := make([]string, 0, len(doc.Models))
	for name := range doc.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		spec := doc.Models[name]
		table := spec.Table
		if table == "" {
			table = name
		}
		p.Models[name] = &schema.Model{
			Name:           name,
			Table:          table,
			PrimaryKey:     spec.PrimaryKey,
			UniqueTogether: spec.UniqueTogether,
			IndexTogether:  spec.IndexTogether,
			Tablespace:     spec.Tablespace,
		}
		for _, index := range spec.Indexes {
			p.Models[name].Indexes = append(p.Models[name].Indexes, buildIndex(index))
		}
	}
	// Fields keep their declared order. Foreign keys take the type of their
	// target, so scalars are resolved first and junction tables last.
	slots := map[string][]*schema.Field{}
	for _, name := range names {
		slots[name] = make([]*schema.Field, len(doc.Models[name].Fields))
	}
	passes := []func(FieldSpec) bool{
		func(spec FieldSpec) bool { return spec.References == nil && spec.ManyToMany == nil },
		func(spec FieldSpec) bool { return spec.References != nil },
		func(spec FieldSpec) bool { return spec.ManyToMany != nil },
	}
	for _, pass := range passes {
		for _, name := range names {
			m := p.Models[name]
			for i, spec := range doc.Models[name].Fields {
				if !pass(spec) {
					continue
				}
				f, err := p.buildField(m, spec)
				if err != nil {
					return nil, err
				}
				slots[name][i] = f
			}
		}
		for _, name := range names {
			p.Models[name].Fields = slices.DeleteFunc(slices.Clone(slots[name]), func(f *schema.Field) bool { return f == nil })
		}
	}

	for i, op := range p.Operations {
		if n := op.count(); n != 1 {
			return nil, fmt.Errorf("operation %d: expected exactly one operation, got %d", i+1, n)
		}
	}
	p.link()
	return p, nil
}

func (op OperationSpec) count() int {
	n := 0
	for _, set := range []bool{
		op.CreateModel != "",
		op.CreateModels != nil,
		op.DeleteModel != "",
		op.AddField != nil,
		op.AlterField != nil,
		op.RemoveField != nil,
		op.AlterUniqueTogether != nil,
		op.AlterIndexTogether != nil,
		op.AlterDBTable != nil,
		op.AlterDBTablespace != nil,
		op.AddIndex != nil,
		op.RemoveIndex != nil,
		op.ResetSequences != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func (op OperationSpec) name() string {
	switch {
	case op.CreateModel != "":
		return "create_model"
	case op.CreateModels != nil:
		return "create_models"
	case op.DeleteModel != "":
		return "delete_model"
	case op.AddField != nil:
		return "add_field"
	case op.AlterField != nil:
		return "alter_field"
	case op.RemoveField != nil:
		return "remove_field"
	case op.AlterUniqueTogether != nil:
		return "alter_unique_together"
	case op.AlterIndexTogether != nil:
		return "alter_index_together"
	case op.AlterDBTable != nil:
		return "alter_db_table"
	case op.AlterDBTablespace != nil:
		return "alter_db_tablespace"
	case op.AddIndex != nil:
		return "add_index"
	case op.RemoveIndex != nil:
		return "remove_index"
	default:
		return "reset_sequences"
	}
}

func (p *Plan) model(name string) (*schema.Model, error) {
	m, ok := p.Models[name]
	if !ok {
		return nil, fmt.Errorf("unknown model %q", name)
	}
	return m, nil
}

func (p *Plan) buildField(m *schema.Model, spec FieldSpec) (*schema.Field, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("model %q: field without a name", m.Name)
	}

	if spec.ManyToMany != nil {
		target, err := p.model(spec.ManyToMany.To)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.Name, spec.Name, err)
		}
		if spec.ManyToMany.Through == "" {
			return schema.NewManyToMany(m, spec.Name, target)
		}
		through, err := p.model(spec.ManyToMany.Through)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.Name, spec.Name, err)
		}
		return &schema.Field{Name: spec.Name, Kind: schema.ManyToMany{Through: through}}, nil
	}

	f := &schema.Field{
		Name:          spec.Name,
		Column:        spec.Column,
		Type:          spec.Type,
		DBType:        spec.DBType,
		MaxLength:     spec.MaxLength,
		MaxDigits:     spec.MaxDigits,
		DecimalPlaces: spec.DecimalPlaces,
		Null:          spec.Null,
		Blank:         spec.Blank,
		Unique:        spec.Unique,
		PrimaryKey:    spec.PrimaryKey,
		DBIndex:       spec.DBIndex,
		Check:         spec.Check,
		DBCollation:   spec.DBCollation,
		DBTablespace:  spec.DBTablespace,
	}
	if g := spec.Geometry; g != nil {
		f.Geometry = &schema.GeometryOptions{GeomType: g.GeomType, SRID: g.SRID, Dim: g.Dim, SpatialIndex: g.SpatialIndex}
	}

	if ref := spec.References; ref != nil {
		target, err := p.model(ref.Model)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", m.Name, spec.Name, err)
		}
		targetField := target.Field(ref.Field)
		if ref.Field == "" {
			targetField = primaryKey(target)
		}
		if targetField == nil {
			return nil, fmt.Errorf("%s.%s: model %q has no field %q", m.Name, spec.Name, ref.Model, ref.Field)
		}
		f.Kind = schema.ForeignKey{TargetTable: target.Table, TargetColumn: targetField.ColumnName()}
		if f.Type == "" {
			f.Type = targetField.Type
		}
		if f.Column == "" {
			f.Column = spec.Name + "_id"
		}
		if !spec.Unique && !spec.PrimaryKey {
			f.DBIndex = true
		}
	}
	if f.Type == "" && f.DBType == "" {
		return nil, fmt.Errorf("%s.%s: field has no type", m.Name, spec.Name)
	}

	if spec.DefaultFunc != "" {
		fn, ok := defaultFuncs[spec.DefaultFunc]
		if !ok {
			return nil, fmt.Errorf("%s.%s: unknown default_func %q", m.Name, spec.Name, spec.DefaultFunc)
		}
		f.Default = fn
	} else if spec.Default != nil {
		def, err := convertDefault(f.Type, spec.Default)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: default: %w", m.Name, spec.Name, err)
		}
		f.Default = def
	}
	return f, nil
}

func buildIndex(spec IndexSpec) *schema.Index {
	return &schema.Index{
		Name:         spec.Name,
		Fields:       spec.Fields,
		Opclasses:    spec.Opclasses,
		Condition:    spec.Condition,
		Tablespace:   spec.Tablespace,
		Concurrently: spec.Concurrently,
	}
}

func primaryKey(m *schema.Model) *schema.Field {
	for _, f := range m.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return nil
}

// link rebuilds the incoming references of every model.
func (p *Plan) link() {
	byTable := map[string]*schema.Model{}
	for _, m := range p.Models {
		m.ReferencedBy = nil
		byTable[m.Table] = m
	}
	for _, name := range p.modelNames() {
		m := p.Models[name]
		for _, f := range m.Fields {
			if fk, ok := f.Kind.(schema.ForeignKey); ok {
				if target, ok := byTable[fk.TargetTable]; ok && target != m {
					target.ReferencedBy = append(target.ReferencedBy, schema.Reference{Model: m, Field: f})
				}
			}
		}
	}
}

func (p *Plan) modelNames() []string {
	names := make([]string, 0, len(p.Models))
	for name := range p.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Apply replays the operations on an open editor session.
func (p *Plan) Apply(ctx context.Context, ed *schema.Editor) error {
	for i, op := range p.Operations {
		slog.Debug("Applying operation", "index", i+1, "operation", op.name())
		if err := p.apply(ctx, ed, op); err != nil {
			return fmt.Errorf("operation %d (%s): %w", i+1, op.name(), err)
		}
		p.link()
	}
	return nil
}

func (p *Plan) apply(ctx context.Context, ed *schema.Editor, op OperationSpec) error {
	switch {
	case op.CreateModel != "":
		m, err := p.model(op.CreateModel)
		if err != nil {
			return err
		}
		return ed.CreateModel(ctx, m)

	case op.CreateModels != nil:
		var models []*schema.Model
		for _, name := range op.CreateModels {
			m, err := p.model(name)
			if err != nil {
				return err
			}
			models = append(models, m)
		}
		sorted, err := schema.SortModelsByDependencies(models)
		if err != nil {
			return err
		}
		for _, m := range sorted {
			if err := ed.CreateModel(ctx, m); err != nil {
				return err
			}
		}
		return nil

	case op.DeleteModel != "":
		m, err := p.model(op.DeleteModel)
		if err != nil {
			return err
		}
		if err := ed.DeleteModel(ctx, m); err != nil {
			return err
		}
		delete(p.Models, op.DeleteModel)
		return nil

	case op.AddField != nil:
		m, err := p.model(op.AddField.Model)
		if err != nil {
			return err
		}
		if m.Field(op.AddField.Field.Name) != nil {
			return fmt.Errorf("model %q already has field %q", m.Name, op.AddField.Field.Name)
		}
		f, err := p.buildField(m, op.AddField.Field)
		if err != nil {
			return err
		}
		if err := ed.AddField(ctx, m, f); err != nil {
			return err
		}
		m.Fields = append(m.Fields, f)
		return nil

	case op.AlterField != nil:
		return p.alterField(ctx, ed, op.AlterField)

	case op.RemoveField != nil:
		m, err := p.model(op.RemoveField.Model)
		if err != nil {
			return err
		}
		f := m.Field(op.RemoveField.Field)
		if f == nil {
			return fmt.Errorf("model %q has no field %q", m.Name, op.RemoveField.Field)
		}
		if err := ed.RemoveField(ctx, m, f); err != nil {
			return err
		}
		m.Fields = slices.DeleteFunc(m.Fields, func(other *schema.Field) bool { return other == f })
		m.UniqueTogether = withoutField(m.UniqueTogether, f.Name)
		m.IndexTogether = withoutField(m.IndexTogether, f.Name)
		m.Indexes = slices.DeleteFunc(m.Indexes, func(index *schema.Index) bool { return slices.Contains(index.Fields, f.Name) })
		return nil

	case op.AlterUniqueTogether != nil:
		spec := op.AlterUniqueTogether
		m, err := p.model(spec.Model)
		if err != nil {
			return err
		}
		old := m.UniqueTogether
		if spec.Old != nil {
			old = spec.Old
		}
		if err := ed.AlterUniqueTogether(ctx, m, old, spec.New, spec.Strict); err != nil {
			return err
		}
		m.UniqueTogether = spec.New
		return nil

	case op.AlterIndexTogether != nil:
		spec := op.AlterIndexTogether
		m, err := p.model(spec.Model)
		if err != nil {
			return err
		}
		old := m.IndexTogether
		if spec.Old != nil {
			old = spec.Old
		}
		if err := ed.AlterIndexTogether(ctx, m, old, spec.New, spec.Strict); err != nil {
			return err
		}
		m.IndexTogether = spec.New
		return nil

	case op.AlterDBTable != nil:
		spec := op.AlterDBTable
		m, err := p.model(spec.Model)
		if err != nil {
			return err
		}
		old := m.Table
		if spec.Old != nil {
			old = *spec.Old
		}
		if err := ed.AlterDBTable(ctx, m, old, spec.New); err != nil {
			return err
		}
		p.retarget(old, spec.New)
		m.Table = spec.New
		return nil

	case op.AlterDBTablespace != nil:
		spec := op.AlterDBTablespace
		m, err := p.model(spec.Model)
		if err != nil {
			return err
		}
		old := m.Tablespace
		if spec.Old != nil {
			old = *spec.Old
		}
		if err := ed.AlterDBTablespace(ctx, m, old, spec.New); err != nil {
			return err
		}
		m.Tablespace = spec.New
		return nil

	case op.AddIndex != nil:
		m, err := p.model(op.AddIndex.Model)
		if err != nil {
			return err
		}
		index := buildIndex(op.AddIndex.Index)
		if err := ed.AddIndex(ctx, m, index); err != nil {
			return err
		}
		m.Indexes = append(m.Indexes, index)
		return nil

	case op.RemoveIndex != nil:
		m, err := p.model(op.RemoveIndex.Model)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(m.Indexes, func(index *schema.Index) bool { return index.Name == op.RemoveIndex.Index })
		if i < 0 {
			return fmt.Errorf("model %q has no index %q", m.Name, op.RemoveIndex.Index)
		}
		if err := ed.RemoveIndex(ctx, m, m.Indexes[i]); err != nil {
			return err
		}
		m.Indexes = slices.Delete(m.Indexes, i, i+1)
		return nil

	default:
		var models []*schema.Model
		for _, name := range op.ResetSequences {
			m, err := p.model(name)
			if err != nil {
				return err
			}
			models = append(models, m)
		}
		return ed.ResetSequences(ctx, models...)
	}
}

func (p *Plan) alterField(ctx context.Context, ed *schema.Editor, spec *AlterFieldSpec) error {
	m, err := p.model(spec.Model)
	if err != nil {
		return err
	}

	name := spec.Field
	if name == "" && spec.Old != nil {
		name = spec.Old.Name
	}
	if name == "" {
		name = spec.New.Name
	}
	current := m.Field(name)
	if current == nil {
		return fmt.Errorf("model %q has no field %q", m.Name, name)
	}
	old := current
	if spec.Old != nil {
		if old, err = p.buildField(m, *spec.Old); err != nil {
			return err
		}
	}
	new, err := p.buildField(m, spec.New)
	if err != nil {
		return err
	}

	if err := ed.AlterField(ctx, m, old, new, spec.Strict); err != nil {
		return err
	}
	m.Fields[slices.Index(m.Fields, current)] = new
	if old.PrimaryKey && new.PrimaryKey && old.Type != new.Type {
		// Referencing columns were converted along with the primary key.
		for _, ref := range m.ReferencedBy {
			i := slices.Index(ref.Model.Fields, ref.Field)
			if i < 0 {
				continue
			}
			converted := *ref.Field
			converted.Type = new.Type
			converted.Kind = schema.ForeignKey{TargetTable: m.Table, TargetColumn: new.ColumnName()}
			ref.Model.Fields[i] = &converted
		}
	}
	if old.Name != new.Name {
		m.UniqueTogether = renameField(m.UniqueTogether, old.Name, new.Name)
		m.IndexTogether = renameField(m.IndexTogether, old.Name, new.Name)
	}
	return nil
}

// retarget points foreign keys at a renamed table.
func (p *Plan) retarget(oldTable, newTable string) {
	for _, m := range p.Models {
		for i, f := range m.Fields {
			if fk, ok := f.Kind.(schema.ForeignKey); ok && fk.TargetTable == oldTable {
				moved := *f
				moved.Kind = schema.ForeignKey{TargetTable: newTable, TargetColumn: fk.TargetColumn}
				m.Fields[i] = &moved
			}
		}
	}
}

func withoutField(groups [][]string, name string) [][]string {
	var out [][]string
	for _, group := range groups {
		if !slices.Contains(group, name) {
			out = append(out, group)
		}
	}
	return out
}

func renameField(groups [][]string, oldName, newName string) [][]string {
	out := make([][]string, 0, len(groups))
	for _, group := range groups {
		renamed := slices.Clone(group)
		for i, name := range renamed {
			if name == oldName {
				renamed[i] = newName
			}
		}
		out = append(out, renamed)
	}
	return out
}
