package schema

import (
	"context"
	"fmt"
)

// AlterField changes the column of old into new. The order of steps is
// fixed: constraints that could block the change are dropped first, then the
// column is renamed and altered, then constraints are recreated. With strict
// set every dropped constraint must be found exactly once.
func (ed *Editor) AlterField(ctx context.Context, m *Model, old, new *Field, strict bool) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	if fieldsEqual(old, new) {
		return nil
	}
	strict = strict || ed.config.Strict

	oldType, err := ed.dbType(old)
	if err != nil {
		return err
	}
	newType, err := ed.dbType(new)
	if err != nil {
		return err
	}

	oldM2M, oldIsM2M := old.manyToMany()
	newM2M, newIsM2M := new.manyToMany()
	switch {
	case oldType == "" && newType == "" && oldIsM2M && newIsM2M:
		if oldM2M.AutoCreated && newM2M.AutoCreated {
			return ed.alterManyToMany(ctx, oldM2M, newM2M, strict)
		}
		if !oldM2M.AutoCreated && !newM2M.AutoCreated {
			return nil // explicit junction models are altered on their own
		}
		return fmt.Errorf("%w: %s.%s switches between an auto-created and an explicit junction table", ErrIncompatibleFields, m.Table, new.Name)
	case oldType == "" || newType == "":
		return fmt.Errorf("%w: %s.%s (%s to %s)", ErrIncompatibleFields, m.Table, new.Name, old.Type, new.Type)
	}

	if !ed.features.SupportsAlterConstraints && needsRemake(old, new) {
		return ed.dialect.RemakeTable(ctx, ed, m, old, new)
	}
	return ed.alterField(ctx, m, old, new, oldType, newType, strict)
}

// needsRemake is true unless the change is a rename or an index toggle.
func needsRemake(old, new *Field) bool {
	oc, nc := *old, *new
	oc.Name, nc.Name = "", ""
	oc.Column, nc.Column = old.ColumnName(), old.ColumnName()
	oc.DBIndex, nc.DBIndex = false, false
	return !fieldsEqual(&oc, &nc)
}

func (ed *Editor) alterField(ctx context.Context, m *Model, old, new *Field, oldType, newType string, strict bool) error {
	t := ed.dialect.Templates()
	q := ed.dialect.QuoteName
	oldColumn, newColumn := old.ColumnName(), new.ColumnName()
	oldFK, oldHasFK := old.foreignKey()
	newFK, newHasFK := new.foreignKey()

	// Foreign keys go before the indexes backing them.
	if oldHasFK && ed.features.SupportsForeignKeys {
		names, err := ed.dropTargets(ctx, m, []string{oldColumn}, foreignKeyFilter, "foreign key", strict, ed.fkName(m.Table, oldColumn, oldFK))
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dropConstraintSQL(t.DeleteFK, m, name)); err != nil {
				return err
			}
		}
	}

	// Unique constraint that is no longer wanted, or is superseded by a primary key.
	if old.Unique && !old.PrimaryKey && (!new.Unique || new.PrimaryKey) {
		names, err := ed.dropTargets(ctx, m, []string{oldColumn}, uniqueFilter, "unique", strict, ed.CreateIndexName(m.Table, []string{oldColumn}, "_uniq"))
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dropConstraintSQL(t.DeleteUnique, m, name)); err != nil {
				return err
			}
		}
	}

	// Plain index that is dropped or replaced by a unique constraint.
	if old.DBIndex && !old.IsUnique() && (!new.DBIndex || new.IsUnique()) {
		names, err := ed.dropTargets(ctx, m, []string{oldColumn}, indexFilter, "index", strict, ed.CreateIndexName(m.Table, []string{oldColumn}, ""), ed.likeIndexName(m, oldColumn))
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dialect.DeleteIndexSQL(ed, m, name, false)); err != nil {
				return err
			}
		}
	}

	// Incoming foreign keys block a primary key type change.
	pkTypeChanging := old.PrimaryKey && new.PrimaryKey && oldType != newType
	if pkTypeChanging && ed.features.SupportsForeignKeys {
		for _, ref := range m.ReferencedBy {
			column := ref.Field.ColumnName()
			fk := ForeignKey{TargetTable: m.Table, TargetColumn: oldColumn}
			names, err := ed.dropTargets(ctx, ref.Model, []string{column}, foreignKeyFilter, "foreign key", false, ed.fkName(ref.Model.Table, column, fk))
			if err != nil {
				return err
			}
			for _, name := range names {
				if err := ed.Execute(ctx, ed.dropConstraintSQL(t.DeleteFK, ref.Model, name)); err != nil {
					return err
				}
			}
		}
	}

	oldCheck, newCheck := ed.checkSQL(old), ed.checkSQL(new)
	if oldCheck != "" && oldCheck != newCheck {
		names, err := ed.dropTargets(ctx, m, []string{oldColumn}, checkFilter, "check", strict, ed.CreateIndexName(m.Table, []string{oldColumn}, "_check"))
		if err != nil {
			return err
		}
		for _, name := range names {
			if err := ed.Execute(ctx, ed.dropConstraintSQL(t.DeleteCheck, m, name)); err != nil {
				return err
			}
		}
	}

	if oldColumn != newColumn {
		if err := ed.Execute(ctx, Statement{SQL: expand(t.RenameColumn,
			"table", q(m.Table),
			"old_column", q(oldColumn),
			"new_column", q(newColumn),
			"type", newType,
		)}); err != nil {
			return err
		}
	}

	var actions, nullActions, postActions []Statement
	if oldType != newType || ed.typeSuffix(old) != ed.typeSuffix(new) || old.DBCollation != new.DBCollation {
		fragment, post, err := ed.dialect.AlterColumnTypeSQL(ctx, ed, m, old, new, newType)
		if err != nil {
			return err
		}
		actions = append(actions, fragment)
		postActions = post
	}

	// Rows holding NULL get the new default before NOT NULL is enforced, and
	// the column default is removed again afterwards.
	var newDefault any
	needsDefault := false
	if old.Null && !new.Null && !ed.dialect.SkipDefault(new) {
		newDefault = ed.effectiveDefault(new)
		needsDefault = newDefault != nil
	}
	var defaultSQL Statement
	if needsDefault {
		var err error
		defaultSQL, err = ed.dialect.PrepareDefault(newDefault)
		if err != nil {
			return err
		}
		actions = append(actions, Statement{
			SQL:    expand(t.AlterColumnDefault, "column", q(newColumn), "default", defaultSQL.SQL),
			Params: defaultSQL.Params,
		})
	}
	if old.Null != new.Null {
		template := t.AlterColumnNotNull
		if new.Null {
			template = t.AlterColumnNull
		}
		nullActions = append(nullActions, Statement{SQL: expand(template, "column", q(newColumn), "type", newType)})
	}
	if !needsDefault {
		actions = append(actions, nullActions...)
		nullActions = nil
	}

	if len(actions) > 0 {
		if ed.features.SupportsCombinedAlters {
			actions = []Statement{joinStatements(actions, ", ")}
		}
		for _, action := range actions {
			if err := ed.Execute(ctx, ed.alterColumnSQL(m, action)); err != nil {
				return err
			}
		}
	}
	if needsDefault {
		if err := ed.Execute(ctx, Statement{
			SQL:    expand(t.UpdateWithDefault, "table", q(m.Table), "column", q(newColumn), "default", defaultSQL.SQL),
			Params: defaultSQL.Params,
		}); err != nil {
			return err
		}
		for _, action := range nullActions {
			if err := ed.Execute(ctx, ed.alterColumnSQL(m, action)); err != nil {
				return err
			}
		}
	}

	if err := ed.executeAll(ctx, postActions); err != nil {
		return err
	}
	if needsDefault {
		dropDefault := Statement{SQL: expand(t.AlterColumnNoDefault, "column", q(newColumn))}
		if err := ed.Execute(ctx, ed.alterColumnSQL(m, dropDefault)); err != nil {
			return err
		}
	}

	if !new.PrimaryKey && new.Unique && (!old.IsUnique() || old.PrimaryKey) {
		if err := ed.Execute(ctx, ed.createUniqueSQL(m, []string{newColumn})); err != nil {
			return err
		}
	}

	if (!old.DBIndex || old.IsUnique()) && new.DBIndex && !new.IsUnique() {
		if err := ed.Execute(ctx, ed.fieldIndexSQL(m, new)); err != nil {
			return err
		}
	}

	if pkTypeChanging || (!old.PrimaryKey && new.PrimaryKey) {
		if err := ed.replacePrimaryKey(ctx, m, old, new, pkTypeChanging, strict); err != nil {
			return err
		}
	}

	if newHasFK && ed.features.SupportsForeignKeys {
		if err := ed.Execute(ctx, ed.createFKSQL(m, new, newFK)); err != nil {
			return err
		}
	}

	if newCheck != "" && oldCheck != newCheck {
		if err := ed.Execute(ctx, ed.createCheckSQL(m, new, newCheck)); err != nil {
			return err
		}
	}

	if err := ed.dialect.AfterAlterField(ctx, ed, m, old, new); err != nil {
		return err
	}
	ed.resetConnection()
	return nil
}

// replacePrimaryKey recreates the primary key on new and, when its type
// changed, brings the referencing columns and their foreign keys along.
func (ed *Editor) replacePrimaryKey(ctx context.Context, m *Model, old, new *Field, typeChanged, strict bool) error {
	t := ed.dialect.Templates()
	q := ed.dialect.QuoteName
	newColumn := new.ColumnName()

	fallback := ""
	if old.PrimaryKey {
		fallback = ed.CreateIndexName(m.Table, []string{old.ColumnName()}, "_pk")
	}
	names, err := ed.dropTargets(ctx, m, nil, primaryKeyFilter, "primary key", strict, fallback)
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := ed.Execute(ctx, ed.dropConstraintSQL(t.DeletePK, m, name)); err != nil {
			return err
		}
	}
	if err := ed.Execute(ctx, Statement{SQL: expand(t.CreatePK,
		"table", q(m.Table),
		"name", q(ed.CreateIndexName(m.Table, []string{newColumn}, "_pk")),
		"columns", q(newColumn),
	)}); err != nil {
		return err
	}

	if !typeChanged || !ed.features.SupportsForeignKeys {
		return nil
	}
	for _, ref := range m.ReferencedBy {
		oldRef := ref.Field
		newRef := *ref.Field
		newRef.Type = new.Type
		newRef.Kind = ForeignKey{TargetTable: m.Table, TargetColumn: newColumn}

		refType, err := ed.dbType(&newRef)
		if err != nil {
			return err
		}
		fragment, post, err := ed.dialect.AlterColumnTypeSQL(ctx, ed, ref.Model, oldRef, &newRef, refType)
		if err != nil {
			return err
		}
		if err := ed.Execute(ctx, ed.alterColumnSQL(ref.Model, fragment)); err != nil {
			return err
		}
		if err := ed.executeAll(ctx, post); err != nil {
			return err
		}
		if err := ed.Execute(ctx, ed.createFKSQL(ref.Model, &newRef, newRef.Kind.(ForeignKey))); err != nil {
			return err
		}
	}
	return nil
}

// alterManyToMany repoints an auto-created junction table: it follows a table
// rename and then alters the column referencing the related model.
func (ed *Editor) alterManyToMany(ctx context.Context, old, new ManyToMany, strict bool) error {
	if old.Through == nil || new.Through == nil {
		return fmt.Errorf("%w: many-to-many field without a junction model", ErrIncompatibleFields)
	}
	if old.Through.Table != new.Through.Table {
		if err := ed.AlterDBTable(ctx, new.Through, old.Through.Table, new.Through.Table); err != nil {
			return err
		}
	}

	oldRef, newRef := old.Through.Field(old.TargetField), new.Through.Field(new.TargetField)
	if oldRef == nil || newRef == nil {
		return fmt.Errorf("%w: junction table %s has no field for the related model", ErrIncompatibleFields, new.Through.Table)
	}
	return ed.AlterField(ctx, new.Through, oldRef, newRef, strict)
}
