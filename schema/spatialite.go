package schema

import (
	"context"
	"fmt"
	"maps"
	"strconv"
)

// spatialiteDialect is SQLite with geometry columns managed through the
// spatialite metadata functions instead of plain column definitions.
type spatialiteDialect struct {
	sqlite3Dialect
	geometrySQL []Statement
}

func newSpatialiteDialect() *spatialiteDialect {
	d := &spatialiteDialect{sqlite3Dialect: *newSqlite3Dialect()}
	dataTypes := maps.Clone(sqlite3DataTypes)
	dataTypes["GeometryField"] = ""
	d.dataTypes = dataTypes
	return d
}

// ColumnSQL queues AddGeometryColumn for geometry fields. Those are added
// once the table exists.
func (d *spatialiteDialect) ColumnSQL(ctx context.Context, ed *Editor, m *Model, f *Field, includeDefault bool) (Statement, error) {
	if f.Geometry == nil {
		return d.sqlite3Dialect.ColumnSQL(ctx, ed, m, f, includeDefault)
	}

	geomType, srid, dim := "GEOMETRY", 4326, 2
	if f.Geometry.GeomType != "" {
		geomType = f.Geometry.GeomType
	}
	if f.Geometry.SRID != 0 {
		srid = f.Geometry.SRID
	}
	if f.Geometry.Dim != 0 {
		dim = f.Geometry.Dim
	}
	notNull := 1
	if f.Null {
		notNull = 0
	}

	d.geometrySQL = append(d.geometrySQL, Statement{SQL: fmt.Sprintf(
		"SELECT AddGeometryColumn(%s, %s, %d, %s, %s, %d)",
		StringConstant(m.Table), StringConstant(f.ColumnName()), srid, StringConstant(geomType), strconv.Itoa(dim), notNull,
	)})
	if f.Geometry.SpatialIndex {
		d.geometrySQL = append(d.geometrySQL, Statement{SQL: fmt.Sprintf(
			"SELECT CreateSpatialIndex(%s, %s)", StringConstant(m.Table), StringConstant(f.ColumnName()),
		)})
	}
	return Statement{}, nil
}

func (d *spatialiteDialect) flushGeometry(ctx context.Context, ed *Editor) error {
	stmts := d.geometrySQL
	d.geometrySQL = nil
	return ed.executeAll(ctx, stmts)
}

func (d *spatialiteDialect) AfterCreateModel(ctx context.Context, ed *Editor, m *Model) error {
	return d.flushGeometry(ctx, ed)
}

func (d *spatialiteDialect) AfterAddField(ctx context.Context, ed *Editor, m *Model, f *Field) error {
	return d.flushGeometry(ctx, ed)
}

func (d *spatialiteDialect) BeforeDeleteModel(ctx context.Context, ed *Editor, m *Model) error {
	for _, f := range m.Fields {
		if f.Geometry != nil {
			if err := d.discardGeometry(ctx, ed, m, f); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *spatialiteDialect) BeforeRemoveField(ctx context.Context, ed *Editor, m *Model, f *Field) error {
	if f.Geometry == nil {
		return nil
	}
	return d.discardGeometry(ctx, ed, m, f)
}

func (d *spatialiteDialect) discardGeometry(ctx context.Context, ed *Editor, m *Model, f *Field) error {
	stmts := []Statement{{SQL: fmt.Sprintf(
		"SELECT DiscardGeometryColumn(%s, %s)", StringConstant(m.Table), StringConstant(f.ColumnName()),
	)}}
	if f.Geometry.SpatialIndex {
		stmts = append(stmts, Statement{SQL: "DROP TABLE IF EXISTS " + d.QuoteName(spatialIndexTable(m.Table, f.ColumnName()))})
	}
	return ed.executeAll(ctx, stmts)
}

// AfterAlterDBTable points geometry metadata and spatial index tables at the
// renamed table.
func (d *spatialiteDialect) AfterAlterDBTable(ctx context.Context, ed *Editor, m *Model, oldTable, newTable string) error {
	stmts := []Statement{{SQL: fmt.Sprintf(
		"UPDATE geometry_columns SET f_table_name = %s WHERE f_table_name = %s",
		StringConstant(newTable), StringConstant(oldTable),
	)}}
	for _, f := range m.Fields {
		if f.Geometry != nil && f.Geometry.SpatialIndex {
			stmts = append(stmts, Statement{SQL: expand(d.templates.RenameTable,
				"old_table", d.QuoteName(spatialIndexTable(oldTable, f.ColumnName())),
				"new_table", d.QuoteName(spatialIndexTable(newTable, f.ColumnName())),
			)})
		}
	}
	return ed.executeAll(ctx, stmts)
}

func (d *spatialiteDialect) RemakeTable(ctx context.Context, ed *Editor, m *Model, old, new *Field) error {
	for _, f := range m.Fields {
		if f.Geometry != nil {
			return fmt.Errorf("rebuilding %s would drop its geometry columns: %w", m.Table, ErrUnsupported)
		}
	}
	return d.sqlite3Dialect.RemakeTable(ctx, ed, m, old, new)
}

func spatialIndexTable(table, column string) string {
	return "idx_" + table + "_" + column
}
