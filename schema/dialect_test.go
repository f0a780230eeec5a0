package schema

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k0kubun/schemaedit/database/mysql"
	"github.com/k0kubun/schemaedit/database/postgres"
	"github.com/k0kubun/schemaedit/database/sqlite3"
	"github.com/k0kubun/schemaedit/util"
)

func TestStringConstantSimple(t *testing.T) {
	assert.Equal(t, "''", StringConstant(""))
	assert.Equal(t, "'hello world'", StringConstant("hello world"))
}

func TestStringConstantContainingSingleQuote(t *testing.T) {
	assert.Equal(t, "'it''s the bee''s knees'", StringConstant("it's the bee's knees"))
}

func TestQuoteValue(t *testing.T) {
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	at := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		dialect Dialect
		value   any
		want    string
	}{
		{newPostgresDialect(), "it's", "'it''s'"},
		{newPostgresDialect(), `C:\path`, `E'C:\\path'`},
		{newPostgresDialect(), true, "true"},
		{newPostgresDialect(), []byte{0xde, 0xad}, `'\xdead'::bytea`},
		{newPostgresDialect(), id, "'6ba7b810-9dad-11d1-80b4-00c04fd430c8'"},
		{newPostgresDialect(), at, "'2024-05-01 12:30:00+00:00'"},
		{newPostgresDialect(), nil, "NULL"},
		{newMysqlDialect(), `a\b'c`, `'a\\b''c'`},
		{newMysqlDialect(), false, "0"},
		{newMysqlDialect(), decimal.RequireFromString("12.50"), "12.5"},
		{newMysqlDialect(), id, "'6ba7b8109dad11d180b400c04fd430c8'"},
		{newSqlite3Dialect(), id, "'6ba7b8109dad11d180b400c04fd430c8'"},
		{newSqlite3Dialect(), true, "1"},
		{newSqlite3Dialect(), []byte("hi"), "X'6869'"},
		{newSqlite3Dialect(), int32(7), "7"},
		{newSqlite3Dialect(), 1.5, "1.5"},
	}
	for _, test := range tests {
		got, err := test.dialect.QuoteValue(test.value)
		require.NoError(t, err)
		assert.Equal(t, test.want, got)
	}

	_, err := newSqlite3Dialect().QuoteValue(struct{}{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestQuoteName(t *testing.T) {
	assert.Equal(t, `"user"`, newPostgresDialect().QuoteName("user"))
	assert.Equal(t, `"user"`, newPostgresDialect().QuoteName(`"user"`))
	assert.Equal(t, `"a""b"`, newPostgresDialect().QuoteName(`a"b`))
	assert.Equal(t, "`user`", newMysqlDialect().QuoteName("user"))
	assert.Equal(t, "`user`", newMysqlDialect().QuoteName("`user`"))
	assert.Equal(t, `"user"`, newSqlite3Dialect().QuoteName("user"))
}

func TestInterpolate(t *testing.T) {
	sql, err := interpolate(Statement{SQL: "SET DEFAULT " + paramMarker + ", x = " + paramMarker, Params: []any{"a", 1}}, defaultLiteralStyle.quoteValue)
	require.NoError(t, err)
	assert.Equal(t, "SET DEFAULT 'a', x = 1", sql)

	_, err = interpolate(Statement{SQL: "no markers", Params: []any{1}}, defaultLiteralStyle.quoteValue)
	assert.Error(t, err)

	query, args := driverSQL(Statement{SQL: "DEFAULT " + paramMarker, Params: []any{2}})
	assert.Equal(t, "DEFAULT ?", query)
	assert.Equal(t, []any{2}, args)

	// Text that happens to look like a format verb is left alone.
	stmt := Statement{SQL: `CHECK ("code" LIKE '%s%') DEFAULT ` + paramMarker, Params: []any{"x"}}
	sql, err = interpolate(stmt, defaultLiteralStyle.quoteValue)
	require.NoError(t, err)
	assert.Equal(t, `CHECK ("code" LIKE '%s%') DEFAULT 'x'`, sql)
	query, _ = driverSQL(stmt)
	assert.Equal(t, `CHECK ("code" LIKE '%s%') DEFAULT ?`, query)
}

func TestColumnTypes(t *testing.T) {
	ctx := context.Background()
	ed := openCollector(t, GeneratorModePostgres, postgres.DefaultFeatures, nil)

	tests := []struct {
		field *Field
		want  string
	}{
		{&Field{Name: "price", Type: "DecimalField", MaxDigits: 10, DecimalPlaces: 2}, "numeric(10, 2) NOT NULL"},
		{&Field{Name: "count", Type: "PositiveIntegerField", Null: true}, "integer NULL"},
		{&Field{Name: "ref", Type: "BigAutoField", Kind: ForeignKey{TargetTable: "x", TargetColumn: "id"}}, "bigint NOT NULL"},
		{&Field{Name: "ref", Type: "PositiveSmallIntegerField", Kind: ForeignKey{TargetTable: "x", TargetColumn: "id"}}, "smallint NOT NULL"},
		{&Field{Name: "name", Type: "CharField", MaxLength: 20, DBCollation: "C", Unique: true}, `varchar(20) COLLATE "C" NOT NULL UNIQUE`},
		{&Field{Name: "raw", Type: "CharField", DBType: "citext"}, "citext NOT NULL"},
		{&Field{Name: "geom", Type: "GeometryField", Geometry: &GeometryOptions{GeomType: "point", SRID: 3857}}, "geometry(POINT,3857) NOT NULL"},
	}
	for _, test := range tests {
		column, err := ed.dialect.ColumnSQL(ctx, ed, authorModel(), test.field, false)
		require.NoError(t, err)
		assert.Equal(t, test.want, column.SQL)
	}

	_, err := ed.dialect.ColumnSQL(ctx, ed, authorModel(), &Field{Name: "x", Type: "NoSuchField"}, false)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestRelatedTypesOnMysql(t *testing.T) {
	ed := openCollector(t, GeneratorModeMysql, mysql.DefaultFeatures, nil)
	fk := &Field{Name: "ref", Type: "PositiveIntegerField", Kind: ForeignKey{TargetTable: "x", TargetColumn: "id"}}
	dbType, err := ed.dbType(fk)
	require.NoError(t, err)
	assert.Equal(t, "integer UNSIGNED", dbType)

	auto := &Field{Name: "ref", Type: "AutoField", Kind: ForeignKey{TargetTable: "x", TargetColumn: "id"}}
	dbType, err = ed.dbType(auto)
	require.NoError(t, err)
	assert.Equal(t, "integer", dbType)
}

func TestEffectiveDefault(t *testing.T) {
	ed := openCollector(t, GeneratorModeSQLite3, sqlite3.DefaultFeatures, nil)
	assert.Equal(t, "", ed.effectiveDefault(&Field{Type: "CharField", Blank: true}))
	assert.Nil(t, ed.effectiveDefault(&Field{Type: "CharField", Blank: true, Null: true}))
	assert.Nil(t, ed.effectiveDefault(&Field{Type: "IntegerField", Blank: true}))
	assert.Equal(t, 3, ed.effectiveDefault(&Field{Type: "IntegerField", Default: func() any { return 3 }}))
}

func sqliteModel() *Model {
	return &Model{
		Table: "t",
		Fields: []*Field{
			{Name: "id", Type: "AutoField", PrimaryKey: true},
			{Name: "n", Type: "IntegerField", Null: true},
		},
	}
}

func TestSqlite3RemakeTable(t *testing.T) {
	ed := openCollector(t, GeneratorModeSQLite3, sqlite3.DefaultFeatures, nil)
	old := &Field{Name: "n", Type: "IntegerField", Null: true}
	new := &Field{Name: "n", Type: "BigIntegerField", Default: 0}
	require.NoError(t, ed.AlterField(context.Background(), sqliteModel(), old, new, false))

	assert.Equal(t, []string{
		`CREATE TABLE "new__t" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT, "n" bigint NOT NULL);`,
		`INSERT INTO "new__t" ("id", "n") SELECT "id", coalesce("n", 0) FROM "t";`,
		`DROP TABLE "t";`,
		`ALTER TABLE "new__t" RENAME TO "t";`,
	}, ed.Collected())
}

func TestSqlite3AlterInPlace(t *testing.T) {
	ctx := context.Background()
	ed := openCollector(t, GeneratorModeSQLite3, sqlite3.DefaultFeatures, nil)
	m := sqliteModel()

	require.NoError(t, ed.AlterField(ctx, m, &Field{Name: "n", Type: "IntegerField", Null: true}, &Field{Name: "m", Type: "IntegerField", Null: true}, false))
	require.NoError(t, ed.AlterField(ctx, m, &Field{Name: "m", Type: "IntegerField", Null: true}, &Field{Name: "m", Type: "IntegerField", Null: true, DBIndex: true}, false))
	require.NoError(t, ed.AddField(ctx, m, &Field{Name: "note", Type: "TextField", Null: true}))

	assert.Equal(t, []string{
		`ALTER TABLE "t" RENAME COLUMN "n" TO "m";`,
		`CREATE INDEX "` + util.CreateIndexName("t", []string{"m"}, "", 0) + `" ON "t" ("m");`,
		`ALTER TABLE "t" ADD COLUMN "note" text NULL;`,
	}, ed.Collected())
}

func TestSqlite3AddFieldWithDefaultRemakes(t *testing.T) {
	ed := openCollector(t, GeneratorModeSQLite3, sqlite3.DefaultFeatures, nil)
	f := &Field{Name: "flag", Type: "BooleanField", Default: false}
	require.NoError(t, ed.AddField(context.Background(), sqliteModel(), f))

	assert.Equal(t, []string{
		`CREATE TABLE "new__t" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT, "n" integer NULL, "flag" bool NOT NULL);`,
		`INSERT INTO "new__t" ("id", "n", "flag") SELECT "id", "n", 0 FROM "t";`,
		`DROP TABLE "t";`,
		`ALTER TABLE "new__t" RENAME TO "t";`,
	}, ed.Collected())
}

func TestSqlite3RemoveIndexedFieldRemakes(t *testing.T) {
	ed := openCollector(t, GeneratorModeSQLite3, sqlite3.DefaultFeatures, nil)
	m := sqliteModel()
	m.Fields = append(m.Fields, &Field{Name: "code", Type: "CharField", MaxLength: 8, Unique: true})
	m.UniqueTogether = [][]string{{"n", "code"}}
	require.NoError(t, ed.RemoveField(context.Background(), m, m.Fields[2]))

	assert.Equal(t, []string{
		`CREATE TABLE "new__t" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT, "n" integer NULL);`,
		`INSERT INTO "new__t" ("id", "n") SELECT "id", "n" FROM "t";`,
		`DROP TABLE "t";`,
		`ALTER TABLE "new__t" RENAME TO "t";`,
	}, ed.Collected())
}

func TestSpatialiteGeometryColumns(t *testing.T) {
	ctx := context.Background()
	place := &Model{
		Table: "place",
		Fields: []*Field{
			{Name: "id", Type: "AutoField", PrimaryKey: true},
			{Name: "geom", Type: "GeometryField", Geometry: &GeometryOptions{GeomType: "POINT", SRID: 4326, SpatialIndex: true}},
		},
	}

	ed := openCollector(t, GeneratorModeSpatialite, sqlite3.DefaultFeatures, nil)
	require.NoError(t, ed.CreateModel(ctx, place))
	require.NoError(t, ed.AlterDBTable(ctx, place, "place", "spot"))
	require.NoError(t, ed.DeleteModel(ctx, &Model{Table: "spot", Fields: place.Fields}))

	assert.Equal(t, []string{
		`CREATE TABLE "place" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT);`,
		`SELECT AddGeometryColumn('place', 'geom', 4326, 'POINT', 2, 1);`,
		`SELECT CreateSpatialIndex('place', 'geom');`,
		`ALTER TABLE "place" RENAME TO "spot";`,
		`UPDATE geometry_columns SET f_table_name = 'spot' WHERE f_table_name = 'place';`,
		`ALTER TABLE "idx_place_geom" RENAME TO "idx_spot_geom";`,
		`SELECT DiscardGeometryColumn('spot', 'geom');`,
		`DROP TABLE IF EXISTS "idx_spot_geom";`,
		`DROP TABLE "spot";`,
	}, ed.Collected())
}

func TestSpatialiteAddAndRemoveGeometry(t *testing.T) {
	ctx := context.Background()
	ed := openCollector(t, GeneratorModeSpatialite, sqlite3.DefaultFeatures, nil)
	geom := &Field{Name: "area", Type: "GeometryField", Null: true, Geometry: &GeometryOptions{GeomType: "POLYGON", SRID: 3857}}

	require.NoError(t, ed.AddField(ctx, sqliteModel(), geom))
	require.NoError(t, ed.RemoveField(ctx, sqliteModel(), geom))

	assert.Equal(t, []string{
		`SELECT AddGeometryColumn('t', 'area', 3857, 'POLYGON', 2, 0);`,
		`SELECT DiscardGeometryColumn('t', 'area');`,
	}, ed.Collected())
}

func TestPostgresIdentityTransitions(t *testing.T) {
	ctx := context.Background()
	ed := openCollector(t, GeneratorModePostgres, postgres.DefaultFeatures, nil)
	m := authorModel()

	old := &Field{Name: "id", Type: "IntegerField", PrimaryKey: true}
	new := &Field{Name: "id", Type: "AutoField", PrimaryKey: true}
	require.NoError(t, ed.AlterField(ctx, m, old, new, false))

	assert.Equal(t, []string{
		`ALTER TABLE "author" ALTER COLUMN "id" TYPE integer;`,
		`ALTER TABLE "author" ALTER COLUMN "id" ADD GENERATED BY DEFAULT AS IDENTITY;`,
	}, ed.Collected())
}
