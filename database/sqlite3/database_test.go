package sqlite3

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k0kubun/schemaedit/database"
)

func openTestDatabase(t *testing.T) database.Database {
	t.Helper()
	db, err := NewDatabase(database.Config{DbName: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestGetConstraints(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)
	for _, ddl := range []string{
		`CREATE TABLE "author" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT, "name" varchar(50) NOT NULL)`,
		`CREATE UNIQUE INDEX "author_name_uniq" ON "author" ("name")`,
		`CREATE TABLE "book" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT, "author_id" integer NOT NULL REFERENCES "author" ("id"), "title" text NOT NULL)`,
		`CREATE INDEX "book_title_idx" ON "book" ("title", "author_id")`,
	} {
		_, err := db.DB().ExecContext(ctx, ddl)
		require.NoError(t, err)
	}

	constraints, err := db.GetConstraints(ctx, db.DB(), "author")
	require.NoError(t, err)
	assert.Equal(t, map[string]database.Constraint{
		"__primary__":      {Columns: []string{"id"}, PrimaryKey: true, Unique: true},
		"author_name_uniq": {Columns: []string{"name"}, Unique: true, Index: true},
	}, constraints)

	constraints, err = db.GetConstraints(ctx, db.DB(), "book")
	require.NoError(t, err)
	assert.Equal(t, database.Constraint{Columns: []string{"title", "author_id"}, Index: true}, constraints["book_title_idx"])
	assert.Equal(t, database.Constraint{
		Columns:    []string{"author_id"},
		ForeignKey: &database.ForeignKeyTarget{Table: "author", Column: "id"},
	}, constraints["fk_0"])
}

func TestGetSequences(t *testing.T) {
	ctx := context.Background()
	db := openTestDatabase(t)

	sequences, err := db.GetSequences(ctx, db.DB(), "author")
	require.NoError(t, err)
	assert.Empty(t, sequences)

	_, err = db.DB().ExecContext(ctx, `CREATE TABLE "author" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT)`)
	require.NoError(t, err)
	_, err = db.DB().ExecContext(ctx, `INSERT INTO "author" DEFAULT VALUES`)
	require.NoError(t, err)

	sequences, err = db.GetSequences(ctx, db.DB(), "author")
	require.NoError(t, err)
	assert.Equal(t, []database.Sequence{{Name: "author", Table: "author"}}, sequences)
}

func TestSpatialiteRequiresCgoDriver(t *testing.T) {
	if DriverType() == "cgo" {
		t.Skip("spatialite availability depends on the installed extension")
	}
	_, err := NewSpatialiteDatabase(database.Config{DbName: ":memory:"})
	assert.ErrorIs(t, err, ErrSpatialiteUnavailable)
}
