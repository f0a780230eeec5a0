package schemaedit

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/database/file"
	"github.com/k0kubun/schemaedit/database/postgres"
	"github.com/k0kubun/schemaedit/database/sqlite3"
	"github.com/k0kubun/schemaedit/schema"
)

const authorPlan = `
models:
  author:
    fields:
      - {name: id, type: AutoField, primary_key: true}
      - {name: name, type: CharField, max_length: 50, unique: true}
operations:
  - create_model: author
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunOffline(t *testing.T) {
	db, err := file.NewDatabase("", postgres.DefaultFeatures)
	require.NoError(t, err)

	var out bytes.Buffer
	err = Run(context.Background(), schema.GeneratorModePostgres, db, &Options{
		PlanFile: writePlan(t, authorPlan),
		Output:   &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "-- dry run --\n"+
		`CREATE TABLE "author" ("id" integer NOT NULL PRIMARY KEY GENERATED BY DEFAULT AS IDENTITY, "name" varchar(50) NOT NULL UNIQUE);`+"\n", out.String())
}

func TestRunNothingModified(t *testing.T) {
	db, err := file.NewDatabase("", postgres.DefaultFeatures)
	require.NoError(t, err)

	var out bytes.Buffer
	err = Run(context.Background(), schema.GeneratorModePostgres, db, &Options{
		PlanFile: writePlan(t, "operations: []\n"),
		Output:   &out,
	})
	require.NoError(t, err)
	assert.Equal(t, "-- Nothing is modified --\n", out.String())
}

func TestRunSqlite3(t *testing.T) {
	ctx := context.Background()
	db, err := sqlite3.NewDatabase(database.Config{DbName: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	defer db.Close()

	var out bytes.Buffer
	require.NoError(t, Run(ctx, schema.GeneratorModeSQLite3, db, &Options{
		PlanFile: writePlan(t, authorPlan),
		Output:   &out,
	}))
	assert.Equal(t, "-- Apply --\n"+
		`CREATE TABLE "author" ("id" integer NOT NULL PRIMARY KEY AUTOINCREMENT, "name" varchar(50) NOT NULL UNIQUE);`+"\n", out.String())

	// Dry run statements reach a recording driver, not the database.
	out.Reset()
	require.NoError(t, Run(ctx, schema.GeneratorModeSQLite3, db, &Options{
		PlanFile: writePlan(t, `
models:
  author:
    fields:
      - {name: id, type: AutoField, primary_key: true}
operations:
  - add_field: {model: author, field: {name: bio, type: TextField, "null": true}}
`),
		DryRun: true,
		Output: &out,
	}))
	assert.Equal(t, "-- dry run --\n"+`ALTER TABLE "author" ADD COLUMN "bio" text NULL;`+"\n", out.String())

	var count int
	require.NoError(t, db.DB().QueryRowContext(ctx, `SELECT count(*) FROM pragma_table_info('author') WHERE name = 'bio'`).Scan(&count))
	assert.Equal(t, 0, count)

	out.Reset()
	require.NoError(t, Run(ctx, schema.GeneratorModeSQLite3, db, &Options{
		PlanFile: writePlan(t, authorPlan),
		Export:   true,
		Output:   &out,
	}))
	snapshot, err := database.UnmarshalSnapshot(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, database.Constraint{Columns: []string{"id"}, PrimaryKey: true, Unique: true}, snapshot["author"]["__primary__"])
	names := database.MatchConstraints(snapshot["author"], []string{"name"}, database.ConstraintFilter{})
	require.Len(t, names, 1)
	assert.True(t, snapshot["author"][names[0]].Unique)
}

func TestRunExportWithoutTables(t *testing.T) {
	db, err := file.NewDatabase("", postgres.DefaultFeatures)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), schema.GeneratorModePostgres, db, &Options{Export: true, Output: &out}))
	assert.Equal(t, "-- No table is given --\n", out.String())
}

func TestRunExportTargetTables(t *testing.T) {
	db := file.NewSnapshotDatabase(database.Snapshot{
		"author": {"author_pkey": {Columns: []string{"id"}, PrimaryKey: true, Unique: true}},
		"book":   {"book_title_key": {Columns: []string{"title"}, Unique: true, Index: true}},
	}, postgres.DefaultFeatures)

	var out bytes.Buffer
	require.NoError(t, Run(context.Background(), schema.GeneratorModePostgres, db, &Options{
		PlanFile: writePlan(t, authorPlan),
		Export:   true,
		Config:   database.GeneratorConfig{TargetTables: []string{"book"}},
		Output:   &out,
	}))
	snapshot, err := database.UnmarshalSnapshot(out.Bytes())
	require.NoError(t, err)
	assert.Equal(t, database.Snapshot{
		"book": {"book_title_key": {Columns: []string{"title"}, Unique: true, Index: true}},
	}, snapshot)
}

func TestRunRequiresPlan(t *testing.T) {
	db, err := file.NewDatabase("", postgres.DefaultFeatures)
	require.NoError(t, err)
	assert.Error(t, Run(context.Background(), schema.GeneratorModePostgres, db, &Options{}))
}
