package database_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/database/file"
	"github.com/k0kubun/schemaedit/util"
)

func TestConcurrentMapFuncWithError(t *testing.T) {
	inputs := []int{1, 2, 3, 4, 5, 6, 7, 8}
	for _, concurrency := range []int{0, 1, 3, -1} {
		outputs, err := database.ConcurrentMapFuncWithError(context.Background(), inputs, concurrency, func(_ context.Context, in int) (int, error) {
			return in * in, nil
		})
		require.NoError(t, err)
		assert.Equal(t, []int{1, 4, 9, 16, 25, 36, 49, 64}, outputs, "concurrency %d", concurrency)
	}
}

func TestConcurrentMapFuncWithErrorStopsOnError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	_, err := database.ConcurrentMapFuncWithError(context.Background(), []string{"a", "b", "c", "d"}, 0, func(_ context.Context, in string) (string, error) {
		calls.Add(1)
		if in == "b" {
			return "", boom
		}
		return in, nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestParseGeneratorConfig(t *testing.T) {
	config, err := database.ParseGeneratorConfig("")
	require.NoError(t, err)
	assert.Equal(t, database.GeneratorConfig{}, config)

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`target_tables: |
  users
  posts
create_index_concurrently: true
max_index_name_length: 30
strict: true
`), 0o644))
	config, err = database.ParseGeneratorConfig(path)
	require.NoError(t, err)
	assert.Equal(t, database.GeneratorConfig{
		TargetTables:            []string{"users", "posts"},
		CreateIndexConcurrently: true,
		MaxIndexNameLength:      30,
		Strict:                  true,
	}, config)

	require.NoError(t, os.WriteFile(path, []byte("stict: true\n"), 0o644))
	_, err = database.ParseGeneratorConfig(path)
	assert.Error(t, err)
}

func TestFeaturesWithConfig(t *testing.T) {
	features := database.Features{MaxIndexNameLength: 63}
	assert.Equal(t, 63, features.WithConfig(database.GeneratorConfig{}).MaxIndexNameLength)
	assert.Equal(t, 20, features.WithConfig(database.GeneratorConfig{MaxIndexNameLength: 20}).MaxIndexNameLength)
}

func TestMatchConstraints(t *testing.T) {
	constraints := map[string]database.Constraint{
		"users_pkey":       {Columns: []string{"id"}, PrimaryKey: true, Unique: true, Index: true},
		"users_email_key":  {Columns: []string{"email"}, Unique: true, Index: true},
		"users_email_idx":  {Columns: []string{"email"}, Index: true},
		"users_email_org":  {Columns: []string{"email", "org_id"}, Unique: true, Index: true},
		"users_org_id_fk":  {Columns: []string{"org_id"}, ForeignKey: &database.ForeignKeyTarget{Table: "orgs", Column: "id"}},
		"users_age_check":  {Columns: []string{"age"}, Check: true},
		"users_email_key2": {Columns: []string{"email"}, Unique: true, Index: true},
	}

	unique := database.ConstraintFilter{Unique: util.Ptr(true), PrimaryKey: util.Ptr(false)}
	assert.Equal(t, []string{"users_email_key", "users_email_key2"}, database.MatchConstraints(constraints, []string{"email"}, unique))
	assert.Equal(t, []string{"users_email_idx"}, database.MatchConstraints(constraints, []string{"email"}, database.ConstraintFilter{Index: util.Ptr(true), Unique: util.Ptr(false)}))
	assert.Equal(t, []string{"users_org_id_fk"}, database.MatchConstraints(constraints, []string{"org_id"}, database.ConstraintFilter{ForeignKey: util.Ptr(true)}))
	assert.Equal(t, []string{"users_pkey"}, database.MatchConstraints(constraints, nil, database.ConstraintFilter{PrimaryKey: util.Ptr(true)}))
	// Column order matters.
	assert.Empty(t, database.MatchConstraints(constraints, []string{"org_id", "email"}, unique))
}

func TestSnapshotYaml(t *testing.T) {
	snapshot := database.Snapshot{
		"books": {
			"books_author_fk": {Columns: []string{"author_id"}, ForeignKey: &database.ForeignKeyTarget{Table: "authors", Column: "id"}},
		},
	}
	buf, err := database.MarshalSnapshot(snapshot)
	require.NoError(t, err)
	assert.Equal(t, `books:
  books_author_fk:
    columns:
    - author_id
    foreign_key:
      table: authors
      column: id
`, buf)

	empty, err := database.UnmarshalSnapshot([]byte(""))
	require.NoError(t, err)
	assert.Equal(t, database.Snapshot{}, empty)

	_, err = database.UnmarshalSnapshot([]byte("books: {fk: {colums: [a]}}\n"))
	assert.Error(t, err)
}

func TestExportConstraints(t *testing.T) {
	db := file.NewSnapshotDatabase(database.Snapshot{
		"a": {"a_pkey": {Columns: []string{"id"}, PrimaryKey: true}},
		"b": {},
	}, database.Features{})

	snapshot, err := database.ExportConstraints(context.Background(), db, []string{"b", "a"}, 2)
	require.NoError(t, err)
	assert.Equal(t, database.Snapshot{
		"a": {"a_pkey": {Columns: []string{"id"}, PrimaryKey: true}},
		"b": {},
	}, snapshot)
}

func TestDryRunDatabase(t *testing.T) {
	ctx := context.Background()
	wrapped := file.NewSnapshotDatabase(database.Snapshot{"users": {}}, database.Features{CanRollbackDDL: true})
	db, err := database.NewDryRunDatabase(wrapped)
	require.NoError(t, err)
	defer db.DB().Close()

	assert.True(t, db.Features().CanRollbackDDL)
	constraints, err := db.GetConstraints(ctx, db.DB(), "users")
	require.NoError(t, err)
	assert.Empty(t, constraints)

	tx, err := db.DB().BeginTx(ctx, nil)
	require.NoError(t, err)
	_, err = tx.ExecContext(ctx, "CREATE TABLE t (id int)")
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	db.FailOn("DROP")
	_, err = db.DB().ExecContext(ctx, "DROP TABLE t")
	assert.Error(t, err)

	assert.Equal(t, []string{"BEGIN", "CREATE TABLE t (id int)", "COMMIT"}, db.Journal())
}
