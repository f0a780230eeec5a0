package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k0kubun/schemaedit/database/postgres"
	"github.com/k0kubun/schemaedit/schema"
	"github.com/k0kubun/schemaedit/testutil"
)

func TestPsqleditYaml(t *testing.T) {
	tests, err := testutil.ReadTests("testdata/*.yml")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range testutil.SortedNames(tests) {
		test := tests[name]
		t.Run(name, func(t *testing.T) {
			testutil.RunOfflineTest(t, test, schema.GeneratorModePostgres, postgres.DefaultFeatures)
		})
	}
}

func TestParseOptions(t *testing.T) {
	t.Setenv("PGPASSWORD", "secret")

	config, snapshotFile, options := parseOptions([]string{"-h", "/var/run/postgresql", "-f", "plan.yml", "--dry-run", "app"})
	assert.Equal(t, "app", config.DbName)
	assert.Equal(t, "postgres", config.User)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, "/var/run/postgresql", config.Socket)
	assert.Equal(t, 5432, config.Port)
	assert.Empty(t, snapshotFile)
	assert.Equal(t, "plan.yml", options.PlanFile)
	assert.True(t, options.DryRun)

	config, snapshotFile, options = parseOptions([]string{"--export", "--export-table", "users", "snapshot.yml"})
	assert.Empty(t, config.DbName)
	assert.Empty(t, config.Socket)
	assert.Equal(t, "snapshot.yml", snapshotFile)
	assert.Empty(t, options.PlanFile)
	assert.Equal(t, []string{"users"}, options.ExportTables)
}
