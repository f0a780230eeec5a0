package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k0kubun/schemaedit/database/sqlite3"
	"github.com/k0kubun/schemaedit/schema"
	"github.com/k0kubun/schemaedit/testutil"
)

func TestSqlite3editYaml(t *testing.T) {
	tests, err := testutil.ReadTests("testdata/*.yml")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range testutil.SortedNames(tests) {
		test := tests[name]
		t.Run(name, func(t *testing.T) {
			testutil.RunOfflineTest(t, test, schema.GeneratorModeSQLite3, sqlite3.DefaultFeatures)
		})
	}
}

func TestParseOptions(t *testing.T) {
	config, cli, options := parseOptions([]string{"--spatialite", "-f", "plan.yml", "app.db"})
	assert.Equal(t, "app.db", config.DbName)
	assert.True(t, cli.Spatialite)
	assert.Empty(t, cli.SnapshotFile)
	assert.Equal(t, "plan.yml", options.PlanFile)

	config, cli, _ = parseOptions([]string{"snapshot.yml"})
	assert.Empty(t, config.DbName)
	assert.Equal(t, "snapshot.yml", cli.SnapshotFile)
}
