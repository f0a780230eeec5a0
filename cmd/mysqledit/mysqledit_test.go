package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/k0kubun/schemaedit/database/mysql"
	"github.com/k0kubun/schemaedit/schema"
	"github.com/k0kubun/schemaedit/testutil"
)

func TestMysqleditYaml(t *testing.T) {
	tests, err := testutil.ReadTests("testdata/*.yml")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range testutil.SortedNames(tests) {
		test := tests[name]
		t.Run(name, func(t *testing.T) {
			testutil.RunOfflineTest(t, test, schema.GeneratorModeMysql, mysql.DefaultFeatures)
		})
	}
}

func TestParseOptions(t *testing.T) {
	t.Setenv("MYSQL_PWD", "secret")

	config, snapshotFile, options := parseOptions([]string{"-uapp", "--ssl-mode", "DISABLED", "-S", "/tmp/mysql.sock", "app"})
	assert.Equal(t, "app", config.DbName)
	assert.Equal(t, "app", config.User)
	assert.Equal(t, "secret", config.Password)
	assert.Equal(t, "/tmp/mysql.sock", config.Socket)
	assert.Equal(t, "false", config.SslMode)
	assert.Empty(t, snapshotFile)
	assert.Equal(t, "-", options.PlanFile)
	assert.Equal(t, 4, options.DumpConcurrency)

	_, snapshotFile, _ = parseOptions([]string{"snapshot.yaml"})
	assert.Equal(t, "snapshot.yaml", snapshotFile)
}
