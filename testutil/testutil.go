package testutil

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"testing"

	"github.com/goccy/go-yaml"
	pgquery "github.com/pganalyze/pg_query_go/v2"
	"github.com/stretchr/testify/assert"

	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/database/file"
	"github.com/k0kubun/schemaedit/plan"
	"github.com/k0kubun/schemaedit/schema"
	"github.com/k0kubun/schemaedit/util"
)

var stripHeredocRegex = regexp.MustCompilePOSIX("^\t*")

type TestCase struct {
	Plan     string            // plan document applied to the editor
	Snapshot database.Snapshot // introspected constraints, default: introspection unavailable
	Output   *string           // expected statements, one per line
	Error    *string           // default: nil
	Config   struct {          // Optional config settings for the test
		Strict                  bool `yaml:"strict"`
		CreateIndexConcurrently bool `yaml:"create_index_concurrently"`
		DisableDdlTransaction   bool `yaml:"disable_ddl_transaction"`
		MaxIndexNameLength      int  `yaml:"max_index_name_length"`
	} `yaml:"config"`
}

func init() {
	util.InitSlog()

	// Keep INFO logs out of test output unless LOG_LEVEL asks for them.
	if os.Getenv("LOG_LEVEL") == "" {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})
		slog.SetDefault(slog.New(handler))
	}
}

func ReadTests(pattern string) (map[string]TestCase, error) {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no test file matches %q", pattern)
	}

	ret := map[string]TestCase{}
	// Track which file each test case came from for better error messages
	testFileMap := map[string]string{}

	for _, file := range files {
		var tests map[string]*TestCase

		buf, err := os.ReadFile(file)
		if err != nil {
			return nil, err
		}

		dec := yaml.NewDecoder(bytes.NewReader(buf), yaml.DisallowUnknownField())
		if err := dec.Decode(&tests); err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}

		for name, test := range tests {
			if test.Output == nil && test.Error == nil {
				return nil, fmt.Errorf("%s: test case '%s' needs either 'output' or 'error'", file, name)
			}
			if prev, ok := testFileMap[name]; ok {
				return nil, fmt.Errorf("duplicate test case '%s' in %s and %s", name, prev, file)
			}
			testFileMap[name] = file
			ret[name] = *test
		}
	}
	return ret, nil
}

// SortedNames returns the test names in a stable order.
func SortedNames(tests map[string]TestCase) []string {
	names := make([]string, 0, len(tests))
	for name := range tests {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (test TestCase) GeneratorConfig() database.GeneratorConfig {
	return database.GeneratorConfig{
		Strict:                  test.Config.Strict,
		CreateIndexConcurrently: test.Config.CreateIndexConcurrently,
		DisableDdlTransaction:   test.Config.DisableDdlTransaction,
		MaxIndexNameLength:      test.Config.MaxIndexNameLength,
	}
}

// RunOfflineTest applies the plan of a test case in collect mode against a
// snapshot database and compares the collected statements.
func RunOfflineTest(t *testing.T, test TestCase, mode schema.GeneratorMode, features database.Features) {
	t.Helper()
	ctx := context.Background()

	p, err := plan.Parse([]byte(test.Plan))
	if err != nil {
		t.Fatal(err)
	}

	var db database.Database
	if test.Snapshot != nil {
		db = file.NewSnapshotDatabase(test.Snapshot, features)
	} else {
		fileDB, err := file.NewDatabase("", features)
		if err != nil {
			t.Fatal(err)
		}
		db = fileDB
	}

	ed, err := schema.NewEditor(mode, db, schema.Options{Collect: true, Config: test.GeneratorConfig()})
	if err != nil {
		t.Fatal(err)
	}
	err = ed.Run(ctx, func(ed *schema.Editor) error {
		return p.Apply(ctx, ed)
	})

	if test.Error != nil {
		if err == nil {
			t.Fatalf("expected error %q, got statements:\n%s", *test.Error, JoinStatements(ed.Collected()))
		}
		assert.Equal(t, *test.Error, err.Error())
		return
	}
	if err != nil {
		t.Fatal(err)
	}

	statements := ed.Collected()
	assert.Equal(t, StripHeredoc(*test.Output), JoinStatements(statements))
	if mode == schema.GeneratorModePostgres {
		for _, stmt := range statements {
			AssertPostgresSyntax(t, stmt)
		}
	}
}

// AssertPostgresSyntax checks that stmt is accepted by the PostgreSQL parser.
func AssertPostgresSyntax(t *testing.T, stmt string) {
	t.Helper()
	if _, err := pgquery.Parse(stmt); err != nil {
		t.Errorf("statement is not valid PostgreSQL: %s\n%v", stmt, err)
	}
}

func JoinStatements(statements []string) string {
	var builder strings.Builder
	for _, stmt := range statements {
		builder.WriteString(stmt)
		builder.WriteString("\n")
	}
	return builder.String()
}

func StripHeredoc(heredoc string) string {
	heredoc = strings.TrimPrefix(heredoc, "\n")
	return stripHeredocRegex.ReplaceAllLiteralString(heredoc, "")
}
