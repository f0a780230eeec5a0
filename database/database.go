// This package has database layer. Never deal with DDL construction.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

type Config struct {
	DbName   string
	User     string
	Password string
	Host     string
	Port     int
	Socket   string
	SslMode  string
	Driver   string // PostgreSQL only: "postgres" (lib/pq) or "pgx"

	// Only MySQL
	MySQLEnableCleartextPlugin bool
	SslCa                      string
}

type GeneratorConfig struct {
	// TargetTables are exported when no table is given explicitly.
	TargetTables            []string
	CreateIndexConcurrently bool
	DisableDdlTransaction   bool
	MaxIndexNameLength      int
	Strict                  bool
}

// Features describes what a backend can do with DDL. The editor checks these
// before it builds a statement instead of reacting to failures.
type Features struct {
	CanRollbackDDL                bool
	SupportsCombinedAlters        bool
	ConnectionPersistsOldColumns  bool
	SupportsForeignKeys           bool
	SupportsTablespaces           bool
	SupportsAlterConstraints      bool
	InterpretsEmptyStringsAsNulls bool
	RelatedFieldsMatchType        bool
	MaxIndexNameLength            int // 0 means unbounded
}

// WithConfig applies overrides from a generator config.
func (f Features) WithConfig(config GeneratorConfig) Features {
	if config.MaxIndexNameLength > 0 {
		f.MaxIndexNameLength = config.MaxIndexNameLength
	}
	return f
}

type ForeignKeyTarget struct {
	Table  string `yaml:"table"`
	Column string `yaml:"column"`
}

// Constraint is one introspected constraint or index of a table.
type Constraint struct {
	Columns    []string          `yaml:"columns"`
	PrimaryKey bool              `yaml:"primary_key,omitempty"`
	Unique     bool              `yaml:"unique,omitempty"`
	Index      bool              `yaml:"index,omitempty"`
	Check      bool              `yaml:"check,omitempty"`
	ForeignKey *ForeignKeyTarget `yaml:"foreign_key,omitempty"`
}

// Snapshot maps table name to its constraints keyed by constraint name.
type Snapshot map[string]map[string]Constraint

type Sequence struct {
	Name   string
	Table  string
	Column string
}

var ErrIntrospectionUnavailable = errors.New("constraint introspection is unavailable")

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Abstraction layer for multiple kinds of databases
type Database interface {
	DB() *sql.DB
	Close() error
	Features() Features
	GetDefaultSchema() string
	GetConstraints(ctx context.Context, q Queryer, table string) (map[string]Constraint, error)
	GetSequences(ctx context.Context, q Queryer, table string) ([]Sequence, error)
}

// CollationInspector is implemented by databases whose collations can be non-deterministic.
type CollationInspector interface {
	IsCollationDeterministic(ctx context.Context, q Queryer, collation string) (bool, error)
}

func TransactionSupported(ddl string) bool {
	return !strings.Contains(strings.ToLower(ddl), "concurrently")
}

func ParseGeneratorConfig(configFile string) (GeneratorConfig, error) {
	if configFile == "" {
		return GeneratorConfig{}, nil
	}

	buf, err := os.ReadFile(configFile)
	if err != nil {
		return GeneratorConfig{}, err
	}

	var config struct {
		TargetTables            string `yaml:"target_tables"`
		CreateIndexConcurrently bool   `yaml:"create_index_concurrently"`
		DisableDdlTransaction   bool   `yaml:"disable_ddl_transaction"`
		MaxIndexNameLength      int    `yaml:"max_index_name_length"`
		Strict                  bool   `yaml:"strict"`
	}
	if err := yaml.UnmarshalStrict(buf, &config); err != nil {
		return GeneratorConfig{}, fmt.Errorf("parsing %s: %w", configFile, err)
	}

	var targetTables []string
	if config.TargetTables != "" {
		targetTables = strings.Split(strings.Trim(config.TargetTables, "\n"), "\n")
	}

	return GeneratorConfig{
		TargetTables:            targetTables,
		CreateIndexConcurrently: config.CreateIndexConcurrently,
		DisableDdlTransaction:   config.DisableDdlTransaction,
		MaxIndexNameLength:      config.MaxIndexNameLength,
		Strict:                  config.Strict,
	}, nil
}

// ExportConstraints introspects every table concurrently and returns them as a snapshot.
func ExportConstraints(ctx context.Context, d Database, tables []string, concurrency int) (Snapshot, error) {
	results, err := ConcurrentMapFuncWithError(ctx, tables, concurrency, func(ctx context.Context, table string) (map[string]Constraint, error) {
		constraints, err := d.GetConstraints(ctx, d.DB(), table)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s: %w", table, err)
		}
		return constraints, nil
	})
	if err != nil {
		return nil, err
	}

	snapshot := Snapshot{}
	for i, table := range tables {
		snapshot[table] = results[i]
	}
	return snapshot, nil
}

func MarshalSnapshot(snapshot Snapshot) (string, error) {
	buf, err := yaml.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}

func UnmarshalSnapshot(buf []byte) (Snapshot, error) {
	var snapshot Snapshot
	if err := yaml.UnmarshalStrict(buf, &snapshot); err != nil {
		return nil, err
	}
	if snapshot == nil {
		snapshot = Snapshot{}
	}
	return snapshot, nil
}
