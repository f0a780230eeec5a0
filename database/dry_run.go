package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DryRunDatabase wraps a Database so that statements go to a fake driver which
// only records them. Introspection still reads from the wrapped database.
type DryRunDatabase struct {
	wrapped  Database
	dryRunDB *sql.DB
	journal  *dryRunJournal
}

func NewDryRunDatabase(db Database) (*DryRunDatabase, error) {
	journal := &dryRunJournal{}

	dryRunDriverName := fmt.Sprintf("dry-run-%p", journal) // Unique name per database instance
	sql.Register(dryRunDriverName, &dryRunDriver{journal: journal})

	dryRunDB, err := sql.Open(dryRunDriverName, "dry-run")
	if err != nil {
		return nil, err
	}

	return &DryRunDatabase{
		wrapped:  db,
		dryRunDB: dryRunDB,
		journal:  journal,
	}, nil
}

func (d *DryRunDatabase) DB() *sql.DB {
	return d.dryRunDB
}

func (d *DryRunDatabase) Close() error {
	if err := d.dryRunDB.Close(); err != nil {
		return err
	}
	return d.wrapped.Close()
}

func (d *DryRunDatabase) Features() Features {
	return d.wrapped.Features()
}

func (d *DryRunDatabase) GetDefaultSchema() string {
	return d.wrapped.GetDefaultSchema()
}

func (d *DryRunDatabase) GetConstraints(ctx context.Context, _ Queryer, table string) (map[string]Constraint, error) {
	return d.wrapped.GetConstraints(ctx, d.wrappedQueryer(), table)
}

func (d *DryRunDatabase) GetSequences(ctx context.Context, _ Queryer, table string) ([]Sequence, error) {
	return d.wrapped.GetSequences(ctx, d.wrappedQueryer(), table)
}

func (d *DryRunDatabase) IsCollationDeterministic(ctx context.Context, _ Queryer, collation string) (bool, error) {
	if inspector, ok := d.wrapped.(CollationInspector); ok {
		return inspector.IsCollationDeterministic(ctx, d.wrappedQueryer(), collation)
	}
	return true, nil
}

func (d *DryRunDatabase) wrappedQueryer() Queryer {
	if db := d.wrapped.DB(); db != nil {
		return db
	}
	return nil
}

// Journal returns everything the fake driver has seen, including BEGIN, COMMIT and ROLLBACK.
func (d *DryRunDatabase) Journal() []string {
	return d.journal.entries()
}

// FailOn makes every statement containing substr fail, to exercise rollback paths.
func (d *DryRunDatabase) FailOn(substr string) {
	d.journal.mu.Lock()
	defer d.journal.mu.Unlock()
	d.journal.failOn = substr
}

type dryRunJournal struct {
	mu      sync.Mutex
	journal []string
	failOn  string
}

func (j *dryRunJournal) record(entry string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failOn != "" && strings.Contains(entry, j.failOn) {
		return fmt.Errorf("dry run: injected failure on %q", entry)
	}
	j.journal = append(j.journal, entry)
	return nil
}

func (j *dryRunJournal) entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.journal...)
}

type dryRunDriver struct {
	journal *dryRunJournal
}

func (d *dryRunDriver) Open(name string) (driver.Conn, error) {
	return &dryRunConn{journal: d.journal}, nil
}

type dryRunConn struct {
	journal *dryRunJournal
}

func (c *dryRunConn) Prepare(query string) (driver.Stmt, error) {
	return &dryRunStmt{query: query, journal: c.journal}, nil
}

func (c *dryRunConn) Close() error {
	return nil
}

func (c *dryRunConn) Begin() (driver.Tx, error) {
	if err := c.journal.record("BEGIN"); err != nil {
		return nil, err
	}
	return &dryRunTx{journal: c.journal}, nil
}

type dryRunTx struct {
	journal *dryRunJournal
}

func (tx *dryRunTx) Commit() error {
	return tx.journal.record("COMMIT")
}

func (tx *dryRunTx) Rollback() error {
	return tx.journal.record("ROLLBACK")
}

type dryRunStmt struct {
	query   string
	journal *dryRunJournal
}

func (s *dryRunStmt) Close() error {
	return nil
}

func (s *dryRunStmt) NumInput() int {
	return -1
}

func (s *dryRunStmt) Exec(args []driver.Value) (driver.Result, error) {
	if err := s.journal.record(s.query); err != nil {
		return nil, err
	}
	return &dryRunResult{}, nil
}

func (s *dryRunStmt) Query(args []driver.Value) (driver.Rows, error) {
	return &dryRunRows{}, nil
}

type dryRunResult struct{}

func (r *dryRunResult) LastInsertId() (int64, error) {
	return 0, nil
}

func (r *dryRunResult) RowsAffected() (int64, error) {
	return 0, nil
}

type dryRunRows struct{}

func (r *dryRunRows) Columns() []string {
	return []string{}
}

func (r *dryRunRows) Close() error {
	return nil
}

func (r *dryRunRows) Next(dest []driver.Value) error {
	return io.EOF
}
