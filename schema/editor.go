package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/k0kubun/schemaedit/database"
	"github.com/k0kubun/schemaedit/util"
)

type Options struct {
	// Collect records statements instead of executing them.
	Collect bool
	Config  database.GeneratorConfig
	// Logger echoes every executed statement. Defaults to database.NullLogger.
	Logger database.Logger
}

type sessionState int

const (
	sessionClosed sessionState = iota
	sessionOpen
)

// Editor is a schema-change session against one database. Statements run
// inside a transaction when the backend can roll DDL back, foreign keys
// created along with tables are deferred until Close.
type Editor struct {
	mode     GeneratorMode
	db       database.Database
	features database.Features
	config   database.GeneratorConfig
	collect  bool
	logger   database.Logger

	dialect   Dialect
	state     sessionState
	log       *slog.Logger
	conn      *sql.Conn
	tx        *sql.Tx
	deferred  []Statement
	collected []string
}

func NewEditor(mode GeneratorMode, db database.Database, options Options) (*Editor, error) {
	if _, err := newDialect(mode); err != nil {
		return nil, err
	}
	logger := options.Logger
	if logger == nil {
		logger = database.NullLogger{}
	}
	return &Editor{
		mode:     mode,
		db:       db,
		features: db.Features().WithConfig(options.Config),
		config:   options.Config,
		collect:  options.Collect,
		logger:   logger,
		log:      slog.Default(),
	}, nil
}

func (ed *Editor) Features() database.Features {
	return ed.features
}

// Collected returns the statements recorded in collect mode, each terminated
// with a semicolon.
func (ed *Editor) Collected() []string {
	return slices.Clone(ed.collected)
}

// Open starts a session. In execute mode it reserves a connection and, when
// DDL can be rolled back, begins a transaction on it.
func (ed *Editor) Open(ctx context.Context) error {
	if ed.state == sessionOpen {
		return ErrSessionOpen
	}

	dialect, err := newDialect(ed.mode)
	if err != nil {
		return err
	}
	ed.dialect = dialect
	ed.deferred = nil
	ed.collected = nil
	ed.log = slog.With("session", uuid.NewString(), "dialect", ed.mode.String())

	if !ed.collect {
		if err := ed.acquireConn(ctx); err != nil {
			return err
		}
		if ed.atomic() {
			tx, err := ed.conn.BeginTx(ctx, nil)
			if err != nil {
				ed.releaseConn()
				return fmt.Errorf("beginning schema transaction: %w", err)
			}
			ed.tx = tx
		}
	}

	ed.state = sessionOpen
	ed.log.Debug("Opened schema editor session", "collect", ed.collect, "atomic", ed.tx != nil)
	return nil
}

// Close flushes deferred statements and commits. If flushing fails the
// session is aborted and the error returned.
func (ed *Editor) Close(ctx context.Context) error {
	if ed.state != sessionOpen {
		return ErrSessionClosed
	}

	deferred := ed.deferred
	ed.deferred = nil
	for _, stmt := range deferred {
		if err := ed.Execute(ctx, stmt); err != nil {
			if abortErr := ed.Abort(); abortErr != nil {
				ed.log.Warn("Failed to abort schema editor session", "error", abortErr)
			}
			return fmt.Errorf("flushing deferred statements: %w", err)
		}
	}

	var err error
	if ed.tx != nil {
		err = ed.tx.Commit()
		ed.tx = nil
	}
	ed.releaseConn()
	ed.state = sessionClosed
	ed.log.Debug("Closed schema editor session", "flushed", len(deferred))
	return err
}

// Abort discards deferred statements and rolls back the transaction if any.
func (ed *Editor) Abort() error {
	if ed.state != sessionOpen {
		return ErrSessionClosed
	}

	ed.log.Debug("Aborting schema editor session", "discarded", len(ed.deferred))
	ed.deferred = nil
	var err error
	if ed.tx != nil {
		err = ed.tx.Rollback()
		ed.tx = nil
	}
	ed.releaseConn()
	ed.state = sessionClosed
	return err
}

// Run opens a session, calls fn and closes the session, aborting it instead
// when fn fails or panics.
func (ed *Editor) Run(ctx context.Context, fn func(ed *Editor) error) error {
	if err := ed.Open(ctx); err != nil {
		return err
	}

	succeeded := false
	defer func() {
		if !succeeded && ed.state == sessionOpen {
			if err := ed.Abort(); err != nil {
				ed.log.Warn("Failed to abort schema editor session", "error", err)
			}
		}
	}()

	if err := fn(ed); err != nil {
		return err
	}
	succeeded = true
	return ed.Close(ctx)
}

func (ed *Editor) atomic() bool {
	return ed.features.CanRollbackDDL && !ed.config.DisableDdlTransaction
}

func (ed *Editor) acquireConn(ctx context.Context) error {
	db := ed.db.DB()
	if db == nil {
		return fmt.Errorf("database has no connection, use collect mode: %w", ErrUnsupported)
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	ed.conn = conn
	return nil
}

func (ed *Editor) releaseConn() {
	if ed.conn == nil {
		return
	}
	if err := ed.conn.Close(); err != nil {
		ed.log.Debug("Failed to release connection", "error", err)
	}
	ed.conn = nil
}

// resetConnection drops the connection on backends that cache table layouts
// per connection. Inside a transaction the connection has to stay.
func (ed *Editor) resetConnection() {
	if !ed.features.ConnectionPersistsOldColumns || ed.collect {
		return
	}
	if ed.tx != nil {
		ed.log.Debug("Keeping connection with stale column cache until commit")
		return
	}
	ed.releaseConn()
}

func (ed *Editor) ensureOpen() error {
	if ed.state != sessionOpen {
		return ErrSessionClosed
	}
	return nil
}

// Execute runs or records a statement. Empty statements mean the dialect has
// no way to express the operation.
func (ed *Editor) Execute(ctx context.Context, stmt Statement) error {
	if err := ed.ensureOpen(); err != nil {
		return err
	}
	if stmt.SQL == "" {
		return fmt.Errorf("empty statement for %s: %w", ed.mode, ErrUnsupported)
	}

	stmt, err := ed.dialect.Prepare(stmt)
	if err != nil {
		return err
	}
	rendered, err := interpolate(stmt, ed.dialect.QuoteValue)
	if err != nil {
		return err
	}
	ed.log.Debug("Schema statement", "sql", rendered)

	if ed.collect {
		ed.collected = append(ed.collected, rendered+";")
		return nil
	}

	ed.logger.Printf("%s;\n", rendered)
	query, args := driverSQL(stmt)
	if err := ed.exec(ctx, query, args); err != nil {
		return fmt.Errorf("executing %q: %w", rendered, err)
	}
	return nil
}

func (ed *Editor) exec(ctx context.Context, query string, args []any) error {
	if ed.conn == nil {
		if err := ed.acquireConn(ctx); err != nil {
			return err
		}
	}

	var err error
	switch {
	case ed.tx != nil && !database.TransactionSupported(query):
		// CONCURRENTLY cannot run inside a transaction block.
		_, err = ed.db.DB().ExecContext(ctx, query, args...)
	case ed.tx != nil:
		_, err = ed.tx.ExecContext(ctx, query, args...)
	default:
		_, err = ed.conn.ExecContext(ctx, query, args...)
	}
	return err
}

func (ed *Editor) executeAll(ctx context.Context, stmts []Statement) error {
	for _, stmt := range stmts {
		if err := ed.Execute(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Defer queues a statement to run when the session closes.
func (ed *Editor) Defer(stmt Statement) {
	ed.deferred = append(ed.deferred, stmt)
}

// Deferred returns the statements queued for Close.
func (ed *Editor) Deferred() []Statement {
	return slices.Clone(ed.deferred)
}

// queryer picks the handle introspection reads through, so that it sees
// uncommitted changes of this session.
func (ed *Editor) queryer() database.Queryer {
	switch {
	case ed.tx != nil:
		return ed.tx
	case ed.conn != nil:
		return ed.conn
	}
	if db := ed.db.DB(); db != nil {
		return db
	}
	return nil
}

// ConstraintNames returns introspected constraints of m whose columns equal
// columns and which match filter.
func (ed *Editor) ConstraintNames(ctx context.Context, m *Model, columns []string, filter database.ConstraintFilter) ([]string, error) {
	constraints, err := ed.db.GetConstraints(ctx, ed.queryer(), m.Table)
	if err != nil {
		return nil, err
	}
	return database.MatchConstraints(constraints, columns, filter), nil
}

// dropTargets resolves the constraints an operation is about to drop. In
// strict mode anything but exactly one match is an error. Without
// introspection the name this editor would have generated is used. Names in
// exclude are managed separately and never returned.
func (ed *Editor) dropTargets(ctx context.Context, m *Model, columns []string, filter database.ConstraintFilter, kind string, strict bool, fallback string, exclude ...string) ([]string, error) {
	names, err := ed.ConstraintNames(ctx, m, columns, filter)
	if errors.Is(err, database.ErrIntrospectionUnavailable) {
		ed.log.Debug("Introspection unavailable, using generated constraint name", "table", m.Table, "kind", kind, "name", fallback)
		if fallback == "" {
			return nil, nil
		}
		return []string{fallback}, nil
	} else if err != nil {
		return nil, err
	}

	names = slices.DeleteFunc(names, func(name string) bool {
		return slices.Contains(exclude, name)
	})

	if strict && len(names) != 1 {
		return nil, &ConstraintCountError{Table: m.Table, Columns: columns, Kind: kind, Found: len(names)}
	}
	return names, nil
}

// likeIndexName is the name of the pattern-ops companion index PostgreSQL
// creates next to an index on a varchar or text column.
func (ed *Editor) likeIndexName(m *Model, column string) string {
	return ed.CreateIndexName(m.Table, []string{column}, "_like")
}

var (
	uniqueFilter     = database.ConstraintFilter{Unique: util.Ptr(true), PrimaryKey: util.Ptr(false)}
	indexFilter      = database.ConstraintFilter{Index: util.Ptr(true), Unique: util.Ptr(false)}
	foreignKeyFilter = database.ConstraintFilter{ForeignKey: util.Ptr(true)}
	checkFilter      = database.ConstraintFilter{Check: util.Ptr(true)}
	primaryKeyFilter = database.ConstraintFilter{PrimaryKey: util.Ptr(true)}
)

func (ed *Editor) sequences(ctx context.Context, m *Model) ([]database.Sequence, error) {
	return ed.db.GetSequences(ctx, ed.queryer(), m.Table)
}

func (ed *Editor) collationDeterministic(ctx context.Context, collation string) (bool, error) {
	inspector, ok := ed.db.(database.CollationInspector)
	if !ok {
		return true, nil
	}
	return inspector.IsCollationDeterministic(ctx, ed.queryer(), collation)
}
