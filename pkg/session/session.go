// Package session executes statements against PostgreSQL with soft-delete
// filtering applied.
//
// Every statement passes through a softdelete.Interceptor before it reaches
// database/sql. Reads come back without tombstoned rows unless the caller
// opts out; writes are sent as given.
package session

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	_ "github.com/lib/pq"              // registers the "postgres" driver
	"go.uber.org/zap"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/softdelete"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// Querier executes statements against PostgreSQL.
// Implemented by *sql.DB, *sql.Tx, and *sql.Conn.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// TxBeginner is a Querier that can start transactions, such as *sql.DB.
type TxBeginner interface {
	Querier
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// Session runs statements through an Interceptor. It is safe for concurrent
// use when the underlying Querier is.
type Session struct {
	db          Querier
	interceptor *softdelete.Interceptor
	logger      *zap.Logger
	now         func() time.Time
	defaults    softdelete.Options
	hooks       *hookSet
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger used for statement tracing.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used to stamp soft deletes.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		if now != nil {
			s.now = now
		}
	}
}

// WithDefaults sets opt-outs applied to every execution of the session.
func WithDefaults(opts ...softdelete.ExecOption) Option {
	return func(s *Session) {
		s.defaults = s.defaults.With(opts...)
	}
}

// New creates a Session over db.
func New(db Querier, interceptor *softdelete.Interceptor, opts ...Option) *Session {
	s := &Session{
		db:          db,
		interceptor: interceptor,
		logger:      zap.NewNop(),
		now:         time.Now,
		hooks:       &hookSet{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens and pings a database. driver is "pgx" (the default when empty)
// or "postgres" for lib/pq.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, error) {
	if driver == "" {
		driver = DriverPGX
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	return db, nil
}

// Supported database/sql driver names.
const (
	DriverPGX = "pgx"
	DriverPQ  = "postgres"
)

// Catalog returns the entity catalog of the session's interceptor.
func (s *Session) Catalog() *entity.Catalog { return s.interceptor.Catalog() }

// Intercept returns the interceptor's decision for stmt without executing
// it. Useful for explaining what a query will run as.
func (s *Session) Intercept(ctx context.Context, stmt sqldsl.Statement, opts ...softdelete.ExecOption) softdelete.Result {
	return s.intercept(ctx, stmt, softdelete.LoadTopLevel, opts)
}

// Options returns the opt-outs an execution with ctx and opts would use:
// session defaults, then those carried by ctx, then opts.
func (s *Session) Options(ctx context.Context, opts ...softdelete.ExecOption) softdelete.Options {
	return s.defaults.Merge(softdelete.FromContext(ctx)).With(opts...)
}

func (s *Session) intercept(ctx context.Context, stmt sqldsl.Statement, load softdelete.LoadKind, opts []softdelete.ExecOption) softdelete.Result {
	return s.interceptor.Intercept(softdelete.Execution{
		Statement: stmt,
		Options:   s.Options(ctx, opts...),
		Load:      load,
	})
}

// Rows is a result set of an intercepted read. Values scanned from it should
// be checked with Admit before use; Collect does this automatically.
type Rows struct {
	*sql.Rows
	result softdelete.Result
}

// Outcome reports how the query was filtered.
func (r *Rows) Outcome() softdelete.Outcome { return r.result.Outcome }

// Admit reports whether a scanned value may be returned to the caller. Only
// fallback executions reject values; rewritten queries already filtered in
// SQL.
func (r *Rows) Admit(v any) bool {
	return r.result.Criteria.Admit(v)
}

// Query runs a read statement.
func (s *Session) Query(ctx context.Context, stmt sqldsl.Statement, opts ...softdelete.ExecOption) (*Rows, error) {
	return s.query(ctx, stmt, softdelete.LoadTopLevel, opts)
}

// LoadColumns runs a statement fetching deferred columns of rows the caller
// already holds. No filtering is applied since those rows were filtered when
// first loaded.
func (s *Session) LoadColumns(ctx context.Context, stmt sqldsl.Statement, opts ...softdelete.ExecOption) (*Rows, error) {
	return s.query(ctx, stmt, softdelete.LoadColumns, opts)
}

// LoadRelationship runs a statement fetching rows related to rows the caller
// already holds. No filtering is applied.
func (s *Session) LoadRelationship(ctx context.Context, stmt sqldsl.Statement, opts ...softdelete.ExecOption) (*Rows, error) {
	return s.query(ctx, stmt, softdelete.LoadRelationship, opts)
}

func (s *Session) query(ctx context.Context, stmt sqldsl.Statement, load softdelete.LoadKind, opts []softdelete.ExecOption) (*Rows, error) {
	res := s.intercept(ctx, stmt, load, opts)
	final := res.Render()
	s.trace("query", final, res)
	rows, err := s.db.QueryContext(ctx, final.SQL(), final.Args()...)
	if err != nil {
		return nil, fmt.Errorf("query (%s): %w", res.Outcome, err)
	}
	return &Rows{Rows: rows, result: res}, nil
}

// QueryRow runs a read statement expected to return at most one row. The
// row is not checked with Admit; use Query with Collect when the statement
// may fall back to load-time filtering.
func (s *Session) QueryRow(ctx context.Context, stmt sqldsl.Statement, opts ...softdelete.ExecOption) *sql.Row {
	res := s.intercept(ctx, stmt, softdelete.LoadTopLevel, opts)
	final := res.Render()
	s.trace("query row", final, res)
	return s.db.QueryRowContext(ctx, final.SQL(), final.Args()...)
}

// Exec runs a statement that returns no rows.
func (s *Session) Exec(ctx context.Context, stmt sqldsl.Statement, opts ...softdelete.ExecOption) (sql.Result, error) {
	res := s.intercept(ctx, stmt, softdelete.LoadTopLevel, opts)
	final := res.Render()
	s.trace("exec", final, res)
	r, err := s.db.ExecContext(ctx, final.SQL(), final.Args()...)
	if err != nil {
		return nil, fmt.Errorf("exec: %w", err)
	}
	return r, nil
}

func (s *Session) trace(msg string, stmt sqldsl.Statement, res softdelete.Result) {
	if ce := s.logger.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(
			zap.String("sql", stmt.SQL()),
			zap.Int("args", len(stmt.Args())),
			zap.Stringer("outcome", res.Outcome),
		)
	}
}

// Collect scans every row with scan and returns the admitted values. The
// rows are closed.
func Collect[T any](rows *Rows, scan func(*sql.Rows, *T) error) ([]T, error) {
	defer func() { _ = rows.Close() }()

	var out []T
	for rows.Next() {
		var v T
		if err := scan(rows.Rows, &v); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if !rows.Admit(&v) {
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// WithTx runs fn with a Session bound to a new transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (s *Session) WithTx(ctx context.Context, fn func(tx *Session) error) (err error) {
	beginner, ok := s.db.(TxBeginner)
	if !ok {
		return ErrNoTxSupport
	}
	tx, err := beginner.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	scoped := *s
	scoped.db = tx
	if err = fn(&scoped); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
