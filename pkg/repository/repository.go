// Package repository provides typed access to soft-deletable entities on top
// of a session.Session, with an optional read-through cache.
package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/session"
	"github.com/pthm/tombstone/pkg/softdelete"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// ScanFunc copies the current row into dst. Columns arrive in the order
// given to New.
type ScanFunc[T any] func(rows *sql.Rows, dst *T) error

// Repository reads and tombstones rows of one entity.
type Repository[T any] struct {
	session *session.Session
	entity  entity.Entity
	columns []string
	scan    ScanFunc[T]
}

// New creates a Repository for the model type T, which must be registered
// in the session's catalog with an identity column.
func New[T any](s *session.Session, scan ScanFunc[T], columns ...string) (*Repository[T], error) {
	var zero T
	e, ok := s.Catalog().LookupModel(zero)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotRegistered, zero)
	}
	if !e.HasIdentity() {
		return nil, fmt.Errorf("%w: %q", ErrNoIdentity, e.Name)
	}
	return &Repository[T]{session: s, entity: e, columns: columns, scan: scan}, nil
}

// Entity returns the catalog entry the repository reads.
func (r *Repository[T]) Entity() entity.Entity { return r.entity }

func (r *Repository[T]) selectStmt() sqldsl.SelectStmt {
	t := sqldsl.Table(r.entity.Name)
	cols := make([]sqldsl.Expr, len(r.columns))
	for i, c := range r.columns {
		cols[i] = t.Col(c)
	}
	return sqldsl.SelectStmt{Columns: cols, From: t}
}

// GetByID returns the row with the given identity. Tombstoned rows are
// reported as ErrNotFound unless opts opt out.
func (r *Repository[T]) GetByID(ctx context.Context, id any, opts ...softdelete.ExecOption) (T, error) {
	var zero T
	t := sqldsl.Table(r.entity.Name)
	stmt := r.selectStmt().
		AndWhere(sqldsl.Eq{Left: t.Col(r.entity.IdentityColumn), Right: sqldsl.Placeholder(1)}).
		WithParams(id)
	stmt.Limit = 1

	got, err := r.collect(ctx, stmt, opts)
	if err != nil {
		return zero, err
	}
	if len(got) == 0 {
		return zero, fmt.Errorf("%w: %s %v", ErrNotFound, r.entity.Name, id)
	}
	return got[0], nil
}

// List returns rows ordered by identity. A limit of zero means no limit.
func (r *Repository[T]) List(ctx context.Context, limit, offset int, opts ...softdelete.ExecOption) ([]T, error) {
	stmt := r.selectStmt()
	stmt.OrderBy = []sqldsl.OrderTerm{sqldsl.Asc(sqldsl.Table(r.entity.Name).Col(r.entity.IdentityColumn))}
	stmt.Limit = limit
	stmt.Offset = offset
	return r.collect(ctx, stmt, opts)
}

func (r *Repository[T]) collect(ctx context.Context, stmt sqldsl.SelectStmt, opts []softdelete.ExecOption) ([]T, error) {
	rows, err := r.session.Query(ctx, stmt, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.entity.Name, err)
	}
	return session.Collect(rows, r.scan)
}

// SoftDelete tombstones the row with the given identity. It reports whether
// a live row was found.
func (r *Repository[T]) SoftDelete(ctx context.Context, id any) (bool, error) {
	return r.session.SoftDelete(ctx, r.entity.Name, id)
}

// Restore clears the tombstone of the row with the given identity. It
// reports whether a tombstoned row was found.
func (r *Repository[T]) Restore(ctx context.Context, id any) (bool, error) {
	return r.session.Restore(ctx, r.entity.Name, id)
}
