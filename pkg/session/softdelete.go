package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// SoftDelete tombstones the row of the named entity with the given identity.
// It reports whether a live row was found. Related rows are not touched.
func (s *Session) SoftDelete(ctx context.Context, name string, id any) (bool, error) {
	e, err := s.softDeletable(name)
	if err != nil {
		return false, err
	}
	found, err := s.execAffected(ctx, SoftDeleteStmt(e, s.now().UTC(), id))
	if err != nil {
		return false, err
	}
	return found, s.hooks.run(ctx, e, id)
}

// Restore clears the tombstone of the row of the named entity with the
// given identity. It reports whether a tombstoned row was found.
func (s *Session) Restore(ctx context.Context, name string, id any) (bool, error) {
	e, err := s.softDeletable(name)
	if err != nil {
		return false, err
	}
	found, err := s.execAffected(ctx, RestoreStmt(e, id))
	if err != nil {
		return false, err
	}
	return found, s.hooks.run(ctx, e, id)
}

// TombstoneHook is called after SoftDelete or Restore has run for the row of
// e with the given identity, whether or not a row matched.
type TombstoneHook func(ctx context.Context, e entity.Entity, id any) error

// OnTombstone registers fn with the session. Transactions started by
// WithTx share the registrations of their parent.
func (s *Session) OnTombstone(fn TombstoneHook) {
	if fn != nil {
		s.hooks.add(fn)
	}
}

type hookSet struct {
	mu  sync.RWMutex
	fns []TombstoneHook
}

func (h *hookSet) add(fn TombstoneHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

// run calls every hook and joins their errors.
func (h *hookSet) run(ctx context.Context, e entity.Entity, id any) error {
	if h == nil {
		return nil
	}
	h.mu.RLock()
	fns := h.fns
	h.mu.RUnlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, e, id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Session) softDeletable(name string) (entity.Entity, error) {
	e, ok := s.Catalog().Lookup(name)
	if !ok {
		return entity.Entity{}, fmt.Errorf("%w: %q", ErrUnknownEntity, name)
	}
	if !e.SoftDeletable() {
		return entity.Entity{}, fmt.Errorf("%w: %q", ErrNotSoftDeletable, e.Name)
	}
	if !e.HasIdentity() {
		return entity.Entity{}, fmt.Errorf("%w: %q", ErrNoIdentity, e.Name)
	}
	return e, nil
}

func (s *Session) execAffected(ctx context.Context, stmt sqldsl.Statement) (bool, error) {
	res, err := s.Exec(ctx, stmt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SoftDeleteStmt builds the UPDATE that tombstones one live row:
//
//	UPDATE orders SET deleted_at = $1 WHERE orders.id = $2 AND orders.deleted_at IS NULL
func SoftDeleteStmt(e entity.Entity, at any, id any) sqldsl.UpdateStmt {
	t := sqldsl.Table(e.Name)
	return sqldsl.UpdateStmt{
		Table: t,
		Set:   []sqldsl.Assignment{{Column: e.DeletedAtColumn, Value: sqldsl.Placeholder(1)}},
		Where: sqldsl.And(
			sqldsl.Eq{Left: t.Col(e.IdentityColumn), Right: sqldsl.Placeholder(2)},
			sqldsl.IsNull{Expr: t.Col(e.DeletedAtColumn)},
		),
		Params: []any{at, id},
	}
}

// RestoreStmt builds the UPDATE that clears one tombstone.
func RestoreStmt(e entity.Entity, id any) sqldsl.UpdateStmt {
	t := sqldsl.Table(e.Name)
	return sqldsl.UpdateStmt{
		Table: t,
		Set:   []sqldsl.Assignment{{Column: e.DeletedAtColumn, Value: sqldsl.Null{}}},
		Where: sqldsl.And(
			sqldsl.Eq{Left: t.Col(e.IdentityColumn), Right: sqldsl.Placeholder(1)},
			sqldsl.IsNotNull{Expr: t.Col(e.DeletedAtColumn)},
		),
		Params: []any{id},
	}
}
