package softdelete

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// OuterJoinMode decides how an outer-joined soft-deletable entity without an
// identity column is filtered.
type OuterJoinMode int

const (
	// OuterJoinModeWarn logs a warning and filters with the plain
	// deleted_at IS NULL predicate in WHERE. Null-extended rows of such an
	// entity are dropped.
	OuterJoinModeWarn OuterJoinMode = iota

	// OuterJoinModeOnClause moves deleted_at IS NULL into the ON clause of
	// the outer join that null-extends the entity, which keeps null-extended
	// rows without needing an identity column.
	OuterJoinModeOnClause
)

// String returns the configuration spelling of the mode.
func (m OuterJoinMode) String() string {
	switch m {
	case OuterJoinModeWarn:
		return "warn"
	case OuterJoinModeOnClause:
		return "on_clause"
	default:
		return fmt.Sprintf("OuterJoinMode(%d)", int(m))
	}
}

// ParseOuterJoinMode parses "warn" or "on_clause". The empty string is warn.
func ParseOuterJoinMode(s string) (OuterJoinMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return OuterJoinModeWarn, nil
	case "on_clause", "on-clause", "on":
		return OuterJoinModeOnClause, nil
	default:
		return OuterJoinModeWarn, fmt.Errorf("%w: %q", ErrUnknownOuterJoinMode, s)
	}
}

// Option configures a Builder or an Interceptor.
type Option func(*config)

type config struct {
	logger *zap.Logger
	mode   OuterJoinMode
}

func newConfig(opts []Option) config {
	cfg := config{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithOuterJoinMode sets the handling of identity-less outer-joined entities.
func WithOuterJoinMode(mode OuterJoinMode) Option {
	return func(c *config) {
		c.mode = mode
	}
}

// Conditions is what a Builder produces for one FROM tree.
type Conditions struct {
	// From is the FROM tree to use. It differs from the input only when
	// predicates were moved into ON clauses.
	From sqldsl.FromItem
	// Where holds one predicate per filtered entity, in walk order.
	Where []sqldsl.Expr
	// Pushed counts predicates placed in ON clauses or in derived tables
	// of live rows.
	Pushed int
}

// Len is the total number of predicates produced.
func (c Conditions) Len() int { return len(c.Where) + c.Pushed }

// Builder turns the entities of a FROM tree into exclusion predicates.
// It is safe for concurrent use.
type Builder struct {
	catalog *entity.Catalog
	cfg     config
}

// NewBuilder creates a Builder over catalog.
func NewBuilder(catalog *entity.Catalog, opts ...Option) *Builder {
	return &Builder{catalog: catalog, cfg: newConfig(opts)}
}

// Build computes the predicates that exclude tombstoned rows of every
// soft-deletable entity read by root, skipping entities opts excludes:
//
//   - an entity that no outer join null-extends gets q.deleted_at IS NULL
//   - a null-extended entity with an identity column gets
//     (q.deleted_at IS NULL OR q.id IS NULL), so rows where the outer join
//     found no match survive
//   - a null-extended entity without one is handled per OuterJoinMode
func (b *Builder) Build(root sqldsl.FromItem, opts Options) Conditions {
	out := Conditions{From: root}
	if opts.IncludeDeleted {
		return out
	}
	for _, ref := range Walk(root, b.catalog) {
		if opts.IsExcluded(ref.Entity) {
			continue
		}
		deleted := sqldsl.IsNull{Expr: ref.DeletedAt()}
		if !IsNullable(root, ref.Entity.Name, b.catalog) {
			out.Where = append(out.Where, deleted)
			continue
		}
		if ref.Entity.HasIdentity() {
			out.Where = append(out.Where, sqldsl.Or(deleted, sqldsl.IsNull{Expr: ref.Identity()}))
			continue
		}

		if b.cfg.mode == OuterJoinModeOnClause {
			from, placed := pushOn(out.From, ref, deleted, b.catalog)
			if placed {
				out.From = from
				out.Pushed++
				continue
			}
		}
		b.cfg.logger.Warn("outer-joined entity has no identity column",
			zap.String("entity", ref.Entity.Name),
			zap.String("qualifier", ref.Qualifier),
			zap.Stringer("mode", b.cfg.mode),
		)
		out.Where = append(out.Where, deleted)
	}
	return out
}

// pushOn moves pred into the ON clause of the join null-extending the first
// occurrence of ref. Under a join whose ON clause cannot filter that side
// (FULL JOIN) the occurrence is replaced by its live rows instead.
func pushOn(root sqldsl.FromItem, ref Ref, pred sqldsl.Expr, catalog *entity.Catalog) (sqldsl.FromItem, bool) {
	done := false
	from, left := placePredicates(root, func(leaf sqldsl.FromItem, exposed bool) (sqldsl.FromItem, sqldsl.Expr) {
		if done {
			return leaf, nil
		}
		r, ok := Resolve(leaf, catalog)
		if !ok || r.Entity.Name != ref.Entity.Name || r.Qualifier != ref.Qualifier {
			return leaf, nil
		}
		done = true
		if exposed {
			if live, ok := liveOnly(leaf, r); ok {
				return live, nil
			}
		}
		return leaf, pred
	})
	if !done || len(left) > 0 {
		return root, false
	}
	return from, true
}

// placer decides what happens to one leaf of a FROM tree: the item to keep
// in its place and the predicate to attach, if any. exposed is true when an
// enclosing join may null-extend the leaf but no enclosing ON clause can
// filter it, so a returned predicate ends up in WHERE.
type placer func(leaf sqldsl.FromItem, exposed bool) (sqldsl.FromItem, sqldsl.Expr)

// placePredicates rebuilds root, attaching the predicate place returns for
// each leaf. A predicate goes into the ON clause of the nearest enclosing join
// that may null-extend the leaf's side and can filter it there (the right
// side of a LEFT JOIN, the left side of a RIGHT JOIN). Predicates with no
// such join are returned for the WHERE clause, in leaf order.
func placePredicates(root sqldsl.FromItem, place placer) (sqldsl.FromItem, []sqldsl.Expr) {
	return placeUnder(root, place, false, false)
}

func placeUnder(root sqldsl.FromItem, place placer, nullable, caught bool) (sqldsl.FromItem, []sqldsl.Expr) {
	j, ok := root.(sqldsl.Join)
	if !ok {
		if root == nil {
			return nil, nil
		}
		leaf, p := place(root, nullable && !caught)
		if p != nil {
			return leaf, []sqldsl.Expr{p}
		}
		return leaf, nil
	}

	nullLeft, nullRight := j.NullableSides()
	filterLeft, filterRight := j.FilterableSides()
	left, lp := placeUnder(j.Left, place, nullable || nullLeft, caught || (nullLeft && filterLeft))
	right, rp := placeUnder(j.Right, place, nullable || nullRight, caught || (nullRight && filterRight))
	j.Left, j.Right = left, right

	var on []sqldsl.Expr
	if nullLeft && filterLeft && len(lp) > 0 {
		on, lp = append(on, lp...), nil
	}
	if nullRight && filterRight && len(rp) > 0 {
		on, rp = append(on, rp...), nil
	}
	if len(on) > 0 {
		j.On = sqldsl.Conjoin(j.On, on...)
	}
	return j, append(lp, rp...)
}

// liveOnly replaces a resolved leaf with a derived table of its live rows
// under the same qualifier, so a join that cannot filter the leaf in ON still
// null-extends it. Schema-qualified references cannot be re-aliased and are
// left alone.
func liveOnly(leaf sqldsl.FromItem, ref Ref) (sqldsl.FromItem, bool) {
	if strings.Contains(ref.Qualifier, ".") {
		return leaf, false
	}
	var table sqldsl.TableRef
	switch l := leaf.(type) {
	case sqldsl.TableRef:
		table = sqldsl.Table(l.Name)
	case sqldsl.Aliased:
		src, ok := l.Source.(sqldsl.TableRef)
		if !ok {
			return leaf, false
		}
		table = sqldsl.Table(src.Name)
	default:
		return leaf, false
	}
	inner := Ref{Entity: ref.Entity, Qualifier: table.Qualifier()}
	return sqldsl.Subquery{
		Query: sqldsl.Select(sqldsl.Star{}).WithFrom(table).AndWhere(sqldsl.IsNull{Expr: inner.DeletedAt()}),
		Alias: ref.Qualifier,
	}, true
}
