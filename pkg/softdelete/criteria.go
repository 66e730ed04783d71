package softdelete

import (
	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// Criteria is the blanket rule used when a statement cannot be analyzed as a
// single join tree: every entity with the soft-delete capability is
// restricted to rows whose marker is NULL, wherever and however often it
// appears. Occurrences a FULL JOIN may null-extend get the null-safe
// predicate, or are replaced by their live rows when they have no identity
// column.
//
// The rule is applied at two points. Apply adds it to any statement shape
// that exposes FROM trees (each member of a compound query, the bodies of a
// WITH clause, derived tables). Admit enforces it on loaded values, which
// covers raw SQL that cannot be rewritten at all.
type Criteria struct {
	catalog *entity.Catalog
	opts    Options
}

// NewCriteria returns the blanket rule for catalog, honoring the entity
// exclusions in opts.
func NewCriteria(catalog *entity.Catalog, opts Options) *Criteria {
	return &Criteria{catalog: catalog, opts: opts}
}

// Apply returns stmt with the rule added. Statements that expose no FROM
// tree (raw SQL, writes) are returned unchanged.
func (c *Criteria) Apply(stmt sqldsl.Statement) sqldsl.Statement {
	if c == nil || c.opts.IncludeDeleted {
		return stmt
	}
	switch s := stmt.(type) {
	case sqldsl.SelectStmt:
		return c.applySelect(s)
	case sqldsl.CompoundSelect:
		return c.applyCompound(s)
	case sqldsl.WithCTE:
		return c.applyWith(s)
	default:
		return stmt
	}
}

func (c *Criteria) applySelect(s sqldsl.SelectStmt) sqldsl.SelectStmt {
	if s.From == nil {
		return s
	}
	from := mapSubqueries(s.From, c.applySelect)
	from, where := placePredicates(from, func(leaf sqldsl.FromItem, exposed bool) (sqldsl.FromItem, sqldsl.Expr) {
		ref, ok := Resolve(leaf, c.catalog)
		if !ok || !ref.Entity.SoftDeletable() || c.opts.IsExcluded(ref.Entity) {
			return leaf, nil
		}
		deleted := sqldsl.IsNull{Expr: ref.DeletedAt()}
		if !exposed {
			return leaf, deleted
		}
		if ref.Entity.HasIdentity() {
			return leaf, sqldsl.Or(deleted, sqldsl.IsNull{Expr: ref.Identity()})
		}
		if live, ok := liveOnly(leaf, ref); ok {
			return live, nil
		}
		return leaf, deleted
	})
	return s.WithFrom(from).AndWhere(where...)
}

func (c *Criteria) applyCompound(cs sqldsl.CompoundSelect) sqldsl.CompoundSelect {
	selects := make([]sqldsl.SelectStmt, len(cs.Selects))
	for i, s := range cs.Selects {
		selects[i] = c.applySelect(s)
	}
	cs.Selects = selects
	return cs
}

func (c *Criteria) applyWith(w sqldsl.WithCTE) sqldsl.WithCTE {
	ctes := make([]sqldsl.CTEDef, len(w.CTEs))
	for i, def := range w.CTEs {
		switch q := def.Query.(type) {
		case sqldsl.SelectStmt:
			def.Query = c.applySelect(q)
		case sqldsl.CompoundSelect:
			def.Query = c.applyCompound(q)
		}
		ctes[i] = def
	}
	w.CTEs = ctes
	w.Query = c.Apply(w.Query)
	return w
}

// Admit reports whether a loaded value may be returned. Values that report
// themselves deleted are rejected unless their entity is excluded.
func (c *Criteria) Admit(row any) bool {
	if c == nil || c.opts.IncludeDeleted {
		return true
	}
	t, ok := row.(entity.Tombstoned)
	if !ok || !t.IsDeleted() {
		return true
	}
	if e, known := c.catalog.LookupModel(row); known && c.opts.IsExcluded(e) {
		return true
	}
	return false
}

// mapSubqueries rewrites every derived table in item with fn.
func mapSubqueries(item sqldsl.FromItem, fn func(sqldsl.SelectStmt) sqldsl.SelectStmt) sqldsl.FromItem {
	return sqldsl.MapFrom(item, func(node sqldsl.FromItem) sqldsl.FromItem {
		switch n := node.(type) {
		case sqldsl.Subquery:
			n.Query = fn(n.Query)
			return n
		case sqldsl.Aliased:
			if sub, ok := n.Source.(sqldsl.Subquery); ok {
				sub.Query = fn(sub.Query)
				n.Source = sub
			}
			return n
		default:
			return node
		}
	})
}
