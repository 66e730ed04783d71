package softdelete

import (
	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// Ref is a soft-deletable entity found in a FROM tree together with the name
// its columns are referenced by in that query.
type Ref struct {
	Entity    entity.Entity
	Qualifier string
}

// Column returns a column of the referenced entity, qualified for the query.
func (r Ref) Column(name string) sqldsl.Col {
	return sqldsl.Col{Table: r.Qualifier, Column: name}
}

// DeletedAt returns the entity's marker column.
func (r Ref) DeletedAt() sqldsl.Col { return r.Column(r.Entity.DeletedAtColumn) }

// Identity returns the entity's identity column. Only valid when
// Entity.HasIdentity is true.
func (r Ref) Identity() sqldsl.Col { return r.Column(r.Entity.IdentityColumn) }

// Resolve maps a leaf of a FROM tree to the catalog entity it reads from.
// TableRef resolves by name; Aliased is unwrapped one level when it wraps a
// TableRef. Joins, derived tables, raw fragments, function tables and
// unknown tables do not resolve. Resolution never fails loudly.
func Resolve(item sqldsl.FromItem, catalog *entity.Catalog) (Ref, bool) {
	switch it := item.(type) {
	case sqldsl.TableRef:
		e, ok := catalog.Lookup(it.Name)
		if !ok {
			return Ref{}, false
		}
		return Ref{Entity: e, Qualifier: it.Qualifier()}, true
	case sqldsl.Aliased:
		src, ok := it.Source.(sqldsl.TableRef)
		if !ok {
			return Ref{}, false
		}
		e, ok := catalog.Lookup(src.Name)
		if !ok {
			return Ref{}, false
		}
		return Ref{Entity: e, Qualifier: it.Name}, true
	default:
		return Ref{}, false
	}
}

// leaves visits every leaf of root, left subtree before right, until fn
// returns false. The traversal is iterative so deeply nested join chains
// don't grow the goroutine stack.
func leaves(root sqldsl.FromItem, fn func(sqldsl.FromItem) bool) {
	if root == nil {
		return
	}
	stack := []sqldsl.FromItem{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		item := stack[n]
		stack = stack[:n]

		if j, ok := item.(sqldsl.Join); ok {
			// Push right first so left pops first.
			if j.Right != nil {
				stack = append(stack, j.Right)
			}
			if j.Left != nil {
				stack = append(stack, j.Left)
			}
			continue
		}
		if !fn(item) {
			return
		}
	}
}

// Walk returns the distinct soft-deletable entities read by root in
// left-to-right order. An entity occurring more than once (a self-join or
// the same table under two aliases) is reported once, with the qualifier of
// its first occurrence. Entities without the soft-delete capability and
// leaves that do not resolve are skipped.
func Walk(root sqldsl.FromItem, catalog *entity.Catalog) []Ref {
	var refs []Ref
	seen := make(map[string]struct{})
	leaves(root, func(item sqldsl.FromItem) bool {
		ref, ok := Resolve(item, catalog)
		if !ok || !ref.Entity.SoftDeletable() {
			return true
		}
		if _, dup := seen[ref.Entity.Name]; !dup {
			seen[ref.Entity.Name] = struct{}{}
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}

// Occurrences is like Walk without de-duplication: every resolvable
// soft-deletable leaf is returned, aliases included.
func Occurrences(root sqldsl.FromItem, catalog *entity.Catalog) []Ref {
	var refs []Ref
	leaves(root, func(item sqldsl.FromItem) bool {
		if ref, ok := Resolve(item, catalog); ok && ref.Entity.SoftDeletable() {
			refs = append(refs, ref)
		}
		return true
	})
	return refs
}
