package softdelete

import (
	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// IsNullable reports whether the entity named target may appear
// null-extended in the rows produced by root: some outer join in the tree
// has target on a side it may fill with NULLs (the right side of a LEFT
// JOIN, the left side of a RIGHT JOIN, either side of a FULL JOIN).
//
// Matching is structural. A table whose name merely contains target, or a
// reference inside an ON condition, does not count.
func IsNullable(root sqldsl.FromItem, target string, catalog *entity.Catalog) bool {
	if root == nil || target == "" {
		return false
	}
	stack := []sqldsl.FromItem{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		item := stack[n]
		stack = stack[:n]

		j, ok := item.(sqldsl.Join)
		if !ok {
			continue
		}
		nullLeft, nullRight := j.NullableSides()
		if nullLeft && contains(j.Left, target, catalog) {
			return true
		}
		if nullRight && contains(j.Right, target, catalog) {
			return true
		}
		stack = append(stack, j.Right, j.Left)
	}
	return false
}

// contains reports whether any leaf of item resolves to the entity named
// target.
func contains(item sqldsl.FromItem, target string, catalog *entity.Catalog) bool {
	found := false
	leaves(item, func(leaf sqldsl.FromItem) bool {
		if ref, ok := Resolve(leaf, catalog); ok && ref.Entity.Matches(target) {
			found = true
		}
		return !found
	})
	return found
}
