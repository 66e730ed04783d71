package softdelete

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// testCatalog returns:
//
//	orders, users, items  soft-deletable with identity "id"
//	notes                 soft-deletable without identity
//	countries             not soft-deletable
func testCatalog(t *testing.T) *entity.Catalog {
	t.Helper()
	c, err := entity.NewCatalogFromEntities(
		entity.Entity{Name: "orders", TypeName: "Order", DeletedAtColumn: "deleted_at", IdentityColumn: "id"},
		entity.Entity{Name: "users", TypeName: "User", DeletedAtColumn: "deleted_at", IdentityColumn: "id"},
		entity.Entity{Name: "items", TypeName: "Item", DeletedAtColumn: "deleted_at", IdentityColumn: "id"},
		entity.Entity{Name: "notes", TypeName: "Note", DeletedAtColumn: "deleted_at"},
		entity.Entity{Name: "countries", TypeName: "Country", IdentityColumn: "code"},
	)
	require.NoError(t, err)
	return c
}

// on renders "left = right".
func on(left, right string) sqldsl.Expr {
	return sqldsl.Eq{Left: sqldsl.Raw(left), Right: sqldsl.Raw(right)}
}

func selectAll(from sqldsl.FromItem) sqldsl.SelectStmt {
	return sqldsl.Select(sqldsl.Star{}).WithFrom(from)
}

// ordersLeftUsers is orders LEFT JOIN users ON orders.user_id = users.id.
func ordersLeftUsers() sqldsl.Join {
	return sqldsl.LeftJoin(sqldsl.Table("orders"), sqldsl.Table("users"), on("orders.user_id", "users.id"))
}

func renderAll(exprs []sqldsl.Expr) []string {
	out := make([]string, len(exprs))
	for i, e := range exprs {
		out[i] = e.SQL()
	}
	return out
}
