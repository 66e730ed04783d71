package softdelete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/tombstone/pkg/sqldsl"
)

func TestWalk(t *testing.T) {
	catalog := testCatalog(t)
	sub := sqldsl.Subquery{Query: selectAll(sqldsl.Table("items")), Alias: "i"}

	tests := []struct {
		name string
		root sqldsl.FromItem
		want []string // entity:qualifier
	}{
		{
			name: "single table",
			root: sqldsl.Table("orders"),
			want: []string{"orders:orders"},
		},
		{
			name: "aliased table ref",
			root: sqldsl.TableAs("orders", "o"),
			want: []string{"orders:o"},
		},
		{
			name: "aliased wrapper is unwrapped one level",
			root: sqldsl.Aliased{Source: sqldsl.Table("users"), Name: "u"},
			want: []string{"users:u"},
		},
		{
			name: "left before right",
			root: sqldsl.InnerJoin(
				sqldsl.LeftJoin(sqldsl.Table("orders"), sqldsl.Table("users"), on("a", "b")),
				sqldsl.Table("items"),
				on("c", "d"),
			),
			want: []string{"orders:orders", "users:users", "items:items"},
		},
		{
			name: "right nested tree",
			root: sqldsl.InnerJoin(
				sqldsl.Table("items"),
				sqldsl.LeftJoin(sqldsl.Table("orders"), sqldsl.Table("users"), on("a", "b")),
				on("c", "d"),
			),
			want: []string{"items:items", "orders:orders", "users:users"},
		},
		{
			name: "self join reported once, first occurrence wins",
			root: sqldsl.InnerJoin(sqldsl.TableAs("orders", "o1"), sqldsl.TableAs("orders", "o2"), on("o1.parent_id", "o2.id")),
			want: []string{"orders:o1"},
		},
		{
			name: "not soft-deletable and unknown tables skipped",
			root: sqldsl.InnerJoin(
				sqldsl.InnerJoin(sqldsl.Table("countries"), sqldsl.Table("audit"), on("a", "b")),
				sqldsl.Table("users"),
				on("c", "d"),
			),
			want: []string{"users:users"},
		},
		{
			name: "unresolvable leaves skipped",
			root: sqldsl.InnerJoin(
				sqldsl.InnerJoin(sub, sqldsl.RawTable{SQL: "(VALUES (1))", Alias: "v"}, on("a", "b")),
				sqldsl.FunctionTable{Name: "generate_series", Args: []sqldsl.Expr{sqldsl.Int(1), sqldsl.Int(2)}},
				nil,
			),
		},
		{
			name: "aliased subquery skipped",
			root: sqldsl.Aliased{Source: sub, Name: "x"},
		},
		{
			name: "nil root",
			root: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, ref := range Walk(tt.root, catalog) {
				got = append(got, ref.Entity.Name+":"+ref.Qualifier)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWalk_ByTypeName(t *testing.T) {
	refs := Walk(sqldsl.TableAs("Order", "o"), testCatalog(t))
	require.Len(t, refs, 1)
	assert.Equal(t, "orders", refs[0].Entity.Name)
	assert.Equal(t, "o.deleted_at", refs[0].DeletedAt().SQL())
	assert.Equal(t, "o.id", refs[0].Identity().SQL())
}

func TestOccurrences(t *testing.T) {
	root := sqldsl.InnerJoin(sqldsl.TableAs("orders", "o1"), sqldsl.TableAs("orders", "o2"), on("o1.parent_id", "o2.id"))
	refs := Occurrences(root, testCatalog(t))
	require.Len(t, refs, 2)
	assert.Equal(t, "o1", refs[0].Qualifier)
	assert.Equal(t, "o2", refs[1].Qualifier)
}

// chain builds a left-deep inner join over n aliases of the given tables.
func chain(n int, tables ...string) sqldsl.FromItem {
	var root sqldsl.FromItem = sqldsl.Table(tables[0])
	for i := 1; i < n; i++ {
		root = sqldsl.InnerJoin(root, sqldsl.Table(tables[i%len(tables)]), on("x", "y"))
	}
	return root
}

func TestWalk_DeepNesting(t *testing.T) {
	catalog := testCatalog(t)

	t.Run("left deep", func(t *testing.T) {
		refs := Walk(chain(5000, "orders", "users", "items", "countries"), catalog)
		require.Len(t, refs, 3)
		assert.Equal(t, "orders", refs[0].Entity.Name)
		assert.Equal(t, "users", refs[1].Entity.Name)
		assert.Equal(t, "items", refs[2].Entity.Name)
	})

	t.Run("right deep", func(t *testing.T) {
		var root sqldsl.FromItem = sqldsl.Table("items")
		for i := 0; i < 1000; i++ {
			root = sqldsl.LeftJoin(sqldsl.Table("countries"), root, on("x", "y"))
		}
		root = sqldsl.InnerJoin(sqldsl.Table("orders"), root, on("x", "y"))

		refs := Walk(root, catalog)
		require.Len(t, refs, 2)
		assert.Equal(t, "orders", refs[0].Entity.Name)
		assert.Equal(t, "items", refs[1].Entity.Name)
		assert.True(t, IsNullable(root, "items", catalog))
		assert.False(t, IsNullable(root, "orders", catalog))
	})
}
