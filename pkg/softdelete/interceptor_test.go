package softdelete

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/pthm/tombstone/pkg/sqldsl"
)

func TestIntercept_OrdersLeftJoinUsers(t *testing.T) {
	i := NewInterceptor(testCatalog(t))
	stmt := selectAll(ordersLeftUsers())
	before := stmt.SQL()

	res := i.Intercept(Execution{Statement: stmt})

	require.Equal(t, OutcomeRewritten, res.Outcome)
	assert.Nil(t, res.Criteria)
	assert.Equal(t, 2, res.Conditions)
	assert.Equal(t,
		"SELECT *\n"+
			"FROM orders\n"+
			"LEFT JOIN users ON orders.user_id = users.id\n"+
			"WHERE (orders.deleted_at IS NULL AND (users.deleted_at IS NULL OR users.id IS NULL))",
		res.Render().SQL())
	assert.Equal(t, before, stmt.SQL(), "input statement must not change")
}

func TestIntercept_ExitPaths(t *testing.T) {
	catalog := testCatalog(t)
	i := NewInterceptor(catalog)
	orders := selectAll(sqldsl.Table("orders"))

	tests := []struct {
		name string
		exec Execution
		want Outcome
	}{
		{"insert", Execution{Statement: sqldsl.InsertStmt{Table: "orders", Columns: []string{"id"}, Values: []sqldsl.Expr{sqldsl.Int(1)}}}, OutcomeNotRead},
		{"update", Execution{Statement: sqldsl.UpdateStmt{Table: sqldsl.Table("orders")}}, OutcomeNotRead},
		{"delete", Execution{Statement: sqldsl.DeleteStmt{Table: sqldsl.Table("orders")}}, OutcomeNotRead},
		{"raw exec", Execution{Statement: sqldsl.RawExec("UPDATE orders SET x = 1")}, OutcomeNotRead},
		{"nil statement", Execution{}, OutcomeNotRead},
		{"column load", Execution{Statement: orders, Load: LoadColumns}, OutcomeSubLoad},
		{"relationship load", Execution{Statement: orders, Load: LoadRelationship}, OutcomeSubLoad},
		{"include deleted", Execution{Statement: orders, Options: NewOptions(IncludeDeleted())}, OutcomeIncludeDeleted},
		{"analyzable select", Execution{Statement: orders}, OutcomeRewritten},
		{"select without from", Execution{Statement: sqldsl.Select(sqldsl.Int(1))}, OutcomeFallback},
		{"only non soft-deletable", Execution{Statement: selectAll(sqldsl.Table("countries"))}, OutcomeFallback},
		{"all excluded", Execution{Statement: orders, Options: NewOptions(ExcludeEntities("orders"))}, OutcomeFallback},
		{"raw read", Execution{Statement: sqldsl.RawRead("SELECT * FROM orders")}, OutcomeFallback},
		{"compound", Execution{Statement: sqldsl.CompoundSelect{Selects: []sqldsl.SelectStmt{orders, orders}}}, OutcomeFallback},
		{"with clause", Execution{Statement: sqldsl.SimpleCTE("o", orders, selectAll(sqldsl.Table("o")))}, OutcomeFallback},
		{"raw table", Execution{Statement: selectAll(sqldsl.RawTable{SQL: "orders_view"})}, OutcomeFallback},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := i.Intercept(tt.exec)
			assert.Equal(t, tt.want, res.Outcome, res.Outcome.String())
			if tt.want == OutcomeFallback {
				assert.NotNil(t, res.Criteria)
			} else {
				assert.Nil(t, res.Criteria)
			}
			if tt.want != OutcomeRewritten {
				assert.Equal(t, tt.exec.Statement, res.Statement, "statement must pass through unchanged")
			}
		})
	}
}

func TestIntercept_IncludeDeletedReturnsIdenticalStatement(t *testing.T) {
	i := NewInterceptor(testCatalog(t))
	stmt := selectAll(ordersLeftUsers()).AndWhere(sqldsl.Eq{Left: sqldsl.Col{Column: "status"}, Right: sqldsl.Placeholder(1)}).WithParams("open")

	res := i.Intercept(Execution{Statement: stmt, Options: NewOptions(IncludeDeleted())})
	assert.Equal(t, sqldsl.Statement(stmt), res.Statement)
	assert.Equal(t, stmt.SQL(), res.Render().SQL())
	assert.Equal(t, []any{"open"}, res.Render().Args())
}

func TestIntercept_PerEntityOptOut(t *testing.T) {
	i := NewInterceptor(testCatalog(t))
	res := i.Intercept(Execution{
		Statement: selectAll(ordersLeftUsers()),
		Options:   NewOptions(ExcludeEntities("User")),
	})
	require.Equal(t, OutcomeRewritten, res.Outcome)
	sql := res.Render().SQL()
	assert.Contains(t, sql, "WHERE orders.deleted_at IS NULL")
	assert.NotContains(t, sql, "users.deleted_at")
}

func TestIntercept_InnerJoinsOnly(t *testing.T) {
	i := NewInterceptor(testCatalog(t))
	from := sqldsl.InnerJoin(
		sqldsl.InnerJoin(sqldsl.TableAs("orders", "o"), sqldsl.TableAs("users", "u"), on("o.user_id", "u.id")),
		sqldsl.TableAs("items", "i"),
		on("i.order_id", "o.id"),
	)
	stmt := selectAll(from)
	stmt.Where = sqldsl.Eq{Left: sqldsl.Col{Table: "o", Column: "status"}, Right: sqldsl.Placeholder(1)}

	res := i.Intercept(Execution{Statement: stmt})
	require.Equal(t, OutcomeRewritten, res.Outcome)
	assert.Equal(t, 3, res.Conditions)
	assert.Equal(t,
		"WHERE (o.status = $1 AND o.deleted_at IS NULL AND u.deleted_at IS NULL AND i.deleted_at IS NULL)",
		lastLine(res.Render().SQL()))
}

func TestIntercept_SelfJoinDeduplicated(t *testing.T) {
	i := NewInterceptor(testCatalog(t))
	stmt := selectAll(sqldsl.LeftJoin(sqldsl.TableAs("orders", "o1"), sqldsl.TableAs("orders", "o2"), on("o1.parent_id", "o2.id")))

	res := i.Intercept(Execution{Statement: stmt})
	require.Equal(t, OutcomeRewritten, res.Outcome)
	assert.Equal(t, 1, res.Conditions)
	assert.Equal(t, "WHERE (o1.deleted_at IS NULL OR o1.id IS NULL)", lastLine(res.Render().SQL()))
}

func TestIntercept_DerivedTables(t *testing.T) {
	i := NewInterceptor(testCatalog(t))

	t.Run("rewritten with outer query", func(t *testing.T) {
		from := sqldsl.InnerJoin(
			sqldsl.Table("orders"),
			sqldsl.Subquery{Query: selectAll(sqldsl.Table("users")), Alias: "u"},
			on("orders.user_id", "u.id"),
		)
		res := i.Intercept(Execution{Statement: selectAll(from)})
		require.Equal(t, OutcomeRewritten, res.Outcome)
		assert.Equal(t, 1, res.Conditions)
		assert.Equal(t,
			"SELECT *\n"+
				"FROM orders\n"+
				"INNER JOIN (\n"+
				"    SELECT *\n"+
				"    FROM users\n"+
				"    WHERE users.deleted_at IS NULL\n"+
				") AS u ON orders.user_id = u.id\n"+
				"WHERE orders.deleted_at IS NULL",
			res.Render().SQL())
	})

	t.Run("live rows of a full-joined entity are filtered once", func(t *testing.T) {
		oc := NewInterceptor(testCatalog(t), WithOuterJoinMode(OuterJoinModeOnClause))
		from := sqldsl.FullJoin(sqldsl.Table("orders"), sqldsl.Table("notes"), on("orders.id", "notes.order_id"))
		res := oc.Intercept(Execution{Statement: selectAll(from)})
		require.Equal(t, OutcomeRewritten, res.Outcome)
		assert.Equal(t, 2, res.Conditions)
		assert.Equal(t,
			"SELECT *\n"+
				"FROM orders\n"+
				"FULL JOIN (\n"+
				"    SELECT *\n"+
				"    FROM notes\n"+
				"    WHERE notes.deleted_at IS NULL\n"+
				") AS notes ON orders.id = notes.order_id\n"+
				"WHERE (orders.deleted_at IS NULL OR orders.id IS NULL)",
			res.Render().SQL())
	})

	t.Run("only derived table falls back", func(t *testing.T) {
		from := sqldsl.Aliased{Source: sqldsl.Subquery{Query: selectAll(sqldsl.Table("users"))}, Name: "u"}
		res := i.Intercept(Execution{Statement: selectAll(from)})
		require.Equal(t, OutcomeFallback, res.Outcome)
		assert.Contains(t, res.Render().SQL(), "    WHERE users.deleted_at IS NULL\n) AS u")
	})
}

func TestIntercept_FallbackRender(t *testing.T) {
	i := NewInterceptor(testCatalog(t))

	t.Run("compound query filters each member", func(t *testing.T) {
		stmt := sqldsl.CompoundSelect{
			Op: sqldsl.UnionAll,
			Selects: []sqldsl.SelectStmt{
				sqldsl.Select(sqldsl.Col{Column: "id"}).WithFrom(sqldsl.Table("orders")),
				sqldsl.Select(sqldsl.Col{Column: "id"}).WithFrom(sqldsl.Table("items")),
			},
		}
		res := i.Intercept(Execution{Statement: stmt})
		require.Equal(t, OutcomeFallback, res.Outcome)
		assert.Equal(t,
			"SELECT id\nFROM orders\nWHERE orders.deleted_at IS NULL\nUNION ALL\nSELECT id\nFROM items\nWHERE items.deleted_at IS NULL",
			res.Render().SQL())
	})

	t.Run("raw query passes through", func(t *testing.T) {
		raw := sqldsl.RawRead("SELECT * FROM orders WHERE id = $1", 5)
		res := i.Intercept(Execution{Statement: raw})
		require.Equal(t, OutcomeFallback, res.Outcome)
		assert.Equal(t, sqldsl.Statement(raw), res.Render())
	})

	t.Run("with clause filters bodies", func(t *testing.T) {
		stmt := sqldsl.SimpleCTE("recent", selectAll(sqldsl.Table("orders")), selectAll(sqldsl.Table("recent")))
		res := i.Intercept(Execution{Statement: stmt})
		require.Equal(t, OutcomeFallback, res.Outcome)
		assert.Contains(t, res.Render().SQL(), "    WHERE orders.deleted_at IS NULL")
	})
}

func TestIntercept_Logging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	i := NewInterceptor(testCatalog(t), WithLogger(zap.New(core)))

	i.Intercept(Execution{Statement: selectAll(ordersLeftUsers())})
	i.Intercept(Execution{Statement: sqldsl.RawExec("DELETE FROM orders")})

	entries := logs.FilterMessage("soft-delete intercept").All()
	require.Len(t, entries, 2)
	assert.Equal(t, "rewritten", entries[0].ContextMap()["outcome"])
	assert.Equal(t, "not_read", entries[1].ContextMap()["outcome"])
}

func TestIntercept_Concurrent(t *testing.T) {
	i := NewInterceptor(testCatalog(t), WithOuterJoinMode(OuterJoinModeOnClause))
	stmt := selectAll(sqldsl.LeftJoin(ordersLeftUsers(), sqldsl.Table("notes"), on("orders.id", "notes.order_id")))
	want := i.Intercept(Execution{Statement: stmt}).Render().SQL()

	var wg sync.WaitGroup
	results := make([]string, 32)
	for n := range results {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			opts := Options{}
			if n%2 == 1 {
				opts = NewOptions(ExcludeEntities("users"))
			}
			res := i.Intercept(Execution{Statement: stmt, Options: opts})
			if n%2 == 0 {
				results[n] = res.Render().SQL()
			}
		}(n)
	}
	wg.Wait()

	for n := 0; n < len(results); n += 2 {
		assert.Equal(t, want, results[n])
	}
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "fallback", OutcomeFallback.String())
	assert.Equal(t, "Outcome(42)", Outcome(42).String())
	assert.Equal(t, "relationship", LoadRelationship.String())
}

func lastLine(sql string) string {
	for n := len(sql) - 1; n >= 0; n-- {
		if sql[n] == '\n' {
			return sql[n+1:]
		}
	}
	return sql
}
