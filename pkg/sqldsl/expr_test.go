package sqldsl

import "testing"

func TestExpr_SQL(t *testing.T) {
	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"column", Col{Table: "orders", Column: "id"}, "orders.id"},
		{"unqualified column", Col{Column: "id"}, "id"},
		{"reserved table name", Col{Table: "user", Column: "id"}, `"user".id`},
		{"mixed case column", Col{Table: "t", Column: "CreatedAt"}, `t."CreatedAt"`},
		{"star", Star{}, "*"},
		{"qualified star", Star{Table: "o"}, "o.*"},
		{"literal", Lit("it's"), "'it''s'"},
		{"placeholder", Placeholder(3), "$3"},
		{"int", Int(42), "42"},
		{"bool", Bool(false), "FALSE"},
		{"null", Null{}, "NULL"},
		{"function", Func{Name: "coalesce", Args: []Expr{Col{Column: "a"}, Int(0)}}, "coalesce(a, 0)"},
		{"alias", SelectAs(Func{Name: "count", Args: []Expr{Raw("*")}}, "n"), "count(*) AS n"},
		{"paren", Paren{Expr: Raw("a OR b")}, "(a OR b)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOperators_SQL(t *testing.T) {
	orders := Table("orders")
	users := Table("users")

	tests := []struct {
		name string
		expr Expr
		want string
	}{
		{"eq", Eq{orders.Col("user_id"), users.Col("id")}, "orders.user_id = users.id"},
		{"ne", Ne{Col{Column: "status"}, Lit("void")}, "status <> 'void'"},
		{"in", In{Expr: Col{Column: "status"}, Values: []string{"a", "b"}}, "status IN ('a', 'b')"},
		{"empty in", In{Expr: Col{Column: "status"}}, "FALSE"},
		{"empty not in", NotIn{Expr: Col{Column: "status"}}, "TRUE"},
		{"is null", IsNull{orders.Col("deleted_at")}, "orders.deleted_at IS NULL"},
		{"is not null", IsNotNull{orders.Col("deleted_at")}, "orders.deleted_at IS NOT NULL"},
		{"single and", And(IsNull{orders.Col("deleted_at")}), "orders.deleted_at IS NULL"},
		{"empty and", And(), "TRUE"},
		{"empty or", Or(), "FALSE"},
		{"and drops nil", And(nil, IsNull{orders.Col("a")}, nil, IsNull{orders.Col("b")}), "(orders.a IS NULL AND orders.b IS NULL)"},
		{"and flattens", And(And(Col{Column: "a"}, Col{Column: "b"}), Col{Column: "c"}), "(a AND b AND c)"},
		{"and groups raw", And(Raw("a"), Raw("b")), "((a) AND (b))"},
		{
			"nested raw keeps its group",
			And(And(Raw("a = 1 OR b = 2")), IsNull{orders.Col("deleted_at")}),
			"((a = 1 OR b = 2) AND orders.deleted_at IS NULL)",
		},
		{"or groups raw", Or(Raw("a AND b"), IsNull{users.Col("id")}), "((a AND b) OR users.id IS NULL)"},
		{
			"outer join predicate",
			And(
				IsNull{orders.Col("deleted_at")},
				Or(IsNull{users.Col("deleted_at")}, IsNull{users.Col("id")}),
			),
			"(orders.deleted_at IS NULL AND (users.deleted_at IS NULL OR users.id IS NULL))",
		},
		{"not", Not(Raw("a")), "NOT (a)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.expr.SQL(); got != tt.want {
				t.Errorf("SQL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"users", "users"},
		{"order_items", "order_items"},
		{"public.users", "public.users"},
		{"public.order", `public."order"`},
		{"AuditLog", `"AuditLog"`},
		{"1st", `"1st"`},
		{"a$b", "a$b"},
		{`"Quoted"`, `"Quoted"`},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := QuoteIdent(tt.in); got != tt.want {
				t.Errorf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
