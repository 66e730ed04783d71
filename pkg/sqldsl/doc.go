// Package sqldsl provides a typed model of PostgreSQL statements.
//
// # Overview
//
// Rather than passing SQL around as opaque strings, callers describe a query
// with typed building blocks. Because the FROM/JOIN structure of a SELECT is
// data, code such as the soft-delete interceptor can inspect which tables a
// query touches and which of them an outer join may null-extend, then
// produce an adjusted copy.
//
// # Core Interfaces
//
//   - Expr: SQL expressions (columns, literals, placeholders, operators)
//   - FromItem: nodes of a FROM tree (tables, derived tables, joins)
//   - Statement: complete statements (SELECT, compound SELECT, raw SQL,
//     INSERT, UPDATE, DELETE, WITH)
//
// # Expression Types
//
//	Col{Table: "o", Column: "id"}     // o.id
//	Lit("open")                       // 'open'
//	Placeholder(1)                    // $1
//	Int(42), Bool(true), Null{}
//	Raw("now()")                      // escape hatch
//
// Operators:
//
//	Eq{Left: a, Right: b}             // a = b
//	And(e1, e2)                       // (e1 AND e2)
//	Or(e1, e2)                        // (e1 OR e2)
//	IsNull{Expr: col}                 // col IS NULL
//
// # FROM Trees
//
// Leaves name a table (TableRef), rename another item (Aliased), or are
// opaque to inspection (Subquery, RawTable, FunctionTable). Join is the only
// internal node:
//
//	from := LeftJoin(Table("orders"), Table("users"),
//	    Eq{Left: Col{Table: "orders", Column: "user_id"}, Right: Col{Table: "users", Column: "id"}})
//
//	stmt := Select(Star{Table: "orders"}).WithFrom(from)
//
// # Immutability
//
// Every type here is a value. Helpers such as SelectStmt.AndWhere and MapFrom
// return new values and leave their inputs untouched, so a statement may be
// shared between goroutines and rewritten independently by each.
package sqldsl
