package sqldsl

import (
	"fmt"
	"strings"
)

// SQLer is anything that renders to a complete SQL string.
type SQLer interface {
	SQL() string
}

// Statement is an executable query.
//
// Statements are immutable values: helpers such as AndWhere and WithFrom
// return a modified copy and never touch the receiver's slices.
type Statement interface {
	SQLer
	// Args returns the positional arguments bound to $1..$n.
	Args() []any
	// IsRead reports whether the statement only reads rows.
	IsRead() bool
	statement()
}

// OrderTerm is a single ORDER BY entry.
type OrderTerm struct {
	Expr Expr
	Desc bool
}

// SQL renders the order term.
func (o OrderTerm) SQL() string {
	if o.Desc {
		return o.Expr.SQL() + " DESC"
	}
	return o.Expr.SQL()
}

// Asc orders by expr ascending.
func Asc(expr Expr) OrderTerm { return OrderTerm{Expr: expr} }

// Desc orders by expr descending.
func Desc(expr Expr) OrderTerm { return OrderTerm{Expr: expr, Desc: true} }

// SelectStmt represents a SELECT query.
//
// Params holds the values for every placeholder in the statement, including
// placeholders that appear inside derived tables in From.
type SelectStmt struct {
	Distinct bool
	Columns  []Expr
	From     FromItem
	Where    Expr
	GroupBy  []Expr
	Having   Expr
	OrderBy  []OrderTerm
	Limit    int
	Offset   int
	Params   []any
}

// Select starts a SELECT of the given columns.
func Select(columns ...Expr) SelectStmt {
	return SelectStmt{Columns: columns}
}

// SQL renders the SELECT statement.
func (s SelectStmt) SQL() string {
	lines := []string{"SELECT " + Optf(s.Distinct, "DISTINCT ") + s.columnsSQL()}
	if s.From != nil {
		lines = append(lines, "FROM "+s.From.TableSQL())
	}
	if s.Where != nil {
		lines = append(lines, "WHERE "+s.Where.SQL())
	}
	if len(s.GroupBy) > 0 {
		lines = append(lines, "GROUP BY "+joinSQL(s.GroupBy, ", "))
	}
	if s.Having != nil {
		lines = append(lines, "HAVING "+s.Having.SQL())
	}
	if len(s.OrderBy) > 0 {
		lines = append(lines, "ORDER BY "+orderSQL(s.OrderBy))
	}
	if s.Limit > 0 {
		lines = append(lines, fmt.Sprintf("LIMIT %d", s.Limit))
	}
	if s.Offset > 0 {
		lines = append(lines, fmt.Sprintf("OFFSET %d", s.Offset))
	}
	return strings.Join(lines, "\n")
}

func (s SelectStmt) columnsSQL() string {
	if len(s.Columns) == 0 {
		return "*"
	}
	return joinSQL(s.Columns, ", ")
}

// Args implements Statement.
func (s SelectStmt) Args() []any { return s.Params }

// IsRead implements Statement.
func (SelectStmt) IsRead() bool { return true }

func (SelectStmt) statement() {}

// AndWhere returns a copy of s with exprs conjoined onto its WHERE clause.
// Nil expressions are ignored; with nothing to add s is returned as is.
func (s SelectStmt) AndWhere(exprs ...Expr) SelectStmt {
	s.Where = Conjoin(s.Where, exprs...)
	return s
}

// WithFrom returns a copy of s reading from from.
func (s SelectStmt) WithFrom(from FromItem) SelectStmt {
	s.From = from
	return s
}

// WithParams returns a copy of s bound to params.
func (s SelectStmt) WithParams(params ...any) SelectStmt {
	s.Params = params
	return s
}

// Exists wraps the query in EXISTS(...).
func (s SelectStmt) Exists() Exists { return Exists{Query: s} }

// MapFrom rebuilds a FROM tree bottom-up, replacing each node with the
// result of fn. Children are mapped before their parent join, so fn sees a
// Join whose Left and Right are already mapped.
func MapFrom(item FromItem, fn func(FromItem) FromItem) FromItem {
	if j, ok := item.(Join); ok {
		j.Left = MapFrom(j.Left, fn)
		j.Right = MapFrom(j.Right, fn)
		return fn(j)
	}
	if item == nil {
		return nil
	}
	return fn(item)
}

// SetOp is the operator combining the members of a CompoundSelect.
type SetOp string

const (
	Union     SetOp = "UNION"
	UnionAll  SetOp = "UNION ALL"
	Intersect SetOp = "INTERSECT"
	Except    SetOp = "EXCEPT"
)

// CompoundSelect combines SELECTs with a set operator.
type CompoundSelect struct {
	Op      SetOp
	Selects []SelectStmt
	OrderBy []OrderTerm
	Limit   int
	Params  []any
}

// SQL renders the compound query.
func (c CompoundSelect) SQL() string {
	op := c.Op
	if op == "" {
		op = Union
	}
	parts := make([]string, len(c.Selects))
	for i, s := range c.Selects {
		parts[i] = s.SQL()
	}
	out := strings.Join(parts, "\n"+string(op)+"\n")
	if len(c.OrderBy) > 0 {
		out += "\nORDER BY " + orderSQL(c.OrderBy)
	}
	if c.Limit > 0 {
		out += fmt.Sprintf("\nLIMIT %d", c.Limit)
	}
	return out
}

// Args implements Statement.
func (c CompoundSelect) Args() []any { return c.Params }

// IsRead implements Statement.
func (CompoundSelect) IsRead() bool { return true }

func (CompoundSelect) statement() {}

// RawQuery is a hand-written statement. Whether it reads is declared by the
// caller since the text is never parsed.
type RawQuery struct {
	Text   string
	Params []any
	Read   bool
}

// RawRead declares text as a read query.
func RawRead(text string, params ...any) RawQuery {
	return RawQuery{Text: text, Params: params, Read: true}
}

// RawExec declares text as a write or DDL statement.
func RawExec(text string, params ...any) RawQuery {
	return RawQuery{Text: text, Params: params}
}

// SQL implements Statement.
func (r RawQuery) SQL() string { return r.Text }

// Args implements Statement.
func (r RawQuery) Args() []any { return r.Params }

// IsRead implements Statement.
func (r RawQuery) IsRead() bool { return r.Read }

func (RawQuery) statement() {}

// InsertStmt represents INSERT INTO ... VALUES (...).
type InsertStmt struct {
	Table     string
	Columns   []string
	Values    []Expr
	Returning []Expr
	Params    []any
}

// SQL renders the INSERT statement.
func (i InsertStmt) SQL() string {
	cols := make([]string, len(i.Columns))
	for n, c := range i.Columns {
		cols[n] = QuoteIdent(c)
	}
	out := "INSERT INTO " + QuoteIdent(i.Table) + " (" + strings.Join(cols, ", ") + ")\nVALUES (" + joinSQL(i.Values, ", ") + ")"
	if len(i.Returning) > 0 {
		out += "\nRETURNING " + joinSQL(i.Returning, ", ")
	}
	return out
}

// Args implements Statement.
func (i InsertStmt) Args() []any { return i.Params }

// IsRead implements Statement.
func (InsertStmt) IsRead() bool { return false }

func (InsertStmt) statement() {}

// Assignment is a single SET entry of an UPDATE.
type Assignment struct {
	Column string
	Value  Expr
}

// SQL renders column = value.
func (a Assignment) SQL() string { return QuoteIdent(a.Column) + " = " + a.Value.SQL() }

// UpdateStmt represents UPDATE ... SET ... WHERE ....
type UpdateStmt struct {
	Table     TableRef
	Set       []Assignment
	Where     Expr
	Returning []Expr
	Params    []any
}

// SQL renders the UPDATE statement.
func (u UpdateStmt) SQL() string {
	sets := make([]string, len(u.Set))
	for i, a := range u.Set {
		sets[i] = a.SQL()
	}
	lines := []string{"UPDATE " + u.Table.TableSQL(), "SET " + strings.Join(sets, ", ")}
	if u.Where != nil {
		lines = append(lines, "WHERE "+u.Where.SQL())
	}
	if len(u.Returning) > 0 {
		lines = append(lines, "RETURNING "+joinSQL(u.Returning, ", "))
	}
	return strings.Join(lines, "\n")
}

// Args implements Statement.
func (u UpdateStmt) Args() []any { return u.Params }

// IsRead implements Statement.
func (UpdateStmt) IsRead() bool { return false }

func (UpdateStmt) statement() {}

// DeleteStmt represents DELETE FROM ... WHERE ....
type DeleteStmt struct {
	Table  TableRef
	Where  Expr
	Params []any
}

// SQL renders the DELETE statement.
func (d DeleteStmt) SQL() string {
	out := "DELETE FROM " + d.Table.TableSQL()
	if d.Where != nil {
		out += "\nWHERE " + d.Where.SQL()
	}
	return out
}

// Args implements Statement.
func (d DeleteStmt) Args() []any { return d.Params }

// IsRead implements Statement.
func (DeleteStmt) IsRead() bool { return false }

func (DeleteStmt) statement() {}

// Optf returns formatted string if condition is true, empty string otherwise.
// Useful for optional SQL clauses.
func Optf(cond bool, format string, args ...any) string {
	if !cond {
		return ""
	}
	return fmt.Sprintf(format, args...)
}

// IndentLines adds the given indent prefix to each line of input.
func IndentLines(input, indent string) string {
	if input == "" {
		return ""
	}
	lines := strings.Split(strings.TrimSpace(input), "\n")
	for i, line := range lines {
		lines[i] = indent + line
	}
	return strings.Join(lines, "\n")
}

func orderSQL(terms []OrderTerm) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.SQL()
	}
	return strings.Join(parts, ", ")
}
