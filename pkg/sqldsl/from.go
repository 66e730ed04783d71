package sqldsl

import "strings"

// FromItem is a node of a statement's FROM/JOIN tree.
//
// The set of implementations is closed: TableRef, Aliased, Subquery, RawTable
// and FunctionTable are leaves, Join is the only internal node. Code that walks
// the tree switches over these types exhaustively.
type FromItem interface {
	// TableSQL returns the SQL for use in FROM/JOIN clauses.
	TableSQL() string
	fromItem()
}

// TableRef names a table directly, optionally with an alias.
type TableRef struct {
	Name  string
	Alias string
}

// TableSQL implements FromItem.
func (t TableRef) TableSQL() string {
	if t.Alias != "" {
		return QuoteIdent(t.Name) + " AS " + QuoteIdent(t.Alias)
	}
	return QuoteIdent(t.Name)
}

// Qualifier is the name columns of this table are referenced by.
func (t TableRef) Qualifier() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// Col returns a column of this table, qualified by alias when present.
func (t TableRef) Col(column string) Col {
	return Col{Table: t.Qualifier(), Column: column}
}

func (TableRef) fromItem() {}

// Table creates a simple table reference.
func Table(name string) TableRef {
	return TableRef{Name: name}
}

// TableAs creates a table reference with an alias.
func TableAs(name, alias string) TableRef {
	return TableRef{Name: name, Alias: alias}
}

// Aliased gives another FROM item a new name. Any alias carried by the
// wrapped item is replaced.
type Aliased struct {
	Source FromItem
	Name   string
}

// TableSQL implements FromItem.
func (a Aliased) TableSQL() string {
	switch src := a.Source.(type) {
	case TableRef:
		return QuoteIdent(src.Name) + " AS " + QuoteIdent(a.Name)
	case Subquery:
		return "(\n" + IndentLines(src.Query.SQL(), "    ") + "\n) AS " + a.Name
	default:
		return "(" + a.Source.TableSQL() + ") AS " + a.Name
	}
}

func (Aliased) fromItem() {}

// Subquery is a derived table: (SELECT ...) AS alias.
type Subquery struct {
	Query SelectStmt
	Alias string
}

// TableSQL implements FromItem.
func (s Subquery) TableSQL() string {
	return "(\n" + IndentLines(s.Query.SQL(), "    ") + "\n) AS " + s.Alias
}

func (Subquery) fromItem() {}

// RawTable wraps a raw SQL fragment as a FROM item.
// Use for table expressions that don't fit other types.
type RawTable struct {
	SQL   string
	Alias string
}

// TableSQL implements FromItem.
func (r RawTable) TableSQL() string {
	if r.Alias != "" {
		return r.SQL + " AS " + r.Alias
	}
	return r.SQL
}

func (RawTable) fromItem() {}

// FunctionTable represents a set-returning function call used as a table.
type FunctionTable struct {
	Name  string
	Args  []Expr
	Alias string
}

// TableSQL implements FromItem.
func (f FunctionTable) TableSQL() string {
	result := f.Name + "(" + joinSQL(f.Args, ", ") + ")"
	if f.Alias != "" {
		result += " AS " + f.Alias
	}
	return result
}

func (FunctionTable) fromItem() {}

// JoinKind is the type of a JOIN.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinCross
)

// String returns the SQL keyword for the join kind.
func (k JoinKind) String() string {
	switch k {
	case JoinInner:
		return "INNER"
	case JoinLeft:
		return "LEFT"
	case JoinRight:
		return "RIGHT"
	case JoinFull:
		return "FULL"
	case JoinCross:
		return "CROSS"
	default:
		return "UNKNOWN"
	}
}

// IsOuter reports whether the join may null-extend one of its sides.
func (k JoinKind) IsOuter() bool {
	return k == JoinLeft || k == JoinRight || k == JoinFull
}

// ParseJoinKind maps "inner", "left", "left outer", "full outer", ... to a JoinKind.
func ParseJoinKind(s string) (JoinKind, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimSuffix(s, " JOIN")
	s = strings.TrimSuffix(s, " OUTER")
	switch s {
	case "", "INNER":
		return JoinInner, true
	case "LEFT":
		return JoinLeft, true
	case "RIGHT":
		return JoinRight, true
	case "FULL":
		return JoinFull, true
	case "CROSS":
		return JoinCross, true
	default:
		return JoinInner, false
	}
}

// Join is the internal node of a FROM tree.
type Join struct {
	Left  FromItem
	Right FromItem
	Kind  JoinKind
	On    Expr
}

// TableSQL implements FromItem.
func (j Join) TableSQL() string {
	right := j.Right.TableSQL()
	if _, nested := j.Right.(Join); nested {
		right = "(" + right + ")"
	}
	clause := j.Kind.String() + " JOIN " + right
	// CROSS JOIN doesn't have an ON clause
	if j.Kind != JoinCross && j.On != nil {
		clause += " ON " + j.On.SQL()
	}
	return j.Left.TableSQL() + "\n" + clause
}

// NullableSides reports which children the join may produce as all-NULL
// when no matching row exists on that side.
func (j Join) NullableSides() (left, right bool) {
	switch j.Kind {
	case JoinLeft:
		return false, true
	case JoinRight:
		return true, false
	case JoinFull:
		return true, true
	default:
		return false, false
	}
}

// FilterableSides reports which children a predicate in the ON clause
// removes rows from. A LEFT JOIN's ON clause cannot drop rows of its left
// side, a FULL JOIN's cannot drop rows of either side.
func (j Join) FilterableSides() (left, right bool) {
	switch j.Kind {
	case JoinInner, JoinCross:
		return true, true
	case JoinLeft:
		return false, true
	case JoinRight:
		return true, false
	default:
		return false, false
	}
}

func (Join) fromItem() {}

// InnerJoin creates left INNER JOIN right ON on.
func InnerJoin(left, right FromItem, on Expr) Join {
	return Join{Left: left, Right: right, Kind: JoinInner, On: on}
}

// LeftJoin creates left LEFT JOIN right ON on.
func LeftJoin(left, right FromItem, on Expr) Join {
	return Join{Left: left, Right: right, Kind: JoinLeft, On: on}
}

// RightJoin creates left RIGHT JOIN right ON on.
func RightJoin(left, right FromItem, on Expr) Join {
	return Join{Left: left, Right: right, Kind: JoinRight, On: on}
}

// FullJoin creates left FULL JOIN right ON on.
func FullJoin(left, right FromItem, on Expr) Join {
	return Join{Left: left, Right: right, Kind: JoinFull, On: on}
}

// CrossJoin creates left CROSS JOIN right.
func CrossJoin(left, right FromItem) Join {
	return Join{Left: left, Right: right, Kind: JoinCross}
}
