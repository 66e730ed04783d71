package catalogfile

import (
	"fmt"
	"os"
	"strings"

	"sigs.k8s.io/yaml"

	"github.com/pthm/tombstone/pkg/sqldsl"
)

// Query is the YAML layout of a statement. Exactly one of Raw, Union, or
// From must be set. Expressions are SQL fragments used as written.
//
//	select: [o.id, u.email]
//	from: {table: orders, alias: o}
//	joins:
//	  - {kind: left, table: users, alias: u, condition: o.user_id = u.id}
//	where: o.total > 10
//	order_by: [o.id desc]
type Query struct {
	// Raw is a hand-written read statement.
	Raw string `json:"raw,omitempty"`

	// Union combines several queries with a set operator.
	Union *Union `json:"union,omitempty"`

	Distinct bool       `json:"distinct,omitempty"`
	Select   []string   `json:"select,omitempty"`
	From     *Source    `json:"from,omitempty"`
	Joins    []JoinSpec `json:"joins,omitempty"`
	Where    string     `json:"where,omitempty"`
	GroupBy  []string   `json:"group_by,omitempty"`
	Having   string     `json:"having,omitempty"`
	OrderBy  []string   `json:"order_by,omitempty"`
	Limit    int        `json:"limit,omitempty"`
	Offset   int        `json:"offset,omitempty"`

	// Params are bound to $1, $2, ... in order.
	Params []any `json:"params,omitempty"`
}

// Union is a compound query.
type Union struct {
	// Op is union (default), union all, intersect, or except.
	Op      string  `json:"op,omitempty"`
	Queries []Query `json:"queries"`
}

// Source is a FROM item. Exactly one of Table, Query, SQL, or Function must
// be set. Joins nest further items under this one, which gives a
// parenthesized join when the source is itself the right side of a join.
type Source struct {
	Table    string     `json:"table,omitempty"`
	Query    *Query     `json:"query,omitempty"`
	SQL      string     `json:"sql,omitempty"`
	Function string     `json:"function,omitempty"`
	Args     []string   `json:"args,omitempty"`
	Alias    string     `json:"alias,omitempty"`
	Joins    []JoinSpec `json:"joins,omitempty"`
}

// JoinSpec joins a Source onto everything to its left.
type JoinSpec struct {
	// Kind is inner (default), left, right, full, or cross.
	Kind      string `json:"kind,omitempty"`
	// Condition is the ON clause. YAML 1.1 reads an "on" key as a boolean.
	Condition string `json:"condition,omitempty"`
	Source
}

// ParseQuery decodes a query file.
func ParseQuery(data []byte) (Query, error) {
	var q Query
	if err := yaml.UnmarshalStrict(data, &q); err != nil {
		return Query{}, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return q, nil
}

// LoadQuery reads and builds the statement in a query file.
func LoadQuery(path string) (sqldsl.Statement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading query: %w", err)
	}
	q, err := ParseQuery(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	stmt, err := q.Statement()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return stmt, nil
}

// Statement builds the described statement.
func (q Query) Statement() (sqldsl.Statement, error) {
	set := 0
	for _, ok := range []bool{q.Raw != "", q.Union != nil, q.From != nil} {
		if ok {
			set++
		}
	}
	switch {
	case set > 1:
		return nil, fmt.Errorf("%w: raw, union, and from are mutually exclusive", ErrInvalidQuery)
	case q.Raw != "":
		return sqldsl.RawRead(q.Raw, q.Params...), nil
	case q.Union != nil:
		return q.compound()
	default:
		return q.selectStmt()
	}
}

func (q Query) compound() (sqldsl.CompoundSelect, error) {
	op, err := parseSetOp(q.Union.Op)
	if err != nil {
		return sqldsl.CompoundSelect{}, err
	}
	if len(q.Union.Queries) < 2 {
		return sqldsl.CompoundSelect{}, fmt.Errorf("%w: union needs at least two queries", ErrInvalidQuery)
	}
	out := sqldsl.CompoundSelect{Op: op, Limit: q.Limit, Params: q.Params, OrderBy: orderTerms(q.OrderBy)}
	for i, member := range q.Union.Queries {
		if member.Raw != "" || member.Union != nil {
			return out, fmt.Errorf("%w: union member %d must be a select", ErrInvalidQuery, i)
		}
		s, err := member.selectStmt()
		if err != nil {
			return out, fmt.Errorf("union member %d: %w", i, err)
		}
		out.Selects = append(out.Selects, s)
	}
	return out, nil
}

func parseSetOp(s string) (sqldsl.SetOp, error) {
	switch strings.ToUpper(strings.Join(strings.Fields(s), " ")) {
	case "", "UNION":
		return sqldsl.Union, nil
	case "UNION ALL":
		return sqldsl.UnionAll, nil
	case "INTERSECT":
		return sqldsl.Intersect, nil
	case "EXCEPT":
		return sqldsl.Except, nil
	default:
		return "", fmt.Errorf("%w: unknown set operator %q", ErrInvalidQuery, s)
	}
}

func (q Query) selectStmt() (sqldsl.SelectStmt, error) {
	s := sqldsl.SelectStmt{
		Distinct: q.Distinct,
		Columns:  raws(q.Select),
		GroupBy:  raws(q.GroupBy),
		OrderBy:  orderTerms(q.OrderBy),
		Limit:    q.Limit,
		Offset:   q.Offset,
		Params:   q.Params,
	}
	if q.Where != "" {
		s.Where = sqldsl.Raw(q.Where)
	}
	if q.Having != "" {
		s.Having = sqldsl.Raw(q.Having)
	}
	if q.From == nil {
		if len(q.Joins) > 0 {
			return s, fmt.Errorf("%w: joins without from", ErrInvalidQuery)
		}
		return s, nil
	}

	from, err := q.From.fromItem()
	if err != nil {
		return s, err
	}
	if s.From, err = joinOnto(from, q.Joins); err != nil {
		return s, err
	}
	return s, nil
}

func (src Source) fromItem() (sqldsl.FromItem, error) {
	var item sqldsl.FromItem
	set := 0
	if src.Table != "" {
		item = sqldsl.TableAs(src.Table, src.Alias)
		set++
	}
	if src.Query != nil {
		if src.Alias == "" {
			return nil, fmt.Errorf("%w: subquery needs an alias", ErrInvalidQuery)
		}
		inner, err := src.Query.selectStmt()
		if err != nil {
			return nil, fmt.Errorf("subquery %s: %w", src.Alias, err)
		}
		item = sqldsl.Subquery{Query: inner, Alias: src.Alias}
		set++
	}
	if src.SQL != "" {
		item = sqldsl.RawTable{SQL: src.SQL, Alias: src.Alias}
		set++
	}
	if src.Function != "" {
		item = sqldsl.FunctionTable{Name: src.Function, Args: raws(src.Args), Alias: src.Alias}
		set++
	}
	if set != 1 {
		return nil, fmt.Errorf("%w: a source needs exactly one of table, query, sql, or function", ErrInvalidQuery)
	}
	return joinOnto(item, src.Joins)
}

// joinOnto folds joins left-deep onto left.
func joinOnto(left sqldsl.FromItem, joins []JoinSpec) (sqldsl.FromItem, error) {
	for i, j := range joins {
		kind, ok := sqldsl.ParseJoinKind(j.Kind)
		if !ok {
			return nil, fmt.Errorf("%w: join %d: unknown kind %q", ErrInvalidQuery, i, j.Kind)
		}
		right, err := j.Source.fromItem()
		if err != nil {
			return nil, fmt.Errorf("join %d: %w", i, err)
		}
		join := sqldsl.Join{Left: left, Right: right, Kind: kind}
		switch {
		case kind == sqldsl.JoinCross && j.Condition != "":
			return nil, fmt.Errorf("%w: join %d: cross join takes no condition", ErrInvalidQuery, i)
		case kind != sqldsl.JoinCross && j.Condition == "":
			return nil, fmt.Errorf("%w: join %d: %s join needs a condition", ErrInvalidQuery, i, strings.ToLower(kind.String()))
		case j.Condition != "":
			join.On = sqldsl.Raw(j.Condition)
		}
		left = join
	}
	return left, nil
}

func raws(in []string) []sqldsl.Expr {
	if len(in) == 0 {
		return nil
	}
	out := make([]sqldsl.Expr, len(in))
	for i, s := range in {
		out[i] = sqldsl.Raw(s)
	}
	return out
}

// orderTerms parses "expr", "expr asc", and "expr desc".
func orderTerms(in []string) []sqldsl.OrderTerm {
	var out []sqldsl.OrderTerm
	for _, s := range in {
		s = strings.TrimSpace(s)
		upper := strings.ToUpper(s)
		switch {
		case strings.HasSuffix(upper, " DESC"):
			out = append(out, sqldsl.Desc(sqldsl.Raw(strings.TrimSpace(s[:len(s)-5]))))
		case strings.HasSuffix(upper, " ASC"):
			out = append(out, sqldsl.Asc(sqldsl.Raw(strings.TrimSpace(s[:len(s)-4]))))
		default:
			out = append(out, sqldsl.Asc(sqldsl.Raw(s)))
		}
	}
	return out
}
