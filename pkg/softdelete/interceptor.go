package softdelete

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// LoadKind tells the Interceptor why a statement is being executed.
type LoadKind int

const (
	// LoadTopLevel is a query issued directly by application code.
	LoadTopLevel LoadKind = iota
	// LoadColumns fetches deferred columns of rows already loaded.
	LoadColumns
	// LoadRelationship fetches related rows of a row already loaded.
	LoadRelationship
)

// String returns the load kind name.
func (k LoadKind) String() string {
	switch k {
	case LoadTopLevel:
		return "top_level"
	case LoadColumns:
		return "columns"
	case LoadRelationship:
		return "relationship"
	default:
		return fmt.Sprintf("LoadKind(%d)", int(k))
	}
}

// Execution is a statement about to be sent to the database.
type Execution struct {
	Statement sqldsl.Statement
	Options   Options
	Load      LoadKind
}

// Outcome names the path the Interceptor took for an Execution. Exactly one
// applies to each execution.
type Outcome int

const (
	// OutcomeNotRead: the statement writes; it is passed through.
	OutcomeNotRead Outcome = iota
	// OutcomeSubLoad: a column or relationship load; passed through since
	// its parent query was already filtered.
	OutcomeSubLoad
	// OutcomeIncludeDeleted: filtering was disabled for the execution.
	OutcomeIncludeDeleted
	// OutcomeRewritten: explicit predicates were added to the statement.
	OutcomeRewritten
	// OutcomeFallback: the statement could not be analyzed or produced no
	// predicates; the blanket Criteria apply instead.
	OutcomeFallback
)

// String returns the outcome name used in logs and CLI output.
func (o Outcome) String() string {
	switch o {
	case OutcomeNotRead:
		return "not_read"
	case OutcomeSubLoad:
		return "sub_load"
	case OutcomeIncludeDeleted:
		return "include_deleted"
	case OutcomeRewritten:
		return "rewritten"
	case OutcomeFallback:
		return "fallback"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Result is the Interceptor's decision for one Execution.
type Result struct {
	// Statement is the statement to execute. For OutcomeRewritten it is a
	// new value; for every other outcome it is the input statement.
	Statement sqldsl.Statement
	// Criteria is set only for OutcomeFallback.
	Criteria *Criteria
	Outcome  Outcome
	// Conditions is the number of predicates added for OutcomeRewritten.
	Conditions int
}

// Render returns the statement with any fallback criteria applied.
func (r Result) Render() sqldsl.Statement {
	if r.Criteria != nil {
		return r.Criteria.Apply(r.Statement)
	}
	return r.Statement
}

// Interceptor decides, per execution, how tombstoned rows are excluded.
//
// It holds no per-execution state: the catalog is immutable and every call
// builds its result from the execution alone, so one Interceptor is shared
// by all sessions.
type Interceptor struct {
	catalog *entity.Catalog
	builder *Builder
	logger  *zap.Logger
}

// NewInterceptor creates an Interceptor over catalog.
func NewInterceptor(catalog *entity.Catalog, opts ...Option) *Interceptor {
	cfg := newConfig(opts)
	return &Interceptor{
		catalog: catalog,
		builder: &Builder{catalog: catalog, cfg: cfg},
		logger:  cfg.logger,
	}
}

// Catalog returns the catalog the Interceptor resolves entities against.
func (i *Interceptor) Catalog() *entity.Catalog { return i.catalog }

// Intercept processes one execution. The input statement is never modified.
func (i *Interceptor) Intercept(exec Execution) Result {
	res := i.intercept(exec)
	if ce := i.logger.Check(zap.DebugLevel, "soft-delete intercept"); ce != nil {
		ce.Write(
			zap.Stringer("outcome", res.Outcome),
			zap.Stringer("load", exec.Load),
			zap.Int("conditions", res.Conditions),
			zap.Strings("excluded", exec.Options.ExcludedNames()),
		)
	}
	return res
}

func (i *Interceptor) intercept(exec Execution) Result {
	stmt := exec.Statement
	switch {
	case stmt == nil || !stmt.IsRead():
		return Result{Statement: stmt, Outcome: OutcomeNotRead}
	case exec.Load != LoadTopLevel:
		return Result{Statement: stmt, Outcome: OutcomeSubLoad}
	case exec.Options.IncludeDeleted:
		return Result{Statement: stmt, Outcome: OutcomeIncludeDeleted}
	}

	fallback := Result{
		Statement: stmt,
		Criteria:  NewCriteria(i.catalog, exec.Options),
		Outcome:   OutcomeFallback,
	}

	sel, ok := stmt.(sqldsl.SelectStmt)
	if !ok || sel.From == nil {
		return fallback
	}
	rewritten, n := i.rewriteSelect(sel, exec.Options)
	if n == 0 {
		return fallback
	}
	return Result{Statement: rewritten, Outcome: OutcomeRewritten, Conditions: n}
}

// rewriteSelect adds predicates for s's own FROM tree and rewrites derived
// tables in it the same way. The count covers s's own tree only.
func (i *Interceptor) rewriteSelect(s sqldsl.SelectStmt, opts Options) (sqldsl.SelectStmt, int) {
	if s.From == nil {
		return s, 0
	}
	from := mapSubqueries(s.From, func(inner sqldsl.SelectStmt) sqldsl.SelectStmt {
		out, n := i.rewriteSelect(inner, opts)
		if n == 0 {
			return NewCriteria(i.catalog, opts).applySelect(inner)
		}
		return out
	})
	conds := i.builder.Build(from, opts)
	if conds.Len() == 0 {
		return s, 0
	}
	return s.WithFrom(conds.From).AndWhere(conds.Where...), conds.Len()
}
