// Package doctor provides health checks for a tombstone entity catalog
// against a live PostgreSQL database.
//
// The doctor command verifies that every soft-deletable entity in the
// catalog maps to a table with a nullable timestamp marker column and, where
// declared, an identity column. Mismatches here are what make rewritten
// queries fail at runtime.
//
// Example usage:
//
//	d := doctor.New(db, catalog)
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"slices"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/pthm/tombstone/pkg/entity"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Catalog", "orders").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Find returns the check with the given category and name.
func (r *Report) Find(category, name string) (CheckResult, bool) {
	for _, c := range r.Checks {
		if c.Category == category && c.Name == name {
			return c, true
		}
	}
	return CheckResult{}, false
}

// column is one row of information_schema.columns.
type column struct {
	DataType string
	Nullable bool
}

// Doctor checks a catalog against the tables of the current schema.
type Doctor struct {
	db      *sql.DB
	catalog *entity.Catalog

	// Populated during Run
	columns map[string]map[string]column
	indexed map[string][]string
}

// New creates a new Doctor instance.
func New(db *sql.DB, catalog *entity.Catalog) *Doctor {
	return &Doctor{db: db, catalog: catalog}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	entities := d.catalog.SoftDeletable()
	d.checkCatalog(report, len(entities))
	if len(entities) == 0 {
		return report, nil
	}

	tables := make([]string, len(entities))
	for i, e := range entities {
		tables[i] = e.Name
	}
	var err error
	if d.columns, err = d.loadColumns(ctx, tables); err != nil {
		return nil, fmt.Errorf("loading columns: %w", err)
	}
	if d.indexed, err = d.loadIndexes(ctx, tables); err != nil {
		return nil, fmt.Errorf("loading indexes: %w", err)
	}

	for _, e := range entities {
		d.checkEntity(report, e)
	}
	return report, nil
}

func (d *Doctor) checkCatalog(report *Report, softDeletable int) {
	total := d.catalog.Len()
	if softDeletable == 0 {
		report.AddCheck(CheckResult{
			Category: "Catalog",
			Name:     "soft_deletable",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("No soft-deletable entities among %d", total),
			FixHint:  "Set deleted_at_column on the entities that should be filtered",
		})
		return
	}

	var names []string
	for _, e := range d.catalog.Entities() {
		if !e.SoftDeletable() {
			names = append(names, e.Name)
		}
	}
	sort.Strings(names)
	details := ""
	if len(names) > 0 {
		details = "Not filtered: " + strings.Join(names, ", ")
	}
	report.AddCheck(CheckResult{
		Category: "Catalog",
		Name:     "soft_deletable",
		Status:   StatusPass,
		Message:  fmt.Sprintf("%d of %d entities are soft-deletable", softDeletable, total),
		Details:  details,
	})
}

func (d *Doctor) checkEntity(report *Report, e entity.Entity) {
	cat := e.Name
	cols, ok := d.columns[e.Name]
	if !ok {
		report.AddCheck(CheckResult{
			Category: cat,
			Name:     "table_exists",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Table %s does not exist in the current schema", e.Name),
			FixHint:  "Create the table or correct the entity name in the catalog",
		})
		return
	}

	marker, ok := cols[e.DeletedAtColumn]
	switch {
	case !ok:
		report.AddCheck(CheckResult{
			Category: cat,
			Name:     "deleted_at_column",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Column %s.%s does not exist", e.Name, e.DeletedAtColumn),
			FixHint:  fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TIMESTAMPTZ", e.Name, e.DeletedAtColumn),
		})
	case !marker.Nullable:
		report.AddCheck(CheckResult{
			Category: cat,
			Name:     "deleted_at_column",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Column %s.%s is NOT NULL; live rows cannot be represented", e.Name, e.DeletedAtColumn),
			FixHint:  fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", e.Name, e.DeletedAtColumn),
		})
	case !strings.HasPrefix(marker.DataType, "timestamp"):
		report.AddCheck(CheckResult{
			Category: cat,
			Name:     "deleted_at_column",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("Column %s.%s is %s, not a timestamp", e.Name, e.DeletedAtColumn, marker.DataType),
			Details:  "Filtering only tests for NULL, but SoftDelete writes a timestamp",
		})
	default:
		report.AddCheck(CheckResult{
			Category: cat,
			Name:     "deleted_at_column",
			Status:   StatusPass,
			Message:  fmt.Sprintf("Column %s is a nullable %s", e.DeletedAtColumn, marker.DataType),
		})
	}

	d.checkIdentity(report, e, cols)

	if ok && !slices.Contains(d.indexed[e.Name], e.DeletedAtColumn) {
		key := e.IdentityColumn
		if key == "" {
			key = e.DeletedAtColumn
		}
		report.AddCheck(CheckResult{
			Category: cat,
			Name:     "deleted_at_index",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("No index covers %s.%s", e.Name, e.DeletedAtColumn),
			FixHint: fmt.Sprintf("CREATE INDEX ON %s (%s) WHERE %s IS NULL",
				e.Name, key, e.DeletedAtColumn),
		})
	}
}

func (d *Doctor) checkIdentity(report *Report, e entity.Entity, cols map[string]column) {
	if !e.HasIdentity() {
		report.AddCheck(CheckResult{
			Category: e.Name,
			Name:     "identity_column",
			Status:   StatusWarn,
			Message:  "No identity column declared",
			Details: "When outer-joined, rows cannot be told apart from null-extended rows;\n" +
				"the plain predicate is used and may drop unmatched outer rows",
			FixHint: "Declare identity_column, or set softdelete.outer_join_mode to on_clause",
		})
		return
	}
	if _, ok := cols[e.IdentityColumn]; !ok {
		report.AddCheck(CheckResult{
			Category: e.Name,
			Name:     "identity_column",
			Status:   StatusFail,
			Message:  fmt.Sprintf("Identity column %s.%s does not exist", e.Name, e.IdentityColumn),
			FixHint:  "Correct identity_column in the catalog",
		})
		return
	}
	report.AddCheck(CheckResult{
		Category: e.Name,
		Name:     "identity_column",
		Status:   StatusPass,
		Message:  fmt.Sprintf("Identity column %s exists", e.IdentityColumn),
	})
}

// loadColumns returns the columns of tables in the current schema, keyed by
// table then column name. Missing tables have no entry.
func (d *Doctor) loadColumns(ctx context.Context, tables []string) (map[string]map[string]column, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT table_name, column_name, data_type, is_nullable = 'YES'
		FROM information_schema.columns
		WHERE table_schema = current_schema()
		AND table_name = ANY($1)
	`, pq.Array(tables))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string]map[string]column)
	for rows.Next() {
		var table, name string
		var c column
		if err := rows.Scan(&table, &name, &c.DataType, &c.Nullable); err != nil {
			return nil, err
		}
		if out[table] == nil {
			out[table] = make(map[string]column)
		}
		out[table][name] = c
	}
	return out, rows.Err()
}

// loadIndexes returns, per table, the columns that appear in any index key
// or index predicate.
func (d *Doctor) loadIndexes(ctx context.Context, tables []string) (map[string][]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT c.relname, a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum > 0 AND NOT a.attisdropped
		WHERE n.nspname = current_schema()
		AND c.relname = ANY($1)
		AND (
			a.attnum = ANY(i.indkey)
			OR pg_get_expr(i.indpred, i.indrelid) LIKE '%' || a.attname || '%'
		)
	`, pq.Array(tables))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[string][]string)
	for rows.Next() {
		var table, col string
		if err := rows.Scan(&table, &col); err != nil {
			return nil, err
		}
		out[table] = append(out[table], col)
	}
	return out, rows.Err()
}
