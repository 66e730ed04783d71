// Package explain renders what the soft-delete interceptor does to a
// statement, for the tombstone explain command.
package explain

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/softdelete"
	"github.com/pthm/tombstone/pkg/sqldsl"
)

// Report is the explanation of one statement.
type Report struct {
	Original sqldsl.Statement
	Result   softdelete.Result
	Options  softdelete.Options
	// Catalog, when set, lists the soft-deletable tables the statement reads.
	Catalog *entity.Catalog
}

// Tables returns every soft-deletable occurrence in the FROM trees of the
// statement's SELECTs, in reading order. Self-joins appear once per alias.
func (r Report) Tables() []softdelete.Ref {
	if r.Catalog == nil {
		return nil
	}
	var refs []softdelete.Ref
	for _, from := range fromTrees(r.Original) {
		refs = append(refs, softdelete.Occurrences(from, r.Catalog)...)
	}
	return refs
}

func fromTrees(stmt sqldsl.Statement) []sqldsl.FromItem {
	switch s := stmt.(type) {
	case sqldsl.SelectStmt:
		if s.From == nil {
			return nil
		}
		return []sqldsl.FromItem{s.From}
	case sqldsl.CompoundSelect:
		var out []sqldsl.FromItem
		for _, sel := range s.Selects {
			out = append(out, fromTrees(sel)...)
		}
		return out
	case sqldsl.WithCTE:
		return fromTrees(s.Query)
	default:
		return nil
	}
}

func describe(ref softdelete.Ref) string {
	name := ref.Entity.Name
	if ref.Qualifier != name {
		name = ref.Qualifier + " (" + name + ")"
	}
	if !ref.Entity.HasIdentity() {
		return name + " by " + ref.Entity.DeletedAtColumn + ", no identity column"
	}
	return name + " by " + ref.Entity.DeletedAtColumn
}

// Summary is a one-line description of the outcome.
func (r Report) Summary() string {
	switch r.Result.Outcome {
	case softdelete.OutcomeRewritten:
		return fmt.Sprintf("rewritten with %d condition%s", r.Result.Conditions, plural(r.Result.Conditions))
	case softdelete.OutcomeFallback:
		if r.Result.Render().SQL() == r.Original.SQL() {
			return "fallback: statement cannot be rewritten; tombstoned values are dropped as rows are loaded"
		}
		return "fallback: blanket criteria applied to every soft-deletable table"
	case softdelete.OutcomeIncludeDeleted:
		return "filtering disabled for this execution"
	case softdelete.OutcomeNotRead:
		return "not a read; sent unchanged"
	case softdelete.OutcomeSubLoad:
		return "sub-load; sent unchanged"
	default:
		return r.Result.Outcome.String()
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

// Write renders the report to w. Colors are used only when w is a terminal
// that supports them.
func (r Report) Write(w io.Writer) error {
	re := lipgloss.NewRenderer(w)
	heading := re.NewStyle().Bold(true)
	outcome := re.NewStyle().Bold(true).Foreground(outcomeColor(r.Result.Outcome))
	muted := re.NewStyle().Faint(true)

	var b strings.Builder
	b.WriteString(heading.Render("Statement") + "\n")
	b.WriteString(sqldsl.IndentLines(r.Original.SQL(), "  ") + "\n\n")

	b.WriteString(heading.Render("Outcome") + " " + outcome.Render(r.Result.Outcome.String()) + "\n")
	b.WriteString(muted.Render(r.Summary()) + "\n")
	if names := r.Options.ExcludedNames(); len(names) > 0 {
		b.WriteString(muted.Render("excluded: "+strings.Join(names, ", ")) + "\n")
	}

	if refs := r.Tables(); len(refs) > 0 {
		b.WriteString("\n" + heading.Render("Tables") + "\n")
		for _, ref := range refs {
			b.WriteString("  " + describe(ref) + "\n")
		}
	}

	final := r.Result.Render()
	if final.SQL() != r.Original.SQL() {
		b.WriteString("\n" + heading.Render("Executed") + "\n")
		b.WriteString(sqldsl.IndentLines(final.SQL(), "  ") + "\n")
	}
	if args := final.Args(); len(args) > 0 {
		b.WriteString("\n" + heading.Render("Params") + "\n")
		for i, a := range args {
			fmt.Fprintf(&b, "  $%d = %v\n", i+1, a)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func outcomeColor(o softdelete.Outcome) lipgloss.Color {
	switch o {
	case softdelete.OutcomeRewritten:
		return lipgloss.Color("2") // green
	case softdelete.OutcomeFallback:
		return lipgloss.Color("3") // yellow
	case softdelete.OutcomeIncludeDeleted:
		return lipgloss.Color("1") // red
	default:
		return lipgloss.Color("8")
	}
}
