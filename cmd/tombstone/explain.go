package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/tombstone/internal/catalogfile"
	"github.com/pthm/tombstone/internal/cli"
	"github.com/pthm/tombstone/internal/explain"
	"github.com/pthm/tombstone/pkg/softdelete"
)

var (
	explainIncludeDeleted bool
	explainExclude        []string
	explainMode           string
	explainLoad           string
)

var explainCmd = &cobra.Command{
	Use:   "explain <query.yaml>",
	Short: "Show how a query is filtered",
	Long: `Show the statement described by a YAML query file, the path the
soft-delete interceptor takes for it, and the SQL that would be executed.`,
	Example: `  # Explain a query against the configured catalog
  tombstone explain queries/orders_with_users.yaml

  # Explain with a per-entity opt-out
  tombstone explain q.yaml --exclude users

  # Push identity-less outer join predicates into ON clauses
  tombstone explain q.yaml --outer-join-mode on_clause`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}
		interceptor, err := newInterceptor(catalog, explainMode)
		if err != nil {
			return err
		}

		stmt, err := catalogfile.LoadQuery(args[0])
		if err != nil {
			return cli.CatalogError("loading query", err)
		}

		load, err := parseLoadKind(explainLoad)
		if err != nil {
			return err
		}

		var opts []softdelete.ExecOption
		if explainIncludeDeleted {
			opts = append(opts, softdelete.IncludeDeleted())
		}
		if len(explainExclude) > 0 {
			opts = append(opts, softdelete.ExcludeEntities(explainExclude...))
		}
		options := softdelete.NewOptions(opts...)

		report := explain.Report{
			Original: stmt,
			Result: interceptor.Intercept(softdelete.Execution{
				Statement: stmt,
				Options:   options,
				Load:      load,
			}),
			Options: options,
			Catalog: catalog,
		}
		return report.Write(os.Stdout)
	},
}

func init() {
	f := explainCmd.Flags()
	f.BoolVar(&explainIncludeDeleted, "include-deleted", false, "disable filtering for this execution")
	f.StringSliceVar(&explainExclude, "exclude", nil, "entities to exclude from filtering (repeatable)")
	f.StringVar(&explainMode, "outer-join-mode", "", "warn or on_clause (default: softdelete.outer_join_mode)")
	f.StringVar(&explainLoad, "load", "top_level", "execution kind: top_level, columns, or relationship")
}

func parseLoadKind(s string) (softdelete.LoadKind, error) {
	switch s {
	case "", "top_level":
		return softdelete.LoadTopLevel, nil
	case "columns":
		return softdelete.LoadColumns, nil
	case "relationship":
		return softdelete.LoadRelationship, nil
	default:
		return 0, cli.GeneralError("unknown load kind "+s, nil)
	}
}
