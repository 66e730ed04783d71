package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List catalog entities",
	Long:  `List the entities of the catalog file with their marker and identity columns.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ENTITY\tTYPE\tDELETED AT\tIDENTITY")
		for _, e := range catalog.Entities() {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				e.Name, dash(e.TypeName), dash(e.DeletedAtColumn), dash(e.IdentityColumn))
		}
		return w.Flush()
	},
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
