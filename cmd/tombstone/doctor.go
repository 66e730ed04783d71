package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/tombstone/internal/cli"
	"github.com/pthm/tombstone/internal/doctor"
	"github.com/pthm/tombstone/pkg/session"
)

var (
	doctorDB      string
	doctorVerbose bool
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Check that every soft-deletable catalog entity matches a table in the database.`,
	Example: `  # Run health checks
  tombstone doctor --db postgres://localhost/mydb

  # Run with verbose output
  tombstone doctor --db postgres://localhost/mydb --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		verboseFlag := resolveBool(doctorVerbose, cfg.Doctor.Verbose)

		dsn, err := resolveDSN(doctorDB)
		if err != nil {
			return err
		}
		catalog, err := loadCatalog()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		db, err := session.Open(ctx, cfg.Database.Driver, dsn)
		if err != nil {
			return cli.DBConnectError("connecting to database", err)
		}
		defer func() { _ = db.Close() }()
		cfg.Database.Pool.Apply(db)

		if !quiet {
			fmt.Println("tombstone doctor - Health Check")
		}

		report, err := doctor.New(db, catalog).Run(ctx)
		if err != nil {
			return cli.GeneralError("running doctor", err)
		}
		report.Print(os.Stdout, verboseFlag)

		if report.HasErrors() {
			return cli.GeneralError("health checks failed", nil)
		}
		return nil
	},
}

func init() {
	f := doctorCmd.Flags()
	f.StringVar(&doctorDB, "db", "", "database URL")
	f.BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

// resolveDSN returns the --db flag when set, otherwise the DSN from config.
func resolveDSN(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	dsn, err := cfg.DSN()
	if err != nil {
		return "", cli.ConfigError("database configuration", err)
	}
	return dsn, nil
}
