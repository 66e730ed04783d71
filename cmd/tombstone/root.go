package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pthm/tombstone/internal/catalogfile"
	"github.com/pthm/tombstone/internal/cli"
	"github.com/pthm/tombstone/internal/logging"
	"github.com/pthm/tombstone/pkg/entity"
	"github.com/pthm/tombstone/pkg/softdelete"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     = zap.NewNop()

	// Persistent flags
	cfgFile     string
	catalogFile string
	verbose     int
	quiet       bool
)

var rootCmd = &cobra.Command{
	Use:   "tombstone",
	Short: "Soft-delete query filtering for PostgreSQL",
	Long: `tombstone - soft-delete query filtering for PostgreSQL

Tombstone rewrites outgoing read queries so that soft-deleted rows are
excluded unless a caller opts out. This tool explains those rewrites and
checks that the database matches the entity catalog.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		logger, err = logging.New(logging.Config{
			Level:  logging.Verbosity(cfg.Logging.Level, verbose, quiet),
			Format: cfg.Logging.Format,
		})
		if err != nil {
			return cli.ConfigError("configuring logging", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupCatalog = "catalog"
	groupUtility = "utility"
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: auto-discover tombstone.yaml)")
	rootCmd.PersistentFlags().StringVar(&catalogFile, "catalog", "", "entity catalog file (default: catalog from config)")
	rootCmd.PersistentFlags().CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupCatalog, Title: "Catalog:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	explainCmd.GroupID = groupCatalog
	catalogCmd.GroupID = groupCatalog
	doctorCmd.GroupID = groupCatalog
	rootCmd.AddCommand(explainCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(doctorCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}

// loadCatalog reads the catalog named by --catalog or the config.
func loadCatalog() (*entity.Catalog, error) {
	path := resolveString(catalogFile, cfg.Catalog)
	c, err := catalogfile.LoadCatalog(path, catalogfile.Defaults{
		DeletedAtColumn: cfg.SoftDelete.DeletedAtColumn,
		IdentityColumn:  cfg.SoftDelete.IdentityColumn,
	})
	if err != nil {
		return nil, cli.CatalogError("loading catalog", err)
	}
	logger.Debug("catalog loaded", zap.String("path", path), zap.Int("entities", c.Len()))
	return c, nil
}

// newInterceptor builds an Interceptor configured from cfg, with mode
// overriding softdelete.outer_join_mode when non-empty.
func newInterceptor(c *entity.Catalog, mode string) (*softdelete.Interceptor, error) {
	m, err := softdelete.ParseOuterJoinMode(resolveString(mode, cfg.SoftDelete.OuterJoinMode))
	if err != nil {
		return nil, cli.ConfigError("outer join mode", err)
	}
	return softdelete.NewInterceptor(c,
		softdelete.WithLogger(logger),
		softdelete.WithOuterJoinMode(m),
	), nil
}
