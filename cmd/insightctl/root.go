package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"retail-insights/internal/config"
)

const envPrefix = "INSIGHT"

// newRootCommand builds the command tree. Every flag can also be set
// through an INSIGHT_* environment variable, e.g. INSIGHT_CSV_FILE.
func newRootCommand() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "insightctl",
		Short:         "Retail insights dashboards from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlags(cmd.Flags())
		},
	}

	flags := root.PersistentFlags()
	flags.String("driver", "", "order source driver: csv, postgres or sqlite3")
	flags.String("dsn", "", "database connection string")
	flags.String("table", "", "table holding the orders")
	flags.String("csv-file", "", "CSV export of the orders table")
	flags.String("cache", "", "cache backend: none, file or redis")
	flags.String("trend", "", "trend line method: ols or none")
	flags.Bool("no-color", false, "disable coloured output")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root.AddCommand(
		newReportCommand(v),
		newDashboardsCommand(v),
		newHashPasswordCommand(v),
	)
	return root
}

// loadConfig reads the service configuration and lets flags and INSIGHT_*
// variables override the order source settings.
func loadConfig(v *viper.Viper) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	override := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	override("driver", &cfg.Database.Driver)
	override("dsn", &cfg.Database.DSN)
	override("table", &cfg.Database.Table)
	override("csv-file", &cfg.Database.CSVFile)
	override("cache", &cfg.Cache.Backend)
	override("trend", &cfg.Reporting.TrendMethod)

	if cfg.Database.Driver == "csv" && cfg.Database.CSVFile == "" {
		return nil, fmt.Errorf("no CSV file configured")
	}
	return cfg, nil
}
