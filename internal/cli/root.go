package cli

import (
	"github.com/spf13/cobra"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

type rootOptions struct {
	LogFile string
	Debug   bool
}

func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "etl",
		Short: "etl - batch pipeline loading customer exports into a warehouse table",
		Long: `etl extracts customer records from a CSV export or a MongoDB collection,
validates and enriches them, and loads them in transactional batches into a
SQL table (SQL Server, PostgreSQL, MySQL or SQLite) with retries and quarantine.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := logger.INFO
			if opts.Debug {
				level = logger.DEBUG
			}
			return logger.InitLogger(opts.LogFile, level)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Close()
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "Also append logs to this file")
	rootCmd.PersistentFlags().BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(NewRunCmd(), NewScheduleCmd(), NewWatchCmd(), NewVersionCmd())

	return rootCmd
}
