package cli

import (
	"github.com/spf13/cobra"
)

const (
	sourceCSV   = "csv"
	sourceMongo = "mongo"
)

// RunOptions are the flags shared by every command that triggers runs.
type RunOptions struct {
	ConfigFile  string
	MappingFile string
	Source      string
	InputFile   string
	BatchSize   int
	DryRun      bool
	ReportDir   string
	ReportMongo bool
}

func (o *RunOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.ConfigFile, "config", "c", "", "Path to pipeline config file (JSON)")
	cmd.Flags().StringVarP(&o.MappingFile, "mapping", "m", "", "Path to field mapping file (JSON)")
	cmd.Flags().StringVar(&o.Source, "source", sourceCSV, "Record source: csv or mongo")
	cmd.Flags().StringVarP(&o.InputFile, "input", "i", "data/customers.csv", "CSV file to extract from")
	cmd.Flags().IntVarP(&o.BatchSize, "batch-size", "b", 0, "Batch size (overrides config)")
	cmd.Flags().BoolVar(&o.DryRun, "dry-run", false, "Transform and batch without writing to the database")
	cmd.Flags().StringVar(&o.ReportDir, "report-dir", "reports", "Directory for run reports (empty disables)")
	cmd.Flags().BoolVar(&o.ReportMongo, "report-mongo", false, "Also store reports and quarantined batches in MongoDB")
}

func NewRunCmd() *cobra.Command {
	opts := &RunOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		RunE: func(c *cobra.Command, args []string) error {
			r, err := newRunner(c.Context(), opts)
			if err != nil {
				return err
			}
			defer r.Close()

			_, err = r.runOnce(c.Context())
			return err
		},
	}

	opts.bind(cmd)
	return cmd
}
