package cli

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

// cronLogger routes cron's own logging through the package logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L().Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L().Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

func NewScheduleCmd() *cobra.Command {
	opts := &RunOptions{}
	var (
		spec   string
		runNow bool
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run the pipeline on a cron schedule until interrupted",
		Example: `  etl schedule --cron "*/15 * * * *" --input data/customers.csv
  etl schedule --cron "@hourly" --source mongo`,
		RunE: func(c *cobra.Command, args []string) error {
			r, err := newRunner(c.Context(), opts)
			if err != nil {
				return err
			}
			defer r.Close()

			return runSchedule(c.Context(), r, spec, runNow)
		},
	}

	opts.bind(cmd)
	cmd.Flags().StringVar(&spec, "cron", "@hourly", "Cron expression (5 fields or @descriptor)")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Trigger one run immediately on start")
	return cmd
}

// runSchedule triggers a run at every tick of spec. A tick that fires while
// the previous run is still going is skipped. Runs are independent; a failed
// run does not stop the schedule.
func runSchedule(ctx context.Context, r *runner, spec string, runNow bool) error {
	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{})),
	)

	trigger := func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.runOnce(ctx); err != nil {
			logger.Errorf("Scheduled run failed: %v", err)
		}
	}

	id, err := c.AddFunc(spec, trigger)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	c.Start()
	logger.Infof("Scheduler started with %q. Next run at %s", spec, c.Entry(id).Next.Format("2006-01-02 15:04:05"))

	if runNow {
		c.Entry(id).WrappedJob.Run()
	}

	<-ctx.Done()
	logger.Infof("Scheduler stopping, waiting for the active run to finish...")
	<-c.Stop().Done()
	return nil
}
