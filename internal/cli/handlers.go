package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/config"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/sink"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/source"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/store"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/database"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/models"
)

// runner holds connections shared by every run a command triggers. Each run
// still gets its own pipeline, sink and report.
type runner struct {
	opts    *RunOptions
	conn    *config.Config
	cfg     *config.Pipeline
	mapping *models.MappingSchema

	sqlDB       *sql.DB
	mongoClient *mongo.Client
	reports     store.Multi
}

func newRunner(ctx context.Context, opts *RunOptions) (_ *runner, err error) {
	r := &runner{opts: opts}
	defer func() {
		if err != nil {
			r.Close()
		}
	}()

	if r.conn, err = config.LoadConfig(); err != nil {
		return nil, err
	}
	if r.cfg, err = config.LoadPipeline(opts.ConfigFile); err != nil {
		return nil, err
	}
	if opts.BatchSize > 0 {
		r.cfg.BatchSize = opts.BatchSize
	}
	if r.mapping, err = config.LoadMapping(opts.MappingFile); err != nil {
		return nil, err
	}

	if opts.Source != sourceCSV && opts.Source != sourceMongo {
		return nil, fmt.Errorf("unknown source %q (want %s or %s)", opts.Source, sourceCSV, sourceMongo)
	}

	if opts.Source == sourceMongo || opts.ReportMongo {
		if err := r.conn.RequireMongo(); err != nil {
			return nil, err
		}
		if r.mongoClient, err = database.ConnectMongo(ctx, r.conn.MongoConnString); err != nil {
			return nil, err
		}
	}

	if !opts.DryRun {
		if err := r.conn.RequireSQL(); err != nil {
			return nil, err
		}
		if r.sqlDB, err = database.ConnectSQL(ctx, r.conn.SQLDriver, r.conn.SQLConnString); err != nil {
			return nil, err
		}
		s, err := sink.NewSQLSink(r.sqlDB, r.conn.SQLDriver, r.conn.SQLTable)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureSchema(ctx); err != nil {
			return nil, err
		}
	}

	if opts.ReportDir != "" {
		r.reports = append(r.reports, store.NewFileStore(opts.ReportDir))
	}
	if opts.ReportMongo {
		r.reports = append(r.reports, store.NewMongoStore(r.mongoClient, r.conn.MongoDatabase))
	}

	return r, nil
}

func (r *runner) Close() {
	if r.sqlDB != nil {
		r.sqlDB.Close()
	}
	if r.mongoClient != nil {
		if err := database.DisconnectMongo(r.mongoClient); err != nil {
			logger.Warnf("MongoDB disconnect: %v", err)
		}
	}
}

func (r *runner) source() etl.Source {
	if r.opts.Source == sourceMongo {
		return source.NewMongoSource(r.mongoClient, r.conn.MongoDatabase, r.mapping)
	}
	return source.NewCSVSource(r.opts.InputFile, r.mapping)
}

// runOnce executes one pipeline run and persists its report. The returned
// error joins the run's error with any report persistence failure.
func (r *runner) runOnce(ctx context.Context) (*etl.Report, error) {
	var snk etl.Sink = &sink.DiscardSink{}
	var sqlSink *sink.SQLSink
	if !r.opts.DryRun {
		var err error
		if sqlSink, err = sink.NewSQLSink(r.sqlDB, r.conn.SQLDriver, r.conn.SQLTable); err != nil {
			return nil, err
		}
		snk = sqlSink
	}

	p := etl.NewPipeline(r.source(), snk, r.cfg)
	if sqlSink != nil {
		sqlSink.RunID = p.RunID()
	}

	report, runErr := p.Run(ctx)
	if report == nil {
		return nil, runErr
	}

	printSummary(report)

	if len(r.reports) > 0 {
		// Saving must not be skipped because the run itself was cancelled.
		if err := r.reports.Save(context.WithoutCancel(ctx), report); err != nil {
			return report, errors.Join(runErr, fmt.Errorf("save report: %w", err))
		}
	}

	return report, runErr
}

func printSummary(report *etl.Report) {
	m := report.Metrics
	fmt.Printf("Run %s finished: %s\n", report.RunID, report.State)
	fmt.Printf("  read %d, transformed %d, rejected %d, loaded %d, quarantined %d\n",
		m.RecordsRead, m.RecordsTransformed, m.RecordsRejected, m.RecordsLoaded, m.RecordsQuarantined)
	fmt.Printf("  batches %d attempted, %d retried, %d quarantined\n",
		m.BatchesAttempted, m.BatchesRetried, m.BatchesQuarantined)
	fmt.Printf("  throughput %.2f records/sec, average quality %.1f, elapsed %s\n",
		report.Throughput, report.AverageQuality, m.Elapsed().Round(time.Millisecond))
	if report.Error != "" {
		fmt.Printf("  error: %s\n", report.Error)
	}
}
