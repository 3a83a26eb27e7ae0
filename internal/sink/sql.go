package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/pkg/logger"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

var columns = []string{
	"name",
	"email",
	"region",
	"segment",
	"status",
	"signup_date",
	"annual_revenue",
	"revenue_tier",
	"customer_lifetime_value",
	"days_since_signup",
	"data_quality_score",
	"processed_at",
	"run_id",
	"batch_seq",
}

// SQLSink writes customer batches into one table. Each batch runs in its own
// transaction; records that already exist are updated in place, so reruns
// over the same export are idempotent.
type SQLSink struct {
	DB      *sql.DB
	Dialect Dialect
	Table   string
	RunID   string

	existsQuery string
	insertQuery string
	updateQuery string
}

func NewSQLSink(db *sql.DB, driver, table string) (*SQLSink, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, err
	}
	if !identPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	s := &SQLSink{DB: db, Dialect: d, Table: table}
	s.buildQueries()
	return s, nil
}

func (s *SQLSink) buildQueries() {
	d := s.Dialect

	s.existsQuery = fmt.Sprintf("SELECT 1 FROM %s WHERE customer_id = %s", s.Table, d.placeholder(1))

	s.insertQuery = fmt.Sprintf("INSERT INTO %s (customer_id, %s) VALUES (%s)",
		s.Table, strings.Join(columns, ", "), d.placeholders(1, len(columns)+1))

	setClauses := make([]string, len(columns))
	for i, col := range columns {
		setClauses[i] = fmt.Sprintf("%s = %s", col, d.placeholder(i+1))
	}
	s.updateQuery = fmt.Sprintf("UPDATE %s SET %s WHERE customer_id = %s",
		s.Table, strings.Join(setClauses, ", "), d.placeholder(len(columns)+1))
}

// EnsureSchema creates the target table when it does not exist.
func (s *SQLSink) EnsureSchema(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf(s.Dialect.createTable, s.Table)); err != nil {
		return fmt.Errorf("create table %s: %w", s.Table, err)
	}
	return nil
}

func (s *SQLSink) Begin(ctx context.Context) (etl.Tx, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, Classify(fmt.Errorf("begin: %w", err))
	}
	return tx, nil
}

func (s *SQLSink) WriteBatch(ctx context.Context, tx etl.Tx, batch *etl.Batch) error {
	sqlTx, ok := tx.(*sql.Tx)
	if !ok {
		return etl.Terminal(fmt.Errorf("unexpected transaction type %T", tx))
	}

	inserted, updated := 0, 0
	for _, rec := range batch.Records {
		// 1. Check if row exists
		var exists int
		err := sqlTx.QueryRowContext(ctx, s.existsQuery, rec.CustomerID).Scan(&exists)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			args := append([]any{rec.CustomerID}, s.values(rec, batch.Seq)...)
			if _, err := sqlTx.ExecContext(ctx, s.insertQuery, args...); err != nil {
				return Classify(fmt.Errorf("insert customer %d: %w", rec.CustomerID, err))
			}
			inserted++
		case err == nil:
			args := append(s.values(rec, batch.Seq), rec.CustomerID)
			if _, err := sqlTx.ExecContext(ctx, s.updateQuery, args...); err != nil {
				return Classify(fmt.Errorf("update customer %d: %w", rec.CustomerID, err))
			}
			updated++
		default:
			return Classify(fmt.Errorf("error checking row existence: %w", err))
		}
	}

	logger.Debugf("SQL Sink: batch %d staged, %d inserted, %d updated", batch.Seq, inserted, updated)
	return nil
}

func (s *SQLSink) Commit(ctx context.Context, tx etl.Tx) error {
	sqlTx, ok := tx.(*sql.Tx)
	if !ok {
		return etl.Terminal(fmt.Errorf("unexpected transaction type %T", tx))
	}
	if err := sqlTx.Commit(); err != nil {
		return Classify(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (s *SQLSink) Rollback(ctx context.Context, tx etl.Tx) error {
	sqlTx, ok := tx.(*sql.Tx)
	if !ok {
		return fmt.Errorf("unexpected transaction type %T", tx)
	}
	if err := sqlTx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}
	return nil
}

// values returns the column values of rec in the order of columns.
func (s *SQLSink) values(rec *etl.TransformedRecord, seq int64) []any {
	var runID any
	if s.RunID != "" {
		runID = s.RunID
	}
	return []any{
		rec.Name,
		rec.Email,
		rec.Region,
		rec.Segment,
		rec.Status,
		rec.SignupDate,
		rec.AnnualRevenue.StringFixed(2),
		string(rec.RevenueTier),
		rec.CustomerLifetimeValue.StringFixed(2),
		rec.DaysSinceSignup,
		rec.DataQualityScore,
		rec.ProcessedAt,
		runID,
		seq,
	}
}
