// Package sink implements relational sinks for the pipeline on top of
// database/sql.
package sink

import (
	"fmt"
	"strings"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/config"
)

// Dialect captures the SQL differences between supported drivers.
type Dialect struct {
	Name        string
	placeholder func(n int) string
	createTable string
}

var dialects = map[string]Dialect{
	config.DriverSQLServer: {
		Name:        config.DriverSQLServer,
		placeholder: func(n int) string { return fmt.Sprintf("@p%d", n) },
		createTable: `IF OBJECT_ID(N'%[1]s', N'U') IS NULL CREATE TABLE %[1]s (
			customer_id BIGINT NOT NULL PRIMARY KEY,
			name NVARCHAR(255) NOT NULL,
			email NVARCHAR(320) NOT NULL,
			region NVARCHAR(100) NULL,
			segment NVARCHAR(100) NULL,
			status NVARCHAR(50) NULL,
			signup_date DATE NOT NULL,
			annual_revenue DECIMAL(18,2) NOT NULL,
			revenue_tier NVARCHAR(16) NOT NULL,
			customer_lifetime_value DECIMAL(18,2) NOT NULL,
			days_since_signup INT NOT NULL,
			data_quality_score INT NOT NULL,
			processed_at DATETIME2 NOT NULL,
			run_id NVARCHAR(36) NULL,
			batch_seq BIGINT NOT NULL
		)`,
	},
	config.DriverPostgres: {
		Name:        config.DriverPostgres,
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		createTable: `CREATE TABLE IF NOT EXISTS %[1]s (
			customer_id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			region TEXT,
			segment TEXT,
			status TEXT,
			signup_date DATE NOT NULL,
			annual_revenue NUMERIC(18,2) NOT NULL,
			revenue_tier TEXT NOT NULL,
			customer_lifetime_value NUMERIC(18,2) NOT NULL,
			days_since_signup INTEGER NOT NULL,
			data_quality_score INTEGER NOT NULL,
			processed_at TIMESTAMPTZ NOT NULL,
			run_id TEXT,
			batch_seq BIGINT NOT NULL
		)`,
	},
	config.DriverMySQL: {
		Name:        config.DriverMySQL,
		placeholder: func(int) string { return "?" },
		createTable: `CREATE TABLE IF NOT EXISTS %[1]s (
			customer_id BIGINT NOT NULL PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			email VARCHAR(320) NOT NULL,
			region VARCHAR(100),
			segment VARCHAR(100),
			status VARCHAR(50),
			signup_date DATE NOT NULL,
			annual_revenue DECIMAL(18,2) NOT NULL,
			revenue_tier VARCHAR(16) NOT NULL,
			customer_lifetime_value DECIMAL(18,2) NOT NULL,
			days_since_signup INT NOT NULL,
			data_quality_score INT NOT NULL,
			processed_at DATETIME(6) NOT NULL,
			run_id VARCHAR(36),
			batch_seq BIGINT NOT NULL
		)`,
	},
	config.DriverSQLite: {
		Name:        config.DriverSQLite,
		placeholder: func(int) string { return "?" },
		createTable: `CREATE TABLE IF NOT EXISTS %[1]s (
			customer_id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			region TEXT,
			segment TEXT,
			status TEXT,
			signup_date DATE NOT NULL,
			annual_revenue TEXT NOT NULL,
			revenue_tier TEXT NOT NULL,
			customer_lifetime_value TEXT NOT NULL,
			days_since_signup INTEGER NOT NULL,
			data_quality_score INTEGER NOT NULL,
			processed_at DATETIME NOT NULL,
			run_id TEXT,
			batch_seq INTEGER NOT NULL
		)`,
	},
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	d, ok := dialects[driver]
	if !ok {
		return Dialect{}, fmt.Errorf("unsupported SQL driver %q", driver)
	}
	return d, nil
}

// placeholders returns n comma-separated placeholders starting at from.
func (d Dialect) placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = d.placeholder(from + i)
	}
	return strings.Join(ph, ", ")
}
