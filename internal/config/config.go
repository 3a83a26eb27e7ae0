// Package config handles loading of connection settings from the environment
// and of pipeline tuning options from JSON files.
package config

import (
	"errors"
	"fmt"
	"os"
)

// Supported relational sink drivers.
const (
	DriverSQLServer = "sqlserver"
	DriverPostgres  = "postgres"
	DriverMySQL     = "mysql"
	DriverSQLite    = "sqlite"
)

// Config holds connection settings for the application,
// typically loaded from environment variables.
type Config struct {
	SQLDriver       string
	SQLConnString   string
	SQLTable        string
	MongoConnString string
	MongoDatabase   string
}

// LoadConfig loads connection settings from environment variables
// (which should be populated by the .env file in main.go).
func LoadConfig() (*Config, error) {
	cfg := &Config{
		SQLDriver:       getenv("SQL_DRIVER", DriverSQLServer),
		SQLConnString:   os.Getenv("SQL_CONNECTION_STRING"),
		SQLTable:        getenv("SQL_TABLE", "customers"),
		MongoConnString: os.Getenv("MONGO_CONNECTION_STRING"),
		MongoDatabase:   getenv("MONGO_DATABASE", "etl"),
	}

	switch cfg.SQLDriver {
	case DriverSQLServer, DriverPostgres, DriverMySQL, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported SQL_DRIVER %q", cfg.SQLDriver)
	}

	return cfg, nil
}

// RequireSQL reports whether the relational sink is configured.
func (c *Config) RequireSQL() error {
	if c.SQLConnString == "" {
		return errors.New("SQL_CONNECTION_STRING environment variable not set")
	}
	return nil
}

// RequireMongo reports whether MongoDB is configured.
func (c *Config) RequireMongo() error {
	if c.MongoConnString == "" {
		return errors.New("MONGO_CONNECTION_STRING environment variable not set")
	}
	return nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
