package sink

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/stretchr/testify/assert"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		retryable    bool
		connectivity bool
	}{
		{"bad connection", driver.ErrBadConn, true, true},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true, true},
		{"deadline", fmt.Errorf("exec: %w", context.DeadlineExceeded), true, false},
		{"postgres deadlock", &pq.Error{Code: "40P01"}, true, false},
		{"postgres connection failure", &pq.Error{Code: "08006"}, true, true},
		{"postgres unique violation", &pq.Error{Code: "23505"}, false, false},
		{"mysql deadlock", &mysql.MySQLError{Number: 1213}, true, false},
		{"mysql server gone", &mysql.MySQLError{Number: 2006}, true, true},
		{"mysql duplicate key", &mysql.MySQLError{Number: 1062}, false, false},
		{"mysql invalid conn", mysql.ErrInvalidConn, true, true},
		{"mssql deadlock victim", mssql.Error{Number: 1205}, true, false},
		{"mssql primary key violation", mssql.Error{Number: 2627}, false, false},
		{"unknown", errors.New("syntax error"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)
			assert.Equal(t, tt.retryable, etl.IsRetryable(err))
			assert.Equal(t, tt.connectivity, etl.IsConnectivity(err))

			inner := errors.Unwrap(err)
			if tt.connectivity {
				inner = errors.Unwrap(inner)
			}
			assert.Equal(t, tt.err, inner)
		})
	}
}

func TestClassifyKeepsExistingClassification(t *testing.T) {
	err := etl.Retryable(errors.New("flaky"))
	assert.Same(t, err, Classify(err))
	assert.Nil(t, Classify(nil))
}
