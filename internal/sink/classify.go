package sink

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/httpsdevi/ETL-Data-Pipeline-Simulation/internal/etl"
)

// Classify wraps a driver error as retryable or terminal for the loader.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var le *etl.LoadError
	if errors.As(err, &le) {
		return err
	}
	if IsConnectionLoss(err) {
		return etl.Retryable(etl.Unreachable("sink", err))
	}
	if IsTransient(err) {
		return etl.Retryable(err)
	}
	return etl.Terminal(err)
}

// IsConnectionLoss reports whether err means the database could not be
// reached or the connection dropped, as opposed to a statement that failed
// on a live connection.
func IsConnectionLoss(err error) bool {
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, mysql.ErrInvalidConn):
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code.Class() == "08"
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 2006 || myErr.Number == 2013
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 4060 || msErr.Number == 40613
	}

	return false
}

// IsTransient reports whether a driver error is likely to succeed on retry:
// dropped connections, timeouts, deadlocks and lock contention. Constraint
// violations and malformed statements are not transient.
func IsTransient(err error) bool {
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, mysql.ErrInvalidConn):
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return mssqlTransient(msErr.Number)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "40", "53", "57", "58":
			return true
		}
		return false
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1040, 1205, 1213, 2006, 2013:
			return true
		}
		return false
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return true
		}
		return false
	}

	return false
}

// mssqlTransient lists SQL Server error numbers worth retrying: timeouts,
// deadlock victims and the Azure SQL transient fault set.
func mssqlTransient(number int32) bool {
	switch number {
	case -2, 1205, 1222, 4060, 10928, 10929, 40197, 40501, 40613, 49918, 49919, 49920:
		return true
	}
	return false
}
