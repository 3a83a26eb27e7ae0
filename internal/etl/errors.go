package etl

import (
	"errors"
	"fmt"
)

// ConnectivityError reports that a source or sink could not be reached.
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: connectivity failure: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// Unreachable wraps err as a connectivity failure of op.
func Unreachable(op string, err error) error {
	if err == nil {
		return nil
	}
	return &ConnectivityError{Op: op, Err: err}
}

// IsConnectivity reports whether err is a connectivity failure.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// LoadError is a sink failure classified as retryable or terminal.
type LoadError struct {
	Retryable bool
	Err       error
}

func (e *LoadError) Error() string {
	kind := "terminal"
	if e.Retryable {
		kind = "retryable"
	}
	return fmt.Sprintf("%s load error: %v", kind, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Retryable marks err as a transient sink failure worth retrying.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Retryable: true, Err: err}
}

// Terminal marks err as a sink failure that retrying cannot fix.
func Terminal(err error) error {
	if err == nil {
		return nil
	}
	return &LoadError{Retryable: false, Err: err}
}

// IsRetryable reports whether err was classified as retryable.
// Unclassified errors are treated as terminal.
func IsRetryable(err error) bool {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Retryable
	}
	return false
}

// MalformedRecordError reports a source record that could not be parsed.
// The stream stays usable; the pipeline counts the record as read and
// rejects it.
type MalformedRecordError struct {
	Raw RawRecord
	Err error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record: %v", e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// Malformed wraps err as a parse failure of one record. raw holds whatever
// fields could be recovered and may be nil.
func Malformed(raw RawRecord, err error) error {
	return &MalformedRecordError{Raw: raw, Err: err}
}
