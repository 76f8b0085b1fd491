package engine

import "fmt"

// ConfigError signals a fatal pre-flight configuration problem: missing
// credentials, an unknown engine tag, conflicting selection patterns.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "config error: " + e.Message }

// ConnectionError wraps a driver-level connection failure. Transient marks
// errors the Connector retries with backoff (lost or refused connections,
// too many connections, server shutdown); a non-transient error is
// returned on the first attempt.
type ConnectionError struct {
	Engine    string
	Transient bool
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection error (transient=%v): %v", e.Engine, e.Transient, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MappingError reports every column the type mapper could not translate in
// one pass, so a caller sees the full list rather than failing one at a
// time.
type MappingError struct {
	Table   string
	Columns []string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("table %s: %d unmapped column(s): %v", e.Table, len(e.Columns), e.Columns)
}

// DDLError reports that the target rejected translated DDL for a table.
type DDLError struct {
	Table string
	SQL   string
	Err   error
}

func (e *DDLError) Error() string {
	return fmt.Sprintf("DDL failed for table %s: %v", e.Table, e.Err)
}

func (e *DDLError) Unwrap() error { return e.Err }

// DataError reports a batch failure during row copy: a constraint
// violation, encoding error, or truncation. RowOffset is the zero-based
// position of the first row of the failing batch within the table's
// source-read order.
type DataError struct {
	Table     string
	RowOffset int64
	Err       error
}

func (e *DataError) Error() string {
	return fmt.Sprintf("table %s: batch starting at row %d failed: %v", e.Table, e.RowOffset, e.Err)
}

func (e *DataError) Unwrap() error { return e.Err }

// IntegrityError reports that a deferred foreign key failed to install
// after row data was loaded. Data remains in place; the FK is absent.
type IntegrityError struct {
	ForeignKey string
	Table      string
	Err        error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("foreign key %s on table %s failed to install: %v", e.ForeignKey, e.Table, e.Err)
}

func (e *IntegrityError) Unwrap() error { return e.Err }
