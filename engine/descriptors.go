// Package engine holds the engine-neutral schema descriptors and the
// Dialect/Connector interfaces that the mysql and postgres sub-packages
// implement. Nothing in this package talks to a driver directly.
package engine

import "fmt"

// LogicalKind is the dialect-neutral type classification a ColumnDescriptor
// is normalized to by the type mapper.
type LogicalKind string

const (
	KindInt8         LogicalKind = "INT8"
	KindInt16        LogicalKind = "INT16"
	KindInt32        LogicalKind = "INT32"
	KindInt64        LogicalKind = "INT64"
	KindDecimal      LogicalKind = "DECIMAL"
	KindFloat32      LogicalKind = "FLOAT32"
	KindFloat64      LogicalKind = "FLOAT64"
	KindBool         LogicalKind = "BOOL"
	KindChar         LogicalKind = "CHAR"
	KindVarchar      LogicalKind = "VARCHAR"
	KindText         LogicalKind = "TEXT"
	KindBytes        LogicalKind = "BYTES"
	KindDate         LogicalKind = "DATE"
	KindTime         LogicalKind = "TIME"
	KindDateTime     LogicalKind = "DATETIME"
	KindTimestampTZ  LogicalKind = "TIMESTAMP_TZ"
	KindJSON         LogicalKind = "JSON"
	KindEnum         LogicalKind = "ENUM"
	KindUUID         LogicalKind = "UUID"
	KindUnknown      LogicalKind = "UNKNOWN"
)

// DefaultProvenance distinguishes a literal default expression from one that
// invokes an engine function (NOW(), CURRENT_TIMESTAMP, nextval(), ...).
type DefaultProvenance int

const (
	DefaultLiteral DefaultProvenance = iota
	DefaultFunction
)

// ColumnDefault carries the raw default expression plus its provenance, so
// the type mapper's default-rewrite table knows whether re-quoting a literal
// is safe or whether the expression needs dialect translation instead.
type ColumnDefault struct {
	Raw         string
	Provenance  DefaultProvenance
}

// ColumnDescriptor is an immutable, engine-neutral record of one column.
type ColumnDescriptor struct {
	Name       string
	Kind       LogicalKind
	Precision  int // DECIMAL(p,s), CHAR(n)/VARCHAR(n) length
	Scale      int // DECIMAL(p,s)
	Nullable   bool
	Default    *ColumnDefault
	IsIdentity bool
	Ordinal    int
	Comment    string
	EnumValues []string // populated only when Kind == KindEnum

	// SourceType is the raw source engine type token (e.g. "varchar(255)",
	// "tinyint(1)") kept for diagnostics and override-table lookups.
	SourceType string

	// OverrideToken is a literal target type token supplied by an override
	// table entry, rendered verbatim by the dialect instead of one derived
	// from Kind. Empty unless an override matched this column.
	OverrideToken string
}

// IndexDescriptor is an immutable record of one index. PrimaryKey indexes
// are always listed first in TableDescriptor.Indexes when present.
type IndexDescriptor struct {
	Name      string
	Columns   []string
	Unique    bool
	PrimaryKey bool
}

// ForeignKeyDescriptor is an immutable record of one foreign-key constraint.
type ForeignKeyDescriptor struct {
	Name              string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnUpdate          string
	OnDelete          string
}

// TableDescriptor is an immutable, engine-neutral record of one table.
// Ordinal positions in Columns are dense and zero-based; RowPipeline row
// tuples match this ordering exactly.
type TableDescriptor struct {
	Schema          string
	Name            string
	Columns         []ColumnDescriptor
	Indexes         []IndexDescriptor
	ForeignKeys     []ForeignKeyDescriptor
	EstimatedRows   int64
	ByteSize        int64
}

// QualifiedName returns the schema-qualified table name, or just Name if no
// schema is set.
func (t TableDescriptor) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return fmt.Sprintf("%s.%s", t.Schema, t.Name)
}

// ColumnNames returns the table's column names in ordinal order.
func (t TableDescriptor) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for _, c := range t.Columns {
		names[c.Ordinal] = c.Name
	}
	return names
}

// TableStatus is the outcome of migrating one table.
type TableStatus string

const (
	StatusSuccess   TableStatus = "success"
	StatusFailed    TableStatus = "failed"
	StatusSkipped   TableStatus = "skipped"
	StatusCancelled TableStatus = "cancelled"
)

// TableResult is the per-table outcome recorded in a MigrationResult.
type TableResult struct {
	Table    string
	Status   TableStatus
	Rows     int64
	Duration float64 // seconds
	Error    string
}

// MigrationResult aggregates the outcome of one Migrate() call.
type MigrationResult struct {
	Tables       []TableResult
	TotalRows    int64
	Duration     float64 // seconds
	TablesOK     int
	TablesFailed int
}
