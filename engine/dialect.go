package engine

import "context"

// RowStream is a lazy, finite, forward-only sequence of row tuples read
// through the driver's row cursor. Values are returned in the order of
// the query's column list.
type RowStream interface {
	// Next advances to the next row. It returns false at end-of-stream or
	// on error; callers must check Err after a false return.
	Next(ctx context.Context) bool
	// Values returns the current row's column values. Valid only after a
	// true return from Next.
	Values() []any
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases the underlying cursor/connection resources.
	Close() error
}

// ConnectionConfig carries the parameters used to open one engine
// connection. Options is an open-ended passthrough to the driver (TLS
// mode, charset, sslmode, ...). Credential storage itself is a wrapper
// concern; this struct only carries what the Connector needs to dial.
type ConnectionConfig struct {
	Type     string // engine tag: "mysql", "postgres"
	Host     string
	Port     int
	Username string
	Password string
	Database string
	Schema   string // postgres search_path entry; ignored by mysql
	Options  map[string]string
}

// Connector owns one pooled physical connection (or a small read/write
// pool) to a single database. It is the only place a database driver is
// referenced.
type Connector interface {
	// Test verifies connectivity without side effects.
	Test(ctx context.Context) error
	// Execute runs a non-query statement (DDL, DML) and returns the number
	// of rows affected where the driver reports it.
	Execute(ctx context.Context, sql string, args ...any) (int64, error)
	// Stream runs query and returns a cursor over its rows. The mysql and
	// postgres connectors leave row fetching to the driver and do not use
	// fetchSize.
	Stream(ctx context.Context, sql string, fetchSize int, args ...any) (RowStream, error)
	// Begin starts a transaction with the connector's default isolation
	// for its role (source reads use REPEATABLE READ where supported;
	// target writes use the driver default).
	Begin(ctx context.Context) (Tx, error)
	// Close releases the pool.
	Close() error
}

// Tx is the minimal transaction surface the pipeline and translator need.
type Tx interface {
	Execute(ctx context.Context, sql string, args ...any) (int64, error)
	Commit() error
	Rollback() error
}

// Dialect encapsulates one engine's identifier quoting, introspection
// queries, DDL emission, parameter placeholder style, and capability
// flags. DialectAdapter in the spec; one implementation per engine.
type Dialect interface {
	// Name identifies the dialect: "mysql" or "postgres".
	Name() string

	// QuoteIdent quotes an identifier per this dialect's rules.
	QuoteIdent(name string) string

	// Placeholder returns the parameter placeholder for position
	// (1-based): "?" for mysql, "$1"/"$2"/... for postgres.
	Placeholder(position int) string

	// IntrospectTables lists the base tables visible to conn.
	IntrospectTables(ctx context.Context, conn Connector) ([]string, error)
	// IntrospectColumns returns table's columns in ordinal order.
	IntrospectColumns(ctx context.Context, conn Connector, table string) ([]ColumnDescriptor, error)
	// IntrospectIndexes returns table's indexes, excluding engine-internal
	// system indexes. The primary key, if present, is listed first.
	IntrospectIndexes(ctx context.Context, conn Connector, table string) ([]IndexDescriptor, error)
	// IntrospectForeignKeys returns table's foreign-key constraints.
	IntrospectForeignKeys(ctx context.Context, conn Connector, table string) ([]ForeignKeyDescriptor, error)

	// CreateTableSQL emits a CREATE TABLE statement (and a DROP TABLE IF
	// EXISTS first, when dropFirst is set; the postgres dialect adds
	// CASCADE) for t, already translated to this dialect's column types.
	CreateTableSQL(t TableDescriptor, dropFirst bool) []string
	// CreateIndexSQL emits a CREATE INDEX statement for one secondary
	// index (idx.PrimaryKey indexes are emitted inline by CreateTableSQL
	// and must not be passed here).
	CreateIndexSQL(table string, idx IndexDescriptor) string
	// AddForeignKeySQL emits an ALTER TABLE ... ADD CONSTRAINT statement.
	AddForeignKeySQL(table string, fk ForeignKeyDescriptor) string

	// BulkInsertSQL emits a parameterized multi-row INSERT for rowCount
	// rows of the given columns.
	BulkInsertSQL(table string, columns []string, rowCount int) string

	// IdentitySQL renders the identity/auto-increment clause for a column
	// declared IsIdentity, appended after its base type in DDL emission.
	IdentitySQL(col ColumnDescriptor) string
	// SequenceResyncSQL emits the statement(s) that set the target's
	// identity generator for table/column so the next generated value
	// exceeds the maximum migrated value.
	SequenceResyncSQL(table, column string) string

	// SupportsFeature reports a boolean capability: "deferrable_fk",
	// "truncate_cascade", "native_enum".
	SupportsFeature(feature string) bool
}
