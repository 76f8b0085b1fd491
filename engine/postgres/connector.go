// Package postgres implements engine.Dialect and engine.Connector for the
// PostgreSQL target engine.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/dbbridge/dbbridge/engine"
)

// Connector wraps one pooled *sql.DB for a PostgreSQL target database.
type Connector struct {
	db         *sql.DB
	maxRetries int
	baseDelay  time.Duration
	schema     string
}

// NewConnector opens a connection pool to cfg. A bare schema name defaults
// to "public", matching PostgreSQL's own default search_path behavior.
func NewConnector(ctx context.Context, cfg engine.ConnectionConfig) (*Connector, error) {
	dsn := buildDSN(cfg)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, &engine.ConnectionError{Engine: "postgres", Transient: false, Err: err}
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &engine.ConnectionError{Engine: "postgres", Transient: isTransient(err), Err: err}
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	return &Connector{db: db, maxRetries: 3, baseDelay: 100 * time.Millisecond, schema: schema}, nil
}

func buildDSN(cfg engine.ConnectionConfig) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.Database)
	for k, v := range cfg.Options {
		dsn += fmt.Sprintf(" %s=%s", k, v)
	}
	return dsn
}

// isTransient treats connection-refused and admin-shutdown classes of
// failure as retryable; everything else (constraint violation, syntax
// error, undefined column) is permanent and should surface immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, s := range []string{"connection refused", "57P01", "57P02", "57P03", "08006", "08001", "too many connections"} {
		if contains(msg, s) {
			return true
		}
	}
	return false
}

func contains(haystack, needle string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return true
		}
	}
	return false
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return &engine.ConnectionError{Engine: "postgres", Transient: isTransient(err), Err: err}
	}
	return nil
}

func (c *Connector) withRetry(ctx context.Context, op func() error) error {
	var err error
	delay := c.baseDelay
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if !isTransient(err) {
			return err
		}
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return &engine.ConnectionError{Engine: "postgres", Transient: true, Err: err}
}

func (c *Connector) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	var affected int64
	err := c.withRetry(ctx, func() error {
		res, err := c.db.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		affected, err = res.RowsAffected()
		return err
	})
	return affected, err
}

func (c *Connector) Stream(ctx context.Context, query string, fetchSize int, args ...any) (engine.RowStream, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &engine.ConnectionError{Engine: "postgres", Transient: isTransient(err), Err: err}
	}
	return newRowStream(rows)
}

func (c *Connector) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &engine.ConnectionError{Engine: "postgres", Transient: isTransient(err), Err: err}
	}
	return &sqlTx{tx: tx}, nil
}

func (c *Connector) Close() error { return c.db.Close() }

// DB exposes the underlying pool for introspection and Schema reports the
// configured search_path schema.
func (c *Connector) DB() *sql.DB { return c.db }
func (c *Connector) Schema() string { return c.schema }

type sqlTx struct{ tx *sql.Tx }

func (t *sqlTx) Execute(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

type rowStream struct {
	rows *sql.Rows
	dest []any
	vals []any
	err  error
}

func newRowStream(rows *sql.Rows) (*rowStream, error) {
	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, err
	}
	dest := make([]any, len(cols))
	vals := make([]any, len(cols))
	for i := range dest {
		dest[i] = &vals[i]
	}
	return &rowStream{rows: rows, dest: dest, vals: vals}, nil
}

func (r *rowStream) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		r.err = ctx.Err()
		return false
	}
	if !r.rows.Next() {
		r.err = r.rows.Err()
		return false
	}
	if err := r.rows.Scan(r.dest...); err != nil {
		r.err = err
		return false
	}
	return true
}

func (r *rowStream) Values() []any { return r.vals }
func (r *rowStream) Err() error    { return r.err }
func (r *rowStream) Close() error  { return r.rows.Close() }
