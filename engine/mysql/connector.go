// Package mysql implements engine.Dialect and engine.Connector for the
// MySQL-family source engine.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/dbbridge/dbbridge/engine"
)

// transientErrorNumbers are MySQL server error numbers worth retrying:
// 1040 (too many connections), 1053 (server shutdown in progress), 2006
// (server has gone away), 2013 (lost connection during query).
var transientErrorNumbers = map[uint16]bool{
	1040: true,
	1053: true,
	2006: true,
	2013: true,
}

// Connector wraps one pooled *sql.DB for a MySQL-family source database,
// opened with a forced utf8mb4 session charset (spec: fail fast rather
// than silently read latin1 bytes as UTF-8).
type Connector struct {
	db         *sql.DB
	maxRetries int
	baseDelay  time.Duration
}

// NewConnector opens a connection pool to cfg. The DSN always negotiates
// utf8mb4; SHOW VARIABLES is checked once so a server configured with a
// non-Unicode session charset fails here instead of silently mojibake-ing
// text columns later.
func NewConnector(ctx context.Context, cfg engine.ConnectionConfig) (*Connector, error) {
	dsn := buildDSN(cfg)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, &engine.ConnectionError{Engine: "mysql", Transient: false, Err: err}
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &engine.ConnectionError{Engine: "mysql", Transient: isTransient(err), Err: err}
	}

	c := &Connector{db: db, maxRetries: 3, baseDelay: 100 * time.Millisecond}
	if err := c.checkCharset(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func buildDSN(cfg engine.ConnectionConfig) string {
	dsnCfg := mysqldriver.NewConfig()
	dsnCfg.User = cfg.Username
	dsnCfg.Passwd = cfg.Password
	dsnCfg.Net = "tcp"
	dsnCfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	dsnCfg.DBName = cfg.Database
	dsnCfg.Params = map[string]string{"charset": "utf8mb4"}
	dsnCfg.ParseTime = true
	for k, v := range cfg.Options {
		dsnCfg.Params[k] = v
	}
	return dsnCfg.FormatDSN()
}

// checkCharset fails fast if the negotiated session charset is not a
// UTF-8 family charset, per the spec's open question on latin1 columns.
func (c *Connector) checkCharset(ctx context.Context) error {
	var variable, value string
	row := c.db.QueryRowContext(ctx, "SHOW VARIABLES LIKE 'character_set_client'")
	if err := row.Scan(&variable, &value); err != nil {
		return &engine.ConnectionError{Engine: "mysql", Transient: false, Err: fmt.Errorf("reading session charset: %w", err)}
	}
	if !strings.HasPrefix(strings.ToLower(value), "utf8") {
		return &engine.ConnectionError{
			Engine:    "mysql",
			Transient: false,
			Err:       fmt.Errorf("session charset %q is not a UTF-8 family charset; refusing to migrate possibly mis-decoded text", value),
		}
	}
	return nil
}

func isTransient(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return transientErrorNumbers[mysqlErr.Number]
	}
	return errors.Is(err, mysqldriver.ErrInvalidConn)
}

func (c *Connector) Test(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return &engine.ConnectionError{Engine: "mysql", Transient: isTransient(err), Err: err}
	}
	return nil
}

// withRetry retries a transient-failing operation with bounded
// exponential backoff; permanent errors surface on the first attempt.
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
	return &engine.ConnectionError{Engine: "mysql", Transient: true, Err: err}
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
		return nil, &engine.ConnectionError{Engine: "mysql", Transient: isTransient(err), Err: err}
	}
	return newRowStream(rows)
}

func (c *Connector) Begin(ctx context.Context) (engine.Tx, error) {
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, &engine.ConnectionError{Engine: "mysql", Transient: isTransient(err), Err: err}
	}
	return &sqlTx{tx: tx}, nil
}

func (c *Connector) Close() error { return c.db.Close() }

// DB exposes the underlying pool for components (introspection) that need
// direct *sql.DB access alongside the Connector abstraction.
func (c *Connector) DB() *sql.DB { return c.db }

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
	cols []string
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
	return &rowStream{rows: rows, cols: cols, dest: dest, vals: vals}, nil
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
