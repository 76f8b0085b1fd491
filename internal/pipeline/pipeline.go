// Package pipeline implements the RowPipeline component: a per-table,
// synchronous producer/batcher/writer that streams rows from a source
// Connector into bulk inserts on a target Connector. The producer blocks
// on the writer by design — parallelism happens across tables, never
// within one.
package pipeline

import (
	"context"
	"fmt"

	"github.com/dbbridge/dbbridge/engine"
)

// FailurePolicy selects what the writer does to a target table after a
// batch insert fails irrecoverably: leave prior committed batches in
// place (the default, "for inspection"), or delete rows written so far.
type FailurePolicy int

const (
	LeaveOnFailure FailurePolicy = iota
	DropOnFailure
)

// Options configures one table's copy.
type Options struct {
	BatchSize    int
	CommitEvery  int // batches per transaction commit; 0 means "every batch"
	Where        string
	OnFailure    FailurePolicy
	ProgressEach int // > 0 enables a Progress event after every flushed batch; 0 disables
}

// Progress is reported to the caller-supplied callback at the configured
// row cadence within a table.
type Progress struct {
	Table     string
	RowsMoved int64
}

// Pipeline copies one table's rows from src to dst.
type Pipeline struct {
	SrcDialect engine.Dialect
	DstDialect engine.Dialect
	OnProgress func(Progress)
}

// Run streams src's rows through dst.BulkInsertSQL-shaped batches. It
// returns the number of rows written and a *engine.DataError identifying
// the row offset of the first failing batch, if any.
func (p *Pipeline) Run(ctx context.Context, srcConn engine.Connector, dstConn engine.Connector, table string, columns []string, opts Options) (int64, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}
	commitEvery := opts.CommitEvery
	if commitEvery <= 0 {
		commitEvery = 1
	}

	query := p.selectSQL(table, columns, opts.Where)
	stream, err := srcConn.Stream(ctx, query, opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("opening producer cursor for %s: %w", table, err)
	}
	defer func() { _ = stream.Close() }()

	var rowsWritten int64
	var rowOffset int64
	batchesSinceCommit := 0

	tx, err := dstConn.Begin(ctx)
	if err != nil {
		return 0, &engine.DataError{Table: table, RowOffset: rowOffset, Err: err}
	}

	commit := func() error {
		if err := tx.Commit(); err != nil {
			return err
		}
		batchesSinceCommit = 0
		newTx, err := dstConn.Begin(ctx)
		if err != nil {
			return err
		}
		tx = newTx
		return nil
	}

	batch := make([][]any, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		sql := p.DstDialect.BulkInsertSQL(table, columns, len(batch))
		args := make([]any, 0, len(batch)*len(columns))
		for _, row := range batch {
			args = append(args, row...)
		}
		if _, err := tx.Execute(ctx, sql, args...); err != nil {
			return err
		}
		rowsWritten += int64(len(batch))
		rowOffset += int64(len(batch))
		if p.OnProgress != nil && opts.ProgressEach > 0 {
			p.OnProgress(Progress{Table: table, RowsMoved: rowsWritten})
		}
		batch = batch[:0]
		batchesSinceCommit++
		if batchesSinceCommit >= commitEvery {
			return commit()
		}
		return nil
	}

	for stream.Next(ctx) {
		if err := ctx.Err(); err != nil {
			_ = tx.Rollback()
			return rowsWritten, err
		}
		row := append([]any(nil), stream.Values()...)
		batch = append(batch, row)
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				_ = tx.Rollback()
				return rowsWritten, p.fail(ctx, dstConn, table, rowOffset, err, opts.OnFailure)
			}
		}
	}
	if err := stream.Err(); err != nil {
		_ = tx.Rollback()
		return rowsWritten, p.fail(ctx, dstConn, table, rowOffset, err, opts.OnFailure)
	}

	if err := flush(); err != nil {
		_ = tx.Rollback()
		return rowsWritten, p.fail(ctx, dstConn, table, rowOffset, err, opts.OnFailure)
	}
	if err := tx.Commit(); err != nil {
		return rowsWritten, p.fail(ctx, dstConn, table, rowOffset, err, opts.OnFailure)
	}

	return rowsWritten, nil
}

func (p *Pipeline) selectSQL(table string, columns []string, where string) string {
	cols := ""
	for i, c := range columns {
		if i > 0 {
			cols += ", "
		}
		cols += p.SrcDialect.QuoteIdent(c)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s", cols, p.SrcDialect.QuoteIdent(table))
	if where != "" {
		sql += " WHERE " + where
	}
	return sql
}

// fail applies the configured failure policy and wraps err in a
// *engine.DataError carrying the offset of the first failing batch.
func (p *Pipeline) fail(ctx context.Context, dstConn engine.Connector, table string, offset int64, cause error, policy FailurePolicy) error {
	dataErr := &engine.DataError{Table: table, RowOffset: offset, Err: cause}
	if policy == DropOnFailure {
		truncateSQL := fmt.Sprintf("DELETE FROM %s", p.DstDialect.QuoteIdent(table))
		if _, delErr := dstConn.Execute(ctx, truncateSQL); delErr != nil {
			return fmt.Errorf("%w (additionally failed to drop partial rows: %v)", dataErr, delErr)
		}
	}
	return dataErr
}
