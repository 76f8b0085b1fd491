package pipeline

import (
	"context"
	"testing"

	"github.com/dbbridge/dbbridge/engine"
)

// fakeStream replays a fixed set of rows, one Next() call per row.
type fakeStream struct {
	rows [][]any
	pos  int
	err  error
}

func (s *fakeStream) Next(ctx context.Context) bool {
	if s.pos >= len(s.rows) {
		return false
	}
	s.pos++
	return true
}
func (s *fakeStream) Values() []any { return s.rows[s.pos-1] }
func (s *fakeStream) Err() error    { return s.err }
func (s *fakeStream) Close() error  { return nil }

type fakeTx struct {
	execs      [][]any
	committed  bool
	rolledBack bool
	failOn     int // Execute call index (0-based) that should error; -1 disables
	calls      int
}

func (t *fakeTx) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	defer func() { t.calls++ }()
	if t.failOn == t.calls {
		return 0, errExecFailed
	}
	t.execs = append(t.execs, args)
	return int64(len(args)), nil
}
func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

var errExecFailed = errTest("simulated execute failure")

type errTest string

func (e errTest) Error() string { return string(e) }

type fakeConnector struct {
	stream    *fakeStream
	txs       []*fakeTx
	failOn    int
	execCalls int
}

func (c *fakeConnector) Test(ctx context.Context) error { return nil }
func (c *fakeConnector) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	c.execCalls++
	return 0, nil
}
func (c *fakeConnector) Stream(ctx context.Context, sql string, fetchSize int, args ...any) (engine.RowStream, error) {
	return c.stream, nil
}
func (c *fakeConnector) Begin(ctx context.Context) (engine.Tx, error) {
	tx := &fakeTx{failOn: c.failOn}
	c.txs = append(c.txs, tx)
	return tx, nil
}
func (c *fakeConnector) Close() error { return nil }

type fakeDialect struct{}

func (fakeDialect) Name() string                     { return "fake" }
func (fakeDialect) QuoteIdent(name string) string     { return name }
func (fakeDialect) Placeholder(position int) string   { return "?" }
func (fakeDialect) IntrospectTables(context.Context, engine.Connector) ([]string, error) {
	return nil, nil
}
func (fakeDialect) IntrospectColumns(context.Context, engine.Connector, string) ([]engine.ColumnDescriptor, error) {
	return nil, nil
}
func (fakeDialect) IntrospectIndexes(context.Context, engine.Connector, string) ([]engine.IndexDescriptor, error) {
	return nil, nil
}
func (fakeDialect) IntrospectForeignKeys(context.Context, engine.Connector, string) ([]engine.ForeignKeyDescriptor, error) {
	return nil, nil
}
func (fakeDialect) CreateTableSQL(engine.TableDescriptor, bool) []string       { return nil }
func (fakeDialect) CreateIndexSQL(string, engine.IndexDescriptor) string       { return "" }
func (fakeDialect) AddForeignKeySQL(string, engine.ForeignKeyDescriptor) string { return "" }
func (fakeDialect) BulkInsertSQL(table string, columns []string, rowCount int) string {
	return "INSERT"
}
func (fakeDialect) IdentitySQL(engine.ColumnDescriptor) string { return "" }
func (fakeDialect) SequenceResyncSQL(table, column string) string { return "" }
func (fakeDialect) SupportsFeature(string) bool                { return false }

func TestRun_WritesAllRowsInBatches(t *testing.T) {
	src := &fakeConnector{stream: &fakeStream{rows: [][]any{{1, "a"}, {2, "b"}, {3, "c"}}}, failOn: -1}
	dst := &fakeConnector{failOn: -1}
	p := &Pipeline{SrcDialect: fakeDialect{}, DstDialect: fakeDialect{}}

	rows, err := p.Run(context.Background(), src, dst, "t", []string{"id", "name"}, Options{BatchSize: 2})
	if err != nil {
		t.Fatal(err)
	}
	if rows != 3 {
		t.Errorf("rows = %d, want 3", rows)
	}
	if len(dst.txs) == 0 || !dst.txs[len(dst.txs)-1].committed {
		t.Error("expected the final transaction to be committed")
	}
}

func TestRun_FailureLeavesPriorBatchesByDefault(t *testing.T) {
	src := &fakeConnector{stream: &fakeStream{rows: [][]any{{1}, {2}, {3}, {4}}}, failOn: -1}
	dst := &fakeConnector{failOn: 0} // the first Execute on every tx fails
	p := &Pipeline{SrcDialect: fakeDialect{}, DstDialect: fakeDialect{}}

	_, err := p.Run(context.Background(), src, dst, "t", []string{"id"}, Options{BatchSize: 2, CommitEvery: 1})
	if err == nil {
		t.Fatal("expected a DataError from the simulated execute failure")
	}
	var dataErr *engine.DataError
	if !asDataError(err, &dataErr) {
		t.Fatalf("expected *engine.DataError, got %T: %v", err, err)
	}
	if dst.execCalls != 0 {
		t.Errorf("the default policy must not delete rows already written, got %d delete statement(s)", dst.execCalls)
	}
}

func asDataError(err error, target **engine.DataError) bool {
	if e, ok := err.(*engine.DataError); ok {
		*target = e
		return true
	}
	return false
}

func TestRun_ProgressCallback(t *testing.T) {
	src := &fakeConnector{stream: &fakeStream{rows: [][]any{{1}, {2}}}, failOn: -1}
	dst := &fakeConnector{failOn: -1}
	var events []Progress
	p := &Pipeline{SrcDialect: fakeDialect{}, DstDialect: fakeDialect{}, OnProgress: func(pr Progress) { events = append(events, pr) }}

	_, err := p.Run(context.Background(), src, dst, "t", []string{"id"}, Options{BatchSize: 1, ProgressEach: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Errorf("expected 2 progress events, got %d", len(events))
	}
}
