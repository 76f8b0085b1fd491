package orchestrator

import (
	"context"
	"testing"

	"github.com/dbbridge/dbbridge/engine"
)

type noRowsStream struct{}

func (noRowsStream) Next(context.Context) bool { return false }
func (noRowsStream) Values() []any             { return nil }
func (noRowsStream) Err() error                { return nil }
func (noRowsStream) Close() error              { return nil }

type recordingTx struct{ conn *recordingConnector }

func (t *recordingTx) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	t.conn.executed = append(t.conn.executed, sql)
	return 0, nil
}
func (t *recordingTx) Commit() error   { return nil }
func (t *recordingTx) Rollback() error { return nil }

type recordingConnector struct {
	executed []string
}

func (c *recordingConnector) Test(context.Context) error { return nil }
func (c *recordingConnector) Execute(ctx context.Context, sql string, args ...any) (int64, error) {
	c.executed = append(c.executed, sql)
	return 0, nil
}
func (c *recordingConnector) Stream(ctx context.Context, sql string, fetchSize int, args ...any) (engine.RowStream, error) {
	return noRowsStream{}, nil
}
func (c *recordingConnector) Begin(ctx context.Context) (engine.Tx, error) {
	return &recordingTx{conn: c}, nil
}
func (c *recordingConnector) Close() error { return nil }

// passthroughDialect renders just enough SQL to exercise the orchestrator
// without depending on engine/postgres; it is not meant to look like a
// real dialect's output.
type passthroughDialect struct{}

func (passthroughDialect) Name() string                  { return "test" }
func (passthroughDialect) QuoteIdent(name string) string { return name }
func (passthroughDialect) Placeholder(position int) string { return "?" }
func (passthroughDialect) IntrospectTables(context.Context, engine.Connector) ([]string, error) {
	return nil, nil
}
func (passthroughDialect) IntrospectColumns(context.Context, engine.Connector, string) ([]engine.ColumnDescriptor, error) {
	return nil, nil
}
func (passthroughDialect) IntrospectIndexes(context.Context, engine.Connector, string) ([]engine.IndexDescriptor, error) {
	return nil, nil
}
func (passthroughDialect) IntrospectForeignKeys(context.Context, engine.Connector, string) ([]engine.ForeignKeyDescriptor, error) {
	return nil, nil
}
func (passthroughDialect) CreateTableSQL(t engine.TableDescriptor, dropFirst bool) []string {
	return []string{"CREATE TABLE " + t.Name}
}
func (passthroughDialect) CreateIndexSQL(table string, idx engine.IndexDescriptor) string {
	return "CREATE INDEX " + idx.Name + " ON " + table
}
func (passthroughDialect) AddForeignKeySQL(table string, fk engine.ForeignKeyDescriptor) string {
	return "ADD FK " + fk.Name + " ON " + table
}
func (passthroughDialect) BulkInsertSQL(table string, columns []string, rowCount int) string {
	return "INSERT INTO " + table
}
func (passthroughDialect) IdentitySQL(engine.ColumnDescriptor) string { return "SERIAL" }
func (passthroughDialect) SequenceResyncSQL(table, column string) string {
	return "RESYNC " + table + "." + column
}
func (passthroughDialect) SupportsFeature(string) bool { return true }

func TestOrchestrator_Run_OrdersTablesByDependency(t *testing.T) {
	users := engine.TableDescriptor{
		Name:    "users",
		Columns: []engine.ColumnDescriptor{{Name: "id", SourceType: "bigint(20)", Kind: engine.KindInt64, IsIdentity: true}},
	}
	orders := engine.TableDescriptor{
		Name:        "orders",
		Columns:     []engine.ColumnDescriptor{{Name: "id", SourceType: "bigint(20)", Kind: engine.KindInt64, IsIdentity: true}},
		ForeignKeys: []engine.ForeignKeyDescriptor{{Name: "fk_user", Columns: []string{"user_id"}, ReferencedTable: "users", ReferencedColumns: []string{"id"}}},
	}

	target := &recordingConnector{}
	o := &Orchestrator{
		SourceDialect: passthroughDialect{},
		TargetDialect: passthroughDialect{},
		SourceConn:    &recordingConnector{},
		TargetConn:    target,
	}

	result, err := o.Run(context.Background(), []engine.TableDescriptor{orders, users}, NewOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.TablesOK != 2 {
		t.Errorf("expected both tables to succeed, got %+v", result)
	}

	usersIdx, ordersIdx := -1, -1
	for i, stmt := range target.executed {
		if stmt == "CREATE TABLE users" {
			usersIdx = i
		}
		if stmt == "CREATE TABLE orders" {
			ordersIdx = i
		}
	}
	if usersIdx == -1 || ordersIdx == -1 {
		t.Fatalf("expected both CREATE TABLE statements, got %v", target.executed)
	}
	if usersIdx >= ordersIdx {
		t.Errorf("users must be created before orders, got order %v", target.executed)
	}
}

func TestOrchestrator_Run_SelectionFiltersOutTables(t *testing.T) {
	users := engine.TableDescriptor{Name: "users"}
	auditLog := engine.TableDescriptor{Name: "audit_log"}

	target := &recordingConnector{}
	o := &Orchestrator{
		SourceDialect: passthroughDialect{},
		TargetDialect: passthroughDialect{},
		SourceConn:    &recordingConnector{},
		TargetConn:    target,
	}

	opts := NewOptions()
	opts.Exclude = []string{"audit_*"}

	result, err := o.Run(context.Background(), []engine.TableDescriptor{users, auditLog}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.TablesOK != 1 {
		t.Errorf("expected exactly one table migrated, got %+v", result)
	}
	for _, stmt := range target.executed {
		if stmt == "CREATE TABLE audit_log" {
			t.Error("excluded table should never receive DDL")
		}
	}
}

func TestOrchestrator_Run_SkipsIndexesWhenDisabled(t *testing.T) {
	users := engine.TableDescriptor{
		Name:    "users",
		Indexes: []engine.IndexDescriptor{{Name: "idx_email", Columns: []string{"email"}}},
	}

	target := &recordingConnector{}
	o := &Orchestrator{
		SourceDialect: passthroughDialect{},
		TargetDialect: passthroughDialect{},
		SourceConn:    &recordingConnector{},
		TargetConn:    target,
	}

	opts := NewOptions()
	opts.CreateIndexes = false

	result, err := o.Run(context.Background(), []engine.TableDescriptor{users}, opts)
	if err != nil {
		t.Fatal(err)
	}
	if result.TablesOK != 1 {
		t.Errorf("expected the table to still migrate, got %+v", result)
	}
	for _, stmt := range target.executed {
		if stmt == "CREATE INDEX idx_email ON users" {
			t.Error("migrate_indexes=false must not create any secondary index")
		}
	}
}

func TestOrchestrator_Run_SkipsForeignKeysWhenDisabled(t *testing.T) {
	a := engine.TableDescriptor{
		Name:        "a",
		ForeignKeys: []engine.ForeignKeyDescriptor{{Name: "fk_b", ReferencedTable: "b"}},
	}
	b := engine.TableDescriptor{Name: "b"}

	target := &recordingConnector{}
	o := &Orchestrator{
		SourceDialect: passthroughDialect{},
		TargetDialect: passthroughDialect{},
		SourceConn:    &recordingConnector{},
		TargetConn:    target,
	}

	opts := NewOptions()
	opts.CreateForeignKeys = false

	_, err := o.Run(context.Background(), []engine.TableDescriptor{a, b}, opts)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range target.executed {
		if stmt == "ADD FK fk_b ON a" {
			t.Error("migrate_foreign_keys=false must not install any deferred foreign key")
		}
	}
}

func TestOrchestrator_Run_DeferredFKInstalledInPostStep(t *testing.T) {
	a := engine.TableDescriptor{
		Name:        "a",
		ForeignKeys: []engine.ForeignKeyDescriptor{{Name: "fk_b", ReferencedTable: "b"}},
	}
	b := engine.TableDescriptor{
		Name:        "b",
		ForeignKeys: []engine.ForeignKeyDescriptor{{Name: "fk_a", ReferencedTable: "a"}},
	}

	target := &recordingConnector{}
	o := &Orchestrator{
		SourceDialect: passthroughDialect{},
		TargetDialect: passthroughDialect{},
		SourceConn:    &recordingConnector{},
		TargetConn:    target,
	}

	_, err := o.Run(context.Background(), []engine.TableDescriptor{a, b}, NewOptions())
	if err != nil {
		t.Fatal(err)
	}

	foundFKs := 0
	for _, stmt := range target.executed {
		if stmt == "ADD FK fk_b ON a" || stmt == "ADD FK fk_a ON b" {
			foundFKs++
		}
	}
	if foundFKs != 2 {
		t.Errorf("expected both cycle members' FKs installed in the post-step, got %d", foundFKs)
	}
}
