package dbbridge

import (
	"testing"

	"github.com/dbbridge/dbbridge/engine"
	"github.com/dbbridge/dbbridge/engine/postgres"
)

func TestNewMigrator_RejectsSameEngine(t *testing.T) {
	cfg := engine.ConnectionConfig{Type: "mysql", Host: "a", Database: "d"}
	if _, err := NewMigrator(cfg, cfg); err == nil {
		t.Fatal("expected an error when source and target share an engine")
	}
}

func TestNewMigrator_RejectsUnknownEngine(t *testing.T) {
	source := engine.ConnectionConfig{Type: "oracle", Host: "a", Database: "d"}
	target := engine.ConnectionConfig{Type: "postgres", Host: "b", Database: "d"}
	if _, err := NewMigrator(source, target); err == nil {
		t.Fatal("expected an error for an unrecognized engine tag")
	}
}

func TestNewMigrator_AcceptsMySQLToPostgres(t *testing.T) {
	source := engine.ConnectionConfig{Type: "mysql", Host: "a", Database: "d"}
	target := engine.ConnectionConfig{Type: "postgres", Host: "b", Database: "d"}
	m, err := NewMigrator(source, target)
	if err != nil {
		t.Fatal(err)
	}
	if m.sourceDialect.Name() != "mysql" || m.targetDialect.Name() != "postgres" {
		t.Errorf("unexpected dialect pairing: %s -> %s", m.sourceDialect.Name(), m.targetDialect.Name())
	}
}

func TestDefaultMigrationOptions(t *testing.T) {
	opts := DefaultMigrationOptions()
	if opts.BatchSize != 1000 || opts.Workers != 4 {
		t.Errorf("unexpected defaults: %+v", opts)
	}
	if !opts.DropTarget || !opts.MigrateIndexes || !opts.MigrateForeignKeys {
		t.Errorf("expected the documented booleans to default true: %+v", opts)
	}
}

func TestDialectFor_EnumAsNativePlumbsIntoPostgresDialect(t *testing.T) {
	d, err := dialectFor("postgres", true)
	if err != nil {
		t.Fatal(err)
	}
	pg, ok := d.(*postgres.Dialect)
	if !ok {
		t.Fatalf("expected *postgres.Dialect, got %T", d)
	}
	if !pg.EnumAsNative {
		t.Error("expected EnumAsNative to reach the constructed dialect")
	}
}

func TestSetSelectionAndOptions(t *testing.T) {
	source := engine.ConnectionConfig{Type: "mysql", Host: "a", Database: "d"}
	target := engine.ConnectionConfig{Type: "postgres", Host: "b", Database: "d"}
	m, err := NewMigrator(source, target)
	if err != nil {
		t.Fatal(err)
	}
	m.SetSelection([]string{"user_*"}, []string{"*_log"})
	if len(m.include) != 1 || len(m.exclude) != 1 {
		t.Errorf("selection not stored: include=%v exclude=%v", m.include, m.exclude)
	}

	opts := DefaultMigrationOptions()
	opts.Workers = 8
	m.SetOptions(opts)
	if m.options.Workers != 8 {
		t.Errorf("options not stored: %+v", m.options)
	}
}
