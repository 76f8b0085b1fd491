// Package dbbridge is the programmatic façade over the migration engine:
// construct a Migrator from two connection configs, inspect the source,
// optionally narrow the table selection, and run the migration.
package dbbridge

import (
	"context"
	"fmt"

	"github.com/dbbridge/dbbridge/engine"
	"github.com/dbbridge/dbbridge/engine/mysql"
	"github.com/dbbridge/dbbridge/engine/postgres"
	"github.com/dbbridge/dbbridge/internal/orchestrator"
	"github.com/dbbridge/dbbridge/internal/pipeline"
	"github.com/dbbridge/dbbridge/internal/translator"
	"github.com/dbbridge/dbbridge/internal/typemap"
)

// Phase and Event alias the orchestrator's progress-reporting types so
// callers of the root package never need to import internal/orchestrator.
type Phase = orchestrator.Phase
type Event = orchestrator.Event

// ConnectionStatus reports whether each side of a migration is reachable.
type ConnectionStatus struct {
	Source bool
	Target bool
	Err    error
}

// MigrationOptions mirrors spec.md §6's set_options parameters.
type MigrationOptions struct {
	BatchSize          int
	Workers            int
	DropTarget         bool
	MigrateIndexes     bool
	MigrateForeignKeys bool
	StopOnError        bool
	CommitEvery        int
	WhereClauses       map[string]string
	Overrides          typemap.OverrideTable
	EnumAsNative       bool
}

// DefaultMigrationOptions returns spec.md §6's documented defaults:
// batch_size 1000, workers 4, drop_target true, migrate_indexes true,
// migrate_foreign_keys true.
func DefaultMigrationOptions() MigrationOptions {
	return MigrationOptions{
		BatchSize:          1000,
		Workers:            4,
		DropTarget:         true,
		MigrateIndexes:     true,
		MigrateForeignKeys: true,
		CommitEvery:        1,
	}
}

// Migrator is the stateful façade: one source, one target, an optional
// table selection, options, and a progress callback, composed into a
// single Migrate() call.
type Migrator struct {
	sourceCfg engine.ConnectionConfig
	targetCfg engine.ConnectionConfig

	sourceDialect engine.Dialect
	targetDialect engine.Dialect
	sourceConn    engine.Connector
	targetConn    engine.Connector

	include, exclude []string
	options          MigrationOptions
	onEvent          func(Event)
}

// NewMigrator validates that both connection configs name a recognized,
// distinct engine and returns a Migrator ready for TestConnections or
// ListTables. It does not open any connection.
func NewMigrator(source, target engine.ConnectionConfig) (*Migrator, error) {
	sourceDialect, err := dialectFor(source.Type, false)
	if err != nil {
		return nil, err
	}
	targetDialect, err := dialectFor(target.Type, false)
	if err != nil {
		return nil, err
	}
	if source.Type == target.Type {
		return nil, &engine.ConfigError{Message: "source and target must be different engines"}
	}

	return &Migrator{
		sourceCfg:     source,
		targetCfg:     target,
		sourceDialect: sourceDialect,
		targetDialect: targetDialect,
		options:       DefaultMigrationOptions(),
	}, nil
}

// translateOptionsFrom maps the façade's flat options into the
// translator's per-table Options.
func translateOptionsFrom(opts MigrationOptions) translator.Options {
	return translator.Options{
		DropTarget:   opts.DropTarget,
		EnumAsNative: opts.EnumAsNative,
		ZeroDate:     typemap.ZeroDateToNull,
		Overrides:    opts.Overrides,
	}
}

// dialectFor builds the dialect for engineType. enumAsNative only affects
// postgres: it selects native CREATE TYPE ... AS ENUM rendering over the
// default VARCHAR(n) fallback.
func dialectFor(engineType string, enumAsNative bool) (engine.Dialect, error) {
	switch engineType {
	case "mysql":
		return mysql.NewDialect(), nil
	case "postgres":
		return postgres.NewDialect(enumAsNative), nil
	default:
		return nil, &engine.ConfigError{Message: fmt.Sprintf("unrecognized engine %q", engineType)}
	}
}

// SetSelection narrows the effective table set per spec.md §6: glob
// include/exclude patterns, applied at ListTables and Migrate time.
func (m *Migrator) SetSelection(include, exclude []string) {
	m.include = include
	m.exclude = exclude
}

// SetOptions replaces the migration options wholesale.
func (m *Migrator) SetOptions(opts MigrationOptions) { m.options = opts }

// SetProgressCallback registers fn to receive every phase-transition and
// row-cadence Event. Delivery is serialized by the orchestrator; fn must
// not block.
func (m *Migrator) SetProgressCallback(fn func(Event)) { m.onEvent = fn }

// connect opens (or reuses) the source and target connectors.
func (m *Migrator) connect(ctx context.Context) error {
	if m.sourceConn == nil {
		conn, err := newConnector(ctx, m.sourceCfg)
		if err != nil {
			return err
		}
		m.sourceConn = conn
	}
	if m.targetConn == nil {
		conn, err := newConnector(ctx, m.targetCfg)
		if err != nil {
			return err
		}
		m.targetConn = conn
	}
	return nil
}

func newConnector(ctx context.Context, cfg engine.ConnectionConfig) (engine.Connector, error) {
	switch cfg.Type {
	case "mysql":
		return mysql.NewConnector(ctx, cfg)
	case "postgres":
		return postgres.NewConnector(ctx, cfg)
	default:
		return nil, &engine.ConfigError{Message: fmt.Sprintf("unrecognized engine %q", cfg.Type)}
	}
}

// TestConnections opens both connections (if not already open) and pings
// each side independently; a failure on one side does not prevent
// reporting the other's status.
func (m *Migrator) TestConnections(ctx context.Context) (ConnectionStatus, error) {
	status := ConnectionStatus{}

	var srcErr error
	srcConn := m.sourceConn
	if srcConn == nil {
		srcConn, srcErr = newConnector(ctx, m.sourceCfg)
	}
	if srcErr == nil {
		srcErr = srcConn.Test(ctx)
	}
	status.Source = srcErr == nil
	if srcErr == nil {
		m.sourceConn = srcConn
	}

	var dstErr error
	dstConn := m.targetConn
	if dstConn == nil {
		dstConn, dstErr = newConnector(ctx, m.targetCfg)
	}
	if dstErr == nil {
		dstErr = dstConn.Test(ctx)
	}
	status.Target = dstErr == nil
	if dstErr == nil {
		m.targetConn = dstConn
	}

	if srcErr != nil {
		status.Err = srcErr
	} else if dstErr != nil {
		status.Err = dstErr
	}
	return status, nil
}

// ListTables introspects the source's schema (columns, indexes, foreign
// keys) for every base table in the current selection; with no selection
// set, that is every base table.
func (m *Migrator) ListTables(ctx context.Context) ([]engine.TableDescriptor, error) {
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	names, err := m.sourceDialect.IntrospectTables(ctx, m.sourceConn)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	names = orchestrator.ResolveSelection(names, m.include, m.exclude)

	tables := make([]engine.TableDescriptor, 0, len(names))
	for _, name := range names {
		cols, err := m.sourceDialect.IntrospectColumns(ctx, m.sourceConn, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s: %w", name, err)
		}
		indexes, err := m.sourceDialect.IntrospectIndexes(ctx, m.sourceConn, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s: %w", name, err)
		}
		fks, err := m.sourceDialect.IntrospectForeignKeys(ctx, m.sourceConn, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting %s: %w", name, err)
		}
		tables = append(tables, engine.TableDescriptor{
			Name:        name,
			Columns:     cols,
			Indexes:     indexes,
			ForeignKeys: fks,
		})
	}
	return tables, nil
}

// Migrate runs the full orchestrated migration: connect (if needed), list
// and select tables, then hand off to internal/orchestrator. The options
// snapshot taken here is immutable for the duration of the call — later
// calls to SetOptions do not affect an in-flight Migrate.
func (m *Migrator) Migrate(ctx context.Context) (*engine.MigrationResult, error) {
	if err := m.connect(ctx); err != nil {
		return nil, err
	}

	tables, err := m.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	opts := m.options
	onFailure := pipeline.LeaveOnFailure

	// The target dialect is rebuilt per run (rather than reusing the one
	// fixed at NewMigrator time) so a SetOptions call changing EnumAsNative
	// between runs actually takes effect.
	targetDialect, err := dialectFor(m.targetCfg.Type, opts.EnumAsNative)
	if err != nil {
		return nil, err
	}

	orchOpts := orchestrator.Options{
		Workers:           opts.Workers,
		DropTarget:        opts.DropTarget,
		StopOnError:       opts.StopOnError,
		CreateIndexes:     opts.MigrateIndexes,
		IndexesAfterData:  true,
		CreateForeignKeys: opts.MigrateForeignKeys,
		BatchSize:         opts.BatchSize,
		CommitEvery:       opts.CommitEvery,
		OnFailure:         onFailure,
		TableWhere:        opts.WhereClauses,
		Include:           m.include,
		Exclude:           m.exclude,
		Translate:         translateOptionsFrom(opts),
	}

	orch := &orchestrator.Orchestrator{
		SourceDialect: m.sourceDialect,
		TargetDialect: targetDialect,
		SourceConn:    m.sourceConn,
		TargetConn:    m.targetConn,
		OnEvent:       m.onEvent,
	}

	result, err := orch.Run(ctx, tables, orchOpts)
	return &result, err
}

// Close releases both connections. Safe to call even if Migrate was never
// invoked.
func (m *Migrator) Close() error {
	var firstErr error
	if m.sourceConn != nil {
		if err := m.sourceConn.Close(); err != nil {
			firstErr = err
		}
	}
	if m.targetConn != nil {
		if err := m.targetConn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
