// Package orchestrator implements the MigrationOrchestrator component:
// table selection, FK-topology scheduling, a bounded worker pool that
// drives SchemaTranslator + RowPipeline per table (creating that table's
// non-PK indexes right after its data load by default), and the post-step
// that installs deferred foreign keys and resyncs identity sequences.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dbbridge/dbbridge/engine"
	"github.com/dbbridge/dbbridge/internal/pipeline"
	"github.com/dbbridge/dbbridge/internal/translator"
)

// Phase identifies a point in a table's (or the run's) lifecycle that an
// Event may report.
type Phase string

const (
	PhaseDDL       Phase = "ddl"
	PhaseData      Phase = "data"
	PhaseDone      Phase = "done"
	PhasePostStep  Phase = "post_step"
	PhaseCancelled Phase = "cancelled"
)

// Event is emitted at each phase transition and at the pipeline's
// configured row-count cadence within a table. Delivery is serialized:
// the orchestrator holds a mutex around every call to the callback, so a
// caller-supplied func never needs its own synchronization.
type Event struct {
	Phase     Phase
	Table     string
	RowsMoved int64
	Err       error
}

// Options configures one migration run.
type Options struct {
	Workers           int
	DropTarget        bool
	StopOnError       bool
	CreateIndexes     bool // whether secondary indexes are created at all; default true
	IndexesAfterData  bool // when CreateIndexes, whether they run after data load; default true
	CreateForeignKeys bool // whether deferred foreign keys are installed in the post-step; default true
	BatchSize         int
	CommitEvery       int
	OnFailure         pipeline.FailurePolicy
	TableWhere        map[string]string
	Include           []string
	Exclude           []string
	Translate         translator.Options
}

// NewOptions returns Options with the spec's defaults (4 workers, indexes
// and foreign keys created, indexes after data load).
func NewOptions() Options {
	return Options{
		Workers:           4,
		CreateIndexes:     true,
		IndexesAfterData:  true,
		CreateForeignKeys: true,
		BatchSize:         1000,
		CommitEvery:       1,
	}
}

// Orchestrator drives one migration run. SourceConn and TargetConn are
// pooled *sql.DB-backed connectors safe for concurrent use by the worker
// pool; a dedicated connection pair per worker (as sketched for the
// scheduling model) is unnecessary because the driver's pool already
// multiplexes concurrent callers.
type Orchestrator struct {
	SourceDialect engine.Dialect
	TargetDialect engine.Dialect
	SourceConn    engine.Connector
	TargetConn    engine.Connector
	OnEvent       func(Event)

	mu sync.Mutex
}

func (o *Orchestrator) emit(ev Event) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.OnEvent != nil {
		o.OnEvent(ev)
	}
}

// Run selects the effective table set, computes FK topology, migrates
// tables level by level with a barrier between levels, then runs the
// post-step: deferred FK install and sequence resync. Each level is one
// strongly-connected component of topo.Order, so a table outside an FK
// cycle is its own level and such tables are migrated one after another;
// only the members of one cycle run concurrently, up to opts.Workers at a
// time. Secondary indexes are created per table inside migrateTable, not
// in the post-step.
func (o *Orchestrator) Run(ctx context.Context, allTables []engine.TableDescriptor, opts Options) (engine.MigrationResult, error) {
	start := time.Now()
	byName := make(map[string]engine.TableDescriptor, len(allTables))
	var names []string
	for _, t := range allTables {
		byName[t.Name] = t
		names = append(names, t.Name)
	}

	selected := ResolveSelection(names, opts.Include, opts.Exclude)
	for _, pat := range UnmatchedPatterns(names, opts.Include) {
		o.emit(Event{Phase: PhaseDone, Table: pat, Err: fmt.Errorf("selection pattern %q matched no table", pat)})
	}

	edges := map[string][]string{}
	selectedSet := make(map[string]bool, len(selected))
	for _, n := range selected {
		selectedSet[n] = true
	}
	for _, n := range selected {
		for _, fk := range byName[n].ForeignKeys {
			if selectedSet[fk.ReferencedTable] {
				edges[n] = append(edges[n], fk.ReferencedTable)
			}
		}
	}

	topo := BuildTopology(selected, edges)

	tr := translator.New(o.TargetDialect)
	pl := &pipeline.Pipeline{
		SrcDialect: o.SourceDialect,
		DstDialect: o.TargetDialect,
		OnProgress: func(p pipeline.Progress) {
			o.emit(Event{Phase: PhaseData, Table: p.Table, RowsMoved: p.RowsMoved})
		},
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}

	results := make(map[string]engine.TableResult, len(selected))
	var resultsMu sync.Mutex
	var deferredFK []string

	for _, level := range topo.Order {
		if err := ctx.Err(); err != nil {
			for _, n := range level {
				resultsMu.Lock()
				results[n] = engine.TableResult{Table: n, Status: engine.StatusSkipped}
				resultsMu.Unlock()
			}
			continue
		}

		g, gctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, workers)

		for _, tableName := range level {
			tableName := tableName
			sem <- struct{}{}
			g.Go(func() error {
				defer func() { <-sem }()
				res, fkDDL := o.migrateTable(gctx, byName[tableName], opts, tr, pl)
				resultsMu.Lock()
				results[tableName] = res
				deferredFK = append(deferredFK, fkDDL...)
				resultsMu.Unlock()
				if res.Status == engine.StatusFailed && opts.StopOnError {
					return fmt.Errorf("table %s failed: %s", tableName, res.Error)
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil && opts.StopOnError {
			return o.buildResult(results, start), err
		}
	}

	o.emit(Event{Phase: PhasePostStep})
	if err := ctx.Err(); err == nil {
		o.runPostStep(ctx, selected, byName, deferredFK, opts, results)
	}

	return o.buildResult(results, start), nil
}

// migrateTable runs the ddl -> data -> done state machine for one table
// and returns its result plus the deferred FK statements the translator
// produced for it (never executed here).
func (o *Orchestrator) migrateTable(ctx context.Context, table engine.TableDescriptor, opts Options, tr *translator.Translator, pl *pipeline.Pipeline) (engine.TableResult, []string) {
	start := time.Now()
	done := func(res engine.TableResult, fkDDL []string) (engine.TableResult, []string) {
		res.Duration = time.Since(start).Seconds()
		return res, fkDDL
	}

	fail := func(err error, fkDDL []string, rows int64) (engine.TableResult, []string) {
		o.emit(Event{Phase: PhaseDone, Table: table.Name, Err: err})
		return done(engine.TableResult{Table: table.Name, Status: engine.StatusFailed, Rows: rows, Error: err.Error()}, fkDDL)
	}

	o.emit(Event{Phase: PhaseDDL, Table: table.Name})

	translateOpts := opts.Translate
	translateOpts.DropTarget = opts.DropTarget
	plan, err := tr.Translate(table, translateOpts)
	if err != nil {
		return fail(err, nil, 0)
	}

	for _, stmt := range plan.CreateTable {
		if _, err := o.TargetConn.Execute(ctx, stmt); err != nil {
			return fail(&engine.DDLError{Table: table.Name, SQL: stmt, Err: err}, nil, 0)
		}
	}

	if opts.CreateIndexes && !opts.IndexesAfterData {
		for _, stmt := range plan.CreateIndex {
			if _, err := o.TargetConn.Execute(ctx, stmt); err != nil {
				return fail(&engine.DDLError{Table: table.Name, SQL: stmt, Err: err}, plan.CreateFK, 0)
			}
		}
	}

	o.emit(Event{Phase: PhaseData, Table: table.Name})

	pipeOpts := pipeline.Options{
		BatchSize:    opts.BatchSize,
		CommitEvery:  opts.CommitEvery,
		Where:        opts.TableWhere[table.Name],
		OnFailure:    opts.OnFailure,
		ProgressEach: 1,
	}

	rows, err := pl.Run(ctx, o.SourceConn, o.TargetConn, table.Name, table.ColumnNames(), pipeOpts)
	if err != nil {
		if ctx.Err() != nil {
			o.emit(Event{Phase: PhaseCancelled, Table: table.Name, RowsMoved: rows})
			return done(engine.TableResult{Table: table.Name, Status: engine.StatusCancelled, Rows: rows}, plan.CreateFK)
		}
		return fail(err, plan.CreateFK, rows)
	}

	if opts.CreateIndexes && opts.IndexesAfterData {
		for _, stmt := range plan.CreateIndex {
			if _, err := o.TargetConn.Execute(ctx, stmt); err != nil {
				return fail(&engine.DDLError{Table: table.Name, SQL: stmt, Err: err}, plan.CreateFK, rows)
			}
		}
	}

	o.emit(Event{Phase: PhaseDone, Table: table.Name, RowsMoved: rows})
	return done(engine.TableResult{Table: table.Name, Status: engine.StatusSuccess, Rows: rows}, plan.CreateFK)
}

// runPostStep installs every deferred FK (when opts.CreateForeignKeys is
// set) and resyncs identity sequences for successfully-loaded tables. A
// failure of either is reported as a PhasePostStep event carrying the
// error; table results are left unchanged.
func (o *Orchestrator) runPostStep(ctx context.Context, selected []string, byName map[string]engine.TableDescriptor, deferredFK []string, opts Options, results map[string]engine.TableResult) {
	if opts.CreateForeignKeys {
		for _, stmt := range deferredFK {
			if _, err := o.TargetConn.Execute(ctx, stmt); err != nil {
				o.emit(Event{Phase: PhasePostStep, Err: fmt.Errorf("installing foreign key: %w", err)})
			}
		}
	}

	for _, name := range selected {
		res := results[name]
		if res.Status != engine.StatusSuccess {
			continue
		}
		for _, col := range byName[name].Columns {
			if !col.IsIdentity {
				continue
			}
			stmt := o.TargetDialect.SequenceResyncSQL(name, col.Name)
			if _, err := o.TargetConn.Execute(ctx, stmt); err != nil {
				o.emit(Event{Phase: PhasePostStep, Table: name, Err: fmt.Errorf("resyncing sequence: %w", err)})
			}
		}
	}
}

func (o *Orchestrator) buildResult(results map[string]engine.TableResult, start time.Time) engine.MigrationResult {
	var out engine.MigrationResult
	for _, res := range results {
		out.Tables = append(out.Tables, res)
		out.TotalRows += res.Rows
		switch res.Status {
		case engine.StatusSuccess:
			out.TablesOK++
		case engine.StatusFailed:
			out.TablesFailed++
		}
	}
	out.Duration = time.Since(start).Seconds()
	return out
}
