// Package translator implements the SchemaTranslator component: it turns a
// source TableDescriptor into target DDL (create-table, create-index,
// deferred create-fk) without ever opening a connection itself.
package translator

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/dbbridge/dbbridge/engine"
	"github.com/dbbridge/dbbridge/internal/typemap"
)

// Options configures one table's translation.
type Options struct {
	DropTarget   bool
	EnumAsNative bool
	ZeroDate     typemap.ZeroDateBehavior
	Overrides    typemap.OverrideTable
}

// Plan is the DDL SchemaTranslator emits for a single table.
type Plan struct {
	CreateTable []string // DROP (if requested) + CREATE TABLE
	CreateIndex []string // secondary indexes, PK excluded (inlined into CreateTable)
	CreateFK    []string // deferred; the orchestrator decides when to run these
	Warnings    []typemap.Warning
}

// seenNames tracks which index names have already been emitted across a
// run, so colliding names in the shared Postgres namespace get a
// deterministic disambiguating suffix. Shared across Translate calls by
// the orchestrator; a fresh Translator should be built once per run.
type Translator struct {
	dialect   engine.Dialect
	seenNames map[string]bool
}

func New(dialect engine.Dialect) *Translator {
	return &Translator{dialect: dialect, seenNames: map[string]bool{}}
}

// Translate runs the six-step algorithm: map every column (failing with
// one *engine.MappingError that lists every unmapped column), optionally
// drop the target table, emit the
// column list with identity/default clauses, inline the primary key, emit
// secondary indexes with collision-safe names, and return FK DDL as a
// deferred list the caller applies after all tables are loaded.
func (t *Translator) Translate(src engine.TableDescriptor, opts Options) (Plan, error) {
	mapped := make([]typemap.MappedColumn, len(src.Columns))
	var warnings []typemap.Warning
	var unmapped []string

	for i, col := range src.Columns {
		m, err := typemap.Map(col, opts.Overrides)
		if err != nil {
			unmapped = append(unmapped, col.Name)
			continue
		}
		if col.Default != nil {
			rewritten, warn := typemap.RewriteDefault(col.Name, col.Default, opts.ZeroDate)
			m.Default = rewritten
			if warn != nil {
				warnings = append(warnings, *warn)
			}
		}
		mapped[i] = m
	}
	if len(unmapped) > 0 {
		return Plan{}, &engine.MappingError{Table: src.Name, Columns: unmapped}
	}

	target := src
	target.Columns = make([]engine.ColumnDescriptor, len(mapped))
	for i, m := range mapped {
		col := m.ColumnDescriptor
		col.OverrideToken = m.OverrideToken
		target.Columns[i] = col
	}

	plan := Plan{Warnings: warnings}
	plan.CreateTable = t.dialect.CreateTableSQL(target, opts.DropTarget)

	for _, idx := range src.Indexes {
		if idx.PrimaryKey {
			continue
		}
		disambiguated := idx
		disambiguated.Name = t.disambiguate(src.Name, idx.Name)
		plan.CreateIndex = append(plan.CreateIndex, t.dialect.CreateIndexSQL(src.Name, disambiguated))
	}

	for _, fk := range src.ForeignKeys {
		plan.CreateFK = append(plan.CreateFK, t.dialect.AddForeignKeySQL(src.Name, fk))
	}

	return plan, nil
}

// disambiguate appends an 8-hex-digit sha256 suffix of the fully-qualified
// original name the first time an index name repeats across the run
// (across any source table), so generically-named indexes from different
// source tables don't collide once flattened into one target namespace.
// The seen-set is keyed on the bare index name, since PostgreSQL's index
// namespace is shared per-schema, not per-table.
func (t *Translator) disambiguate(table, name string) string {
	if !t.seenNames[name] {
		t.seenNames[name] = true
		return name
	}
	sum := sha256.Sum256([]byte(table + "." + name))
	suffix := hex.EncodeToString(sum[:])[:8]
	disambiguated := name + "_" + suffix
	t.seenNames[disambiguated] = true
	return disambiguated
}
