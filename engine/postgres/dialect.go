package postgres

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/dbbridge/dbbridge/engine"
	"github.com/dbbridge/dbbridge/internal/typemap"
)

// Dialect implements engine.Dialect for PostgreSQL targets. EnumAsNative
// selects native CREATE TYPE ... AS ENUM rendering for typemap.KindEnum
// columns instead of the default VARCHAR(n) fallback.
type Dialect struct {
	EnumAsNative bool
}

func NewDialect(enumAsNative bool) *Dialect { return &Dialect{EnumAsNative: enumAsNative} }

func (d *Dialect) Name() string { return "postgres" }

func (d *Dialect) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (d *Dialect) Placeholder(position int) string {
	return fmt.Sprintf("$%d", position)
}

func (d *Dialect) CreateTableSQL(t engine.TableDescriptor, dropFirst bool) []string {
	var stmts []string
	qualified := d.QuoteIdent(t.Name)
	if dropFirst {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", qualified))
	}

	var lines []string
	var pkCols []string
	for _, c := range t.Columns {
		lines = append(lines, d.columnDefinitionSQL(c))
		if c.IsIdentity {
			pkCols = append(pkCols, c.Name)
		}
	}
	for _, idx := range t.Indexes {
		if idx.PrimaryKey {
			pkCols = idx.Columns
		}
	}
	if len(pkCols) > 0 {
		quoted := make([]string, len(pkCols))
		for i, c := range pkCols {
			quoted[i] = d.QuoteIdent(c)
		}
		lines = append(lines, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(quoted, ", ")))
	}

	stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", qualified, strings.Join(lines, ",\n  ")))
	return stmts
}

func (d *Dialect) columnDefinitionSQL(c engine.ColumnDescriptor) string {
	var sb strings.Builder
	sb.WriteString(d.QuoteIdent(c.Name))
	sb.WriteString(" ")

	mapped := typemap.MappedColumn{ColumnDescriptor: c, OverrideToken: c.OverrideToken}
	if c.IsIdentity {
		sb.WriteString(d.identityTypeToken(c))
	} else {
		sb.WriteString(typemap.Render(mapped, d.EnumAsNative))
	}

	if !c.Nullable {
		sb.WriteString(" NOT NULL")
	}
	if c.Default != nil {
		sb.WriteString(" DEFAULT ")
		raw := c.Default.Raw
		// Re-quote literal defaults that are neither numeric nor already
		// single-quoted; function defaults are written as-is.
		if c.Default.Provenance == engine.DefaultLiteral && !strings.HasPrefix(raw, "'") {
			if _, err := strconv.ParseFloat(raw, 64); err != nil {
				raw = quoteLiteral(raw)
			}
		}
		sb.WriteString(raw)
	}
	return sb.String()
}

// identityTypeToken renders SERIAL for a 32-bit identity and BIGSERIAL for
// a 64-bit one; anything narrower still needs room to grow, so it rounds
// up rather than truncating to SMALLSERIAL.
func (d *Dialect) identityTypeToken(c engine.ColumnDescriptor) string {
	if c.Kind == engine.KindInt64 {
		return "BIGSERIAL"
	}
	return "SERIAL"
}

func (d *Dialect) IdentitySQL(c engine.ColumnDescriptor) string {
	return d.identityTypeToken(c)
}

func (d *Dialect) CreateIndexSQL(table string, idx engine.IndexDescriptor) string {
	cols := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		cols[i] = d.QuoteIdent(c)
	}
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)",
		unique, d.QuoteIdent(idx.Name), d.QuoteIdent(table), strings.Join(cols, ", "))
}

// DisambiguateIndexName appends a short content hash to name when it
// collides with one already seen in this run, so two source tables whose
// index names happen to coincide (common with generic names like
// "idx_created_at") don't fight over a single PostgreSQL namespace. seen
// is keyed on the bare index name, since PostgreSQL's index namespace is
// shared per-schema, not per-table.
func DisambiguateIndexName(table, name string, seen map[string]bool) string {
	if !seen[name] {
		seen[name] = true
		return name
	}
	sum := sha256.Sum256([]byte(table + "." + name))
	suffix := hex.EncodeToString(sum[:])[:8]
	disambiguated := name + "_" + suffix
	seen[disambiguated] = true
	return disambiguated
}

func (d *Dialect) AddForeignKeySQL(table string, fk engine.ForeignKeyDescriptor) string {
	cols := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		cols[i] = d.QuoteIdent(c)
	}
	refCols := make([]string, len(fk.ReferencedColumns))
	for i, c := range fk.ReferencedColumns {
		refCols[i] = d.QuoteIdent(c)
	}
	sql := fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QuoteIdent(table), d.QuoteIdent(fk.Name), strings.Join(cols, ", "),
		d.QuoteIdent(fk.ReferencedTable), strings.Join(refCols, ", "))
	if fk.OnDelete != "" {
		sql += " ON DELETE " + fk.OnDelete
	}
	if fk.OnUpdate != "" {
		sql += " ON UPDATE " + fk.OnUpdate
	}
	sql += " DEFERRABLE INITIALLY DEFERRED"
	return sql
}

func (d *Dialect) BulkInsertSQL(table string, columns []string, rowCount int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}
	rows := make([]string, rowCount)
	for r := 0; r < rowCount; r++ {
		placeholders := make([]string, len(columns))
		for i := range columns {
			placeholders[i] = d.Placeholder(r*len(columns) + i + 1)
		}
		rows[r] = "(" + strings.Join(placeholders, ", ") + ")"
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s",
		d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(rows, ", "))
}

// SequenceResyncSQL advances the SERIAL/BIGSERIAL sequence backing column
// past the highest value just loaded, so the next application insert
// doesn't collide with migrated data.
func (d *Dialect) SequenceResyncSQL(table, column string) string {
	seq := fmt.Sprintf("%s_%s_seq", table, column)
	return fmt.Sprintf(
		"SELECT setval(%s, COALESCE((SELECT MAX(%s) FROM %s), 1), (SELECT MAX(%s) FROM %s) IS NOT NULL)",
		quoteLiteral(seq), d.QuoteIdent(column), d.QuoteIdent(table), d.QuoteIdent(column), d.QuoteIdent(table))
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func (d *Dialect) SupportsFeature(feature string) bool {
	switch feature {
	case "deferrable_fk":
		return true
	case "truncate_cascade":
		return true
	case "native_enum":
		return true
	default:
		return false
	}
}

var _ engine.Dialect = (*Dialect)(nil)
