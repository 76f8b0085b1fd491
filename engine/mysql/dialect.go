package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbbridge/dbbridge/engine"
)

// Dialect implements engine.Dialect for MySQL-family sources. Only the
// introspection and quoting surface is load-bearing for this spec (MySQL
// is always the source engine); the DDL-emission methods are implemented
// for interface completeness and for tests that round-trip against a
// MySQL fixture.
type Dialect struct{}

func NewDialect() *Dialect { return &Dialect{} }

func (d *Dialect) Name() string { return "mysql" }

func (d *Dialect) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (d *Dialect) Placeholder(int) string { return "?" }

func (d *Dialect) IntrospectTables(ctx context.Context, conn engine.Connector) ([]string, error) {
	c := conn.(*Connector)
	rows, err := c.DB().QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (d *Dialect) IntrospectColumns(ctx context.Context, conn engine.Connector, table string) ([]engine.ColumnDescriptor, error) {
	c := conn.(*Connector)
	rows, err := c.DB().QueryContext(ctx, `
		SELECT
			column_name, column_type, is_nullable, column_default,
			extra, ordinal_position, column_comment
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []engine.ColumnDescriptor
	for rows.Next() {
		var name, colType, nullable, extra, comment string
		var def sql.NullString
		var ordinal int
		if err := rows.Scan(&name, &colType, &nullable, &def, &extra, &ordinal, &comment); err != nil {
			return nil, err
		}
		col := engine.ColumnDescriptor{
			Name:       name,
			SourceType: colType,
			Nullable:   strings.EqualFold(nullable, "YES"),
			Ordinal:    ordinal - 1,
			Comment:    comment,
			IsIdentity: strings.Contains(strings.ToLower(extra), "auto_increment"),
		}
		if def.Valid {
			prov := engine.DefaultLiteral
			if isFunctionDefault(def.String) {
				prov = engine.DefaultFunction
			}
			col.Default = &engine.ColumnDefault{Raw: def.String, Provenance: prov}
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func isFunctionDefault(raw string) bool {
	lower := strings.ToLower(strings.TrimSpace(raw))
	return strings.Contains(lower, "current_timestamp") || strings.HasSuffix(lower, "()")
}

func (d *Dialect) IntrospectIndexes(ctx context.Context, conn engine.Connector, table string) ([]engine.IndexDescriptor, error) {
	c := conn.(*Connector)
	rows, err := c.DB().QueryContext(ctx, `
		SELECT index_name, column_name, non_unique, seq_in_index
		FROM information_schema.statistics
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY index_name, seq_in_index`, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting indexes for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	order := []string{}
	byName := map[string]*engine.IndexDescriptor{}
	for rows.Next() {
		var name, col string
		var nonUnique, seq int
		if err := rows.Scan(&name, &col, &nonUnique, &seq); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &engine.IndexDescriptor{
				Name:       name,
				Unique:     nonUnique == 0,
				PrimaryKey: name == "PRIMARY",
			}
			byName[name] = idx
			order = append(order, name)
		}
		idx.Columns = append(idx.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]engine.IndexDescriptor, 0, len(order))
	var pk *engine.IndexDescriptor
	for _, name := range order {
		idx := byName[name]
		if idx.PrimaryKey {
			pk = idx
			continue
		}
		result = append(result, *idx)
	}
	if pk != nil {
		result = append([]engine.IndexDescriptor{*pk}, result...)
	}
	return result, nil
}

func (d *Dialect) IntrospectForeignKeys(ctx context.Context, conn engine.Connector, table string) ([]engine.ForeignKeyDescriptor, error) {
	c := conn.(*Connector)
	rows, err := c.DB().QueryContext(ctx, `
		SELECT
			k.constraint_name, k.column_name, k.referenced_table_name,
			k.referenced_column_name, r.update_rule, r.delete_rule, k.ordinal_position
		FROM information_schema.key_column_usage k
		JOIN information_schema.referential_constraints r
			ON r.constraint_schema = k.constraint_schema
			AND r.constraint_name = k.constraint_name
		WHERE k.table_schema = DATABASE() AND k.table_name = ?
			AND k.referenced_table_name IS NOT NULL
		ORDER BY k.constraint_name, k.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("introspecting foreign keys for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	order := []string{}
	byName := map[string]*engine.ForeignKeyDescriptor{}
	for rows.Next() {
		var name, col, refTable, refCol, onUpdate, onDelete string
		var ord int
		if err := rows.Scan(&name, &col, &refTable, &refCol, &onUpdate, &onDelete, &ord); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &engine.ForeignKeyDescriptor{
				Name:            name,
				ReferencedTable: refTable,
				OnUpdate:        onUpdate,
				OnDelete:        onDelete,
			}
			byName[name] = fk
			order = append(order, name)
		}
		fk.Columns = append(fk.Columns, col)
		fk.ReferencedColumns = append(fk.ReferencedColumns, refCol)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	result := make([]engine.ForeignKeyDescriptor, 0, len(order))
	for _, name := range order {
		result = append(result, *byName[name])
	}
	return result, nil
}

// The remaining methods give Dialect a complete engine.Dialect surface so
// MySQL fixtures can be exercised in tests without a second dialect; they
// are not used by the orchestrator, which always targets postgres.

func (d *Dialect) CreateTableSQL(t engine.TableDescriptor, dropFirst bool) []string {
	var stmts []string
	if dropFirst {
		stmts = append(stmts, fmt.Sprintf("DROP TABLE IF EXISTS %s", d.QuoteIdent(t.Name)))
	}
	var cols []string
	for _, c := range t.Columns {
		cols = append(cols, d.QuoteIdent(c.Name)+" "+c.SourceType)
	}
	stmts = append(stmts, fmt.Sprintf("CREATE TABLE %s (%s)", d.QuoteIdent(t.Name), strings.Join(cols, ", ")))
	return stmts
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
	return fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", unique, d.QuoteIdent(idx.Name), d.QuoteIdent(table), strings.Join(cols, ", "))
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
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) REFERENCES %s (%s)",
		d.QuoteIdent(table), d.QuoteIdent(fk.Name), strings.Join(cols, ", "), d.QuoteIdent(fk.ReferencedTable), strings.Join(refCols, ", "))
}

func (d *Dialect) BulkInsertSQL(table string, columns []string, rowCount int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = d.QuoteIdent(c)
	}
	rowPlaceholder := "(" + strings.Repeat("?,", len(columns)-1) + "?)"
	rows := make([]string, rowCount)
	for i := range rows {
		rows[i] = rowPlaceholder
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", d.QuoteIdent(table), strings.Join(quoted, ", "), strings.Join(rows, ", "))
}

func (d *Dialect) IdentitySQL(engine.ColumnDescriptor) string { return "AUTO_INCREMENT" }

func (d *Dialect) SequenceResyncSQL(table, column string) string {
	return fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = (SELECT MAX(%s)+1 FROM %s)",
		d.QuoteIdent(table), d.QuoteIdent(column), d.QuoteIdent(table))
}

func (d *Dialect) SupportsFeature(feature string) bool {
	switch feature {
	case "deferrable_fk":
		return false
	case "truncate_cascade":
		return true
	case "native_enum":
		return true
	default:
		return false
	}
}

var _ engine.Dialect = (*Dialect)(nil)
var _ engine.Connector = (*Connector)(nil)
