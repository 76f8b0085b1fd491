package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbbridge/dbbridge/engine"
)

func (d *Dialect) IntrospectTables(ctx context.Context, conn engine.Connector) ([]string, error) {
	c := conn.(*Connector)
	rows, err := c.DB().QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, c.Schema())
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
	query := `
		SELECT
			c.column_name, c.data_type, c.is_nullable, c.column_default,
			c.ordinal_position, COALESCE(pgd.description, '')
		FROM information_schema.columns c
		LEFT JOIN pg_catalog.pg_statio_all_tables st
			ON st.schemaname = c.table_schema AND st.relname = c.table_name
		LEFT JOIN pg_catalog.pg_description pgd
			ON pgd.objoid = st.relid AND pgd.objsubid = c.ordinal_position
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`

	rows, err := c.DB().QueryContext(ctx, query, c.Schema(), table)
	if err != nil {
		return nil, fmt.Errorf("introspecting columns for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	var cols []engine.ColumnDescriptor
	for rows.Next() {
		var name, dataType, nullable, comment string
		var def sql.NullString
		var ordinal int
		if err := rows.Scan(&name, &dataType, &nullable, &def, &ordinal, &comment); err != nil {
			return nil, err
		}
		col := engine.ColumnDescriptor{
			Name:       name,
			SourceType: dataType,
			Nullable:   nullable == "YES",
			Ordinal:    ordinal - 1,
			Comment:    comment,
		}
		if def.Valid {
			if isSerialDefault(def.String) {
				col.IsIdentity = true
			} else {
				col.Default = &engine.ColumnDefault{Raw: normalizeDefault(def.String), Provenance: engine.DefaultLiteral}
			}
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

// isSerialDefault recognizes the nextval(...) default PostgreSQL assigns a
// SERIAL/BIGSERIAL column so it round-trips through introspection without
// being mistaken for an ordinary literal default.
func isSerialDefault(defaultVal string) bool {
	return strings.HasPrefix(defaultVal, "nextval(") && strings.Contains(defaultVal, "_seq")
}

func normalizeDefault(defaultVal string) string {
	if idx := strings.LastIndex(defaultVal, "::"); idx > 0 {
		before := defaultVal[:idx]
		if strings.Count(before, "'")%2 == 0 {
			return before
		}
	}
	return defaultVal
}

func (d *Dialect) IntrospectIndexes(ctx context.Context, conn engine.Connector, table string) ([]engine.IndexDescriptor, error) {
	c := conn.(*Connector)
	query := `
		SELECT
			ix.relname AS index_name,
			a.attname AS column_name,
			i.indisunique,
			i.indisprimary,
			array_position(i.indkey, a.attnum) AS key_position
		FROM pg_index i
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_class ix ON ix.oid = i.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(i.indkey)
		WHERE n.nspname = $1 AND t.relname = $2
		ORDER BY ix.relname, key_position`

	rows, err := c.DB().QueryContext(ctx, query, c.Schema(), table)
	if err != nil {
		return nil, fmt.Errorf("introspecting indexes for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	order := []string{}
	byName := map[string]*engine.IndexDescriptor{}
	for rows.Next() {
		var name, col string
		var unique, primary bool
		var pos int
		if err := rows.Scan(&name, &col, &unique, &primary, &pos); err != nil {
			return nil, err
		}
		idx, ok := byName[name]
		if !ok {
			idx = &engine.IndexDescriptor{Name: name, Unique: unique, PrimaryKey: primary}
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
	query := `
		SELECT
			tc.constraint_name, kcu.column_name, ccu.table_name,
			ccu.column_name, rc.update_rule, rc.delete_rule
		FROM information_schema.table_constraints AS tc
		JOIN information_schema.key_column_usage AS kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage AS ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		JOIN information_schema.referential_constraints AS rc
			ON rc.constraint_name = tc.constraint_name AND rc.constraint_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := c.DB().QueryContext(ctx, query, c.Schema(), table)
	if err != nil {
		return nil, fmt.Errorf("introspecting foreign keys for %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	order := []string{}
	byName := map[string]*engine.ForeignKeyDescriptor{}
	for rows.Next() {
		var name, col, refTable, refCol, onUpdate, onDelete string
		if err := rows.Scan(&name, &col, &refTable, &refCol, &onUpdate, &onDelete); err != nil {
			return nil, err
		}
		fk, ok := byName[name]
		if !ok {
			fk = &engine.ForeignKeyDescriptor{Name: name, ReferencedTable: refTable, OnUpdate: onUpdate, OnDelete: onDelete}
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

var _ engine.Connector = (*Connector)(nil)
