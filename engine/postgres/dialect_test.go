package postgres

import (
	"strings"
	"testing"

	"github.com/dbbridge/dbbridge/engine"
)

func TestDialect_QuoteIdent(t *testing.T) {
	d := NewDialect(false)
	if got := d.QuoteIdent("order"); got != `"order"` {
		t.Errorf("QuoteIdent = %s, want \"order\"", got)
	}
	if got := d.QuoteIdent(`weird"name`); got != `"weird""name"` {
		t.Errorf("QuoteIdent did not escape embedded quote, got %s", got)
	}
}

func TestDialect_Placeholder(t *testing.T) {
	d := NewDialect(false)
	if got := d.Placeholder(3); got != "$3" {
		t.Errorf("Placeholder(3) = %s, want $3", got)
	}
}

func TestDialect_CreateTableSQL_IdentityAndPK(t *testing.T) {
	d := NewDialect(false)
	table := engine.TableDescriptor{
		Name: "users",
		Columns: []engine.ColumnDescriptor{
			{Name: "id", Kind: engine.KindInt64, IsIdentity: true},
			{Name: "email", Kind: engine.KindVarchar, Precision: 255},
		},
	}

	stmts := d.CreateTableSQL(table, false)
	if len(stmts) != 1 {
		t.Fatalf("expected a single CREATE TABLE statement, got %d", len(stmts))
	}
	sql := stmts[0]
	if !strings.Contains(sql, `"id" BIGSERIAL`) {
		t.Errorf("expected BIGSERIAL identity column, got: %s", sql)
	}
	if !strings.Contains(sql, `PRIMARY KEY ("id")`) {
		t.Errorf("expected inline primary key clause, got: %s", sql)
	}
}

func TestDialect_CreateTableSQL_DropFirst(t *testing.T) {
	d := NewDialect(false)
	table := engine.TableDescriptor{Name: "users"}
	stmts := d.CreateTableSQL(table, true)
	if !strings.Contains(stmts[0], "DROP TABLE IF EXISTS") || !strings.Contains(stmts[0], "CASCADE") {
		t.Errorf("expected a leading DROP TABLE IF EXISTS ... CASCADE statement, got: %v", stmts[0])
	}
}

func TestDisambiguateIndexName(t *testing.T) {
	seen := map[string]bool{}

	first := DisambiguateIndexName("orders", "idx_created_at", seen)
	if first != "idx_created_at" {
		t.Errorf("first use should pass through unchanged, got %s", first)
	}

	second := DisambiguateIndexName("invoices", "idx_created_at", seen)
	if second == "idx_created_at" {
		t.Error("a name colliding across tables should be disambiguated")
	}
	if !strings.HasPrefix(second, "idx_created_at_") {
		t.Errorf("disambiguated name should keep the original as a prefix, got %s", second)
	}
}

func TestBulkInsertSQL_PlaceholderNumbering(t *testing.T) {
	d := NewDialect(false)
	sql := d.BulkInsertSQL("users", []string{"id", "email"}, 2)
	if !strings.Contains(sql, "($1, $2), ($3, $4)") {
		t.Errorf("expected sequential placeholders across rows, got: %s", sql)
	}
}

func TestSequenceResyncSQL(t *testing.T) {
	d := NewDialect(false)
	sql := d.SequenceResyncSQL("users", "id")
	if !strings.Contains(sql, "setval") || !strings.Contains(sql, "users_id_seq") {
		t.Errorf("expected a setval call against users_id_seq, got: %s", sql)
	}
}

func TestSupportsFeature(t *testing.T) {
	d := NewDialect(false)
	if !d.SupportsFeature("deferrable_fk") {
		t.Error("postgres should support deferrable foreign keys")
	}
	if d.SupportsFeature("not_a_real_feature") {
		t.Error("unknown feature should default to unsupported")
	}
}
