package config

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleDoc = `
[source]
type = "mysql"
host = "127.0.0.1"
port = 3306
username = "root"
password = "secret"
database = "shop"

[target]
type = "postgres"
host = "127.0.0.1"
port = 5432
username = "postgres"
password = "${TARGET_PASSWORD}"
database = "shop"

[options]
tables = ["user_*"]
exclude_tables = ["*_log"]
batch_size = 500
workers = 2

[type_mappings]
enum = "varchar(32)"

[logging]
level = "info"
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "dbbridge.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_ParsesAllSections(t *testing.T) {
	t.Setenv("TARGET_PASSWORD", "resolved-secret")
	path := writeTempConfig(t, sampleDoc)

	doc, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Source.Type != "mysql" || doc.Target.Type != "postgres" {
		t.Errorf("unexpected engine tags: source=%s target=%s", doc.Source.Type, doc.Target.Type)
	}
	if doc.Target.Password != "resolved-secret" {
		t.Errorf("expected ${TARGET_PASSWORD} to resolve, got %q", doc.Target.Password)
	}
	if len(doc.Options.Tables) != 1 || doc.Options.Tables[0] != "user_*" {
		t.Errorf("unexpected include patterns: %v", doc.Options.Tables)
	}
	if doc.TypeMappings["enum"] != "varchar(32)" {
		t.Errorf("expected enum override, got %v", doc.TypeMappings)
	}
}

func TestLoad_SameEngineIsRejected(t *testing.T) {
	body := `
[source]
type = "mysql"
host = "a"
database = "d"

[target]
type = "mysql"
host = "b"
database = "d"
`
	path := writeTempConfig(t, body)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error when source and target share an engine")
	}
}

func TestLoad_UnknownEngineTag(t *testing.T) {
	body := `
[source]
type = "oracle"
host = "a"
database = "d"

[target]
type = "postgres"
host = "b"
database = "d"
`
	path := writeTempConfig(t, body)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected an error for an unrecognized engine tag")
	}
	var cfgErr *ConfigError
	if e, ok := err.(*ConfigError); ok {
		cfgErr = e
	}
	if cfgErr == nil {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
}

func TestLoad_ConflictingSelectionPatterns(t *testing.T) {
	body := `
[source]
type = "mysql"
host = "a"
database = "d"

[target]
type = "postgres"
host = "b"
database = "d"

[options]
tables = ["users"]
exclude_tables = ["users"]
`
	path := writeTempConfig(t, body)
	if _, err := Load(path); err == nil {
		t.Fatal("expected an error for a table that is both included and excluded")
	}
}

func TestBoolOr(t *testing.T) {
	if !BoolOr(nil, true) {
		t.Error("nil pointer should fall back to the default")
	}
	f := false
	if BoolOr(&f, true) {
		t.Error("an explicit false should override the default")
	}
}

func TestFindConfigPath_WalksUpToProjectRoot(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module x\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "dbbridge.toml"), []byte(""), 0o600); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "cmd", "dbbridge")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	defer func() { _ = os.Chdir(wd) }()
	if err := os.Chdir(sub); err != nil {
		t.Fatal(err)
	}

	found, err := FindConfigPath("dbbridge.toml")
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(root, "dbbridge.toml")
	if found != want {
		t.Errorf("got %s, want %s", found, want)
	}
}
