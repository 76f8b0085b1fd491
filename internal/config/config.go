// Package config loads the TOML configuration document consumed by the
// cmd/dbbridge CLI wrapper. The core (engine, internal/translator,
// internal/pipeline, internal/orchestrator, and the root dbbridge
// package) never reads this document directly — it is parsed here and
// handed to the core as plain Go values (engine.ConnectionConfig,
// orchestrator.Options).
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/dbbridge/dbbridge/engine"
)

// ConnectionSection mirrors the "source"/"target" TOML tables.
type ConnectionSection struct {
	Type     string            `toml:"type"`
	Host     string            `toml:"host"`
	Port     int               `toml:"port"`
	Username string            `toml:"username"`
	Password string            `toml:"password"`
	Database string            `toml:"database"`
	Schema   string            `toml:"schema"`
	Options  map[string]string `toml:"options"`
}

// OptionsSection mirrors the "options" TOML table.
type OptionsSection struct {
	Tables             []string          `toml:"tables"`
	ExcludeTables      []string          `toml:"exclude_tables"`
	BatchSize          int               `toml:"batch_size"`
	Workers            int               `toml:"workers"`
	DropTarget         *bool             `toml:"drop_target"`
	MigrateIndexes     *bool             `toml:"migrate_indexes"`
	MigrateForeignKeys *bool             `toml:"migrate_foreign_keys"`
	WhereClauses       map[string]string `toml:"where_clauses"`
	StopOnError        bool              `toml:"stop_on_error"`
	CommitEvery        int               `toml:"commit_every"`
}

// TypeMappingsSection lists literal overrides keyed "source_kind" or
// "source_kind(modifier)", e.g. `enum = "varchar(32)"`.
type TypeMappingsSection map[string]string

// LoggingSection mirrors the "logging" TOML table.
type LoggingSection struct {
	Level string `toml:"level"`
	Color *bool  `toml:"color"`
}

// Document is the parsed lockplane-derived TOML document: source, target,
// options, type_mappings, logging, exactly the sections spec.md §6 names.
type Document struct {
	Source       ConnectionSection   `toml:"source"`
	Target       ConnectionSection   `toml:"target"`
	Options      OptionsSection      `toml:"options"`
	TypeMappings TypeMappingsSection `toml:"type_mappings"`
	Logging      LoggingSection      `toml:"logging"`
}

// ConfigError reports a fatal configuration problem: missing/invalid
// credentials, an unknown engine tag, or conflicting selection patterns.
// It is always fatal at cmd/dbbridge pre-flight.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Message }

// Load reads and parses path, resolving ${VAR} placeholders in
// credential fields against the process environment (optionally seeded
// from a sibling .env file via LoadDotenv first).
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var doc Document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	doc.Source.Password = resolvePlaceholder(doc.Source.Password)
	doc.Target.Password = resolvePlaceholder(doc.Target.Password)
	doc.Source.Username = resolvePlaceholder(doc.Source.Username)
	doc.Target.Username = resolvePlaceholder(doc.Target.Username)

	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// LoadDotenv loads KEY=VALUE pairs from a .env file (if present) into the
// process environment, so ${VAR}-style placeholders in the TOML document
// resolve without requiring the caller to export them manually. A missing
// file is not an error; godotenv.Load only fails on a malformed file.
func LoadDotenv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return &ConfigError{Message: fmt.Sprintf("reading %s: %v", path, err)}
	}
	return nil
}

// resolvePlaceholder expands a "${VAR}"-shaped value against the process
// environment; any other value passes through unchanged.
func resolvePlaceholder(value string) string {
	if len(value) > 3 && value[0:2] == "${" && value[len(value)-1] == '}' {
		if v, ok := os.LookupEnv(value[2 : len(value)-1]); ok {
			return v
		}
	}
	return value
}

// Validate checks the fields Load cannot verify structurally: both
// connection sections name a recognized engine, and the source/target
// engine tags are not identical (a same-engine "migration" is out of
// scope for this tool).
func Validate(doc *Document) error {
	for _, section := range []struct {
		name string
		conn ConnectionSection
	}{{"source", doc.Source}, {"target", doc.Target}} {
		switch section.conn.Type {
		case "mysql", "postgres":
		case "":
			return &ConfigError{Message: fmt.Sprintf("%s.type is required", section.name)}
		default:
			return &ConfigError{Message: fmt.Sprintf("%s.type %q is not a recognized engine", section.name, section.conn.Type)}
		}
		if section.conn.Host == "" {
			return &ConfigError{Message: fmt.Sprintf("%s.host is required", section.name)}
		}
		if section.conn.Database == "" {
			return &ConfigError{Message: fmt.Sprintf("%s.database is required", section.name)}
		}
	}
	if doc.Source.Type == doc.Target.Type {
		return &ConfigError{Message: "source and target must be different engines"}
	}
	for _, t := range doc.Options.Tables {
		for _, x := range doc.Options.ExcludeTables {
			if t == x {
				return &ConfigError{Message: fmt.Sprintf("table %q is both included and excluded", t)}
			}
		}
	}
	return nil
}

// ConnectionConfig converts a parsed section into the engine package's
// connection parameters.
func (s ConnectionSection) ConnectionConfig() engine.ConnectionConfig {
	return engine.ConnectionConfig{
		Type:     s.Type,
		Host:     s.Host,
		Port:     s.Port,
		Username: s.Username,
		Password: s.Password,
		Database: s.Database,
		Schema:   s.Schema,
		Options:  s.Options,
	}
}

// BoolOr returns *b if set, else def — the TOML booleans that default to
// true (drop_target, migrate_indexes, migrate_foreign_keys) use a pointer
// so "unset" and "explicitly false" are distinguishable.
func BoolOr(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}

// FindConfigPath walks up from the working directory looking for a file
// named name, stopping at the first directory that also contains a
// go.mod or .git marker — the same project-boundary heuristic the
// teacher's own config loader used for lockplane.toml.
func FindConfigPath(name string) (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		if isProjectRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", &ConfigError{Message: fmt.Sprintf("%s not found", name)}
}

func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	return false
}
