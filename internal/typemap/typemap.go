// Package typemap is the TypeMapper component: a pure function table that
// translates a source column descriptor (MySQL-family type token plus
// modifiers) into a dialect-neutral LogicalKind, and renders that kind
// into the target (PostgreSQL) dialect's type token. It never opens a
// connection and never emits SQL directly — DialectAdapter owns that.
package typemap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dbbridge/dbbridge/engine"
)

// OverrideKey identifies one (source kind, source modifier) pair a caller
// has supplied a literal target type token for. SourceModifier is matched
// against the source's lower-cased raw type token (e.g. "enum", or
// "tinyint(1)"); an empty SourceModifier matches any modifier for that
// kind.
type OverrideKey struct {
	SourceKind     string
	SourceModifier string
}

// OverrideTable is consulted before the built-in defaults.
type OverrideTable map[OverrideKey]string

// MappedColumn is a ColumnDescriptor whose Kind has been set to its
// logical classification, plus an optional literal token that the
// dialect must render verbatim instead of deriving one from Kind.
type MappedColumn struct {
	engine.ColumnDescriptor
	OverrideToken string
}

// UnmappedError names one column the mapper could not classify.
type UnmappedError struct {
	Column     string
	SourceType string
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("column %s: no mapping for source type %q", e.Column, e.SourceType)
}

var modifierRe = regexp.MustCompile(`^([a-zA-Z ]+)\s*(?:\(([^)]*)\))?\s*(unsigned)?`)

// parsedType is the result of tokenizing a raw MySQL type string such as
// "decimal(10,2) unsigned" or "varchar(255)".
type parsedType struct {
	base     string // lower-cased base token, e.g. "varchar", "decimal"
	args     []string
	unsigned bool
}

func parseSourceType(raw string) parsedType {
	raw = strings.TrimSpace(raw)
	m := modifierRe.FindStringSubmatch(raw)
	if m == nil {
		return parsedType{base: strings.ToLower(strings.TrimSpace(raw))}
	}
	p := parsedType{
		base:     strings.ToLower(strings.TrimSpace(m[1])),
		unsigned: m[3] != "" || strings.Contains(strings.ToLower(raw), "unsigned"),
	}
	if m[2] != "" {
		for _, a := range strings.Split(m[2], ",") {
			p.args = append(p.args, strings.TrimSpace(a))
		}
	}
	return p
}

func (p parsedType) intArg(i int) int {
	if i >= len(p.args) {
		return 0
	}
	n, _ := strconv.Atoi(p.args[i])
	return n
}

// Map classifies a MySQL-family source column into a LogicalKind and
// populates Precision/Scale/EnumValues as applicable. Overrides are
// consulted first, keyed on the source's base type token; a match there
// still classifies a Kind (so the pipeline/translator invariants hold)
// but also sets OverrideToken, which the postgres dialect renders
// verbatim in place of the kind-derived token.
func Map(col engine.ColumnDescriptor, overrides OverrideTable) (MappedColumn, error) {
	p := parseSourceType(col.SourceType)
	out := MappedColumn{ColumnDescriptor: col}

	if tok, ok := lookupOverride(overrides, p.base, col.SourceType); ok {
		out.OverrideToken = tok
	}

	switch p.base {
	case "tinyint":
		if p.intArg(0) == 1 {
			out.Kind = engine.KindBool
		} else {
			out.Kind = engine.KindInt8
		}
	case "bit":
		if p.intArg(0) == 1 {
			out.Kind = engine.KindBool
		} else {
			out.Kind = engine.KindBytes
		}
	case "smallint", "year":
		out.Kind = engine.KindInt16
	case "int", "integer", "mediumint":
		out.Kind = engine.KindInt32
	case "bigint":
		out.Kind = engine.KindInt64
	case "decimal", "numeric", "dec", "fixed":
		out.Kind = engine.KindDecimal
		out.Precision = p.intArg(0)
		out.Scale = p.intArg(1)
		if out.Precision == 0 {
			out.Precision = 10
		}
	case "float":
		out.Kind = engine.KindFloat32
	case "double", "double precision", "real":
		out.Kind = engine.KindFloat64
	case "char", "nchar":
		out.Kind = engine.KindChar
		out.Precision = p.intArg(0)
		if out.Precision == 0 {
			out.Precision = 1
		}
	case "varchar", "nvarchar":
		out.Kind = engine.KindVarchar
		out.Precision = p.intArg(0)
		if out.Precision == 0 {
			out.Precision = 255
		}
	case "text", "tinytext", "mediumtext", "longtext":
		out.Kind = engine.KindText
	case "blob", "tinyblob", "mediumblob", "longblob", "varbinary", "binary":
		out.Kind = engine.KindBytes
		if p.base == "binary" && p.intArg(0) == 16 {
			out.Kind = engine.KindUUID
		}
	case "date":
		out.Kind = engine.KindDate
	case "time":
		out.Kind = engine.KindTime
	case "datetime":
		out.Kind = engine.KindDateTime
	case "timestamp":
		out.Kind = engine.KindTimestampTZ
	case "json":
		out.Kind = engine.KindJSON
	case "enum":
		out.Kind = engine.KindEnum
		out.EnumValues = make([]string, len(p.args))
		for i, a := range p.args {
			out.EnumValues[i] = strings.Trim(strings.TrimSpace(a), "'")
		}
	default:
		out.Kind = engine.KindUnknown
	}

	if p.base == "char" && out.Precision == 36 {
		// CHAR(36) is the canonical MySQL stand-in for a textual UUID.
		out.Kind = engine.KindUUID
	}

	if out.Kind == engine.KindUnknown && out.OverrideToken == "" {
		return out, &UnmappedError{Column: col.Name, SourceType: col.SourceType}
	}
	// Identity-column DDL rendering (SERIAL/BIGSERIAL vs a plain integer
	// type) is delegated to the dialect, which reads IsIdentity off the
	// descriptor directly.
	return out, nil
}

func lookupOverride(overrides OverrideTable, base, raw string) (string, bool) {
	if overrides == nil {
		return "", false
	}
	if tok, ok := overrides[OverrideKey{SourceKind: base, SourceModifier: strings.ToLower(strings.TrimSpace(raw))}]; ok {
		return tok, true
	}
	if tok, ok := overrides[OverrideKey{SourceKind: base}]; ok {
		return tok, true
	}
	return "", false
}

// Render renders a LogicalKind into its default PostgreSQL column-type
// token. enumAsNative selects PostgreSQL's native CREATE TYPE ... AS ENUM
// mechanism for KindEnum instead of the default VARCHAR(n) rendering,
// where n is the longest enum value's length (at least 8). No CHECK
// constraint restricting the column to the enum values is emitted.
func Render(m MappedColumn, enumAsNative bool) string {
	if m.OverrideToken != "" {
		return m.OverrideToken
	}
	switch m.Kind {
	case engine.KindInt8:
		return "SMALLINT"
	case engine.KindInt16:
		return "SMALLINT"
	case engine.KindInt32:
		return "INTEGER"
	case engine.KindInt64:
		return "BIGINT"
	case engine.KindDecimal:
		if m.Scale > 0 {
			return fmt.Sprintf("DECIMAL(%d,%d)", m.Precision, m.Scale)
		}
		return fmt.Sprintf("DECIMAL(%d)", m.Precision)
	case engine.KindFloat32:
		return "REAL"
	case engine.KindFloat64:
		return "DOUBLE PRECISION"
	case engine.KindBool:
		return "BOOLEAN"
	case engine.KindChar:
		return fmt.Sprintf("CHAR(%d)", m.Precision)
	case engine.KindVarchar:
		return fmt.Sprintf("VARCHAR(%d)", m.Precision)
	case engine.KindText:
		return "TEXT"
	case engine.KindBytes:
		return "BYTEA"
	case engine.KindDate:
		return "DATE"
	case engine.KindTime:
		return "TIME"
	case engine.KindDateTime:
		return "TIMESTAMP"
	case engine.KindTimestampTZ:
		return "TIMESTAMPTZ"
	case engine.KindJSON:
		return "JSONB"
	case engine.KindEnum:
		if enumAsNative {
			return "" // caller emits CREATE TYPE + references it by name
		}
		n := 0
		for _, v := range m.EnumValues {
			if len(v) > n {
				n = len(v)
			}
		}
		if n < 8 {
			n = 8
		}
		return fmt.Sprintf("VARCHAR(%d)", n)
	case engine.KindUUID:
		return "UUID"
	default:
		return "TEXT"
	}
}
