package typemap

import (
	"strings"

	"github.com/dbbridge/dbbridge/engine"
)

// ZeroDateBehavior selects what a MySQL zero-date default
// ("0000-00-00" / "0000-00-00 00:00:00") translates to.
type ZeroDateBehavior int

const (
	// ZeroDateToNull is the default: translate to NULL and emit a
	// Warning. The source repo this spec was distilled from handled
	// zero-dates inconsistently across code paths; silently substituting
	// an epoch value would hide that inconsistency rather than surface
	// it.
	ZeroDateToNull ZeroDateBehavior = iota
	ZeroDateToEpoch
)

// Warning is a non-fatal note produced while rewriting a default
// expression. The translator collects them in Plan.Warnings; the
// orchestrator does not pass them on to the progress callback.
type Warning struct {
	Column  string
	Message string
}

var zeroDateLiterals = map[string]bool{
	"0000-00-00":          true,
	"0000-00-00 00:00:00": true,
}

var functionRewrites = map[string]string{
	"current_timestamp":   "CURRENT_TIMESTAMP",
	"current_timestamp()": "CURRENT_TIMESTAMP",
	"now()":               "CURRENT_TIMESTAMP",
	"localtime":           "CURRENT_TIMESTAMP",
	"localtimestamp":      "CURRENT_TIMESTAMP",
}

// RewriteDefault translates a source default expression into its target
// (PostgreSQL) form. Literal values pass through unchanged (re-quoting is
// left to the dialect that renders the column definition); engine-function
// defaults are looked up in the rewrite
// table; MySQL's zero-date sentinel is special-cased per behavior.
func RewriteDefault(col string, def *engine.ColumnDefault, behavior ZeroDateBehavior) (*engine.ColumnDefault, *Warning) {
	if def == nil {
		return nil, nil
	}

	raw := strings.TrimSpace(def.Raw)
	lower := strings.ToLower(strings.Trim(raw, "'\""))

	if zeroDateLiterals[lower] {
		if behavior == ZeroDateToEpoch {
			return &engine.ColumnDefault{Raw: "'epoch'", Provenance: engine.DefaultFunction}, nil
		}
		return nil, &Warning{
			Column:  col,
			Message: "zero-date default '" + raw + "' has no valid PostgreSQL equivalent; dropped to NULL",
		}
	}

	if def.Provenance == engine.DefaultFunction {
		if rewritten, ok := functionRewrites[strings.ToLower(raw)]; ok {
			return &engine.ColumnDefault{Raw: rewritten, Provenance: engine.DefaultFunction}, nil
		}
		// Unrecognized engine function: pass through verbatim and let the
		// target reject it at DDL time if it truly has no equivalent,
		// rather than silently dropping a default the author relied on.
		return &engine.ColumnDefault{Raw: raw, Provenance: engine.DefaultFunction}, nil
	}

	return &engine.ColumnDefault{Raw: raw, Provenance: engine.DefaultLiteral}, nil
}
