package orchestrator

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// StderrProgress returns an Event callback that renders each phase
// transition to w (typically os.Stderr) in the same terse, colored style
// lockplane's apply/executor commands use. It is the default sink
// cmd/dbbridge wires up when --quiet is not set.
func StderrProgress(w io.Writer) func(Event) {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)

	return func(ev Event) {
		switch ev.Phase {
		case PhaseDDL:
			_, _ = cyan.Fprintf(w, "  [%s] creating schema\n", ev.Table)
		case PhaseData:
			if ev.RowsMoved > 0 {
				_, _ = cyan.Fprintf(w, "  [%s] %d rows moved\n", ev.Table, ev.RowsMoved)
			}
		case PhaseDone:
			if ev.Err != nil {
				_, _ = red.Fprintf(w, "  [%s] failed: %v\n", ev.Table, ev.Err)
			} else {
				_, _ = green.Fprintf(w, "  [%s] done\n", ev.Table)
			}
		case PhasePostStep:
			_, _ = cyan.Fprintf(w, "installing deferred foreign keys and resyncing sequences\n")
		case PhaseCancelled:
			_, _ = yellow.Fprintf(w, "  [%s] cancelled\n", ev.Table)
		default:
			_, _ = fmt.Fprintf(w, "  [%s] %s\n", ev.Table, ev.Phase)
		}
	}
}
