package cli

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/aretw0/grove/pkg/domain"
)

// PrintOutcomes writes a per-item batch report followed by the summary.
// Successes print green, failures red, with graceful degradation on dumb
// terminals via termenv's profile detection.
func PrintOutcomes(w io.Writer, outcomes []domain.Outcome) domain.Summary {
	out := termenv.NewOutput(w)
	green := out.String("ok").Foreground(out.Color("2")).String()

	for _, o := range outcomes {
		label := o.Key
		if label == "" {
			label = fmt.Sprintf("#%d", o.Index)
		}

		if o.Failed() {
			status := out.String(string(o.FailureKind())).Foreground(out.Color("1")).String()
			fmt.Fprintf(w, "%-12s %-8s %s  %v\n", label, o.Op, status, o.Err)
			continue
		}
		if o.Value != "" {
			fmt.Fprintf(w, "%-12s %-8s %s  %s\n", label, o.Op, green, o.Value)
		} else {
			fmt.Fprintf(w, "%-12s %-8s %s\n", label, o.Op, green)
		}
	}

	summary := domain.Summarize(outcomes)
	fmt.Fprintln(w)
	if summary.Failed > 0 {
		headline := out.String(summary.String()).Foreground(out.Color("1")).Bold().String()
		fmt.Fprintln(w, headline)
		for kind, n := range summary.ByKind {
			fmt.Fprintf(w, "  %s: %d\n", kind, n)
		}
	} else {
		fmt.Fprintln(w, out.String(summary.String()).Foreground(out.Color("2")).String())
	}
	return summary
}
