package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/example/contentgate/internal/ports/primary"
)

var (
	passColor    = color.New(color.FgHiGreen)
	failColor    = color.New(color.FgRed)
	verdictColor = map[bool]*color.Color{
		true:  color.New(color.FgHiGreen, color.Bold),
		false: color.New(color.FgRed, color.Bold),
	}
)

func marker(passed bool) string {
	if passed {
		return passColor.Sprint("PASS")
	}
	return failColor.Sprint("FAIL")
}

func blockedLabel() string {
	return verdictColor[false].Sprint("BLOCKED")
}

// printReport writes one gate report: a line per gate, remediation under
// failures, and the overall verdict.
func printReport(w io.Writer, r *primary.GateReport) {
	fmt.Fprintf(w, "%s (rev %d): %s -> %s\n", r.ItemID, r.Revision, r.FromStage, r.TargetStage)
	if r.Err != "" {
		fmt.Fprintf(w, "  %s could not evaluate: %s\n", marker(false), r.Err)
		return
	}
	for _, g := range r.Results {
		fmt.Fprintf(w, "  [%s] %-12s %-24s %s\n", marker(g.Passed), g.Gate, g.Code, g.Message)
		if !g.Passed && g.Remediation != "" {
			fmt.Fprintf(w, "         fix: %s\n", g.Remediation)
		}
		for _, effect := range g.SideEffects {
			fmt.Fprintf(w, "         note: %s\n", effect)
		}
	}
	verdict := blockedLabel()
	if r.Admitted {
		verdict = verdictColor[true].Sprint("ADMITTED")
	}
	fmt.Fprintf(w, "%s %s\n", verdict, r.Summary)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
