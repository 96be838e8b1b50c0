package console

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/Additional-Code/orderlens/internal/audit"
	scenariosvc "github.com/Additional-Code/orderlens/internal/service/scenario"
)

// Reporter prints scenario reports for terminals.
type Reporter struct {
	out      io.Writer
	verbose  bool
	noIssues bool
}

// New creates a Reporter writing to out. Verbose also prints every statement.
func New(out io.Writer, verbose bool) *Reporter {
	return &Reporter{out: out, verbose: verbose}
}

// WithoutIssues returns a Reporter that leaves audit findings out.
func (r *Reporter) WithoutIssues() *Reporter {
	cp := *r
	cp.noIssues = true
	return &cp
}

// Report writes the run summary followed by its audit findings.
func (r *Reporter) Report(report *scenariosvc.Report) {
	fmt.Fprintf(r.out, "%s %s (%s)\n", color.New(color.Bold).Sprint("scenario"), report.Scenario, report.Variant)
	fmt.Fprintf(r.out, "  pattern:     %s\n", report.Pattern)
	fmt.Fprintf(r.out, "  round trips: %s\n", r.roundTrips(report.RoundTrips))
	fmt.Fprintf(r.out, "  rows:        %d\n", report.Rows)
	fmt.Fprintf(r.out, "  duration:    %s\n", report.Duration)

	if r.verbose {
		fmt.Fprintln(r.out, "  statements:")
		for i, sql := range report.Statements {
			fmt.Fprintf(r.out, "    %3d  %s\n", i+1, color.CyanString(truncate(sql, 120)))
		}
	}

	if !r.noIssues {
		r.Issues(report.Issues)
	}
}

// Issues writes audit findings, or a clean bill when there are none.
func (r *Reporter) Issues(issues []audit.Issue) {
	if len(issues) == 0 {
		fmt.Fprintln(r.out, color.GreenString("✔ no statement issues found"))
		return
	}

	fmt.Fprintln(r.out)
	for _, issue := range issues {
		fmt.Fprintf(r.out, "[%s] %s: %s\n", levelColor(issue.Level).Sprint(issue.Level), issue.Type, issue.Message)
		fmt.Fprintf(r.out, "\tSQL: %s\n", color.CyanString(truncate(issue.SQL, 80)))
		fmt.Fprintf(r.out, "\tSuggestion: %s\n", issue.Suggestion)
	}
	fmt.Fprintf(r.out, "\n%s found %d issues.\n", color.RedString("✘"), len(issues))
}

func (r *Reporter) roundTrips(n int) string {
	switch {
	case n <= 2:
		return color.GreenString("%d", n)
	case n <= 10:
		return color.YellowString("%d", n)
	default:
		return color.RedString("%d", n)
	}
}

func levelColor(level audit.Level) *color.Color {
	switch level {
	case audit.LevelFatal:
		return color.New(color.FgRed, color.Bold)
	case audit.LevelWarning:
		return color.New(color.FgYellow, color.Bold)
	case audit.LevelSuggestion:
		return color.New(color.FgBlue, color.Bold)
	default:
		return color.New(color.FgWhite)
	}
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}

// Compare writes both runs of a comparison and the round trips saved.
func (r *Reporter) Compare(cmp *scenariosvc.Comparison) {
	r.Report(cmp.Naive)
	fmt.Fprintln(r.out)
	r.Report(cmp.Efficient)
	fmt.Fprintf(r.out, "\n%s %d → %d round trips (%d saved)\n",
		color.New(color.Bold).Sprint("compare"),
		cmp.Naive.RoundTrips, cmp.Efficient.RoundTrips, cmp.Saved)
}
