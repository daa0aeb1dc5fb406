package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/gavel/internal/review"
)

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, report *review.Report) error {
	ew := &errWriter{w: w}

	res := report.Result
	total := len(res.Findings)

	ew.printf("Gavel Review — %s mode", report.Mode)
	if report.Target != "" {
		ew.printf(" (%s)", report.Target)
	}
	ew.println("")
	if report.Repo != "" {
		ew.printf("Repository: %s", report.Repo)
		if report.Branch != "" {
			ew.printf(" (branch: %s)", report.Branch)
		}
		ew.println("")
	}
	ew.printf("Iteration: %d | Files reviewed: %d\n", res.Iteration, report.FilesSeen)
	ew.println(strings.Repeat("─", 60))
	ew.printf("Findings: %d total", total)
	if total > 0 {
		infoCount := total - res.ErrorCount - res.WarningCount
		ew.printf(" (%d error, %d warn, %d info)", res.ErrorCount, res.WarningCount, infoCount)
	}
	ew.println("")
	ew.printf("Verdict: %s (warn budget %d)\n", report.Verdict(), res.WarnBudget)
	ew.println(strings.Repeat("─", 60))

	if total == 0 {
		ew.println("\nNo issues found. Looks good!")
		return ew.err
	}

	grouped := groupBySeverity(res.Findings)
	for _, sev := range []review.Severity{review.SeverityError, review.SeverityWarn, review.SeverityInfo} {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		label := strings.ToUpper(string(sev))
		ew.printf("\n%s %s\n", severityIcon(sev), label)
		ew.println(strings.Repeat("─", 40))

		sort.Slice(findings, func(i, j int) bool {
			return findings[i].Path < findings[j].Path
		})

		for _, f := range findings {
			ew.printf("\n  %s  %s\n", location(f), f.Title)
			ew.printf("  Category: %s | ID: %s\n", f.Category, f.ID)

			for _, line := range wrapText(f.Rationale, 70) {
				ew.printf("    %s\n", line)
			}

			if f.Recommendation != "" {
				ew.println("  Recommendation:")
				for _, line := range wrapText(f.Recommendation, 70) {
					ew.printf("    %s\n", line)
				}
			}
		}
	}

	ew.printf("\n%s\n", strings.Repeat("─", 60))
	ew.printf("Completed in %dms\n", report.ElapsedMs)

	return ew.err
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}

func groupBySeverity(findings []review.Finding) map[review.Severity][]review.Finding {
	m := make(map[review.Severity][]review.Finding)
	for _, f := range findings {
		m[f.Severity] = append(m[f.Severity], f)
	}
	return m
}

func location(f review.Finding) string {
	if f.Path == "" {
		return "(revision)"
	}
	if f.StartLine == 0 {
		return f.Path
	}
	if f.EndLine > f.StartLine {
		return fmt.Sprintf("%s:%d-%d", f.Path, f.StartLine, f.EndLine)
	}
	return fmt.Sprintf("%s:%d", f.Path, f.StartLine)
}

func severityIcon(s review.Severity) string {
	switch s {
	case review.SeverityError:
		return "[!!]"
	case review.SeverityWarn:
		return "[!]"
	case review.SeverityInfo:
		return "[-]"
	default:
		return "[?]"
	}
}

func wrapText(text string, width int) []string {
	if len(text) <= width {
		return []string{text}
	}
	var lines []string
	words := strings.Fields(text)
	var current strings.Builder
	for _, word := range words {
		if current.Len()+len(word)+1 > width && current.Len() > 0 {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return lines
}
