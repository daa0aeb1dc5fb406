package output

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dshills/gavel/internal/review"
)

// MarkdownWriter outputs a PR-comment-friendly markdown report.
type MarkdownWriter struct{}

func (m *MarkdownWriter) Write(w io.Writer, report *review.Report) error {
	res := report.Result
	total := len(res.Findings)
	infoCount := total - res.ErrorCount - res.WarningCount

	fmt.Fprintf(w, "## Gavel Review\n\n")
	fmt.Fprintf(w, "**Verdict: %s** (iteration %d, warn budget %d)\n\n", report.Verdict(), res.Iteration, res.WarnBudget)

	fmt.Fprintf(w, "| Severity | Count |\n")
	fmt.Fprintf(w, "|----------|-------|\n")
	fmt.Fprintf(w, "| Error    | %d    |\n", res.ErrorCount)
	fmt.Fprintf(w, "| Warn     | %d    |\n", res.WarningCount)
	fmt.Fprintf(w, "| Info     | %d    |\n", infoCount)
	fmt.Fprintf(w, "| **Total** | **%d** |\n\n", total)

	if total == 0 {
		fmt.Fprintln(w, "No issues found. :white_check_mark:")
		return nil
	}

	grouped := groupBySeverity(res.Findings)
	for _, sev := range []review.Severity{review.SeverityError, review.SeverityWarn, review.SeverityInfo} {
		findings := grouped[sev]
		if len(findings) == 0 {
			continue
		}

		icon := mdSeverityIcon(sev)
		label := strings.ToUpper(string(sev))

		fmt.Fprintf(w, "<details>\n<summary>%s %s (%d)</summary>\n\n", icon, label, len(findings))

		sort.Slice(findings, func(i, j int) bool {
			return findings[i].Path < findings[j].Path
		})

		for _, f := range findings {
			fmt.Fprintf(w, "### %s\n\n", f.Title)
			fmt.Fprintf(w, "**`%s`** | %s\n\n", location(f), f.Category)
			fmt.Fprintf(w, "%s\n\n", f.Rationale)

			if f.Recommendation != "" {
				fmt.Fprintf(w, "**Recommendation:**\n\n")
				fmt.Fprintf(w, "> %s\n\n", strings.ReplaceAll(f.Recommendation, "\n", "\n> "))
			}

			if f.FixExample != "" {
				fmt.Fprintf(w, "```%s\n%s\n```\n\n", fenceLang(f.Path), strings.Trim(f.FixExample, "\n"))
			}

			fmt.Fprintf(w, "---\n\n")
		}

		fmt.Fprintf(w, "</details>\n\n")
	}

	fmt.Fprintf(w, "*Reviewed %d files in %dms*\n", report.FilesSeen, report.ElapsedMs)

	return nil
}

func mdSeverityIcon(s review.Severity) string {
	switch s {
	case review.SeverityError:
		return ":red_circle:"
	case review.SeverityWarn:
		return ":orange_circle:"
	case review.SeverityInfo:
		return ":yellow_circle:"
	default:
		return ":white_circle:"
	}
}

func fenceLang(path string) string {
	langMap := map[string]string{
		".go":   "go",
		".py":   "python",
		".js":   "javascript",
		".ts":   "typescript",
		".tsx":  "tsx",
		".jsx":  "jsx",
		".rs":   "rust",
		".java": "java",
		".rb":   "ruby",
		".cpp":  "cpp",
		".c":    "c",
		".cs":   "csharp",
		".php":  "php",
		".sh":   "bash",
		".sql":  "sql",
		".yaml": "yaml",
		".yml":  "yaml",
		".json": "json",
		".tf":   "hcl",
	}
	for ext, lang := range langMap {
		if strings.HasSuffix(path, ext) {
			return lang
		}
	}
	return ""
}
