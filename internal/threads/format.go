package threads

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dshills/gavel/internal/review"
)

const (
	commentHeader = "🤖 AI Review"
	disclaimer    = "_Automated review comment. Findings may be imperfect; verify before acting._"

	// LedgerMarker is the first line of the ledger thread body. Runs find
	// the ledger by this marker, never by position.
	LedgerMarker = "<!-- gavel:findings-ledger -->"
)

func display(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// FormatComment renders a finding into the comment body posted to its
// thread.
func FormatComment(f review.Finding) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s — %s/%s\n\n", commentHeader, display(string(f.Category)), display(string(f.Severity)))
	b.WriteString(strings.TrimSpace(f.Rationale))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "**Recommendation**: %s\n", strings.TrimSpace(f.Recommendation))
	if f.FixExample != "" {
		fmt.Fprintf(&b, "\n```\n%s\n```\n", strings.Trim(f.FixExample, "\n"))
	}
	b.WriteString("\n")
	b.WriteString(disclaimer)
	b.WriteString("\n")
	return b.String()
}

// FormatRetriggered renders a finding that matched an existing thread: the
// same body under a notice naming the iteration that re-reported it.
func FormatRetriggered(f review.Finding, iteration int) string {
	return fmt.Sprintf("Re-triggered on iteration %d — this issue still appears in the latest revision.\n\n%s",
		iteration, FormatComment(f))
}

// Ledger is the machine-readable snapshot of all active findings, stored
// as the body of the single hidden ledger thread.
type Ledger struct {
	Fingerprints []LedgerEntry `json:"fingerprints"`
	UpdatedAt    time.Time     `json:"updatedAt"`
}

// LedgerEntry records one active finding.
type LedgerEntry struct {
	Fingerprint string          `json:"fingerprint"`
	FilePath    string          `json:"filePath"`
	Line        int             `json:"line"`
	Severity    review.Severity `json:"severity"`
}

// BuildLedger snapshots the current finding set.
func BuildLedger(findings []review.Finding, now time.Time) Ledger {
	entries := make([]LedgerEntry, 0, len(findings))
	for _, f := range findings {
		entries = append(entries, LedgerEntry{
			Fingerprint: f.Fingerprint,
			FilePath:    f.Path,
			Line:        f.StartLine,
			Severity:    f.Severity,
		})
	}
	return Ledger{Fingerprints: entries, UpdatedAt: now.UTC()}
}

// FormatLedger renders the ledger thread body: the marker line followed by
// a fenced JSON block.
func FormatLedger(l Ledger) (string, error) {
	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling ledger: %w", err)
	}
	return fmt.Sprintf("%s\n\n```json\n%s\n```\n", LedgerMarker, data), nil
}

// ParseLedger recovers a ledger from a thread body. The bool result is
// false when the body is not a ledger.
func ParseLedger(body string) (Ledger, bool) {
	if !strings.Contains(body, LedgerMarker) {
		return Ledger{}, false
	}
	start := strings.Index(body, "```json")
	if start == -1 {
		return Ledger{}, false
	}
	rest := body[start+len("```json"):]
	end := strings.Index(rest, "```")
	if end == -1 {
		return Ledger{}, false
	}
	var l Ledger
	if err := json.Unmarshal([]byte(strings.TrimSpace(rest[:end])), &l); err != nil {
		return Ledger{}, false
	}
	return l, true
}
