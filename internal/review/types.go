package review

import (
	"fmt"
	"sort"
	"strings"
)

// Severity classifies how serious a finding is.
type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// SeverityRank orders severities for sorting; higher is worse.
var SeverityRank = map[Severity]int{
	SeverityInfo:  1,
	SeverityWarn:  2,
	SeverityError: 3,
}

// ParseSeverity validates a severity value from an untrusted source.
// Only the exact enum values are accepted; anything else is an error.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityInfo:
		return SeverityInfo, nil
	case SeverityWarn:
		return SeverityWarn, nil
	case SeverityError:
		return SeverityError, nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Category classifies what aspect of the change a finding concerns.
type Category string

const (
	CategorySecurity    Category = "security"
	CategoryCorrectness Category = "correctness"
	CategoryStyle       Category = "style"
	CategoryPerformance Category = "performance"
	CategoryDocs        Category = "docs"
	CategoryTests       Category = "tests"
)

// ParseCategory validates a category value from an untrusted source.
func ParseCategory(s string) (Category, error) {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case CategorySecurity:
		return CategorySecurity, nil
	case CategoryCorrectness:
		return CategoryCorrectness, nil
	case CategoryStyle:
		return CategoryStyle, nil
	case CategoryPerformance:
		return CategoryPerformance, nil
	case CategoryDocs:
		return CategoryDocs, nil
	case CategoryTests:
		return CategoryTests, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// FileDiff is one changed file of a revision iteration. Produced once per
// iteration by a diff source and never mutated afterward.
type FileDiff struct {
	Path        string `json:"path"`
	Text        string `json:"text"`
	ContentHash string `json:"contentHash"`
	Binary      bool   `json:"binary,omitempty"`
	Deleted     bool   `json:"deleted,omitempty"`
}

// Finding is a single review issue. Findings are immutable once built: the
// planner assigns the fingerprint and ID at construction and nothing
// downstream rewrites them.
type Finding struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Severity       Severity `json:"severity"`
	Category       Category `json:"category"`
	Path           string   `json:"path"`
	StartLine      int      `json:"startLine,omitempty"`
	StartOffset    int      `json:"startOffset,omitempty"`
	EndLine        int      `json:"endLine,omitempty"`
	EndOffset      int      `json:"endOffset,omitempty"`
	Rationale      string   `json:"rationale"`
	Recommendation string   `json:"recommendation"`
	FixExample     string   `json:"fixExample,omitempty"`
	Fingerprint    string   `json:"fingerprint"`
	DeletedFile    bool     `json:"deletedFile,omitempty"`
}

// PlanResult is the aggregate outcome of one review pass over an iteration.
type PlanResult struct {
	Iteration    int       `json:"iteration"`
	Findings     []Finding `json:"findings"`
	ErrorCount   int       `json:"errorCount"`
	WarningCount int       `json:"warningCount"`
	WarnBudget   int       `json:"warnBudget"`
	Approve      bool      `json:"approve"`
}

// CountSeverities tallies error- and warn-severity findings.
func CountSeverities(findings []Finding) (errorCount, warningCount int) {
	for _, f := range findings {
		switch f.Severity {
		case SeverityError:
			errorCount++
		case SeverityWarn:
			warningCount++
		}
	}
	return errorCount, warningCount
}

// Approved computes the aggregate verdict. Any error rejects. Warnings
// beyond the budget reject; a warning count exactly equal to the budget
// still approves.
func Approved(errorCount, warningCount, warnBudget int) bool {
	return errorCount == 0 && warningCount <= warnBudget
}

// SortFindings orders findings by severity (worst first), then path, then
// start line, then title. Used for report output and the ledger so repeated
// runs emit identical orderings.
func SortFindings(findings []Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		ri, rj := SeverityRank[findings[i].Severity], SeverityRank[findings[j].Severity]
		if ri != rj {
			return ri > rj
		}
		if findings[i].Path != findings[j].Path {
			return findings[i].Path < findings[j].Path
		}
		if findings[i].StartLine != findings[j].StartLine {
			return findings[i].StartLine < findings[j].StartLine
		}
		return findings[i].Title < findings[j].Title
	})
}
