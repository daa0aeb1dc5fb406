package review

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// MalformedResponseError reports model output that failed to decode against
// the expected finding shape. It is a distinct error kind so callers never
// confuse a broken response with a clean review that found nothing.
type MalformedResponseError struct {
	Reason  string
	Snippet string
}

func (e *MalformedResponseError) Error() string {
	if e.Snippet != "" {
		return fmt.Sprintf("malformed model response: %s (got: %s)", e.Reason, e.Snippet)
	}
	return fmt.Sprintf("malformed model response: %s", e.Reason)
}

// IsMalformedResponse reports whether err is (or wraps) a
// MalformedResponseError.
func IsMalformedResponse(err error) bool {
	var m *MalformedResponseError
	return errors.As(err, &m)
}

// RawFinding is one validated finding as returned by the model, before the
// planner assigns identity. Severity and category have already passed enum
// validation; the path may be empty and defaults to the reviewed diff's
// path downstream.
type RawFinding struct {
	Title          string
	Severity       Severity
	Category       Category
	Path           string
	StartLine      int
	StartOffset    int
	EndLine        int
	EndOffset      int
	Rationale      string
	Recommendation string
	FixExample     string
}

// rawFinding is the untrusted JSON shape. Pointer fields distinguish a
// missing key from a present-but-empty value so required-field checks can
// reject rather than default.
type rawFinding struct {
	Title          *string `json:"title"`
	Severity       *string `json:"severity"`
	Category       *string `json:"category"`
	Path           *string `json:"path"`
	StartLine      *int    `json:"startLine"`
	StartOffset    *int    `json:"startOffset"`
	EndLine        *int    `json:"endLine"`
	EndOffset      *int    `json:"endOffset"`
	Rationale      *string `json:"rationale"`
	Recommendation *string `json:"recommendation"`
	FixExample     *string `json:"fixExample"`
}

// ParseFindings decodes a model response into validated findings.
//
// A refusal (no JSON at all, apology prose) yields zero findings and no
// error. Anything else that is not a well-formed array of findings with all
// required fields present and valid enum values yields a
// MalformedResponseError.
func ParseFindings(content string) ([]RawFinding, error) {
	content = strings.TrimSpace(content)

	// Strip markdown code fences if present
	if strings.HasPrefix(content, "```") {
		lines := strings.Split(content, "\n")
		if len(lines) >= 2 {
			start := 1
			end := len(lines)
			if strings.TrimSpace(lines[end-1]) == "```" {
				end = end - 1
			}
			content = strings.TrimSpace(strings.Join(lines[start:end], "\n"))
		}
	}

	// Models sometimes wrap the array in prose despite instructions; accept
	// the outermost array if one exists.
	first := strings.Index(content, "[")
	last := strings.LastIndex(content, "]")
	if first == -1 || last < first {
		if looksLikeRefusal(content) {
			return nil, nil
		}
		return nil, &MalformedResponseError{Reason: "no JSON array in response", Snippet: snippet(content)}
	}
	content = content[first : last+1]

	var raw []rawFinding
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, &MalformedResponseError{Reason: fmt.Sprintf("invalid JSON array: %v", err), Snippet: snippet(content)}
	}

	findings := make([]RawFinding, 0, len(raw))
	for i, r := range raw {
		f, err := validateFinding(r)
		if err != nil {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("finding %d: %v", i, err)}
		}
		findings = append(findings, f)
	}
	return findings, nil
}

func validateFinding(r rawFinding) (RawFinding, error) {
	for name, p := range map[string]*string{
		"title":          r.Title,
		"severity":       r.Severity,
		"category":       r.Category,
		"rationale":      r.Rationale,
		"recommendation": r.Recommendation,
	} {
		if p == nil || strings.TrimSpace(*p) == "" {
			return RawFinding{}, fmt.Errorf("missing required field %q", name)
		}
	}

	sev, err := ParseSeverity(*r.Severity)
	if err != nil {
		return RawFinding{}, err
	}
	cat, err := ParseCategory(*r.Category)
	if err != nil {
		return RawFinding{}, err
	}

	f := RawFinding{
		Title:          strings.TrimSpace(*r.Title),
		Severity:       sev,
		Category:       cat,
		Rationale:      strings.TrimSpace(*r.Rationale),
		Recommendation: strings.TrimSpace(*r.Recommendation),
	}
	if r.Path != nil {
		f.Path = strings.TrimSpace(*r.Path)
	}
	if r.FixExample != nil {
		f.FixExample = *r.FixExample
	}
	if r.StartLine != nil {
		f.StartLine = *r.StartLine
	}
	if r.StartOffset != nil {
		f.StartOffset = *r.StartOffset
	}
	if r.EndLine != nil {
		f.EndLine = *r.EndLine
	}
	if r.EndOffset != nil {
		f.EndOffset = *r.EndOffset
	}
	if f.StartLine < 0 || f.EndLine < 0 {
		return RawFinding{}, fmt.Errorf("negative line number")
	}
	if f.EndLine == 0 {
		f.EndLine = f.StartLine
	}
	return f, nil
}

var refusalPrefixes = []string{
	"i can't",
	"i cannot",
	"i won't",
	"i will not",
	"i'm sorry",
	"i am sorry",
	"sorry,",
	"i'm unable",
	"i am unable",
}

// looksLikeRefusal detects apology prose in place of findings. Refusals are
// a legitimate zero-finding outcome, not an error.
func looksLikeRefusal(content string) bool {
	lower := strings.ToLower(strings.TrimSpace(content))
	for _, p := range refusalPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
