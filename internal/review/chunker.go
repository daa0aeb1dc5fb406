package review

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Chunk is one size-bounded slice of a single file's diff. Chunks are
// ephemeral: created and consumed within one review pass.
type Chunk struct {
	Path      string
	Content   string
	Index     int
	Total     int
	StartLine int
	Context   string
}

// DisplayName names a chunk for prompts and logs: the bare path for a
// single-chunk file, otherwise the path with position info.
func (c Chunk) DisplayName() string {
	if c.Total <= 1 {
		return c.Path
	}
	return fmt.Sprintf("%s (chunk %d/%d: %s)", c.Path, c.Index+1, c.Total, c.Context)
}

const contextFullDiff = "Full file diff"

var hunkHeaderRe = regexp.MustCompile(`^@@ -(\d+)(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

type lineKind int

const (
	kindContext lineKind = iota
	kindBlank
	kindHeader
	kindChange
)

func classifyLine(line string) lineKind {
	line = strings.TrimSuffix(line, "\n")
	switch {
	case line == "":
		return kindBlank
	case strings.HasPrefix(line, "@@") && hunkHeaderRe.MatchString(line):
		return kindHeader
	case line[0] == '+' || line[0] == '-':
		return kindChange
	default:
		return kindContext
	}
}

// headerLabel extracts a position label from a hunk header, using the
// new-file start line. Falls back to the diff line number when the header
// does not parse.
func headerLabel(line string, diffLine int) string {
	m := hunkHeaderRe.FindStringSubmatch(strings.TrimSuffix(line, "\n"))
	if m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			return fmt.Sprintf("Lines starting at %d", n)
		}
	}
	return fmt.Sprintf("Lines starting at %d", diffLine)
}

// SplitDiff splits one file's diff text into ordered, size-bounded chunks.
//
// A diff that fits within maxChunkBytes comes back as a single chunk
// labeled "Full file diff". Otherwise lines are accumulated until the next
// line would overflow the bound, and a split point is chosen by searching
// the accumulated window backward for the nearest logical boundary: a hunk
// header first, then a blank line, then an unchanged context line. The
// boundary choice keeps a contiguous run of added/removed lines in one
// piece; only a run larger than the bound itself is hard-cut, and every cut
// emits at least one line so the scan always advances.
//
// The function is pure: concatenating the chunk contents in order
// reconstructs the input text exactly.
func SplitDiff(diff FileDiff, maxChunkBytes int) []Chunk {
	if maxChunkBytes <= 0 || len(diff.Text) <= maxChunkBytes {
		return []Chunk{{
			Path:      diff.Path,
			Content:   diff.Text,
			Index:     0,
			Total:     1,
			StartLine: 1,
			Context:   contextFullDiff,
		}}
	}

	lines := splitLines(diff.Text)

	var chunks []Chunk
	var cur []string
	curSize := 0
	curStart := 1     // 1-based diff line where the current chunk begins
	lastHeader := ""  // label of the most recent hunk header seen
	curLabel := ""    // label fixed when the current chunk was born

	birthLabel := func(first string, startLine int) string {
		if classifyLine(first) == kindHeader {
			return headerLabel(first, startLine)
		}
		if lastHeader != "" {
			return lastHeader
		}
		return fmt.Sprintf("Lines starting at %d", startLine)
	}

	emit := func(count int) {
		chunks = append(chunks, Chunk{
			Path:      diff.Path,
			Content:   strings.Join(cur[:count], ""),
			Index:     len(chunks),
			StartLine: curStart,
			Context:   curLabel,
		})
		rest := make([]string, len(cur)-count)
		copy(rest, cur[count:])
		curStart += count
		cur = rest
		curSize = 0
		for _, l := range cur {
			curSize += len(l)
		}
		if len(cur) > 0 {
			curLabel = birthLabel(cur[0], curStart)
		}
	}

	for n, line := range lines {
		if len(cur) > 0 && curSize+len(line) > maxChunkBytes {
			emit(splitPoint(cur))
		}
		if len(cur) == 0 {
			curLabel = birthLabel(line, curStart)
		}
		cur = append(cur, line)
		curSize += len(line)
		if classifyLine(line) == kindHeader {
			lastHeader = headerLabel(line, n+1)
		}
	}
	if len(cur) > 0 {
		emit(len(cur))
	}

	for i := range chunks {
		chunks[i].Total = len(chunks)
	}
	return chunks
}

// splitPoint picks where to cut an overflowing window. It returns the count
// of lines to emit, always at least 1. Boundary preference: the nearest
// hunk header starts the carried-over remainder; failing that the cut lands
// just after the nearest blank line, then just after the nearest unchanged
// context line, so a run of added/removed lines is never severed. A window
// with no boundary at all is one oversized change run and is cut whole.
func splitPoint(window []string) int {
	for i := len(window) - 1; i >= 1; i-- {
		if classifyLine(window[i]) == kindHeader {
			return i
		}
	}
	for i := len(window) - 1; i >= 1; i-- {
		if classifyLine(window[i]) == kindBlank {
			return i + 1
		}
	}
	for i := len(window) - 1; i >= 1; i-- {
		if classifyLine(window[i]) == kindContext {
			return i + 1
		}
	}
	return len(window)
}

// splitLines splits s into lines, each keeping its trailing newline, so
// that concatenating the result reproduces s byte for byte.
func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i+1])
			start = i + 1
		}
	}
	if start < len(s) {
		lines = append(lines, s[start:])
	}
	return lines
}
