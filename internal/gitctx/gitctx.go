package gitctx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/dshills/gavel/internal/review"
)

// DiffOptions controls how diffs are gathered.
type DiffOptions struct {
	ContextLines int
	Include      []string
	Exclude      []string
}

// RepoMeta contains git repository metadata.
type RepoMeta struct {
	Root   string
	Head   string
	Branch string
}

// GetRepoMeta collects repository metadata from git.
func GetRepoMeta() (RepoMeta, error) {
	root, err := gitOutput("rev-parse", "--show-toplevel")
	if err != nil {
		return RepoMeta{}, fmt.Errorf("not a git repository: %w", err)
	}
	head, err := gitOutput("rev-parse", "HEAD")
	if err != nil {
		head = "" // new repo with no commits
	}
	branch, err := gitOutput("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		branch = ""
	}
	return RepoMeta{
		Root:   strings.TrimSpace(root),
		Head:   strings.TrimSpace(head),
		Branch: strings.TrimSpace(branch),
	}, nil
}

// Unstaged returns the working tree vs index changes as per-file diffs.
func Unstaged(opts DiffOptions) ([]review.FileDiff, error) {
	args := buildDiffArgs(opts)
	diff, err := gitOutput(append([]string{"diff"}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("git diff: %w", err)
	}
	return splitFiles(diff, opts.Exclude), nil
}

// Staged returns the index vs HEAD changes as per-file diffs.
func Staged(opts DiffOptions) ([]review.FileDiff, error) {
	args := buildDiffArgs(opts)
	diff, err := gitOutput(append([]string{"diff", "--cached"}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("git diff --cached: %w", err)
	}
	return splitFiles(diff, opts.Exclude), nil
}

// Range returns the combined changes of a revision range as per-file
// diffs. If mergeBase is true, ".." is converted to "..." so the range is
// compared against the merge base, the way a pull request diff is.
func Range(revRange string, mergeBase bool, opts DiffOptions) ([]review.FileDiff, error) {
	args := buildDiffArgs(opts)
	diffRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		diffRange = strings.Replace(revRange, "..", "...", 1)
	}
	diff, err := gitOutput(append([]string{"diff", diffRange}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("git diff %s: %w", revRange, err)
	}
	return splitFiles(diff, opts.Exclude), nil
}

func buildDiffArgs(opts DiffOptions) []string {
	var args []string
	if opts.ContextLines > 0 {
		args = append(args, fmt.Sprintf("-U%d", opts.ContextLines))
	}
	args = append(args, "--")
	for _, p := range opts.Include {
		if p != "**/*" {
			args = append(args, p)
		}
	}
	return args
}

// splitFiles breaks a combined git diff into per-file diffs. The content
// hash covers the whole file section including the index line, so it
// changes exactly when the file's change content changes.
func splitFiles(diff string, excludes []string) []review.FileDiff {
	var out []review.FileDiff
	for _, section := range splitDiffSections(diff) {
		fd := fileFromSection(section)
		if fd.Path == "" {
			continue
		}
		if MatchesAny(fd.Path, excludes) {
			continue
		}
		out = append(out, fd)
	}
	return out
}

func splitDiffSections(diff string) []string {
	var sections []string
	var current strings.Builder
	for _, line := range strings.Split(diff, "\n") {
		if strings.HasPrefix(line, "diff --git") && current.Len() > 0 {
			sections = append(sections, current.String())
			current.Reset()
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if current.Len() > 0 {
		sections = append(sections, current.String())
	}
	return sections
}

func fileFromSection(section string) review.FileDiff {
	binary := strings.Contains(section, "\nBinary files ") ||
		strings.HasPrefix(section, "Binary files ") ||
		strings.Contains(section, "\nGIT binary patch")

	text := ""
	if !binary {
		if i := strings.Index(section, "\n@@ "); i != -1 {
			text = section[i+1:]
		}
	}

	sum := sha256.Sum256([]byte(section))

	return review.FileDiff{
		Path:        sectionPath(section),
		Text:        text,
		ContentHash: hex.EncodeToString(sum[:]),
		Binary:      binary,
		Deleted:     strings.Contains(section, "\ndeleted file mode "),
	}
}

// sectionPath extracts the file path of one diff section. Deleted files
// have +++ /dev/null, so the old-side path is the fallback, and a pure
// rename has neither marker and falls back to the diff --git header.
func sectionPath(section string) string {
	var oldPath, newPath string
	for _, line := range strings.Split(section, "\n") {
		switch {
		case strings.HasPrefix(line, "+++ b/"):
			newPath = strings.TrimPrefix(line, "+++ b/")
		case strings.HasPrefix(line, "--- a/"):
			oldPath = strings.TrimPrefix(line, "--- a/")
		}
	}
	if newPath != "" {
		return newPath
	}
	if oldPath != "" {
		return oldPath
	}
	first, _, _ := strings.Cut(section, "\n")
	if rest, ok := strings.CutPrefix(first, "diff --git a/"); ok {
		if i := strings.Index(rest, " b/"); i > 0 {
			return rest[:i]
		}
	}
	return ""
}

// MatchesAny returns true if the path matches any of the given glob patterns.
func MatchesAny(path string, patterns []string) bool {
	for _, pattern := range patterns {
		matched, err := filepath.Match(pattern, path)
		if err == nil && matched {
			return true
		}
		clean := strings.TrimPrefix(pattern, "**/")
		if clean != pattern {
			matched, err = filepath.Match(clean, filepath.Base(path))
			if err == nil && matched {
				return true
			}
			matched, err = filepath.Match(clean, path)
			if err == nil && matched {
				return true
			}
		}
	}
	return false
}

// CommitInfo holds a commit SHA and its subject line.
type CommitInfo struct {
	SHA     string
	Subject string
}

// ListCommits returns commits in a revision range, oldest first.
// If mergeBase is true, ".." is converted to "..." for merge-base comparison.
func ListCommits(revRange string, mergeBase bool) ([]CommitInfo, error) {
	listRange := revRange
	if mergeBase && strings.Contains(revRange, "..") && !strings.Contains(revRange, "...") {
		listRange = strings.Replace(revRange, "..", "...", 1)
	}

	out, err := gitOutput("rev-list", "--reverse", "--format=%s", listRange)
	if err != nil {
		return nil, fmt.Errorf("git rev-list %s: %w", revRange, err)
	}

	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	lines := strings.Split(out, "\n")
	var commits []CommitInfo
	for i := 0; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(line, "commit ") {
			continue
		}
		sha := strings.TrimPrefix(line, "commit ")
		var subject string
		if i+1 < len(lines) {
			subject = strings.TrimSpace(lines[i+1])
			i++ // skip the subject line
		}
		commits = append(commits, CommitInfo{
			SHA:     sha,
			Subject: subject,
		})
	}
	return commits, nil
}

func gitOutput(args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return string(out), fmt.Errorf("%s: %s", err, string(exitErr.Stderr))
		}
		return "", err
	}
	return string(out), nil
}
