// Package gitctx extracts per-file diffs and commit metadata from a local
// git repository.
//
// It supports the three local review modes — unstaged, staged, and range —
// by shelling out to git with appropriate arguments, splitting the
// combined output into one diff per file. Results are filtered by
// include/exclude glob patterns; each file carries a content hash derived
// from its diff section so unchanged files keep a stable identity across
// runs.
//
// [ListCommits] returns the ordered commits of a revision range for use in
// revision-metadata review.
package gitctx
