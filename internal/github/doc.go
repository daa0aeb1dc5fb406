// Package github adapts a GitHub pull request to the review engine's two
// boundaries: a diff source (per-file patches with blob hashes) and a
// comment store (threads.Store).
//
// File-anchored threads map to PR review comments, revision-level threads
// to issue comments on the PR. Because GitHub comments have no status or
// metadata fields, each bot comment carries a hidden HTML marker with the
// thread tag and lifecycle status; status changes rewrite the marker in
// place. The repository is detected from the local git remote and
// authentication comes from the GITHUB_TOKEN environment variable.
package github
