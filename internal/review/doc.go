// Package review contains the core types and planning engine for LLM-based
// pull request review.
//
// It defines the FileDiff, Finding, and PlanResult types, splits oversized
// diffs into boundary-respecting chunks, assembles prompts, strictly
// validates the model's JSON responses, and derives stable fingerprints so
// the same issue keeps the same identity across re-runs no matter how the
// model words it.
//
// The Planner fans out one review call per changed file with bounded
// concurrency, isolates per-file failures, performs a single
// revision-metadata review, and computes the approve/reject verdict: any
// error-severity finding rejects, and warn-severity findings beyond the
// warning budget reject.
package review
