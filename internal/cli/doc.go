// Package cli wires together the Cobra command tree for the gavel binary.
//
// It defines the root command and all subcommands (review, threads, config,
// cache, version), binds flags, reads configuration, invokes the review
// planner and thread reconciler, and returns deterministic exit codes for
// CI gating.
package cli
