// Package threads reconciles review findings with the comment threads of
// a code review platform.
//
// The platform is the only durable state the reviewer has. Every thread a
// bot creates carries a machine-readable tag holding the finding's
// fingerprint, and a single hidden ledger thread snapshots the full
// fingerprint set of the latest run. Reconciliation reads the threads
// back, matches fingerprints, and applies the minimal set of mutations:
// create, reply, re-activate, resolve. Running the same finding set twice
// is safe.
//
// The Store interface abstracts the platform. The GitHub implementation
// lives in the github package.
package threads
