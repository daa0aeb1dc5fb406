// Gavel is an automated pull request reviewer. It asks an LLM to evaluate
// each changed file and the PR metadata against a review policy, posts the
// findings back as reconciled comment threads, and renders an
// approve/reject verdict with deterministic exit codes for CI gating.
//
// Usage:
//
//	gavel review pr 42              # review a PR and reconcile its threads
//	gavel review pr 42 --dry-run    # plan and report without posting
//	gavel review staged             # plan-only review of staged changes
//	gavel threads 42                # list review threads and the ledger
//	gavel config init               # write a default config file
//
// Credentials come from the environment (or a .env file): ANTHROPIC_API_KEY
// or OPENAI_API_KEY for the model provider, GITHUB_TOKEN for the platform.
package main
