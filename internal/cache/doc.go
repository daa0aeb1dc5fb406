// Package cache provides a file-based cache for model completions.
//
// Entries are keyed by a SHA-256 hash of the provider name, model, and the
// full prompt payload for one chunk. Each entry stores the raw completion
// string along with a creation timestamp and a TTL in seconds. Expired
// entries are skipped on read. Refusals are never cached, so a transient
// content-filter response does not poison later runs.
//
// The default cache directory is $XDG_CACHE_HOME/gavel (or the
// OS-appropriate equivalent). Payloads reach the cache after secret
// redaction.
package cache
