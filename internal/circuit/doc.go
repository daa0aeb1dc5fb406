// Package circuit implements a minimal consecutive-failure circuit
// breaker.
//
// Gavel keeps one breaker per external dependency (the LLM provider and
// the comment store) so a sustained outage on one side fails fast instead
// of burning retries, then probes for recovery after a cooldown.
package circuit
