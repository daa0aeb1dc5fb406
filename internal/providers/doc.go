// Package providers implements the LLM transport layer.
//
// Anthropic and OpenAI run on their official Go SDKs; Gemini and
// Ollama/LM Studio speak their REST APIs directly. All providers share a
// retry-with-backoff wrapper that distinguishes rate limits and server
// errors (retried) from auth failures (surfaced immediately), and report
// refusals and content-filtered completions as a Refused response rather
// than an error.
package providers
