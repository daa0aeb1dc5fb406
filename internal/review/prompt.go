package review

import (
	"fmt"
	"strings"
)

const systemPrompt = `You are a strict, expert code reviewer. Your job is to review one file's diff from a pull request and produce structured findings in JSON format.

Rules:
1. Only review the changes shown in the diff. Do not comment on unchanged code.
2. Focus on real problems: bugs, security issues, performance regressions, missing tests, broken docs. Avoid bikeshedding on style unless it significantly hurts readability.
3. Be concise and actionable. Every finding must include a concrete recommendation.
4. Reference line numbers of the new file version from the diff hunks.
5. Rate severity as exactly one of: "info", "warn", "error".
6. Categorize each finding as exactly one of: "security", "correctness", "style", "performance", "docs", "tests".
7. Do not repeat an issue that an existing review comment already covers.

You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble. Just the JSON array.

Each finding must have this exact structure:
{
  "title": "Short descriptive title",
  "severity": "info|warn|error",
  "category": "security|correctness|style|performance|docs|tests",
  "path": "relative/file/path",
  "startLine": 1,
  "startOffset": 0,
  "endLine": 1,
  "endOffset": 0,
  "rationale": "What is wrong and why it matters",
  "recommendation": "How to fix it",
  "fixExample": "optional corrected code"
}

title, severity, category, rationale, and recommendation are required. If there are no issues, respond with an empty array: []`

const metadataSystemPrompt = `You are a strict, expert code reviewer. Your job is to review the metadata of a pull request (title, description, commit messages) and produce structured findings in JSON format.

Rules:
1. Check that the title and description explain what changed and why.
2. Check commit messages for clarity; flag placeholder messages like "wip" or "fix".
3. Rate severity as exactly one of: "info", "warn", "error". Metadata findings are rarely more severe than "warn".
4. Categorize each finding as exactly one of: "security", "correctness", "style", "performance", "docs", "tests".

You MUST respond with ONLY a JSON array of findings. No markdown, no explanation, no preamble. Just the JSON array.

Each finding must have this exact structure:
{
  "title": "Short descriptive title",
  "severity": "info|warn|error",
  "category": "security|correctness|style|performance|docs|tests",
  "rationale": "What is wrong and why it matters",
  "recommendation": "How to fix it"
}

title, severity, category, rationale, and recommendation are required. If there are no issues, respond with an empty array: []`

// SystemPrompt returns the system prompt for per-file review.
func SystemPrompt() string {
	return systemPrompt
}

// MetadataSystemPrompt returns the system prompt for metadata review.
func MetadataSystemPrompt() string {
	return metadataSystemPrompt
}

// BuildFilePrompt constructs the user prompt for one chunk of one file's
// diff.
func BuildFilePrompt(req FileRequest, chunk Chunk, maxIssues int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Review the following diff of %s.\n\n", chunk.DisplayName())

	if maxIssues > 0 {
		fmt.Fprintf(&b, "Return at most %d findings.\n", maxIssues)
	}
	if req.ProgLanguage != "" {
		fmt.Fprintf(&b, "Language: %s\n", req.ProgLanguage)
	}
	if req.Language != "" && req.Language != "English" {
		fmt.Fprintf(&b, "Write rationale and recommendation text in %s.\n", req.Language)
	}
	if req.Diff.Deleted {
		b.WriteString("This file is deleted in this revision; review the removal itself.\n")
	}

	if section := req.Policy.PromptSection(); section != "" {
		b.WriteString(section)
	}

	if len(req.ExistingComments) > 0 {
		b.WriteString("\nExisting review comments on this file (do not repeat these):\n")
		for _, c := range req.ExistingComments {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	b.WriteString("\n--- BEGIN DIFF ---\n")
	b.WriteString(chunk.Content)
	b.WriteString("\n--- END DIFF ---\n")

	return b.String()
}

// BuildMetadataPrompt constructs the user prompt for the revision-metadata
// review call.
func BuildMetadataPrompt(req MetadataRequest) string {
	var b strings.Builder

	b.WriteString("Review the following pull request metadata.\n")

	if section := req.Policy.PromptSection(); section != "" {
		b.WriteString(section)
	}

	fmt.Fprintf(&b, "\nTitle: %s\n", req.Title)
	b.WriteString("\nDescription:\n")
	if strings.TrimSpace(req.Description) == "" {
		b.WriteString("(empty)\n")
	} else {
		b.WriteString(req.Description)
		b.WriteString("\n")
	}
	if len(req.CommitMessages) > 0 {
		b.WriteString("\nCommit messages:\n")
		for _, m := range req.CommitMessages {
			fmt.Fprintf(&b, "- %s\n", m)
		}
	}

	return b.String()
}
