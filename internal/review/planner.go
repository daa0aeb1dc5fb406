package review

import (
	"context"
	"sync"

	"github.com/dshills/gavel/internal/logx"
)

// FileRequest carries everything the Reviewer needs to review one file.
type FileRequest struct {
	Policy           Policy
	Diff             FileDiff
	Language         string
	ProgLanguage     string
	ExistingComments []string
	// MaxIssues is a hint passed to the model; the planner enforces the
	// hard cap after the fact.
	MaxIssues int
}

// MetadataRequest carries the revision metadata for the single metadata
// review call of a plan.
type MetadataRequest struct {
	Policy         Policy
	Title          string
	Description    string
	CommitMessages []string
}

// Reviewer is the AI provider boundary. Implementations must be safe for
// concurrent use: the planner fans out one ReviewFile call per file.
type Reviewer interface {
	ReviewFile(ctx context.Context, req FileRequest) ([]RawFinding, error)
	ReviewMetadata(ctx context.Context, req MetadataRequest) ([]RawFinding, error)
}

// Metadata is the revision metadata under review.
type Metadata struct {
	Title          string
	Description    string
	CommitMessages []string
}

const defaultConcurrency = 4

// Planner fans out per-file review calls to a Reviewer, aggregates the
// findings, and computes the approve/reject verdict.
type Planner struct {
	Reviewer         Reviewer
	Policy           Policy
	MaxFilesToReview int
	MaxDiffBytes     int
	MaxIssuesPerFile int
	WarnBudget       int
	// Language forces the natural language of findings; empty means detect
	// from the revision description.
	Language    string
	Concurrency int
}

type fileResult struct {
	raw []RawFinding
	err error
}

// Plan reviews one revision iteration.
//
// Files beyond MaxFilesToReview are dropped by prefix truncation; diffs
// larger than MaxDiffBytes and binary diffs are skipped. The remaining
// files are reviewed concurrently; a failure on one file is logged and
// contributes zero findings without aborting the plan. Exactly one
// additional metadata review call covers the title, description, and
// commit messages. The only error Plan itself returns is context
// cancellation.
func (p *Planner) Plan(ctx context.Context, iteration int, diffs []FileDiff, existing map[string][]string, meta Metadata) (PlanResult, error) {
	budget := p.WarnBudget
	if p.Policy.WarnBudget != nil {
		budget = *p.Policy.WarnBudget
	}
	result := PlanResult{Iteration: iteration, WarnBudget: budget}

	if p.MaxFilesToReview > 0 && len(diffs) > p.MaxFilesToReview {
		logx.Warn().Int("files", len(diffs)).Int("max", p.MaxFilesToReview).
			Msg("too many changed files; reviewing a prefix")
		diffs = diffs[:p.MaxFilesToReview]
	}

	reviewable := make([]FileDiff, 0, len(diffs))
	for _, d := range diffs {
		if d.Binary || d.Text == "" {
			logx.Debug().Str("path", d.Path).Msg("skipping binary or empty diff")
			continue
		}
		if p.MaxDiffBytes > 0 && len(d.Text) > p.MaxDiffBytes {
			logx.Warn().Str("path", d.Path).Int("bytes", len(d.Text)).Int("max", p.MaxDiffBytes).
				Msg("diff too large; skipping file")
			continue
		}
		reviewable = append(reviewable, d)
	}

	language := p.Language
	if language == "" {
		language = DetectNaturalLanguage(meta.Description)
	}

	// Fan out one review per file. Each goroutine writes only its own slot,
	// so no locking is needed until the join.
	concurrency := p.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	results := make([]fileResult, len(reviewable))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup
	for i, d := range reviewable {
		wg.Add(1)
		go func(i int, d FileDiff) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i] = fileResult{err: ctx.Err()}
				return
			}
			raw, err := p.Reviewer.ReviewFile(ctx, FileRequest{
				Policy:           p.Policy,
				Diff:             d,
				Language:         language,
				ProgLanguage:     ProgrammingLanguage(d.Path),
				ExistingComments: existing[d.Path],
				MaxIssues:        p.MaxIssuesPerFile,
			})
			results[i] = fileResult{raw: raw, err: err}
		}(i, d)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return PlanResult{}, err
	}

	for i, r := range results {
		d := reviewable[i]
		if r.err != nil {
			if IsMalformedResponse(r.err) {
				logx.Error().Str("path", d.Path).Err(r.err).Msg("model response failed validation")
			} else {
				logx.Warn().Str("path", d.Path).Err(r.err).Msg("file review failed; continuing without findings")
			}
			continue
		}
		raw := r.raw
		if p.MaxIssuesPerFile > 0 && len(raw) > p.MaxIssuesPerFile {
			logx.Warn().Str("path", d.Path).Int("found", len(raw)).Int("max", p.MaxIssuesPerFile).
				Msg("capping findings for file")
			raw = raw[:p.MaxIssuesPerFile]
		}
		fp := Fingerprint(d.Path, d.ContentHash)
		for _, rf := range raw {
			result.Findings = append(result.Findings, p.buildFinding(rf, d, fp))
		}
	}

	metaFindings, err := p.reviewMetadata(ctx, meta)
	if err != nil {
		return PlanResult{}, err
	}
	result.Findings = append(result.Findings, metaFindings...)

	SortFindings(result.Findings)
	result.ErrorCount, result.WarningCount = CountSeverities(result.Findings)
	result.Approve = Approved(result.ErrorCount, result.WarningCount, result.WarnBudget)
	return result, nil
}

func (p *Planner) buildFinding(rf RawFinding, d FileDiff, fingerprint string) Finding {
	path := rf.Path
	if path == "" {
		path = d.Path
	}
	return Finding{
		ID:             findingID(path, rf.Title, rf.StartLine),
		Title:          rf.Title,
		Severity:       p.Policy.EffectiveSeverity(rf.Category, rf.Severity),
		Category:       rf.Category,
		Path:           path,
		StartLine:      rf.StartLine,
		StartOffset:    rf.StartOffset,
		EndLine:        rf.EndLine,
		EndOffset:      rf.EndOffset,
		Rationale:      rf.Rationale,
		Recommendation: rf.Recommendation,
		FixExample:     rf.FixExample,
		Fingerprint:    fingerprint,
		DeletedFile:    d.Deleted,
	}
}

// reviewMetadata makes the single metadata review call. Failures are
// logged and yield zero findings, matching per-file failure isolation;
// only context cancellation propagates.
func (p *Planner) reviewMetadata(ctx context.Context, meta Metadata) ([]Finding, error) {
	raw, err := p.Reviewer.ReviewMetadata(ctx, MetadataRequest{
		Policy:         p.Policy,
		Title:          meta.Title,
		Description:    meta.Description,
		CommitMessages: meta.CommitMessages,
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if IsMalformedResponse(err) {
			logx.Error().Err(err).Msg("metadata response failed validation")
		} else {
			logx.Warn().Err(err).Msg("metadata review failed; continuing without findings")
		}
		return nil, nil
	}

	fp := MetadataFingerprint(meta.Description)
	findings := make([]Finding, 0, len(raw))
	for _, rf := range raw {
		findings = append(findings, Finding{
			ID:             findingID(rf.Path, rf.Title, rf.StartLine),
			Title:          rf.Title,
			Severity:       p.Policy.EffectiveSeverity(rf.Category, rf.Severity),
			Category:       rf.Category,
			Path:           rf.Path,
			StartLine:      rf.StartLine,
			StartOffset:    rf.StartOffset,
			EndLine:        rf.EndLine,
			EndOffset:      rf.EndOffset,
			Rationale:      rf.Rationale,
			Recommendation: rf.Recommendation,
			FixExample:     rf.FixExample,
			Fingerprint:    fp,
		})
	}
	return findings, nil
}
