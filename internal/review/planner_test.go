package review

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// mockReviewer counts calls and serves canned findings per file.
type mockReviewer struct {
	mu        sync.Mutex
	fileCalls int
	metaCalls int
	perFile   func(req FileRequest) ([]RawFinding, error)
	meta      func(req MetadataRequest) ([]RawFinding, error)
}

func (m *mockReviewer) ReviewFile(ctx context.Context, req FileRequest) ([]RawFinding, error) {
	m.mu.Lock()
	m.fileCalls++
	m.mu.Unlock()
	if m.perFile != nil {
		return m.perFile(req)
	}
	return nil, nil
}

func (m *mockReviewer) ReviewMetadata(ctx context.Context, req MetadataRequest) ([]RawFinding, error) {
	m.mu.Lock()
	m.metaCalls++
	m.mu.Unlock()
	if m.meta != nil {
		return m.meta(req)
	}
	return nil, nil
}

func (m *mockReviewer) counts() (file, meta int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fileCalls, m.metaCalls
}

func rawWarn(title string) RawFinding {
	return RawFinding{
		Title:          title,
		Severity:       SeverityWarn,
		Category:       CategoryCorrectness,
		Rationale:      "because",
		Recommendation: "fix it",
	}
}

func newPlanner(r Reviewer) *Planner {
	return &Planner{
		Reviewer:         r,
		Policy:           Policy{},
		MaxFilesToReview: 50,
		MaxDiffBytes:     500000,
		MaxIssuesPerFile: 10,
		WarnBudget:       3,
	}
}

func TestPlanTruncatesFiles(t *testing.T) {
	mock := &mockReviewer{}
	p := newPlanner(mock)

	diffs := make([]FileDiff, 60)
	for i := range diffs {
		diffs[i] = FileDiff{Path: fmt.Sprintf("file%02d.go", i), Text: "+x\n", ContentHash: fmt.Sprintf("h%d", i)}
	}

	if _, err := p.Plan(context.Background(), 1, diffs, nil, Metadata{}); err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	file, meta := mock.counts()
	if file != 50 {
		t.Errorf("file review calls = %d, want exactly 50", file)
	}
	if meta != 1 {
		t.Errorf("metadata review calls = %d, want exactly 1", meta)
	}
}

func TestPlanSkipsOversizedAndBinary(t *testing.T) {
	mock := &mockReviewer{}
	p := newPlanner(mock)
	p.MaxDiffBytes = 10

	diffs := []FileDiff{
		{Path: "ok.go", Text: "+short\n", ContentHash: "h1"},
		{Path: "big.go", Text: "+this diff is far past the byte bound\n", ContentHash: "h2"},
		{Path: "img.png", Text: "", Binary: true, ContentHash: "h3"},
	}

	if _, err := p.Plan(context.Background(), 1, diffs, nil, Metadata{}); err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if file, _ := mock.counts(); file != 1 {
		t.Errorf("file review calls = %d, want 1 (oversized and binary skipped)", file)
	}
}

func TestPlanPerFileFailureIsolation(t *testing.T) {
	mock := &mockReviewer{
		perFile: func(req FileRequest) ([]RawFinding, error) {
			if req.Diff.Path == "broken.go" {
				return nil, errors.New("provider exploded")
			}
			return []RawFinding{rawWarn("issue in " + req.Diff.Path)}, nil
		},
	}
	p := newPlanner(mock)

	diffs := []FileDiff{
		{Path: "ok.go", Text: "+x\n", ContentHash: "h1"},
		{Path: "broken.go", Text: "+y\n", ContentHash: "h2"},
		{Path: "fine.go", Text: "+z\n", ContentHash: "h3"},
	}

	result, err := p.Plan(context.Background(), 1, diffs, nil, Metadata{})
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(result.Findings) != 2 {
		t.Errorf("got %d findings, want 2 (failed file contributes zero)", len(result.Findings))
	}
	for _, f := range result.Findings {
		if f.Path == "broken.go" {
			t.Errorf("failed file produced a finding: %+v", f)
		}
	}
}

func TestPlanMalformedResponseIsolation(t *testing.T) {
	mock := &mockReviewer{
		perFile: func(req FileRequest) ([]RawFinding, error) {
			return nil, &MalformedResponseError{Reason: "garbage"}
		},
	}
	p := newPlanner(mock)

	result, err := p.Plan(context.Background(), 1,
		[]FileDiff{{Path: "a.go", Text: "+x\n", ContentHash: "h"}}, nil, Metadata{})
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(result.Findings) != 0 {
		t.Errorf("got %d findings, want 0", len(result.Findings))
	}
	if !result.Approve {
		t.Error("a plan with zero findings must approve")
	}
}

func TestPlanCapsFindingsPerFile(t *testing.T) {
	mock := &mockReviewer{
		perFile: func(req FileRequest) ([]RawFinding, error) {
			var out []RawFinding
			for i := 0; i < 7; i++ {
				out = append(out, rawWarn(fmt.Sprintf("issue %d", i)))
			}
			return out, nil
		},
	}
	p := newPlanner(mock)
	p.MaxIssuesPerFile = 3
	p.WarnBudget = 10

	result, err := p.Plan(context.Background(), 1,
		[]FileDiff{{Path: "a.go", Text: "+x\n", ContentHash: "h"}}, nil, Metadata{})
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(result.Findings) != 3 {
		t.Errorf("got %d findings, want the first 3", len(result.Findings))
	}
}

func TestPlanAssignsFingerprintAndDefaults(t *testing.T) {
	raw := rawWarn("nil deref")
	raw.StartLine = 4
	mock := &mockReviewer{
		perFile: func(req FileRequest) ([]RawFinding, error) {
			return []RawFinding{raw}, nil // path left empty on purpose
		},
	}
	p := newPlanner(mock)

	diff := FileDiff{Path: "gone.go", Text: "-x\n", ContentHash: "hash9", Deleted: true}
	result, err := p.Plan(context.Background(), 3, []FileDiff{diff}, nil, Metadata{})
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(result.Findings))
	}
	f := result.Findings[0]
	if f.Path != "gone.go" {
		t.Errorf("Path = %q, want the diff's path as default", f.Path)
	}
	if f.Fingerprint != Fingerprint("gone.go", "hash9") {
		t.Errorf("Fingerprint = %q, want Fingerprint(path, contentHash)", f.Fingerprint)
	}
	if !f.DeletedFile {
		t.Error("DeletedFile not propagated from the diff")
	}
	if result.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", result.Iteration)
	}
}

func TestPlanMetadataFindings(t *testing.T) {
	mock := &mockReviewer{
		meta: func(req MetadataRequest) ([]RawFinding, error) {
			return []RawFinding{rawWarn("empty description")}, nil
		},
	}
	p := newPlanner(mock)

	meta := Metadata{Title: "Fix stuff", Description: "does things"}
	result, err := p.Plan(context.Background(), 1, nil, nil, meta)
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(result.Findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(result.Findings))
	}
	if result.Findings[0].Fingerprint != MetadataFingerprint("does things") {
		t.Error("metadata finding not fingerprinted from the description alone")
	}
}

func TestPlanMetadataFailureIsolation(t *testing.T) {
	mock := &mockReviewer{
		meta: func(req MetadataRequest) ([]RawFinding, error) {
			return nil, errors.New("provider exploded")
		},
	}
	p := newPlanner(mock)

	result, err := p.Plan(context.Background(), 1, nil, nil, Metadata{})
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if len(result.Findings) != 0 || !result.Approve {
		t.Errorf("metadata failure should yield zero findings and approve, got %+v", result)
	}
}

func TestPlanVerdict(t *testing.T) {
	tests := []struct {
		name    string
		errors  int
		warns   int
		budget  int
		approve bool
	}{
		{"warns at budget approve", 0, 3, 3, true},
		{"warns above budget reject", 0, 4, 3, false},
		{"any error rejects", 1, 0, 3, false},
		{"error rejects despite zero warns and large budget", 1, 0, 100, false},
		{"clean approves", 0, 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockReviewer{
				perFile: func(req FileRequest) ([]RawFinding, error) {
					var out []RawFinding
					for i := 0; i < tt.errors; i++ {
						f := rawWarn(fmt.Sprintf("err %d", i))
						f.Severity = SeverityError
						out = append(out, f)
					}
					for i := 0; i < tt.warns; i++ {
						out = append(out, rawWarn(fmt.Sprintf("warn %d", i)))
					}
					return out, nil
				},
			}
			p := newPlanner(mock)
			p.WarnBudget = tt.budget

			result, err := p.Plan(context.Background(), 1,
				[]FileDiff{{Path: "a.go", Text: "+x\n", ContentHash: "h"}}, nil, Metadata{})
			if err != nil {
				t.Fatalf("Plan error: %v", err)
			}
			if result.ErrorCount != tt.errors || result.WarningCount != tt.warns {
				t.Errorf("counts = %d err / %d warn, want %d / %d",
					result.ErrorCount, result.WarningCount, tt.errors, tt.warns)
			}
			if result.Approve != tt.approve {
				t.Errorf("Approve = %v, want %v", result.Approve, tt.approve)
			}
		})
	}
}

func TestPlanPolicyWarnBudgetOverride(t *testing.T) {
	mock := &mockReviewer{
		perFile: func(req FileRequest) ([]RawFinding, error) {
			return []RawFinding{rawWarn("one warn")}, nil
		},
	}
	p := newPlanner(mock)
	p.WarnBudget = 3
	zero := 0
	p.Policy = Policy{WarnBudget: &zero}

	result, err := p.Plan(context.Background(), 1,
		[]FileDiff{{Path: "a.go", Text: "+x\n", ContentHash: "h"}}, nil, Metadata{})
	if err != nil {
		t.Fatalf("Plan error: %v", err)
	}
	if result.WarnBudget != 0 {
		t.Errorf("WarnBudget = %d, want policy override 0", result.WarnBudget)
	}
	if result.Approve {
		t.Error("one warn against a zero budget must reject")
	}
}

func TestPlanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	mock := &mockReviewer{}
	p := newPlanner(mock)
	_, err := p.Plan(ctx, 1, []FileDiff{{Path: "a.go", Text: "+x\n", ContentHash: "h"}}, nil, Metadata{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Plan error = %v, want context.Canceled", err)
	}
}

func TestApproved(t *testing.T) {
	if !Approved(0, 3, 3) {
		t.Error("Approved(0, 3, 3) = false, want true")
	}
	if Approved(0, 4, 3) {
		t.Error("Approved(0, 4, 3) = true, want false")
	}
	if Approved(1, 0, 3) {
		t.Error("Approved(1, 0, 3) = true, want false")
	}
}
