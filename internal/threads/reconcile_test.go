package threads

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/dshills/gavel/internal/circuit"
	"github.com/dshills/gavel/internal/review"
)

type fakeStore struct {
	threads  []Thread
	nextID   int
	created  []NewThread
	replies  map[string][]string
	statuses map[string][]Status
	updates  map[string][]string
}

func newFakeStore(threads ...Thread) *fakeStore {
	return &fakeStore{
		threads:  threads,
		replies:  map[string][]string{},
		statuses: map[string][]Status{},
		updates:  map[string][]string{},
	}
}

func (s *fakeStore) CreateThread(_ context.Context, t NewThread) (string, error) {
	s.nextID++
	id := fmt.Sprintf("t%d", s.nextID)
	s.created = append(s.created, t)
	s.threads = append(s.threads, Thread{
		ID:       id,
		Status:   t.Status,
		Tag:      t.Tag,
		Comments: []Comment{{ID: id + "-0", Body: t.Content, Author: "gavel"}},
	})
	return id, nil
}

func (s *fakeStore) Reply(_ context.Context, threadID, content string) error {
	s.replies[threadID] = append(s.replies[threadID], content)
	for i := range s.threads {
		if s.threads[i].ID == threadID {
			s.threads[i].Comments = append(s.threads[i].Comments, Comment{Body: content, Author: "gavel"})
		}
	}
	return nil
}

func (s *fakeStore) SetStatus(_ context.Context, threadID string, status Status) error {
	s.statuses[threadID] = append(s.statuses[threadID], status)
	for i := range s.threads {
		if s.threads[i].ID == threadID {
			s.threads[i].Status = status
		}
	}
	return nil
}

func (s *fakeStore) UpdateThread(_ context.Context, threadID, content string) error {
	s.updates[threadID] = append(s.updates[threadID], content)
	for i := range s.threads {
		if s.threads[i].ID == threadID && len(s.threads[i].Comments) > 0 {
			s.threads[i].Comments[0].Body = content
		}
	}
	return nil
}

func (s *fakeStore) ListThreads(_ context.Context) ([]Thread, error) {
	out := make([]Thread, len(s.threads))
	copy(out, s.threads)
	return out, nil
}

func testReconciler(s Store) *Reconciler {
	return &Reconciler{
		store:   s,
		breaker: circuit.NewBreaker(breakerThreshold, breakerCooldown),
		now:     func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func testFinding(path, title string, line int, sev review.Severity) review.Finding {
	return review.Finding{
		ID:             "f-" + title,
		Title:          title,
		Severity:       sev,
		Category:       review.CategoryCorrectness,
		Path:           path,
		StartLine:      line,
		EndLine:        line,
		Rationale:      "The loop index is reused after the loop ends.",
		Recommendation: "Declare the index inside the loop.",
		Fingerprint:    review.Fingerprint(path, "hash-of-"+path),
	}
}

func planOf(iteration int, findings ...review.Finding) review.PlanResult {
	return review.PlanResult{Iteration: iteration, Findings: findings}
}

func TestRunCreatesThreadsForNewFindings(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	f1 := testFinding("main.go", "Reused index", 42, review.SeverityError)
	f2 := testFinding("util.go", "Shadowed err", 7, review.SeverityWarn)

	out, err := rec.Run(context.Background(), planOf(3, f1, f2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Created != 2 {
		t.Errorf("Created = %d, want 2", out.Created)
	}
	// Two finding threads plus the ledger.
	if len(store.created) != 3 {
		t.Fatalf("created %d threads, want 3", len(store.created))
	}

	nt := store.created[0]
	if nt.Path != "main.go" || nt.LineStart != 42 || nt.LineEnd != 42 {
		t.Errorf("thread anchor = %q %d-%d, want main.go 42-42", nt.Path, nt.LineStart, nt.LineEnd)
	}
	if nt.Side != SideRight {
		t.Errorf("Side = %q, want %q", nt.Side, SideRight)
	}
	if nt.Status != StatusActive {
		t.Errorf("Status = %q, want %q", nt.Status, StatusActive)
	}
	if nt.Tag == nil {
		t.Fatal("created thread has no tag")
	}
	if nt.Tag.Fingerprint != f1.Fingerprint {
		t.Errorf("Tag.Fingerprint = %q, want %q", nt.Tag.Fingerprint, f1.Fingerprint)
	}
	if nt.Tag.Iteration != 3 {
		t.Errorf("Tag.Iteration = %d, want 3", nt.Tag.Iteration)
	}
	if nt.Tag.FindingID != f1.ID {
		t.Errorf("Tag.FindingID = %q, want %q", nt.Tag.FindingID, f1.ID)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	f1 := testFinding("main.go", "Reused index", 42, review.SeverityError)
	f2 := testFinding("util.go", "Shadowed err", 7, review.SeverityWarn)
	plan := planOf(3, f1, f2)

	if _, err := rec.Run(context.Background(), plan); err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	firstCreates := len(store.created)

	out, err := rec.Run(context.Background(), plan)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if out.Created != 0 {
		t.Errorf("second run Created = %d, want 0", out.Created)
	}
	if len(store.created) != firstCreates {
		t.Errorf("second run created %d new threads, want 0", len(store.created)-firstCreates)
	}
	if out.Retriggered != 2 {
		t.Errorf("second run Retriggered = %d, want 2", out.Retriggered)
	}
	// Matched threads get a reply, never a duplicate.
	for id, replies := range store.replies {
		for _, body := range replies {
			if !strings.Contains(body, "Re-triggered on iteration 3") {
				t.Errorf("reply on %s missing re-trigger notice: %q", id, body)
			}
		}
	}
}

func TestRunReactivatesResolvedThread(t *testing.T) {
	f := testFinding("main.go", "Reused index", 42, review.SeverityError)
	store := newFakeStore(Thread{
		ID:     "t-old",
		Status: StatusClosed,
		Tag:    &Tag{Fingerprint: f.Fingerprint, Path: f.Path, Line: f.StartLine, Iteration: 2},
		Comments: []Comment{
			{ID: "c0", Body: FormatComment(f), Author: "gavel"},
		},
	})
	rec := testReconciler(store)

	out, err := rec.Run(context.Background(), planOf(3, f))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Created != 0 {
		t.Errorf("Created = %d, want 0", out.Created)
	}
	if out.Reactivated != 1 {
		t.Errorf("Reactivated = %d, want 1", out.Reactivated)
	}
	got := store.statuses["t-old"]
	if len(got) != 1 || got[0] != StatusActive {
		t.Errorf("statuses for t-old = %v, want [active]", got)
	}
	if len(store.replies["t-old"]) != 1 {
		t.Fatalf("replies on t-old = %d, want 1", len(store.replies["t-old"]))
	}
	if !strings.Contains(store.replies["t-old"][0], "Re-triggered on iteration 3") {
		t.Errorf("reply missing re-trigger notice: %q", store.replies["t-old"][0])
	}
}

func TestRunResolvesAbsentFingerprints(t *testing.T) {
	stale := testFinding("old.go", "Stale issue", 10, review.SeverityWarn)
	store := newFakeStore(Thread{
		ID:       "t-stale",
		Status:   StatusActive,
		Tag:      &Tag{Fingerprint: stale.Fingerprint, Path: stale.Path, Line: 10, Iteration: 1},
		Comments: []Comment{{ID: "c0", Body: FormatComment(stale), Author: "gavel"}},
	})
	rec := testReconciler(store)

	fresh := testFinding("new.go", "Fresh issue", 5, review.SeverityError)
	out, err := rec.Run(context.Background(), planOf(2, fresh))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Resolved != 1 {
		t.Errorf("Resolved = %d, want 1", out.Resolved)
	}
	got := store.statuses["t-stale"]
	if len(got) != 1 || got[0] != StatusFixed {
		t.Errorf("statuses for t-stale = %v, want [fixed]", got)
	}
}

func TestRunNeverTouchesHumanThreads(t *testing.T) {
	store := newFakeStore(Thread{
		ID:       "t-human",
		Status:   StatusActive,
		Comments: []Comment{{ID: "c0", Body: "Could we rename this?", Author: "reviewer"}},
	})
	rec := testReconciler(store)

	if _, err := rec.Run(context.Background(), planOf(1)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.statuses["t-human"]) != 0 {
		t.Errorf("human thread status changed: %v", store.statuses["t-human"])
	}
	if len(store.replies["t-human"]) != 0 {
		t.Errorf("human thread got replies: %v", store.replies["t-human"])
	}
}

func TestRunLedgerCreatedOnceThenOverwritten(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	f := testFinding("main.go", "Reused index", 42, review.SeverityError)
	out, err := rec.Run(context.Background(), planOf(1, f))
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if out.LedgerID == "" {
		t.Fatal("first run produced no ledger ID")
	}

	var ledgerCreate *NewThread
	for i := range store.created {
		if store.created[i].Tag != nil && store.created[i].Tag.Ledger {
			ledgerCreate = &store.created[i]
		}
	}
	if ledgerCreate == nil {
		t.Fatal("no ledger thread created")
	}
	if ledgerCreate.Status != StatusClosed {
		t.Errorf("ledger Status = %q, want %q", ledgerCreate.Status, StatusClosed)
	}
	if ledgerCreate.Path != "" || ledgerCreate.LineStart != 0 {
		t.Errorf("ledger anchored to %q:%d, want revision-level", ledgerCreate.Path, ledgerCreate.LineStart)
	}

	l, ok := ParseLedger(ledgerCreate.Content)
	if !ok {
		t.Fatal("ledger body did not parse")
	}
	if len(l.Fingerprints) != 1 || l.Fingerprints[0].Fingerprint != f.Fingerprint {
		t.Errorf("ledger fingerprints = %+v, want one entry for %s", l.Fingerprints, f.Fingerprint)
	}

	// Second run overwrites the same thread in place.
	f2 := testFinding("util.go", "Shadowed err", 7, review.SeverityWarn)
	out2, err := rec.Run(context.Background(), planOf(2, f, f2))
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if out2.LedgerID != out.LedgerID {
		t.Errorf("ledger ID changed: %q then %q", out.LedgerID, out2.LedgerID)
	}
	ups := store.updates[out.LedgerID]
	if len(ups) != 1 {
		t.Fatalf("ledger updates = %d, want 1", len(ups))
	}
	l2, ok := ParseLedger(ups[0])
	if !ok {
		t.Fatal("updated ledger body did not parse")
	}
	if len(l2.Fingerprints) != 2 {
		t.Errorf("updated ledger has %d fingerprints, want 2", len(l2.Fingerprints))
	}
	if len(store.replies[out.LedgerID]) != 0 {
		t.Errorf("ledger thread got %d replies, want 0", len(store.replies[out.LedgerID]))
	}
}

func TestRunLedgerExemptFromResolution(t *testing.T) {
	ledgerBody, err := FormatLedger(BuildLedger(nil, time.Now()))
	if err != nil {
		t.Fatalf("FormatLedger() error = %v", err)
	}
	store := newFakeStore(Thread{
		ID:       "t-ledger",
		Status:   StatusClosed,
		Tag:      &Tag{Ledger: true, Iteration: 1},
		Comments: []Comment{{ID: "c0", Body: ledgerBody, Author: "gavel"}},
	})
	rec := testReconciler(store)

	out, err := rec.Run(context.Background(), planOf(2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Resolved != 0 {
		t.Errorf("Resolved = %d, want 0", out.Resolved)
	}
	if len(store.statuses["t-ledger"]) != 0 {
		t.Errorf("ledger status changed: %v", store.statuses["t-ledger"])
	}
	if out.LedgerID != "t-ledger" {
		t.Errorf("LedgerID = %q, want t-ledger", out.LedgerID)
	}
}

func TestRunDeletedFileAnchorsLeftSide(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	f := testFinding("gone.go", "Removed without migration", 3, review.SeverityWarn)
	f.DeletedFile = true

	if _, err := rec.Run(context.Background(), planOf(1, f)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.created) == 0 {
		t.Fatal("no thread created")
	}
	if store.created[0].Side != SideLeft {
		t.Errorf("Side = %q, want %q", store.created[0].Side, SideLeft)
	}
}

func TestRunOmitsCoordinatesWithoutLine(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	f := testFinding("main.go", "File-level concern", 0, review.SeverityInfo)
	f.EndLine = 0

	if _, err := rec.Run(context.Background(), planOf(1, f)); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	nt := store.created[0]
	if nt.LineStart != 0 || nt.LineEnd != 0 {
		t.Errorf("coordinates = %d-%d, want omitted", nt.LineStart, nt.LineEnd)
	}
}

func TestRunSameFingerprintSharesOneThread(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	// Two findings on the same file content share a fingerprint.
	f1 := testFinding("main.go", "Reused index", 42, review.SeverityError)
	f2 := testFinding("main.go", "Missing error check", 50, review.SeverityWarn)
	if f1.Fingerprint != f2.Fingerprint {
		t.Fatal("test findings should share a fingerprint")
	}

	out, err := rec.Run(context.Background(), planOf(1, f1, f2))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out.Created != 1 {
		t.Errorf("Created = %d, want 1", out.Created)
	}
	if out.Retriggered != 0 {
		t.Errorf("Retriggered = %d, want 0", out.Retriggered)
	}
	replies := store.replies["t1"]
	if len(replies) != 1 {
		t.Fatalf("replies on shared thread = %d, want 1", len(replies))
	}
	if strings.Contains(replies[0], "Re-triggered") {
		t.Errorf("same-run reply carries re-trigger notice: %q", replies[0])
	}
}

func TestRunCancelledContext(t *testing.T) {
	store := newFakeStore()
	rec := testReconciler(store)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := testFinding("main.go", "Reused index", 42, review.SeverityError)
	if _, err := rec.Run(ctx, planOf(1, f)); err == nil {
		t.Fatal("Run() with cancelled context = nil, want error")
	}
}
