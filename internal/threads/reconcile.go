package threads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/gavel/internal/circuit"
	"github.com/dshills/gavel/internal/review"
)

const (
	mutationRetries  = 3
	retryBackoffBase = 500 * time.Millisecond
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// Outcome summarizes the mutations applied by one reconciliation run.
type Outcome struct {
	Created     int
	Retriggered int
	Reactivated int
	Resolved    int
	LedgerID    string
}

// Reconciler maps a plan's findings onto platform threads: it creates a
// thread for a new fingerprint, appends to the thread of a known one
// (re-activating it if it was resolved), resolves bot threads whose
// fingerprint disappeared, and maintains the single hidden ledger thread.
//
// All store mutations go through a retry-with-backoff loop gated by a
// circuit breaker, and are applied one finding at a time so cancellation
// never leaves a partial write in flight.
type Reconciler struct {
	store   Store
	breaker *circuit.Breaker
	now     func() time.Time
}

// NewReconciler builds a Reconciler on a comment store.
func NewReconciler(store Store) *Reconciler {
	return &Reconciler{
		store:   store,
		breaker: circuit.NewBreaker(breakerThreshold, breakerCooldown),
		now:     time.Now,
	}
}

// Run reconciles the finding set of one plan against the platform's
// threads. Applying the same finding set twice creates no additional
// threads: the second pass only appends re-trigger comments.
func (r *Reconciler) Run(ctx context.Context, result review.PlanResult) (Outcome, error) {
	var out Outcome

	var existing []Thread
	err := r.do(ctx, func() error {
		var listErr error
		existing, listErr = r.store.ListThreads(ctx)
		return listErr
	})
	if err != nil {
		return out, fmt.Errorf("listing threads: %w", err)
	}

	// Index bot threads by fingerprint. The listing is read once here and
	// never refreshed mid-run.
	byFP := make(map[string]*Thread)
	var ledger *Thread
	for i := range existing {
		t := &existing[i]
		if t.Tag == nil {
			continue
		}
		if t.Tag.Ledger {
			if ledger == nil {
				ledger = t
			}
			continue
		}
		if _, ok := byFP[t.Tag.Fingerprint]; !ok {
			byFP[t.Tag.Fingerprint] = t
		}
	}

	createdThisRun := make(map[string]bool)

	for _, f := range result.Findings {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if th, ok := byFP[f.Fingerprint]; ok {
			if err := r.appendToThread(ctx, th, f, result.Iteration, createdThisRun[f.Fingerprint], &out); err != nil {
				return out, err
			}
			continue
		}
		id, err := r.createThread(ctx, f, result.Iteration)
		if err != nil {
			return out, err
		}
		byFP[f.Fingerprint] = &Thread{ID: id, Status: StatusActive, Tag: &Tag{Fingerprint: f.Fingerprint, Iteration: result.Iteration}}
		createdThisRun[f.Fingerprint] = true
		out.Created++
	}

	// A bot thread whose fingerprint is absent from the current set is
	// presumed addressed. The ledger is exempt.
	current := make(map[string]bool, len(result.Findings))
	for _, f := range result.Findings {
		current[f.Fingerprint] = true
	}
	for i := range existing {
		t := &existing[i]
		if t.Tag == nil || t.Tag.Ledger {
			continue
		}
		if current[t.Tag.Fingerprint] || t.Status.Resolved() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := r.do(ctx, func() error { return r.store.SetStatus(ctx, t.ID, StatusFixed) }); err != nil {
			return out, fmt.Errorf("resolving thread %s: %w", t.ID, err)
		}
		out.Resolved++
	}

	id, err := r.upsertLedger(ctx, ledger, result)
	if err != nil {
		return out, err
	}
	out.LedgerID = id

	return out, nil
}

// appendToThread handles a fingerprint match: a reply on the existing
// thread, plus re-activation when the thread had been resolved. A second
// finding with the same fingerprint within one run replies without the
// re-trigger notice.
func (r *Reconciler) appendToThread(ctx context.Context, th *Thread, f review.Finding, iteration int, sameRun bool, out *Outcome) error {
	content := FormatRetriggered(f, iteration)
	if sameRun {
		content = FormatComment(f)
	}
	if err := r.do(ctx, func() error { return r.store.Reply(ctx, th.ID, content) }); err != nil {
		return fmt.Errorf("replying to thread %s: %w", th.ID, err)
	}
	if !sameRun {
		out.Retriggered++
	}
	if th.Status.Resolved() {
		if err := r.do(ctx, func() error { return r.store.SetStatus(ctx, th.ID, StatusActive) }); err != nil {
			return fmt.Errorf("reactivating thread %s: %w", th.ID, err)
		}
		th.Status = StatusActive
		out.Reactivated++
	}
	return nil
}

func (r *Reconciler) createThread(ctx context.Context, f review.Finding, iteration int) (string, error) {
	side := SideRight
	if f.DeletedFile {
		side = SideLeft
	}
	nt := NewThread{
		Content: FormatComment(f),
		Path:    f.Path,
		Side:    side,
		Status:  StatusActive,
		Tag: &Tag{
			Fingerprint: f.Fingerprint,
			Path:        f.Path,
			Line:        f.StartLine,
			FindingID:   f.ID,
			Iteration:   iteration,
		},
	}
	// Line coordinates travel together or not at all.
	if f.StartLine > 0 {
		nt.LineStart = f.StartLine
		nt.LineEnd = f.EndLine
		if nt.LineEnd < nt.LineStart {
			nt.LineEnd = nt.LineStart
		}
	}

	var id string
	err := r.do(ctx, func() error {
		var createErr error
		id, createErr = r.store.CreateThread(ctx, nt)
		return createErr
	})
	if err != nil {
		return "", fmt.Errorf("creating thread for %q: %w", f.Title, err)
	}
	return id, nil
}

// upsertLedger writes the machine-readable snapshot of the current
// finding set: overwriting the existing ledger thread's comment in place,
// or creating the thread (closed, so platforms render it collapsed) when
// absent.
func (r *Reconciler) upsertLedger(ctx context.Context, ledger *Thread, result review.PlanResult) (string, error) {
	body, err := FormatLedger(BuildLedger(result.Findings, r.now()))
	if err != nil {
		return "", err
	}

	if ledger != nil {
		if err := r.do(ctx, func() error { return r.store.UpdateThread(ctx, ledger.ID, body) }); err != nil {
			return "", fmt.Errorf("updating ledger: %w", err)
		}
		return ledger.ID, nil
	}

	var id string
	err = r.do(ctx, func() error {
		var createErr error
		id, createErr = r.store.CreateThread(ctx, NewThread{
			Content: body,
			Status:  StatusClosed,
			Tag:     &Tag{Ledger: true, Iteration: result.Iteration},
		})
		return createErr
	})
	if err != nil {
		return "", fmt.Errorf("creating ledger: %w", err)
	}
	return id, nil
}

// do applies one store call through the circuit breaker, retrying with
// exponential backoff. An open breaker fails immediately so retries never
// pile onto a dependency that is already down.
func (r *Reconciler) do(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= mutationRetries; attempt++ {
		lastErr = r.breaker.Do(ctx, fn)
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, circuit.ErrOpen) || ctx.Err() != nil {
			return lastErr
		}
		if attempt < mutationRetries {
			backoff := retryBackoffBase << uint(attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	return lastErr
}
