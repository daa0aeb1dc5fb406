package threads

import "context"

// Status is the lifecycle state of a discussion thread.
type Status string

const (
	StatusActive Status = "active"
	StatusFixed  Status = "fixed"
	StatusClosed Status = "closed"
)

// Resolved reports whether the status counts as settled. A finding whose
// fingerprint reappears on a resolved thread re-activates it.
func (s Status) Resolved() bool {
	return s == StatusFixed || s == StatusClosed
}

// Side anchors a thread to one side of a diff: LEFT is the original file
// (used for findings on deleted files), RIGHT the new version.
type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// Comment is one comment on a thread.
type Comment struct {
	ID     string
	Body   string
	Author string
}

// Thread is a discussion container on the hosting platform. A non-nil Tag
// marks it as bot-authored; everything else is a human thread and is never
// touched.
type Thread struct {
	ID       string
	Path     string
	Status   Status
	Tag      *Tag
	Comments []Comment
}

// Body returns the root comment's body, or empty for a comment-less
// thread.
func (t Thread) Body() string {
	if len(t.Comments) == 0 {
		return ""
	}
	return t.Comments[0].Body
}

// NewThread describes a thread to create. LineStart and LineEnd are
// supplied together or omitted together (zero); a thread without a path
// anchors to the revision itself rather than a file.
type NewThread struct {
	Content   string
	Path      string
	LineStart int
	LineEnd   int
	Side      Side
	Status    Status
	Tag       *Tag
}

// Store is the comment-store boundary of the hosting platform. All state
// gavel relies on between runs lives behind this interface; there is no
// database of its own.
type Store interface {
	CreateThread(ctx context.Context, t NewThread) (string, error)
	Reply(ctx context.Context, threadID, content string) error
	SetStatus(ctx context.Context, threadID string, status Status) error
	// UpdateThread overwrites the root comment of a thread in place.
	// Only the ledger thread is ever updated this way.
	UpdateThread(ctx context.Context, threadID, content string) error
	ListThreads(ctx context.Context) ([]Thread, error)
}
