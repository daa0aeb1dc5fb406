package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/dshills/gavel/internal/threads"
)

const (
	markerPrefix = "<!-- gavel:thread "
	markerSuffix = " -->"

	reviewCommentKind = "rc"
	issueCommentKind  = "ic"

	ledgerOpen  = "<details>\n<summary>AI review ledger</summary>\n\n"
	ledgerClose = "\n</details>"
)

// threadMarker is the hidden tag appended to every bot comment. It carries
// the thread tag, the lifecycle status, and for issue comments (which have
// no native reply structure) the root comment they belong to.
type threadMarker struct {
	threads.Tag
	Status  threads.Status `json:"status,omitempty"`
	ReplyTo int64          `json:"replyTo,omitempty"`
}

func renderMarker(m threadMarker) (string, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshaling thread marker: %w", err)
	}
	return markerPrefix + string(data) + markerSuffix, nil
}

func parseMarker(body string) (threadMarker, bool) {
	i := strings.LastIndex(body, markerPrefix)
	if i == -1 {
		return threadMarker{}, false
	}
	rest := body[i+len(markerPrefix):]
	j := strings.Index(rest, markerSuffix)
	if j == -1 {
		return threadMarker{}, false
	}
	var m threadMarker
	if err := json.Unmarshal([]byte(rest[:j]), &m); err != nil {
		return threadMarker{}, false
	}
	return m, true
}

func stripMarker(body string) string {
	i := strings.LastIndex(body, markerPrefix)
	if i == -1 {
		return body
	}
	return strings.TrimRight(body[:i], "\n ")
}

// replaceMarker swaps the marker at the end of body for a re-rendered one,
// leaving the visible content untouched.
func replaceMarker(body string, m threadMarker) (string, error) {
	marker, err := renderMarker(m)
	if err != nil {
		return "", err
	}
	i := strings.LastIndex(body, markerPrefix)
	if i == -1 {
		return strings.TrimRight(body, "\n") + "\n\n" + marker, nil
	}
	j := strings.Index(body[i:], markerSuffix)
	if j == -1 {
		return "", fmt.Errorf("unterminated thread marker")
	}
	return body[:i] + marker + body[i+j+len(markerSuffix):], nil
}

func wrapLedger(content string) string {
	return ledgerOpen + content + ledgerClose
}

func unwrapLedger(content string) string {
	if !strings.HasPrefix(content, ledgerOpen) {
		return content
	}
	content = strings.TrimPrefix(content, ledgerOpen)
	return strings.TrimSuffix(content, ledgerClose)
}

func threadID(kind string, id int64) string {
	return fmt.Sprintf("%s:%d", kind, id)
}

func parseThreadID(s string) (kind string, id int64, err error) {
	kind, num, ok := strings.Cut(s, ":")
	if !ok || (kind != reviewCommentKind && kind != issueCommentKind) {
		return "", 0, fmt.Errorf("malformed thread ID %q", s)
	}
	id, err = strconv.ParseInt(num, 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("malformed thread ID %q", s)
	}
	return kind, id, nil
}

// Store implements the comment-store boundary on a GitHub pull request.
// File-anchored threads are review comments; revision-level threads are
// issue comments on the PR. GitHub has no thread status field, so status
// lives in the marker and SetStatus rewrites the root comment.
type Store struct {
	client  *Client
	headSHA string
}

// NewStore builds a Store over the client's pull request. headSHA anchors
// created review comments to the revision under review.
func NewStore(client *Client, headSHA string) *Store {
	return &Store{client: client, headSHA: headSHA}
}

// CreateThread posts the root comment of a new thread.
func (s *Store) CreateThread(ctx context.Context, t threads.NewThread) (string, error) {
	status := t.Status
	if status == "" {
		status = threads.StatusActive
	}
	m := threadMarker{Status: status}
	if t.Tag != nil {
		m.Tag = *t.Tag
	}
	marker, err := renderMarker(m)
	if err != nil {
		return "", err
	}

	content := t.Content
	if t.Tag != nil && t.Tag.Ledger {
		content = wrapLedger(content)
	}
	body := content + "\n\n" + marker

	if t.Path == "" {
		ic, _, err := s.client.gh.Issues.CreateComment(ctx, s.client.owner, s.client.repo, s.client.pr,
			&gh.IssueComment{Body: gh.Ptr(body)})
		if err != nil {
			return "", fmt.Errorf("creating PR comment: %w", err)
		}
		return threadID(issueCommentKind, ic.GetID()), nil
	}

	comment := &gh.PullRequestComment{
		Body:     gh.Ptr(body),
		CommitID: gh.Ptr(s.headSHA),
		Path:     gh.Ptr(t.Path),
	}
	if t.LineStart > 0 {
		side := string(t.Side)
		if side == "" {
			side = string(threads.SideRight)
		}
		// GitHub's line field is the end of the range.
		comment.Line = gh.Ptr(t.LineEnd)
		comment.Side = gh.Ptr(side)
		if t.LineEnd > t.LineStart {
			comment.StartLine = gh.Ptr(t.LineStart)
			comment.StartSide = gh.Ptr(side)
		}
	} else {
		comment.SubjectType = gh.Ptr("file")
	}

	rc, _, err := s.client.gh.PullRequests.CreateComment(ctx, s.client.owner, s.client.repo, s.client.pr, comment)
	if err != nil {
		return "", fmt.Errorf("creating review comment on %s: %w", t.Path, err)
	}
	return threadID(reviewCommentKind, rc.GetID()), nil
}

// Reply appends a comment to an existing thread.
func (s *Store) Reply(ctx context.Context, id, content string) error {
	kind, num, err := parseThreadID(id)
	if err != nil {
		return err
	}
	if kind == reviewCommentKind {
		_, _, err := s.client.gh.PullRequests.CreateCommentInReplyTo(ctx,
			s.client.owner, s.client.repo, s.client.pr, content, num)
		if err != nil {
			return fmt.Errorf("posting reply: %w", err)
		}
		return nil
	}
	marker, err := renderMarker(threadMarker{ReplyTo: num})
	if err != nil {
		return err
	}
	_, _, err = s.client.gh.Issues.CreateComment(ctx, s.client.owner, s.client.repo, s.client.pr,
		&gh.IssueComment{Body: gh.Ptr(content + "\n\n" + marker)})
	if err != nil {
		return fmt.Errorf("posting reply: %w", err)
	}
	return nil
}

// SetStatus rewrites the root comment's marker with the new status.
func (s *Store) SetStatus(ctx context.Context, id string, status threads.Status) error {
	kind, num, err := parseThreadID(id)
	if err != nil {
		return err
	}
	body, err := s.rootBody(ctx, kind, num)
	if err != nil {
		return err
	}
	m, ok := parseMarker(body)
	if !ok {
		return fmt.Errorf("thread %s has no marker", id)
	}
	m.Status = status
	updated, err := replaceMarker(body, m)
	if err != nil {
		return err
	}
	return s.editRoot(ctx, kind, num, updated)
}

// UpdateThread overwrites the root comment's content in place, keeping the
// marker. Only the ledger thread is updated this way.
func (s *Store) UpdateThread(ctx context.Context, id, content string) error {
	kind, num, err := parseThreadID(id)
	if err != nil {
		return err
	}
	body, err := s.rootBody(ctx, kind, num)
	if err != nil {
		return err
	}
	m, ok := parseMarker(body)
	if !ok {
		return fmt.Errorf("thread %s has no marker", id)
	}
	if m.Ledger {
		content = wrapLedger(content)
	}
	marker, err := renderMarker(m)
	if err != nil {
		return err
	}
	return s.editRoot(ctx, kind, num, content+"\n\n"+marker)
}

// ListThreads reads every discussion on the pull request: review-comment
// threads (tagged and human) and tagged issue-comment threads. Untagged
// issue comments are general PR discussion and are not review threads.
func (s *Store) ListThreads(ctx context.Context) ([]threads.Thread, error) {
	rcs, err := s.listReviewComments(ctx)
	if err != nil {
		return nil, err
	}
	out := groupReviewComments(rcs)

	ics, err := s.listIssueComments(ctx)
	if err != nil {
		return nil, err
	}
	return append(out, groupIssueComments(ics)...), nil
}

func (s *Store) listReviewComments(ctx context.Context) ([]*gh.PullRequestComment, error) {
	var all []*gh.PullRequestComment
	opts := &gh.PullRequestListCommentsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := s.client.gh.PullRequests.ListComments(ctx,
			s.client.owner, s.client.repo, s.client.pr, opts)
		if err != nil {
			return nil, fmt.Errorf("listing review comments: %w", err)
		}
		all = append(all, comments...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func (s *Store) listIssueComments(ctx context.Context) ([]*gh.IssueComment, error) {
	var all []*gh.IssueComment
	opts := &gh.IssueListCommentsOptions{ListOptions: gh.ListOptions{PerPage: perPage}}
	for {
		comments, resp, err := s.client.gh.Issues.ListComments(ctx,
			s.client.owner, s.client.repo, s.client.pr, opts)
		if err != nil {
			return nil, fmt.Errorf("listing PR comments: %w", err)
		}
		all = append(all, comments...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opts.Page = resp.NextPage
	}
}

func groupReviewComments(comments []*gh.PullRequestComment) []threads.Thread {
	index := make(map[int64]int)
	var out []threads.Thread

	for _, c := range comments {
		if c.GetInReplyTo() != 0 {
			continue
		}
		th := threads.Thread{
			ID:     threadID(reviewCommentKind, c.GetID()),
			Path:   c.GetPath(),
			Status: threads.StatusActive,
		}
		ledger := false
		if m, ok := parseMarker(c.GetBody()); ok {
			tag := m.Tag
			th.Tag = &tag
			ledger = tag.Ledger
			if m.Status != "" {
				th.Status = m.Status
			}
		}
		th.Comments = append(th.Comments, toComment(c.GetID(), c.GetBody(), c.GetUser().GetLogin(), ledger))
		index[c.GetID()] = len(out)
		out = append(out, th)
	}

	for _, c := range comments {
		parent := c.GetInReplyTo()
		if parent == 0 {
			continue
		}
		i, ok := index[parent]
		if !ok {
			continue
		}
		out[i].Comments = append(out[i].Comments, toComment(c.GetID(), c.GetBody(), c.GetUser().GetLogin(), false))
	}
	return out
}

func groupIssueComments(comments []*gh.IssueComment) []threads.Thread {
	index := make(map[int64]int)
	var out []threads.Thread

	for _, c := range comments {
		m, ok := parseMarker(c.GetBody())
		if !ok || m.ReplyTo != 0 {
			continue
		}
		tag := m.Tag
		th := threads.Thread{
			ID:     threadID(issueCommentKind, c.GetID()),
			Status: threads.StatusActive,
			Tag:    &tag,
		}
		if m.Status != "" {
			th.Status = m.Status
		}
		th.Comments = append(th.Comments, toComment(c.GetID(), c.GetBody(), c.GetUser().GetLogin(), tag.Ledger))
		index[c.GetID()] = len(out)
		out = append(out, th)
	}

	for _, c := range comments {
		m, ok := parseMarker(c.GetBody())
		if !ok || m.ReplyTo == 0 {
			continue
		}
		if i, found := index[m.ReplyTo]; found {
			out[i].Comments = append(out[i].Comments, toComment(c.GetID(), c.GetBody(), c.GetUser().GetLogin(), false))
		}
	}
	return out
}

func toComment(id int64, body, author string, ledger bool) threads.Comment {
	content := stripMarker(body)
	if ledger {
		content = unwrapLedger(content)
	}
	return threads.Comment{ID: strconv.FormatInt(id, 10), Body: content, Author: author}
}

func (s *Store) rootBody(ctx context.Context, kind string, id int64) (string, error) {
	if kind == reviewCommentKind {
		rc, _, err := s.client.gh.PullRequests.GetComment(ctx, s.client.owner, s.client.repo, id)
		if err != nil {
			return "", fmt.Errorf("fetching comment %d: %w", id, err)
		}
		return rc.GetBody(), nil
	}
	ic, _, err := s.client.gh.Issues.GetComment(ctx, s.client.owner, s.client.repo, id)
	if err != nil {
		return "", fmt.Errorf("fetching comment %d: %w", id, err)
	}
	return ic.GetBody(), nil
}

func (s *Store) editRoot(ctx context.Context, kind string, id int64, body string) error {
	if kind == reviewCommentKind {
		_, _, err := s.client.gh.PullRequests.EditComment(ctx, s.client.owner, s.client.repo, id,
			&gh.PullRequestComment{Body: gh.Ptr(body)})
		if err != nil {
			return fmt.Errorf("editing comment %d: %w", id, err)
		}
		return nil
	}
	_, _, err := s.client.gh.Issues.EditComment(ctx, s.client.owner, s.client.repo, id,
		&gh.IssueComment{Body: gh.Ptr(body)})
	if err != nil {
		return fmt.Errorf("editing comment %d: %w", id, err)
	}
	return nil
}
