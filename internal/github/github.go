package github

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"

	gh "github.com/google/go-github/v68/github"

	"github.com/dshills/gavel/internal/review"
)

const perPage = 100

// Client provides access to one pull request on GitHub.
type Client struct {
	gh    *gh.Client
	owner string
	repo  string
	pr    int
}

// NewClient creates a client for owner/repo#pr. Requires the GITHUB_TOKEN
// environment variable; GITHUB_API_URL overrides the endpoint for GitHub
// Enterprise installs.
func NewClient(owner, repo string, pr int) (*Client, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("GITHUB_TOKEN environment variable is not set")
	}

	cli := gh.NewClient(nil).WithAuthToken(token)
	if apiURL := os.Getenv("GITHUB_API_URL"); apiURL != "" {
		base, err := url.Parse(strings.TrimRight(apiURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GITHUB_API_URL: %w", err)
		}
		cli.BaseURL = base
	}

	return &Client{gh: cli, owner: owner, repo: repo, pr: pr}, nil
}

// PullContext is the revision metadata a review run needs up front. A
// context with a missing SHA or zero iteration never leaves PullContext;
// the fetch fails instead, before any model call is made.
type PullContext struct {
	Number         int
	Title          string
	Description    string
	HeadSHA        string
	BaseSHA        string
	Iteration      int
	CommitMessages []string
}

// PullContext fetches the pull request and validates the preconditions of
// a review run. The iteration number is the commit count of the PR, so it
// advances whenever the author pushes.
func (c *Client) PullContext(ctx context.Context) (PullContext, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, c.owner, c.repo, c.pr)
	if err != nil {
		return PullContext{}, fmt.Errorf("fetching PR #%d: %w", c.pr, err)
	}

	pc := PullContext{
		Number:      c.pr,
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
		HeadSHA:     pr.GetHead().GetSHA(),
		BaseSHA:     pr.GetBase().GetSHA(),
		Iteration:   pr.GetCommits(),
	}
	if pc.HeadSHA == "" {
		return PullContext{}, fmt.Errorf("PR #%d has no head SHA", c.pr)
	}
	if pc.BaseSHA == "" {
		return PullContext{}, fmt.Errorf("PR #%d has no base SHA", c.pr)
	}
	if pc.Iteration <= 0 {
		return PullContext{}, fmt.Errorf("PR #%d has no commits", c.pr)
	}

	msgs, err := c.commitMessages(ctx)
	if err != nil {
		return PullContext{}, err
	}
	pc.CommitMessages = msgs
	return pc, nil
}

func (c *Client) commitMessages(ctx context.Context) ([]string, error) {
	var msgs []string
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		commits, resp, err := c.gh.PullRequests.ListCommits(ctx, c.owner, c.repo, c.pr, opts)
		if err != nil {
			return nil, fmt.Errorf("listing PR commits: %w", err)
		}
		for _, rc := range commits {
			msgs = append(msgs, rc.GetCommit().GetMessage())
		}
		if resp.NextPage == 0 {
			return msgs, nil
		}
		opts.Page = resp.NextPage
	}
}

// Files fetches the changed files of the pull request as per-file diffs.
// A file with no patch text (binary content) keeps its entry with Binary
// set so the planner can log the skip.
func (c *Client) Files(ctx context.Context) ([]review.FileDiff, error) {
	var diffs []review.FileDiff
	opts := &gh.ListOptions{PerPage: perPage}
	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, c.owner, c.repo, c.pr, opts)
		if err != nil {
			return nil, fmt.Errorf("listing PR files: %w", err)
		}
		for _, f := range files {
			patch := f.GetPatch()
			diffs = append(diffs, review.FileDiff{
				Path:        f.GetFilename(),
				Text:        patch,
				ContentHash: f.GetSHA(),
				Binary:      patch == "",
				Deleted:     f.GetStatus() == "removed",
			})
		}
		if resp.NextPage == 0 {
			return diffs, nil
		}
		opts.Page = resp.NextPage
	}
}

var (
	httpsRemoteRe = regexp.MustCompile(`https?://[^/]+/([^/]+)/([^/.\s]+)`)
	sshRemoteRe   = regexp.MustCompile(`[^@]+@[^:]+:([^/]+)/([^/.\s]+)`)
)

// DetectRepo parses owner/repo from the git remote origin URL.
func DetectRepo() (owner, repo string, err error) {
	out, err := exec.Command("git", "remote", "get-url", "origin").Output()
	if err != nil {
		return "", "", fmt.Errorf("cannot detect repo: git remote get-url origin failed: %w", err)
	}
	return ParseRemoteURL(strings.TrimSpace(string(out)))
}

// ParseRemoteURL extracts owner/repo from a git remote URL.
func ParseRemoteURL(remote string) (owner, repo string, err error) {
	remote = strings.TrimSuffix(remote, ".git")

	if m := httpsRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	if m := sshRemoteRe.FindStringSubmatch(remote); len(m) == 3 {
		return m[1], m[2], nil
	}
	return "", "", fmt.Errorf("cannot parse owner/repo from remote URL: %s", remote)
}
