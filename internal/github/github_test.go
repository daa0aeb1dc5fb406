package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	gh "github.com/google/go-github/v68/github"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cli := gh.NewClient(server.Client())
	base, err := url.Parse(server.URL + "/")
	if err != nil {
		t.Fatalf("parsing server URL: %v", err)
	}
	cli.BaseURL = base

	return &Client{gh: cli, owner: "owner", repo: "repo", pr: 7}
}

func TestPullContext(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"number": 7,
			"title": "Add retry loop",
			"body": "Retries transient failures.",
			"commits": 3,
			"head": {"sha": "headsha123"},
			"base": {"sha": "basesha456"}
		}`))
	})
	mux.HandleFunc("/repos/owner/repo/pulls/7/commits", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"commit": {"message": "feat: add retry"}},
			{"commit": {"message": "fix: cap backoff"}}
		]`))
	})

	c := testClient(t, mux)
	pc, err := c.PullContext(context.Background())
	if err != nil {
		t.Fatalf("PullContext() error = %v", err)
	}
	if pc.Title != "Add retry loop" {
		t.Errorf("Title = %q", pc.Title)
	}
	if pc.HeadSHA != "headsha123" || pc.BaseSHA != "basesha456" {
		t.Errorf("SHAs = %q/%q", pc.HeadSHA, pc.BaseSHA)
	}
	if pc.Iteration != 3 {
		t.Errorf("Iteration = %d, want 3", pc.Iteration)
	}
	if len(pc.CommitMessages) != 2 || pc.CommitMessages[1] != "fix: cap backoff" {
		t.Errorf("CommitMessages = %v", pc.CommitMessages)
	}
}

func TestPullContextMissingHeadSHA(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number": 7, "commits": 1, "base": {"sha": "basesha"}}`))
	})

	c := testClient(t, mux)
	if _, err := c.PullContext(context.Background()); err == nil {
		t.Fatal("PullContext() with no head SHA = nil, want error")
	}
}

func TestPullContextNoCommits(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"number": 7, "head": {"sha": "h"}, "base": {"sha": "b"}}`))
	})

	c := testClient(t, mux)
	if _, err := c.PullContext(context.Background()); err == nil {
		t.Fatal("PullContext() with zero commits = nil, want error")
	}
}

func TestFiles(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"filename": "main.go", "sha": "blob1", "status": "modified",
			 "patch": "@@ -1,3 +1,4 @@\n context\n+added\n"},
			{"filename": "logo.png", "sha": "blob2", "status": "added"},
			{"filename": "old.go", "sha": "blob3", "status": "removed",
			 "patch": "@@ -1,2 +0,0 @@\n-gone\n-lines\n"}
		]`))
	})

	c := testClient(t, mux)
	diffs, err := c.Files(context.Background())
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(diffs) != 3 {
		t.Fatalf("len = %d, want 3", len(diffs))
	}

	if diffs[0].Path != "main.go" || diffs[0].ContentHash != "blob1" {
		t.Errorf("diffs[0] = %+v", diffs[0])
	}
	if diffs[0].Binary || diffs[0].Deleted {
		t.Errorf("main.go flagged binary=%v deleted=%v", diffs[0].Binary, diffs[0].Deleted)
	}
	if !diffs[1].Binary {
		t.Error("logo.png (no patch) not flagged binary")
	}
	if !diffs[2].Deleted {
		t.Error("old.go (status removed) not flagged deleted")
	}
	if diffs[2].Binary {
		t.Error("old.go has a patch but was flagged binary")
	}
}

func TestFilesPagination(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/owner/repo/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			w.Write([]byte(`[{"filename": "b.go", "sha": "s2", "patch": "@@ -1 +1 @@\n-x\n+y\n"}]`))
			return
		}
		w.Header().Set("Link", `<`+"http://"+r.Host+`/repos/owner/repo/pulls/7/files?page=2>; rel="next"`)
		w.Write([]byte(`[{"filename": "a.go", "sha": "s1", "patch": "@@ -1 +1 @@\n-a\n+b\n"}]`))
	})

	c := testClient(t, mux)
	diffs, err := c.Files(context.Background())
	if err != nil {
		t.Fatalf("Files() error = %v", err)
	}
	if len(diffs) != 2 {
		t.Fatalf("len = %d, want 2", len(diffs))
	}
	if diffs[0].Path != "a.go" || diffs[1].Path != "b.go" {
		t.Errorf("paths = %q, %q", diffs[0].Path, diffs[1].Path)
	}
}

func TestParseRemoteURL(t *testing.T) {
	tests := []struct {
		name      string
		url       string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{
			name:      "HTTPS",
			url:       "https://github.com/dshills/gavel.git",
			wantOwner: "dshills",
			wantRepo:  "gavel",
		},
		{
			name:      "HTTPS no .git",
			url:       "https://github.com/dshills/gavel",
			wantOwner: "dshills",
			wantRepo:  "gavel",
		},
		{
			name:      "SSH",
			url:       "git@github.com:dshills/gavel.git",
			wantOwner: "dshills",
			wantRepo:  "gavel",
		},
		{
			name:      "SSH no .git",
			url:       "git@github.com:dshills/gavel",
			wantOwner: "dshills",
			wantRepo:  "gavel",
		},
		{
			name:    "invalid",
			url:     "not-a-url",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			owner, repo, err := ParseRemoteURL(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if owner != tt.wantOwner {
				t.Errorf("owner = %q, want %q", owner, tt.wantOwner)
			}
			if repo != tt.wantRepo {
				t.Errorf("repo = %q, want %q", repo, tt.wantRepo)
			}
		})
	}
}
