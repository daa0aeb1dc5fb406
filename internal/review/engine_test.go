package review

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/dshills/gavel/internal/cache"
	"github.com/dshills/gavel/internal/providers"
)

// fakeProvider serves canned responses and records prompts.
type fakeProvider struct {
	mu      sync.Mutex
	calls   int
	prompts []string
	respond func(req providers.Request) (providers.Response, error)
}

func (f *fakeProvider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	f.mu.Lock()
	f.calls++
	f.prompts = append(f.prompts, req.Prompt)
	f.mu.Unlock()
	if f.respond != nil {
		return f.respond(req)
	}
	return providers.Response{Content: "[]"}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fileReq(path, text string) FileRequest {
	return FileRequest{Diff: FileDiff{Path: path, Text: text, ContentHash: "h"}}
}

func TestEngineReviewFile(t *testing.T) {
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			return providers.Response{Content: validFindingJSON}, nil
		},
	}
	e := NewEngine(fp, "test-model", 100000, nil)

	findings, err := e.ReviewFile(context.Background(), fileReq("main.go", "+x\n"))
	if err != nil {
		t.Fatalf("ReviewFile error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].Title != "Unchecked error" {
		t.Errorf("Title = %q", findings[0].Title)
	}
	if fp.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1", fp.callCount())
	}
}

func TestEngineRefusalIsZeroFindings(t *testing.T) {
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			return providers.Response{Refused: true}, nil
		},
	}
	e := NewEngine(fp, "test-model", 100000, nil)

	findings, err := e.ReviewFile(context.Background(), fileReq("main.go", "+x\n"))
	if err != nil {
		t.Fatalf("refusal must not be an error, got: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("got %d findings, want 0", len(findings))
	}
}

func TestEngineMalformedResponse(t *testing.T) {
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			return providers.Response{Content: "{not valid at all"}, nil
		},
	}
	e := NewEngine(fp, "test-model", 100000, nil)

	_, err := e.ReviewFile(context.Background(), fileReq("main.go", "+x\n"))
	if err == nil {
		t.Fatal("expected error for malformed response")
	}
	if !IsMalformedResponse(err) {
		t.Errorf("error %v is not a MalformedResponseError", err)
	}
}

func TestEngineChunksOversizedDiffs(t *testing.T) {
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			return providers.Response{Content: `[{"title":"t","severity":"info","category":"style","rationale":"r","recommendation":"rec"}]`}, nil
		},
	}
	e := NewEngine(fp, "test-model", 40, nil)

	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString(" context line of padding\n")
	}
	findings, err := e.ReviewFile(context.Background(), fileReq("big.go", b.String()))
	if err != nil {
		t.Fatalf("ReviewFile error: %v", err)
	}
	if fp.callCount() < 2 {
		t.Errorf("provider calls = %d, want one per chunk (>= 2)", fp.callCount())
	}
	if len(findings) != fp.callCount() {
		t.Errorf("findings = %d, want one per chunk call (%d)", len(findings), fp.callCount())
	}
}

func TestEngineUsesCache(t *testing.T) {
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			return providers.Response{Content: "[]"}, nil
		},
	}
	c, err := cache.New(true, t.TempDir(), 3600)
	if err != nil {
		t.Fatalf("cache.New error: %v", err)
	}
	e := NewEngine(fp, "test-model", 100000, c)

	req := fileReq("main.go", "+x\n")
	if _, err := e.ReviewFile(context.Background(), req); err != nil {
		t.Fatalf("first ReviewFile error: %v", err)
	}
	if _, err := e.ReviewFile(context.Background(), req); err != nil {
		t.Fatalf("second ReviewFile error: %v", err)
	}
	if fp.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (second served from cache)", fp.callCount())
	}
}

func TestEngineProviderError(t *testing.T) {
	wantErr := errors.New("network down")
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			return providers.Response{}, wantErr
		},
	}
	e := NewEngine(fp, "test-model", 100000, nil)

	_, err := e.ReviewFile(context.Background(), fileReq("main.go", "+x\n"))
	if !errors.Is(err, wantErr) {
		t.Errorf("ReviewFile error = %v, want wrapped %v", err, wantErr)
	}
}

func TestEngineReviewMetadata(t *testing.T) {
	fp := &fakeProvider{
		respond: func(req providers.Request) (providers.Response, error) {
			if !strings.Contains(req.Prompt, "Needs context") {
				t.Errorf("metadata prompt missing the PR title: %q", req.Prompt)
			}
			return providers.Response{Content: `[{"title":"vague title","severity":"info","category":"docs","rationale":"r","recommendation":"rec"}]`}, nil
		},
	}
	e := NewEngine(fp, "test-model", 100000, nil)

	findings, err := e.ReviewMetadata(context.Background(), MetadataRequest{
		Title:       "Needs context",
		Description: "short",
	})
	if err != nil {
		t.Fatalf("ReviewMetadata error: %v", err)
	}
	if len(findings) != 1 {
		t.Errorf("got %d findings, want 1", len(findings))
	}
}
