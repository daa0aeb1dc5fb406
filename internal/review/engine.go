package review

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/gavel/internal/cache"
	"github.com/dshills/gavel/internal/circuit"
	"github.com/dshills/gavel/internal/logx"
	"github.com/dshills/gavel/internal/providers"
)

const (
	defaultMaxTokens = 4096
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
)

// Engine implements Reviewer on top of an LLM provider. It splits
// oversized diffs into chunks, consults the response cache before dialing
// out, gates provider calls behind a circuit breaker, and strictly
// validates every response.
type Engine struct {
	provider      providers.Provider
	model         string
	maxChunkBytes int
	maxTokens     int
	cache         *cache.Cache
	breaker       *circuit.Breaker
}

// NewEngine builds an Engine. The cache may be nil or disabled.
func NewEngine(p providers.Provider, model string, maxChunkBytes int, c *cache.Cache) *Engine {
	return &Engine{
		provider:      p,
		model:         model,
		maxChunkBytes: maxChunkBytes,
		maxTokens:     defaultMaxTokens,
		cache:         c,
		breaker:       circuit.NewBreaker(breakerThreshold, breakerCooldown),
	}
}

// ReviewFile reviews one file's diff, one provider call per chunk.
func (e *Engine) ReviewFile(ctx context.Context, req FileRequest) ([]RawFinding, error) {
	chunks := SplitDiff(req.Diff, e.maxChunkBytes)
	if len(chunks) > 1 {
		logx.Debug().Str("path", req.Diff.Path).Int("chunks", len(chunks)).Msg("diff split into chunks")
	}

	var all []RawFinding
	for _, ch := range chunks {
		content, refused, err := e.complete(ctx, SystemPrompt(), BuildFilePrompt(req, ch, req.MaxIssues))
		if err != nil {
			return nil, fmt.Errorf("reviewing %s: %w", ch.DisplayName(), err)
		}
		if refused {
			logx.Info().Str("file", ch.DisplayName()).Msg("model declined to review; treating as no findings")
			continue
		}
		raw, err := ParseFindings(content)
		if err != nil {
			return nil, fmt.Errorf("reviewing %s: %w", ch.DisplayName(), err)
		}
		all = append(all, raw...)
	}
	return all, nil
}

// ReviewMetadata reviews the revision's title, description, and commit
// messages in a single provider call.
func (e *Engine) ReviewMetadata(ctx context.Context, req MetadataRequest) ([]RawFinding, error) {
	content, refused, err := e.complete(ctx, MetadataSystemPrompt(), BuildMetadataPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("reviewing metadata: %w", err)
	}
	if refused {
		logx.Info().Msg("model declined metadata review; treating as no findings")
		return nil, nil
	}
	raw, err := ParseFindings(content)
	if err != nil {
		return nil, fmt.Errorf("reviewing metadata: %w", err)
	}
	return raw, nil
}

// complete runs one provider call through the cache and circuit breaker.
// The bool result reports a model refusal.
func (e *Engine) complete(ctx context.Context, system, prompt string) (string, bool, error) {
	var key string
	if e.cache != nil && e.cache.Enabled() {
		key = cache.BuildCacheKey(e.provider.Name(), e.model, system+"\x00"+prompt)
		if v, ok := e.cache.Get(key); ok {
			return v, false, nil
		}
	}

	var resp providers.Response
	err := e.breaker.Do(ctx, func() error {
		var callErr error
		resp, callErr = e.provider.Complete(ctx, providers.Request{
			Model:     e.model,
			System:    system,
			Prompt:    prompt,
			MaxTokens: e.maxTokens,
		})
		return callErr
	})
	if err != nil {
		return "", false, err
	}
	if resp.Refused {
		return "", true, nil
	}

	if key != "" {
		if err := e.cache.Put(key, resp.Content); err != nil {
			logx.Debug().Err(err).Msg("cache write failed")
		}
	}
	return resp.Content, false, nil
}
