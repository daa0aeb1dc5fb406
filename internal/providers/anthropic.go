package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
)

// Anthropic implements Provider on the official Anthropic SDK.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic provider. ANTHROPIC_API_KEY must be
// set; ANTHROPIC_BASE_URL overrides the endpoint for proxies and tests.
func NewAnthropic() (*Anthropic, error) {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		return nil, &authError{message: "ANTHROPIC_API_KEY environment variable is not set"}
	}
	opts := []aoption.RequestOption{aoption.WithAPIKey(key)}
	if base := os.Getenv("ANTHROPIC_BASE_URL"); base != "" {
		opts = append(opts, aoption.WithBaseURL(base))
	}
	return &Anthropic{client: anthropic.NewClient(opts...)}, nil
}

func (a *Anthropic) Name() string { return "anthropic" }

func (a *Anthropic) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if strings.TrimSpace(req.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	var resp Response
	err := retryWithBackoff(ctx, 3, func() error {
		msg, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return mapAnthropicErr(err)
		}

		if msg.StopReason == "refusal" {
			resp = Response{Refused: true}
			return nil
		}

		var b strings.Builder
		for _, block := range msg.Content {
			if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
				b.WriteString(tb.Text)
			}
		}
		if b.Len() == 0 {
			return fmt.Errorf("empty text content in API response")
		}

		resp = Response{
			Content:    b.String(),
			TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		}
		return nil
	})
	return resp, err
}

func mapAnthropicErr(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return &rateLimitError{}
		case apierr.StatusCode == 401 || apierr.StatusCode == 403:
			return &authError{message: apierr.Error()}
		case apierr.StatusCode >= 500:
			return &serverError{statusCode: apierr.StatusCode}
		}
		return err
	}
	return &transientError{err: err}
}
