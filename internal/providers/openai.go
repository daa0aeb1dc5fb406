package providers

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
)

// OpenAI implements Provider on the official OpenAI SDK.
type OpenAI struct {
	client openai.Client
}

// NewOpenAI creates an OpenAI provider. OPENAI_API_KEY must be set;
// OPENAI_BASE_URL overrides the endpoint for proxies and tests.
func NewOpenAI() (*OpenAI, error) {
	key := os.Getenv("OPENAI_API_KEY")
	if key == "" {
		return nil, &authError{message: "OPENAI_API_KEY environment variable is not set"}
	}
	opts := []ooption.RequestOption{ooption.WithAPIKey(key)}
	if base := os.Getenv("OPENAI_BASE_URL"); base != "" {
		opts = append(opts, ooption.WithBaseURL(base))
	}
	return &OpenAI{client: openai.NewClient(opts...)}, nil
}

func (o *OpenAI) Name() string { return "openai" }

func (o *OpenAI) Complete(ctx context.Context, req Request) (Response, error) {
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.Prompt),
		},
		MaxTokens: openai.Int(int64(maxTokens)),
	}

	var resp Response
	err := retryWithBackoff(ctx, 3, func() error {
		completion, err := o.client.Chat.Completions.New(ctx, params)
		if err != nil {
			return mapOpenAIErr(err)
		}

		if len(completion.Choices) == 0 {
			return fmt.Errorf("no choices in response")
		}
		choice := completion.Choices[0]
		if choice.FinishReason == "content_filter" {
			resp = Response{Refused: true}
			return nil
		}
		if choice.Message.Content == "" {
			return fmt.Errorf("empty text content in API response")
		}

		resp = Response{
			Content:    choice.Message.Content,
			TokensUsed: int(completion.Usage.TotalTokens),
		}
		return nil
	})
	return resp, err
}

func mapOpenAIErr(err error) error {
	var apierr *openai.Error
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
