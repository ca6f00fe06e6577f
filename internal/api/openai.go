package api

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// DefaultOpenAIModel is used when OpenAIConfig.Model is empty.
const DefaultOpenAIModel = "gpt-4"

// OpenAIConfig contains configuration for the OpenAI completer.
type OpenAIConfig struct {
	// APIKey is the bearer credential. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// Model is the chat model name (e.g., "gpt-4").
	Model string
	// BaseURL overrides the API endpoint, e.g. for a compatible gateway or tests.
	BaseURL string
}

// OpenAICompleter calls the OpenAI chat completions API.
type OpenAICompleter struct {
	inner openai.Client
	model string
}

var _ Completer = (*OpenAICompleter)(nil)

// NewOpenAICompleter creates an OpenAI-backed completer.
func NewOpenAICompleter(cfg OpenAIConfig) (*OpenAICompleter, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY environment variable is not set")
	}

	// One attempt per call; fallbacks handle failures.
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultOpenAIModel
	}

	return &OpenAICompleter{
		inner: openai.NewClient(opts...),
		model: model,
	}, nil
}

// Name implements Completer.
func (c *OpenAICompleter) Name() string { return "openai/" + c.model }

// Model returns the configured model name.
func (c *OpenAICompleter) Model() string { return c.model }

// Complete implements Completer.
func (c *OpenAICompleter) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	messages = append(messages, openai.UserMessage(req.User))

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.model),
		Messages:    messages,
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := c.inner.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat completion: %w", ErrRemote, err)
	}

	out := &Completion{Tokens: resp.Usage.TotalTokens}
	if len(resp.Choices) > 0 {
		out.Text = resp.Choices[0].Message.Content
	}
	return out, nil
}

// Probe lists models, which succeeds only with a valid credential.
func (c *OpenAICompleter) Probe(ctx context.Context) error {
	if _, err := c.inner.Models.List(ctx); err != nil {
		return fmt.Errorf("%w: openai list models: %w", ErrRemote, err)
	}
	return nil
}
