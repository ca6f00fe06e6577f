package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
)

// Provider names accepted by NewCompleter.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// ProviderConfig selects and configures a Completer.
type ProviderConfig struct {
	Provider      string
	APIKey        string
	Model         string
	BaseURL       string
	UseAWSBedrock bool
	AWSRegion     string
	AWSProfile    string
}

// NewCompleter creates the Completer named by cfg.Provider. An empty
// provider means OpenAI.
func NewCompleter(ctx context.Context, cfg ProviderConfig) (Completer, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAICompleter(OpenAIConfig{
			APIKey:  cfg.APIKey,
			Model:   cfg.Model,
			BaseURL: cfg.BaseURL,
		})
	case ProviderAnthropic:
		return NewAnthropicCompleter(ctx, AnthropicConfig{
			Model:         anthropic.Model(cfg.Model),
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			UseAWSBedrock: cfg.UseAWSBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
		})
	default:
		return nil, fmt.Errorf("unknown AI provider %q (want %q or %q)", cfg.Provider, ProviderOpenAI, ProviderAnthropic)
	}
}
