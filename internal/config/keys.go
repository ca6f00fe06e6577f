package config

import (
	"errors"
	"os"
	"strings"
)

// PlaceholderAPIKey is the sample value shipped in example configs.
const PlaceholderAPIKey = "your_openai_api_key_here"

var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("no API key configured")
	// ErrPlaceholderAPIKey is returned when the sample key was left in place.
	ErrPlaceholderAPIKey = errors.New("placeholder API key configured")
)

// envKeyFor returns the provider's conventional API key variable.
func envKeyFor(provider string) string {
	if provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func keyName(provider string) string {
	if provider == "anthropic" {
		return "Anthropic API key"
	}
	return "OpenAI API key"
}

// GetAPIKey returns the API key for the configured provider.
// It checks in order: provider environment variable, config (which already
// includes MINDCANVAS_AI_API_KEY).
func GetAPIKey(cfg *Config) (string, error) {
	provider := ""
	if cfg != nil {
		provider = cfg.AI.Provider
	}

	key := os.Getenv(envKeyFor(provider))
	if key == "" && cfg != nil && cfg.AI.APIKey != "" {
		expanded := os.ExpandEnv(cfg.AI.APIKey)
		if !strings.HasPrefix(expanded, "${") {
			key = expanded
		}
	}

	switch {
	case key == "":
		return "", ErrNoAPIKey
	case key == PlaceholderAPIKey:
		return "", ErrPlaceholderAPIKey
	default:
		return key, nil
	}
}

// IsAIAvailable reports whether a usable credential is configured.
func IsAIAvailable(cfg *Config) bool {
	if cfg != nil && cfg.AI.Provider == "anthropic" && cfg.AI.UseAWSBedrock {
		return true
	}
	_, err := GetAPIKey(cfg)
	return err == nil
}

// MaskAPIKey returns a masked version of the API key for display.
// Shows the first 7 characters and last 4 characters.
func MaskAPIKey(key string) string {
	if key == "" {
		return "(not set)"
	}

	if len(key) <= 15 {
		return "***"
	}

	return key[:7] + "..." + key[len(key)-4:]
}

// KeySource represents where an API key was loaded from.
type KeySource string

const (
	KeySourceEnv    KeySource = "environment"
	KeySourceConfig KeySource = "config_file"
	KeySourceNone   KeySource = "none"
)

// GetAPIKeySource returns where the API key was sourced from.
func GetAPIKeySource(cfg *Config) KeySource {
	provider := ""
	if cfg != nil {
		provider = cfg.AI.Provider
	}
	if os.Getenv(envKeyFor(provider)) != "" {
		return KeySourceEnv
	}

	if cfg != nil && cfg.AI.APIKey != "" {
		key := os.ExpandEnv(cfg.AI.APIKey)
		if key != "" && !strings.HasPrefix(key, "${") {
			return KeySourceConfig
		}
	}

	return KeySourceNone
}
