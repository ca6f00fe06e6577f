package main

import (
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/mindcanvas/internal/config"
)

func TestSetConfigValue(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"ai.provider", "Anthropic", "anthropic"},
		{"ai.model", "gpt-3.5-turbo", "gpt-3.5-turbo"},
		{"ai.temperature", "0.2", "0.2"},
		{"governor.max_requests_per_minute", "30", "30"},
		{"orchestrator.stagger_interval", "250ms", "250ms"},
		{"execution.disable_pacing", "true", "true"},
		{"AI.MAX_TOKENS", "512", "512"},
		{"tui.refresh_rate", "1s", "1s"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			cfg := config.Default()
			if err := setConfigValue(cfg, tt.key, tt.value); err != nil {
				t.Fatalf("setConfigValue() error = %v", err)
			}
			got, err := getConfigValue(cfg, tt.key)
			if err != nil {
				t.Fatalf("getConfigValue() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSetConfigValue_Invalid(t *testing.T) {
	cfg := config.Default()

	if err := setConfigValue(cfg, "ai.timeout", "soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
	if cfg.AI.Timeout != 60*time.Second {
		t.Errorf("timeout changed to %s", cfg.AI.Timeout)
	}
	if err := setConfigValue(cfg, "ai.max_tokens", "many"); err == nil {
		t.Error("expected error for invalid integer")
	}
	if err := setConfigValue(cfg, "nope.key", "1"); err == nil || !strings.Contains(err.Error(), "unknown configuration key") {
		t.Errorf("unexpected error %v", err)
	}
}

func TestGetConfigValue_MasksKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.Default()
	cfg.AI.APIKey = "sk-test-1234567890abcdef"

	got, err := getConfigValue(cfg, "ai.api_key")
	if err != nil {
		t.Fatal(err)
	}
	if got != "sk-test...cdef" {
		t.Errorf("api key shown as %q", got)
	}

	cfg.AI.APIKey = ""
	if got, _ := getConfigValue(cfg, "ai.api_key"); got != "(not set)" {
		t.Errorf("missing key shown as %q", got)
	}
}

func TestConfigKeysResolve(t *testing.T) {
	cfg := config.Default()
	for _, key := range configKeys {
		if _, err := getConfigValue(cfg, key); err != nil {
			t.Errorf("listed key %s does not resolve: %v", key, err)
		}
	}
}
