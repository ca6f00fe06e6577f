package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.AI.Provider != "openai" {
		t.Errorf("expected default provider 'openai', got %q", cfg.AI.Provider)
	}

	if cfg.AI.Model != "gpt-4" {
		t.Errorf("expected default model 'gpt-4', got %q", cfg.AI.Model)
	}

	if cfg.AI.Temperature != 0.7 {
		t.Errorf("expected temperature 0.7, got %v", cfg.AI.Temperature)
	}

	if cfg.AI.MaxTokens != 2000 {
		t.Errorf("expected max tokens 2000, got %d", cfg.AI.MaxTokens)
	}

	if cfg.Governor.MaxRequestsPerMinute != 60 {
		t.Errorf("expected 60 requests per minute, got %d", cfg.Governor.MaxRequestsPerMinute)
	}

	if cfg.Orchestrator.StaggerInterval != 800*time.Millisecond {
		t.Errorf("expected stagger interval 800ms, got %v", cfg.Orchestrator.StaggerInterval)
	}

	if !cfg.Orchestrator.EnforceRateLimit {
		t.Error("expected orchestrator.enforce_rate_limit to be true")
	}

	if cfg.Execution.MinStepDelay != time.Second || cfg.Execution.MaxStepDelay != 3*time.Second {
		t.Errorf("expected step delays 1s..3s, got %v..%v", cfg.Execution.MinStepDelay, cfg.Execution.MaxStepDelay)
	}

	if !cfg.App.EnableAIFallback {
		t.Error("expected app.enable_ai_fallback to be true")
	}

	if cfg.TUI.RefreshRate != 100*time.Millisecond {
		t.Errorf("expected refresh rate 100ms, got %v", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
ai:
  provider: Anthropic
  api_key: test-key
  model: claude-sonnet-4-20250514
  temperature: 0.2
governor:
  max_requests_per_minute: 10
  window: 30s
orchestrator:
  stagger_interval: 100ms
  enforce_rate_limit: false
execution:
  disable_pacing: true
  max_parallel: 4
app:
  enable_ai_fallback: false
  db_path: /tmp/canvas.db
tui:
  refresh_rate: 200ms
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}

	if cfg.AI.Provider != "anthropic" {
		t.Errorf("expected provider normalized to 'anthropic', got %q", cfg.AI.Provider)
	}
	if cfg.AI.APIKey != "test-key" {
		t.Errorf("expected api_key 'test-key', got %q", cfg.AI.APIKey)
	}
	if cfg.AI.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 2000 {
		t.Errorf("expected default max tokens to survive, got %d", cfg.AI.MaxTokens)
	}
	if cfg.Governor.MaxRequestsPerMinute != 10 {
		t.Errorf("expected 10 requests per minute, got %d", cfg.Governor.MaxRequestsPerMinute)
	}
	if cfg.Governor.Window != 30*time.Second {
		t.Errorf("expected window 30s, got %v", cfg.Governor.Window)
	}
	if cfg.Orchestrator.StaggerInterval != 100*time.Millisecond {
		t.Errorf("expected stagger interval 100ms, got %v", cfg.Orchestrator.StaggerInterval)
	}
	if cfg.Orchestrator.EnforceRateLimit {
		t.Error("expected enforce_rate_limit false")
	}
	if !cfg.Execution.DisablePacing || cfg.Execution.MaxParallel != 4 {
		t.Errorf("unexpected execution config: %+v", cfg.Execution)
	}
	if cfg.App.EnableAIFallback {
		t.Error("expected enable_ai_fallback false")
	}
	if cfg.App.DBPath != "/tmp/canvas.db" {
		t.Errorf("expected db_path '/tmp/canvas.db', got %q", cfg.App.DBPath)
	}
	if cfg.TUI.RefreshRate != 200*time.Millisecond {
		t.Errorf("expected refresh rate 200ms, got %v", cfg.TUI.RefreshRate)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadFromPath_EnvOverride(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("ai:\n  model: gpt-4\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	t.Setenv("MINDCANVAS_AI_MODEL", "gpt-3.5-turbo")

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if cfg.AI.Model != "gpt-3.5-turbo" {
		t.Errorf("expected env override 'gpt-3.5-turbo', got %q", cfg.AI.Model)
	}
}

func TestSaveTo_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.AI.Model = "gpt-3.5-turbo"
	cfg.Governor.Window = 45 * time.Second
	cfg.Execution.MaxParallel = 2

	if err := SaveTo(cfg, path); err != nil {
		t.Fatalf("SaveTo failed: %v", err)
	}

	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath failed: %v", err)
	}
	if loaded.AI.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", loaded.AI.Model)
	}
	if loaded.Governor.Window != 45*time.Second {
		t.Errorf("window = %v", loaded.Governor.Window)
	}
	if loaded.Execution.MaxParallel != 2 {
		t.Errorf("max parallel = %d", loaded.Execution.MaxParallel)
	}
}

func TestWatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("ai:\n  model: gpt-4\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	changes := make(chan *Config, 4)
	err := Watch(path, func(cfg *Config, err error) {
		if err == nil {
			changes <- cfg
		}
	})
	if err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("ai:\n  model: gpt-3.5-turbo\n"), 0644); err != nil {
		t.Fatalf("failed to rewrite config file: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			if cfg.AI.Model == "gpt-3.5-turbo" {
				return
			}
		case <-deadline:
			t.Fatal("timed out waiting for config reload")
		}
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("TEST_VAR", "expanded_value")

	result := expandEnv("${TEST_VAR}")
	if result != "expanded_value" {
		t.Errorf("expected 'expanded_value', got %q", result)
	}

	result = expandEnv("no_vars_here")
	if result != "no_vars_here" {
		t.Errorf("expected 'no_vars_here', got %q", result)
	}
}

func TestGetUserConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	dir := getUserConfigDir()
	expected := "/custom/config/mindcanvas"
	if dir != expected {
		t.Errorf("expected %q, got %q", expected, dir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*Config)
		envKey       string
		wantValid    bool
		wantWarning  string
		wantError    string
		wantWarnings int
	}{
		{
			name:         "clean",
			envKey:       "sk-real-key-1234567890",
			wantValid:    true,
			wantWarnings: 0,
		},
		{
			name:         "missing key",
			wantValid:    true,
			wantWarning:  "OpenAI API key not configured. AI features will be disabled.",
			wantWarnings: 1,
		},
		{
			name:      "placeholder key",
			mutate:    func(c *Config) { c.AI.APIKey = PlaceholderAPIKey },
			wantValid: false,
			wantError: "Please replace the placeholder OpenAI API key with your actual key.",
		},
		{
			name:         "unknown model",
			envKey:       "sk-real-key-1234567890",
			mutate:       func(c *Config) { c.AI.Model = "gpt-9" },
			wantValid:    true,
			wantWarning:  "Unknown AI model: gpt-9. This may cause issues.",
			wantWarnings: 1,
		},
		{
			name:         "temperature out of range",
			envKey:       "sk-real-key-1234567890",
			mutate:       func(c *Config) { c.AI.Temperature = 2.5 },
			wantValid:    true,
			wantWarning:  "AI temperature should be between 0 and 2. Current: 2.5",
			wantWarnings: 1,
		},
		{
			name:      "unknown provider",
			envKey:    "sk-real-key-1234567890",
			mutate:    func(c *Config) { c.AI.Provider = "mystery" },
			wantValid: false,
			wantError: "Unknown AI provider: mystery.",
		},
		{
			name: "bedrock needs no key",
			mutate: func(c *Config) {
				c.AI.Provider = "anthropic"
				c.AI.Model = "claude-sonnet-4-20250514"
				c.AI.UseAWSBedrock = true
			},
			wantValid:    true,
			wantWarnings: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("OPENAI_API_KEY", tt.envKey)
			t.Setenv("ANTHROPIC_API_KEY", "")

			cfg := Default()
			if tt.mutate != nil {
				tt.mutate(cfg)
			}
			res := cfg.Validate()

			if res.Valid() != tt.wantValid {
				t.Errorf("Valid() = %v, want %v (errors: %v)", res.Valid(), tt.wantValid, res.Errors)
			}
			if tt.wantWarning != "" && !contains(res.Warnings, tt.wantWarning) {
				t.Errorf("warnings %v missing %q", res.Warnings, tt.wantWarning)
			}
			if tt.wantError != "" && !contains(res.Errors, tt.wantError) {
				t.Errorf("errors %v missing %q", res.Errors, tt.wantError)
			}
			if tt.wantValid && len(res.Warnings) != tt.wantWarnings {
				t.Errorf("got %d warnings %v, want %d", len(res.Warnings), res.Warnings, tt.wantWarnings)
			}
		})
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if strings.TrimSpace(s) == want {
			return true
		}
	}
	return false
}
