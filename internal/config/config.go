// Package config handles configuration loading and management for mindcanvas.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. MINDCANVAS_AI_MODEL.
const EnvPrefix = "MINDCANVAS"

// Config holds all configuration for mindcanvas.
type Config struct {
	AI           AIConfig           `mapstructure:"ai"`
	Governor     GovernorConfig     `mapstructure:"governor"`
	Orchestrator OrchestratorConfig `mapstructure:"orchestrator"`
	Execution    ExecutionConfig    `mapstructure:"execution"`
	App          AppConfig          `mapstructure:"app"`
	TUI          TUIConfig          `mapstructure:"tui"`
}

// AIConfig holds model provider settings.
type AIConfig struct {
	// Provider is "openai" (default) or "anthropic".
	Provider    string        `mapstructure:"provider"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	// UseAWSBedrock routes anthropic calls through Bedrock.
	UseAWSBedrock bool   `mapstructure:"use_aws_bedrock"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSProfile    string `mapstructure:"aws_profile"`
}

// GovernorConfig holds rate limiting and cost settings.
type GovernorConfig struct {
	MaxRequestsPerMinute int           `mapstructure:"max_requests_per_minute"`
	Window               time.Duration `mapstructure:"window"`
	PruneInterval        time.Duration `mapstructure:"prune_interval"`
	CostPerToken         float64       `mapstructure:"cost_per_token"`
}

// OrchestratorConfig holds intention processing pacing.
type OrchestratorConfig struct {
	StaggerInterval    time.Duration `mapstructure:"stagger_interval"`
	RegenerateInterval time.Duration `mapstructure:"regenerate_interval"`
	SettleDelay        time.Duration `mapstructure:"settle_delay"`
	// EnforceRateLimit makes intention processing fail fast while rate limited.
	EnforceRateLimit bool `mapstructure:"enforce_rate_limit"`
}

// ExecutionConfig holds task execution pacing.
type ExecutionConfig struct {
	MinStepDelay  time.Duration `mapstructure:"min_step_delay"`
	MaxStepDelay  time.Duration `mapstructure:"max_step_delay"`
	DisablePacing bool          `mapstructure:"disable_pacing"`
	TokenEstimate int64         `mapstructure:"token_estimate"`
	// MaxParallel bounds ExecuteAll. Zero means unbounded.
	MaxParallel int `mapstructure:"max_parallel"`
}

// AppConfig holds application settings.
type AppConfig struct {
	Name  string `mapstructure:"name"`
	Debug bool   `mapstructure:"debug"`
	// EnableAIFallback returns fallback results silently instead of errors.
	EnableAIFallback bool `mapstructure:"enable_ai_fallback"`
	// DBPath persists intentions to a file. Empty keeps them in memory.
	DBPath  string `mapstructure:"db_path"`
	LogPath string `mapstructure:"log_path"`
}

// TUIConfig holds TUI display settings.
type TUIConfig struct {
	RefreshRate time.Duration `mapstructure:"refresh_rate"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (MINDCANVAS_*, OPENAI_API_KEY, ANTHROPIC_API_KEY)
// 2. Project config (.mindcanvas.yaml in current directory or parent)
// 3. User config (~/.config/mindcanvas/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := newViper()

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	return unmarshal(v)
}

// Watch reloads the config file at path whenever it changes and passes the
// result to onChange. Watching lasts for the life of the process.
func Watch(path string, onChange func(*Config, error)) error {
	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config from %s: %w", path, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		onChange(unmarshal(v))
	})
	v.WatchConfig()
	return nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes cfg as YAML to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("ai.provider", cfg.AI.Provider)
	v.Set("ai.api_key", cfg.AI.APIKey)
	v.Set("ai.model", cfg.AI.Model)
	v.Set("ai.temperature", cfg.AI.Temperature)
	v.Set("ai.max_tokens", cfg.AI.MaxTokens)
	v.Set("ai.base_url", cfg.AI.BaseURL)
	v.Set("ai.timeout", cfg.AI.Timeout.String())
	v.Set("ai.use_aws_bedrock", cfg.AI.UseAWSBedrock)
	v.Set("ai.aws_region", cfg.AI.AWSRegion)
	v.Set("ai.aws_profile", cfg.AI.AWSProfile)
	v.Set("governor.max_requests_per_minute", cfg.Governor.MaxRequestsPerMinute)
	v.Set("governor.window", cfg.Governor.Window.String())
	v.Set("governor.prune_interval", cfg.Governor.PruneInterval.String())
	v.Set("governor.cost_per_token", cfg.Governor.CostPerToken)
	v.Set("orchestrator.stagger_interval", cfg.Orchestrator.StaggerInterval.String())
	v.Set("orchestrator.regenerate_interval", cfg.Orchestrator.RegenerateInterval.String())
	v.Set("orchestrator.settle_delay", cfg.Orchestrator.SettleDelay.String())
	v.Set("orchestrator.enforce_rate_limit", cfg.Orchestrator.EnforceRateLimit)
	v.Set("execution.min_step_delay", cfg.Execution.MinStepDelay.String())
	v.Set("execution.max_step_delay", cfg.Execution.MaxStepDelay.String())
	v.Set("execution.disable_pacing", cfg.Execution.DisablePacing)
	v.Set("execution.token_estimate", cfg.Execution.TokenEstimate)
	v.Set("execution.max_parallel", cfg.Execution.MaxParallel)
	v.Set("app.name", cfg.App.Name)
	v.Set("app.debug", cfg.App.Debug)
	v.Set("app.enable_ai_fallback", cfg.App.EnableAIFallback)
	v.Set("app.db_path", cfg.App.DBPath)
	v.Set("app.log_path", cfg.App.LogPath)
	v.Set("tui.refresh_rate", cfg.TUI.RefreshRate.String())

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// newViper returns a viper instance with defaults and environment bindings.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("app.debug", EnvPrefix+"_APP_DEBUG", EnvPrefix+"_DEBUG")
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.AI.APIKey = expandEnv(cfg.AI.APIKey)
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	return cfg, nil
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("ai.provider", d.AI.Provider)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.temperature", d.AI.Temperature)
	v.SetDefault("ai.max_tokens", d.AI.MaxTokens)
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.timeout", d.AI.Timeout.String())
	v.SetDefault("ai.use_aws_bedrock", false)
	v.SetDefault("ai.aws_region", "")
	v.SetDefault("ai.aws_profile", "")

	v.SetDefault("governor.max_requests_per_minute", d.Governor.MaxRequestsPerMinute)
	v.SetDefault("governor.window", d.Governor.Window.String())
	v.SetDefault("governor.prune_interval", d.Governor.PruneInterval.String())
	v.SetDefault("governor.cost_per_token", d.Governor.CostPerToken)

	v.SetDefault("orchestrator.stagger_interval", d.Orchestrator.StaggerInterval.String())
	v.SetDefault("orchestrator.regenerate_interval", d.Orchestrator.RegenerateInterval.String())
	v.SetDefault("orchestrator.settle_delay", d.Orchestrator.SettleDelay.String())
	v.SetDefault("orchestrator.enforce_rate_limit", d.Orchestrator.EnforceRateLimit)

	v.SetDefault("execution.min_step_delay", d.Execution.MinStepDelay.String())
	v.SetDefault("execution.max_step_delay", d.Execution.MaxStepDelay.String())
	v.SetDefault("execution.disable_pacing", false)
	v.SetDefault("execution.token_estimate", d.Execution.TokenEstimate)
	v.SetDefault("execution.max_parallel", 0)

	v.SetDefault("app.name", d.App.Name)
	v.SetDefault("app.debug", false)
	v.SetDefault("app.enable_ai_fallback", d.App.EnableAIFallback)
	v.SetDefault("app.db_path", "")
	v.SetDefault("app.log_path", "")

	v.SetDefault("tui.refresh_rate", d.TUI.RefreshRate.String())
}

// getUserConfigDir returns the XDG config directory for mindcanvas.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "mindcanvas")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "mindcanvas")
	}
	return filepath.Join(home, ".config", "mindcanvas")
}

// findProjectConfig searches for .mindcanvas.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".mindcanvas.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		AI: AIConfig{
			Provider:    "openai",
			Model:       "gpt-4",
			Temperature: 0.7,
			MaxTokens:   2000,
			Timeout:     60 * time.Second,
		},
		Governor: GovernorConfig{
			MaxRequestsPerMinute: 60,
			Window:               time.Minute,
			PruneInterval:        10 * time.Second,
			CostPerToken:         0.00003,
		},
		Orchestrator: OrchestratorConfig{
			StaggerInterval:    800 * time.Millisecond,
			RegenerateInterval: 500 * time.Millisecond,
			SettleDelay:        time.Second,
			EnforceRateLimit:   true,
		},
		Execution: ExecutionConfig{
			MinStepDelay:  time.Second,
			MaxStepDelay:  3 * time.Second,
			TokenEstimate: 500,
		},
		App: AppConfig{
			Name:             "MindCanvas",
			EnableAIFallback: true,
		},
		TUI: TUIConfig{
			RefreshRate: 100 * time.Millisecond,
		},
	}
}

// knownModels lists the models each provider is validated against.
var knownModels = map[string][]string{
	"openai": {"gpt-4", "gpt-3.5-turbo"},
}

// Validation is the outcome of Validate. Errors make the config unusable;
// warnings only degrade it.
type Validation struct {
	Warnings []string
	Errors   []string
}

// Valid reports whether there are no errors.
func (v Validation) Valid() bool {
	return len(v.Errors) == 0
}

// Validate checks the API key, model and temperature.
func (c *Config) Validate() Validation {
	var res Validation

	key, err := GetAPIKey(c)
	switch {
	case err == ErrPlaceholderAPIKey:
		res.Errors = append(res.Errors, fmt.Sprintf("Please replace the placeholder %s with your actual key.", keyName(c.AI.Provider)))
	case err != nil || key == "":
		if !c.AI.UseAWSBedrock {
			res.Warnings = append(res.Warnings, fmt.Sprintf("%s not configured. AI features will be disabled.", keyName(c.AI.Provider)))
		}
	}

	provider := c.AI.Provider
	if provider == "" {
		provider = "openai"
	}
	switch provider {
	case "openai", "anthropic":
	default:
		res.Errors = append(res.Errors, fmt.Sprintf("Unknown AI provider: %s.", c.AI.Provider))
	}
	if models, ok := knownModels[provider]; ok && !slices.Contains(models, c.AI.Model) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Unknown AI model: %s. This may cause issues.", c.AI.Model))
	}
	if provider == "anthropic" && c.AI.Model != "" && !strings.HasPrefix(c.AI.Model, "claude-") {
		res.Warnings = append(res.Warnings, fmt.Sprintf("Unknown AI model: %s. This may cause issues.", c.AI.Model))
	}

	if c.AI.Temperature < 0 || c.AI.Temperature > 2 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("AI temperature should be between 0 and 2. Current: %g", c.AI.Temperature))
	}

	if c.Execution.MaxStepDelay < c.Execution.MinStepDelay {
		res.Warnings = append(res.Warnings, "execution.max_step_delay is below execution.min_step_delay; the minimum is used.")
	}

	return res
}
