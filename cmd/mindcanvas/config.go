package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/internal/config"
)

var configInitForce bool

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify MindCanvas configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/mindcanvas/config.yaml
Project-specific overrides can be placed in .mindcanvas.yaml`,
	Args: cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			value, err := getConfigValue(cfg, args[0])
			if err != nil {
				return err
			}
			fmt.Println(value)
		default:
			if err := setConfigValue(cfg, args[0], args[1]); err != nil {
				return err
			}
			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("Set %s = %s\n", args[0], args[1])
		}
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the configuration for problems",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		v := cfg.Validate()
		reportValidation(cfg)
		if !v.Valid() {
			return fmt.Errorf("configuration has %d error(s)", len(v.Errors))
		}
		if len(v.Warnings) == 0 {
			printStatus("✓", "Configuration is valid", colorOK)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file locations",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("user:    %s\n", config.GetUserConfigPath())
		project := config.GetProjectConfigPath()
		if project == "" {
			project = "(none)"
		}
		fmt.Printf("project: %s\n", project)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a user config file with the defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.GetUserConfigPath()
		if _, err := os.Stat(path); err == nil && !configInitForce {
			fmt.Printf("%s already exists. Use --force to overwrite.\n", path)
			return nil
		}

		cfg := config.Default()
		cfg.AI.APIKey = "${OPENAI_API_KEY}"
		if err := config.Save(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		printStatus("✓", fmt.Sprintf("Created %s", path), colorOK)
		if !config.IsAIAvailable(cfg) {
			printStatus("⚠", "OPENAI_API_KEY not set (you can set it later)", colorWarn)
		}
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing config file")

	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
}

// configKeys lists the keys displayAllConfig prints, in order.
var configKeys = []string{
	"ai.provider",
	"ai.api_key",
	"ai.model",
	"ai.temperature",
	"ai.max_tokens",
	"ai.base_url",
	"ai.timeout",
	"ai.use_aws_bedrock",
	"governor.max_requests_per_minute",
	"governor.window",
	"governor.cost_per_token",
	"orchestrator.stagger_interval",
	"orchestrator.regenerate_interval",
	"orchestrator.enforce_rate_limit",
	"execution.min_step_delay",
	"execution.max_step_delay",
	"execution.disable_pacing",
	"execution.max_parallel",
	"app.debug",
	"app.enable_ai_fallback",
	"app.db_path",
	"tui.refresh_rate",
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	for _, key := range configKeys {
		value, _ := getConfigValue(cfg, key)
		fmt.Printf("%s: %s\n", key, value)
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "ai.provider":
		return cfg.AI.Provider, nil
	case "ai.api_key":
		return maskedKey(cfg), nil
	case "ai.model":
		return cfg.AI.Model, nil
	case "ai.temperature":
		return strconv.FormatFloat(cfg.AI.Temperature, 'g', -1, 64), nil
	case "ai.max_tokens":
		return strconv.Itoa(cfg.AI.MaxTokens), nil
	case "ai.base_url":
		return cfg.AI.BaseURL, nil
	case "ai.timeout":
		return cfg.AI.Timeout.String(), nil
	case "ai.use_aws_bedrock":
		return strconv.FormatBool(cfg.AI.UseAWSBedrock), nil
	case "governor.max_requests_per_minute":
		return strconv.Itoa(cfg.Governor.MaxRequestsPerMinute), nil
	case "governor.window":
		return cfg.Governor.Window.String(), nil
	case "governor.cost_per_token":
		return strconv.FormatFloat(cfg.Governor.CostPerToken, 'g', -1, 64), nil
	case "orchestrator.stagger_interval":
		return cfg.Orchestrator.StaggerInterval.String(), nil
	case "orchestrator.regenerate_interval":
		return cfg.Orchestrator.RegenerateInterval.String(), nil
	case "orchestrator.enforce_rate_limit":
		return strconv.FormatBool(cfg.Orchestrator.EnforceRateLimit), nil
	case "execution.min_step_delay":
		return cfg.Execution.MinStepDelay.String(), nil
	case "execution.max_step_delay":
		return cfg.Execution.MaxStepDelay.String(), nil
	case "execution.disable_pacing":
		return strconv.FormatBool(cfg.Execution.DisablePacing), nil
	case "execution.max_parallel":
		return strconv.Itoa(cfg.Execution.MaxParallel), nil
	case "app.debug":
		return strconv.FormatBool(cfg.App.Debug), nil
	case "app.enable_ai_fallback":
		return strconv.FormatBool(cfg.App.EnableAIFallback), nil
	case "app.db_path":
		if cfg.App.DBPath == "" {
			return "(in memory)", nil
		}
		return cfg.App.DBPath, nil
	case "tui.refresh_rate":
		return cfg.TUI.RefreshRate.String(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	var err error
	switch strings.ToLower(key) {
	case "ai.provider":
		cfg.AI.Provider = strings.ToLower(value)
	case "ai.api_key":
		cfg.AI.APIKey = value
	case "ai.model":
		cfg.AI.Model = value
	case "ai.temperature":
		cfg.AI.Temperature, err = strconv.ParseFloat(value, 64)
	case "ai.max_tokens":
		cfg.AI.MaxTokens, err = strconv.Atoi(value)
	case "ai.base_url":
		cfg.AI.BaseURL = value
	case "ai.timeout":
		cfg.AI.Timeout, err = time.ParseDuration(value)
	case "ai.use_aws_bedrock":
		cfg.AI.UseAWSBedrock, err = strconv.ParseBool(value)
	case "governor.max_requests_per_minute":
		cfg.Governor.MaxRequestsPerMinute, err = strconv.Atoi(value)
	case "governor.window":
		cfg.Governor.Window, err = time.ParseDuration(value)
	case "governor.cost_per_token":
		cfg.Governor.CostPerToken, err = strconv.ParseFloat(value, 64)
	case "orchestrator.stagger_interval":
		cfg.Orchestrator.StaggerInterval, err = time.ParseDuration(value)
	case "orchestrator.regenerate_interval":
		cfg.Orchestrator.RegenerateInterval, err = time.ParseDuration(value)
	case "orchestrator.enforce_rate_limit":
		cfg.Orchestrator.EnforceRateLimit, err = strconv.ParseBool(value)
	case "execution.min_step_delay":
		cfg.Execution.MinStepDelay, err = time.ParseDuration(value)
	case "execution.max_step_delay":
		cfg.Execution.MaxStepDelay, err = time.ParseDuration(value)
	case "execution.disable_pacing":
		cfg.Execution.DisablePacing, err = strconv.ParseBool(value)
	case "execution.max_parallel":
		cfg.Execution.MaxParallel, err = strconv.Atoi(value)
	case "app.debug":
		cfg.App.Debug, err = strconv.ParseBool(value)
	case "app.enable_ai_fallback":
		cfg.App.EnableAIFallback, err = strconv.ParseBool(value)
	case "app.db_path":
		cfg.App.DBPath = value
	case "tui.refresh_rate":
		cfg.TUI.RefreshRate, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return nil
}
