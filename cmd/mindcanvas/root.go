package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/internal/config"
	"github.com/ShayCichocki/mindcanvas/internal/logging"
	"github.com/ShayCichocki/mindcanvas/internal/session"
	"github.com/ShayCichocki/mindcanvas/internal/state"
	"github.com/ShayCichocki/mindcanvas/internal/tui"
)

var (
	flagConfig  string
	flagDBPath  string
	flagDebug   bool
	flagPersist bool
)

var rootCmd = &cobra.Command{
	Use:   "mindcanvas",
	Short: "Turn spoken intentions into tasks",
	Long: `MindCanvas turns a spoken or typed intention into a handful of
concrete tasks, runs them with a language model and collates the results.

With no arguments, launches the dashboard where you can type intentions,
watch tasks appear, execute them and follow the AI resource usage.

Configuration is read from ~/.config/mindcanvas/config.yaml, a project
.mindcanvas.yaml and MINDCANVAS_* environment variables. Without an API key
every model call falls back to built-in defaults.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDashboard()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Config file (default: user config plus project .mindcanvas.yaml)")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite file to keep intentions in (default: in memory)")
	rootCmd.PersistentFlags().BoolVar(&flagPersist, "persist", false, "Keep intentions in the default database file")
	rootCmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Write a debug log")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(listenCmd)
	rootCmd.AddCommand(probeCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(intentionCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads configuration and applies command line overrides.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flagConfig != "" {
		cfg, err = config.LoadFromPath(flagConfig)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flagDBPath != "" {
		cfg.App.DBPath = flagDBPath
	} else if flagPersist && cfg.App.DBPath == "" {
		cfg.App.DBPath = state.DefaultDBPath()
	}
	if flagDebug {
		cfg.App.Debug = true
	}
	return cfg, nil
}

// newLogger returns the debug logger selected by cfg.
func newLogger(cfg *config.Config) *logging.DebugLogger {
	switch {
	case cfg.App.LogPath != "":
		logger, err := logging.NewDebugLogger(cfg.App.LogPath)
		if err != nil {
			printStatus("⚠", fmt.Sprintf("Debug log disabled: %v", err), color.FgYellow)
			return logging.Nop()
		}
		return logger
	case cfg.App.Debug:
		return logging.NewForDataDir(filepath.Dir(state.DefaultDBPath()))
	default:
		return logging.Nop()
	}
}

// reportValidation prints configuration problems to stderr.
func reportValidation(cfg *config.Config) {
	v := cfg.Validate()
	for _, msg := range v.Errors {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("✗"), msg)
	}
	for _, msg := range v.Warnings {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.YellowString("⚠"), msg)
	}
}

// openSession loads configuration and starts a session. The returned
// cleanup closes the session and the debug log.
func openSession(ctx context.Context) (*session.Session, *config.Config, func(), error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg)

	opts, err := session.OptionsFromConfig(ctx, cfg, logger)
	if err != nil {
		printStatus("⚠", fmt.Sprintf("AI disabled: %v", err), color.FgYellow)
	}

	s, err := session.New(opts)
	if err != nil {
		logger.Close()
		return nil, nil, nil, err
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			log.Printf("[main] close session: %v", err)
		}
		logger.Close()
	}
	return s, cfg, cleanup, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			log.Println("[main] received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()

	return ctx, cancel
}

// runDashboard runs the interactive TUI.
func runDashboard() error {
	ctx, cancel := signalContext()
	defer cancel()

	s, cfg, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	reportValidation(cfg)

	// Log output corrupts the alt screen.
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	program, _ := tui.NewProgram(ctx, s, tui.Options{
		RefreshRate: cfg.TUI.RefreshRate,
		RateLimit:   cfg.Governor.MaxRequestsPerMinute,
	})

	if path := watchedConfigPath(); path != "" {
		err := config.Watch(path, func(next *config.Config, err error) {
			if err != nil {
				program.Send(tui.NoticeMsg{Message: fmt.Sprintf("config reload failed: %v", err), Error: true})
				return
			}
			v := next.Validate()
			for _, msg := range v.Errors {
				program.Send(tui.NoticeMsg{Message: msg, Error: true})
			}
			program.Send(tui.NoticeMsg{Message: fmt.Sprintf("Config changed (%s). Restart to apply.", filepath.Base(path))})
		})
		if err != nil {
			log.Printf("[main] config watch disabled: %v", err)
		}
	}

	_, err = program.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// watchedConfigPath returns the config file the dashboard follows.
func watchedConfigPath() string {
	if flagConfig != "" {
		return flagConfig
	}
	if p := config.GetProjectConfigPath(); p != "" {
		return p
	}
	if _, err := os.Stat(config.GetUserConfigPath()); err == nil {
		return config.GetUserConfigPath()
	}
	return ""
}

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(os.Stderr, "%s %s\n", c.Sprint(symbol), message)
}
