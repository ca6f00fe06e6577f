package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/internal/config"
)

var probeTimeout time.Duration

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Check that the configured model answers",
	Long: `Send a minimal request to the configured provider and report whether
it answered. The request counts against the rate limit like any other.`,
	Args: cobra.NoArgs,
	RunE: runProbe,
}

func init() {
	probeCmd.Flags().DurationVar(&probeTimeout, "timeout", 30*time.Second, "Give up after this long")
}

func runProbe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	s, cfg, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	fmt.Printf("Provider: %s\n", s.Provider())
	fmt.Printf("API key:  %s (%s)\n", maskedKey(cfg), config.GetAPIKeySource(cfg))

	if !s.AIAvailable() {
		printStatus("✗", "No usable credential; every call uses fallbacks", colorErr)
		return fmt.Errorf("AI unavailable")
	}

	probeCtx, probeCancel := context.WithTimeout(ctx, probeTimeout)
	defer probeCancel()

	start := time.Now()
	if !s.Probe(probeCtx) {
		printStatus("✗", "Model did not answer", colorErr)
		return fmt.Errorf("probe failed")
	}
	printStatus("✓", fmt.Sprintf("Model answered in %s", time.Since(start).Round(time.Millisecond)), colorOK)
	return nil
}

// maskedKey returns the configured key for display.
func maskedKey(cfg *config.Config) string {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return config.MaskAPIKey("")
	}
	return config.MaskAPIKey(key)
}
