package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

var intentionCmd = &cobra.Command{
	Use:   "intention",
	Short: "Edit stored intentions",
	Long: `Change intentions kept in the database.

Like export, these commands use the default database file unless --db is
given.`,
}

var intentionContextCmd = &cobra.Command{
	Use:     "context <intention-id> <text>",
	Short:   "Remember context for an intention's next analysis",
	Example: `  mindcanvas intention context 3f2a "budget is 500 euros"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStoredSession(func(_ context.Context, s sessionAPI) error {
			return addIntentionContext(s, os.Stdout, args[0], strings.Join(args[1:], " "))
		})
	},
}

var intentionOutputCmd = &cobra.Command{
	Use:   "output <intention-id> <text>",
	Short: "Replace an intention's collated output",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStoredSession(func(_ context.Context, s sessionAPI) error {
			return setIntentionOutput(s, os.Stdout, args[0], strings.Join(args[1:], " "))
		})
	},
}

var intentionFulfillCmd = &cobra.Command{
	Use:   "fulfill <intention-id>",
	Short: "Mark an intention fulfilled",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStoredSession(func(_ context.Context, s sessionAPI) error {
			return fulfillIntention(s, os.Stdout, args[0])
		})
	},
}

func init() {
	intentionCmd.AddCommand(intentionContextCmd)
	intentionCmd.AddCommand(intentionOutputCmd)
	intentionCmd.AddCommand(intentionFulfillCmd)
}

// withStoredSession opens a session on the configured database, falling
// back to the default file, and runs fn.
func withStoredSession(fn func(ctx context.Context, s sessionAPI) error) error {
	if flagDBPath == "" {
		flagPersist = true
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, _, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(ctx, s)
}

func addIntentionContext(s sessionAPI, w io.Writer, id, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("context text is empty")
	}
	in, err := s.AddUserContext(id, text)
	if err != nil {
		return fmt.Errorf("add context: %w", err)
	}
	printStatus("✓", fmt.Sprintf("Context added (%d entries)", len(in.UserContext)), colorOK)
	printIntention(w, in)
	return nil
}

func setIntentionOutput(s sessionAPI, w io.Writer, id, output string) error {
	in, err := s.SetCollatedOutput(id, strings.TrimSpace(output))
	if err != nil {
		return fmt.Errorf("set output: %w", err)
	}
	printIntention(w, in)
	return nil
}

func fulfillIntention(s sessionAPI, w io.Writer, id string) error {
	in, err := s.Fulfill(id)
	if err != nil {
		return fmt.Errorf("fulfill: %w", err)
	}
	if in.Status == models.IntentionFulfilled {
		printStatus("✓", "Intention fulfilled", colorOK)
	}
	printIntention(w, in)
	return nil
}
