package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/internal/api"
	"github.com/ShayCichocki/mindcanvas/internal/export"
	"github.com/ShayCichocki/mindcanvas/internal/session"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

var (
	runContext []string
	runExecute bool
	runFormat  string
)

var runCmd = &cobra.Command{
	Use:   "run <intention>",
	Short: "Turn one intention into tasks",
	Long: `Analyze an intention, materialize its tasks and print them.

With --execute every task is run and the results are collated into the
intention. Without a configured API key no tasks are created: the intention
is kept with your words as its title, ready for tasks you add yourself.`,
	Example: `  mindcanvas run "plan a weekend trip to Lisbon"
  mindcanvas run --execute --context "budget is 500 euros" "plan a trip"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIntention,
}

func init() {
	runCmd.Flags().StringSliceVar(&runContext, "context", nil, "Additional context for the analysis (repeatable)")
	runCmd.Flags().BoolVarP(&runExecute, "execute", "x", false, "Execute every task and collate the results")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "Print the result as json, yaml, csv or txt instead")
}

func runIntention(cmd *cobra.Command, args []string) error {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		return fmt.Errorf("intention text is empty")
	}

	var format export.Format
	if runFormat != "" {
		f, err := export.ParseFormat(runFormat)
		if err != nil {
			return err
		}
		format = f
	}

	ctx, cancel := signalContext()
	defer cancel()

	s, _, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	go printEvents(os.Stderr, s.Events())

	in, err := s.Submit(ctx, text, runContext)
	if err != nil {
		if in == nil || errors.Is(err, session.ErrClosed) {
			return err
		}
		if !errors.Is(err, api.ErrUnavailable) {
			printStatus("⚠", fmt.Sprintf("Processing failed, kept the intention without tasks: %v", err), colorWarn)
		}
		s.ClearError()
	}
	s.Wait()

	if runExecute {
		if err := s.ExecuteAll(ctx, in.ID); err != nil {
			return fmt.Errorf("execute tasks: %w", err)
		}
		if _, err := s.Collate(in.ID); err != nil {
			return fmt.Errorf("collate results: %w", err)
		}
	}

	if in, err = s.Intention(in.ID); err != nil {
		return err
	}

	if format != "" {
		return export.Write(os.Stdout, []*models.Intention{in}, export.Options{
			Format:         format,
			IncludeOutputs: runExecute,
		})
	}
	printIntention(os.Stdout, in)
	return nil
}
