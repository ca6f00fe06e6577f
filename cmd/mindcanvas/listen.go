package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/internal/transcript"
)

var (
	listenFile    string
	listenExecute bool
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Create intentions from a live transcript",
	Long: `Read a speech transcript line by line and turn every final utterance
into an intention.

Lines starting with "` + transcript.InterimPrefix + `" are interim results: they update the
intention being dictated without processing it. Any other non-blank line is
final.

The transcript is read from stdin, or followed like tail -f with --file.`,
	Example: `  speech-to-text | mindcanvas listen
  mindcanvas listen --file /tmp/transcript.txt`,
	Args: cobra.NoArgs,
	RunE: runListen,
}

func init() {
	listenCmd.Flags().StringVar(&listenFile, "file", "", "Follow a transcript file instead of stdin")
	listenCmd.Flags().BoolVarP(&listenExecute, "execute", "x", false, "Execute tasks of each intention once materialized")
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	var src transcript.Source
	if listenFile != "" {
		fs, err := transcript.NewFileSource(listenFile)
		if err != nil {
			return err
		}
		src = fs
	} else {
		src = transcript.NewReaderSource(os.Stdin)
	}
	defer src.Close()

	s, _, cleanup, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	go printEvents(os.Stderr, s.Events())

	if err := s.Listen(ctx, src); err != nil && ctx.Err() == nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.Wait()

	intentions, err := s.Intentions()
	if err != nil {
		return err
	}
	for _, in := range intentions {
		if listenExecute && ctx.Err() == nil {
			if err := s.ExecuteAll(ctx, in.ID); err != nil {
				printStatus("✗", fmt.Sprintf("%s: %v", in.Title, err), colorErr)
			}
			if _, err := s.Collate(in.ID); err == nil {
				if latest, err := s.Intention(in.ID); err == nil {
					in = latest
				}
			}
		}
		printIntention(os.Stdout, in)
		fmt.Println()
	}
	return nil
}
