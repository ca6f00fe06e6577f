package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/mindcanvas/internal/export"
)

var (
	exportFormat string
	exportOut    string
	exportIDs    []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored intentions and tasks",
	Long: `Write the intentions kept in the database as json, yaml, csv or txt
(markdown).

Intentions are only stored when --db or --persist is given, or app.db_path
is configured; export reads the default database otherwise. Execution
outputs do not survive a session, so exported tasks carry no results.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, yaml, csv or txt")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Write to a file instead of stdout")
	exportCmd.Flags().StringSliceVar(&exportIDs, "id", nil, "Only export these intention IDs (repeatable)")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}
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

	var w io.Writer = os.Stdout
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := s.Export(w, export.Options{Format: format, IntentionIDs: exportIDs}); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if exportOut != "" {
		printStatus("✓", fmt.Sprintf("Exported to %s", exportOut), colorOK)
	}
	return nil
}
