// Package export renders intentions and their tasks as JSON, YAML, CSV or
// markdown text.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatCSV  Format = "csv"
	FormatText Format = "txt"
)

// ErrUnknownFormat is returned for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat resolves a format name or common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "csv":
		return FormatCSV, nil
	case "txt", "text", "md", "markdown":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Options controls what is exported.
type Options struct {
	Format Format
	// IntentionIDs limits the export. Empty exports everything.
	IntentionIDs []string
	// IncludeOutputs adds each task's execution log.
	IncludeOutputs bool
	// Now stamps the document. Zero means time.Now.
	Now time.Time
}

// Document is the export root.
type Document struct {
	ExportedAt time.Time      `json:"exported_at" yaml:"exported_at"`
	Intentions []IntentionDoc `json:"intentions" yaml:"intentions"`
}

// IntentionDoc is one exported intention.
type IntentionDoc struct {
	ID             string    `json:"id" yaml:"id"`
	Title          string    `json:"title" yaml:"title"`
	OriginalInput  string    `json:"original_input" yaml:"original_input"`
	Description    string    `json:"description,omitempty" yaml:"description,omitempty"`
	Status         string    `json:"status" yaml:"status"`
	AIProgress     int       `json:"ai_progress" yaml:"ai_progress"`
	UserContext    []string  `json:"user_context,omitempty" yaml:"user_context,omitempty"`
	CollatedOutput string    `json:"collated_output,omitempty" yaml:"collated_output,omitempty"`
	CreatedAt      time.Time `json:"created_at" yaml:"created_at"`
	Tasks          []TaskDoc `json:"tasks" yaml:"tasks"`
}

// TaskDoc is one exported task.
type TaskDoc struct {
	ID          string      `json:"id" yaml:"id"`
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Status      string      `json:"status" yaml:"status"`
	Progress    int         `json:"progress" yaml:"progress"`
	Reasoning   string      `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
	Result      string      `json:"result,omitempty" yaml:"result,omitempty"`
	Outputs     []OutputDoc `json:"outputs,omitempty" yaml:"outputs,omitempty"`
}

// OutputDoc is one execution log entry.
type OutputDoc struct {
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
	Type      string    `json:"type" yaml:"type"`
	Content   string    `json:"content" yaml:"content"`
}

// Build converts intentions into a Document, applying the ID filter.
func Build(intentions []*models.Intention, opts Options) Document {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	doc := Document{ExportedAt: now.UTC(), Intentions: []IntentionDoc{}}

	for _, in := range intentions {
		if in == nil {
			continue
		}
		if len(opts.IntentionIDs) > 0 && !slices.Contains(opts.IntentionIDs, in.ID) {
			continue
		}
		idoc := IntentionDoc{
			ID:             in.ID,
			Title:          in.Title,
			OriginalInput:  in.OriginalInput,
			Description:    in.Description,
			Status:         string(in.Status),
			AIProgress:     in.AIProgress,
			UserContext:    in.UserContext,
			CollatedOutput: in.CollatedOutput,
			CreatedAt:      in.CreatedAt.UTC(),
			Tasks:          make([]TaskDoc, 0, len(in.Tasks)),
		}
		for _, t := range in.Tasks {
			tdoc := TaskDoc{
				ID:          t.ID,
				Title:       t.Title,
				Description: t.Description,
				Status:      string(t.Status),
				Progress:    t.Progress,
				Reasoning:   t.AIReasoning,
			}
			tdoc.Result, _ = t.LastResult()
			if opts.IncludeOutputs {
				for _, out := range t.Outputs {
					tdoc.Outputs = append(tdoc.Outputs, OutputDoc{
						Timestamp: out.Timestamp.UTC(),
						Type:      string(out.Type),
						Content:   out.Content,
					})
				}
			}
			idoc.Tasks = append(idoc.Tasks, tdoc)
		}
		doc.Intentions = append(doc.Intentions, idoc)
	}
	return doc
}

// Write encodes intentions to w in opts.Format.
func Write(w io.Writer, intentions []*models.Intention, opts Options) error {
	format := opts.Format
	if format == "" {
		format = FormatJSON
	}
	doc := Build(intentions, opts)

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatCSV:
		return writeCSV(w, doc)
	case FormatText:
		return writeText(w, doc)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

var csvHeader = []string{
	"intention_id", "intention_title", "intention_status",
	"task_id", "task_title", "task_status", "task_progress", "task_result",
}

// writeCSV emits one row per task. An intention without tasks gets one row
// with empty task columns.
func writeCSV(w io.Writer, doc Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, in := range doc.Intentions {
		prefix := []string{in.ID, in.Title, in.Status}
		if len(in.Tasks) == 0 {
			if err := cw.Write(append(prefix, "", "", "", "", "")); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
			continue
		}
		for _, t := range in.Tasks {
			row := append(slices.Clone(prefix), t.ID, t.Title, t.Status, strconv.Itoa(t.Progress), t.Result)
			if err := cw.Write(row); err != nil {
				return fmt.Errorf("write csv row: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func writeText(w io.Writer, doc Document) error {
	var b strings.Builder

	b.WriteString("# MindCanvas export\n\n")
	fmt.Fprintf(&b, "Exported %s\n", doc.ExportedAt.Format(time.RFC3339))

	for _, in := range doc.Intentions {
		fmt.Fprintf(&b, "\n## %s\n\n", in.Title)
		fmt.Fprintf(&b, "Status: %s | Progress: %d%%\n", in.Status, in.AIProgress)
		if in.OriginalInput != "" && in.OriginalInput != in.Title {
			fmt.Fprintf(&b, "\n> %s\n", in.OriginalInput)
		}
		if in.Description != "" {
			fmt.Fprintf(&b, "\n%s\n", in.Description)
		}
		if len(in.Tasks) > 0 {
			b.WriteString("\n")
		}
		for _, t := range in.Tasks {
			mark := " "
			if t.Status == string(models.TaskStatusCompleted) {
				mark = "x"
			}
			fmt.Fprintf(&b, "- [%s] %s (%d%%)\n", mark, t.Title, t.Progress)
			if t.Result != "" {
				for _, line := range strings.Split(t.Result, "\n") {
					fmt.Fprintf(&b, "  %s\n", line)
				}
			}
		}
		if in.CollatedOutput != "" {
			fmt.Fprintf(&b, "\n### Results\n\n%s\n", in.CollatedOutput)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
