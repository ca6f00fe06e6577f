package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

const (
	colorOK   = color.FgGreen
	colorWarn = color.FgYellow
	colorErr  = color.FgRed
)

// printIntention prints an intention, its tasks and any results.
func printIntention(w io.Writer, in *models.Intention) {
	bold := color.New(color.Bold)
	dim := color.New(color.Faint)

	fmt.Fprintf(w, "%s %s\n", bold.Sprint(in.Title), dim.Sprintf("[%s, %d%%]", in.Status, in.AIProgress))
	if in.Description != "" {
		fmt.Fprintf(w, "  %s\n", in.Description)
	}
	for _, c := range in.UserContext {
		fmt.Fprintf(w, "  %s %s\n", dim.Sprint("context:"), c)
	}
	fmt.Fprintln(w)

	if len(in.Tasks) == 0 {
		fmt.Fprintln(w, dim.Sprint("  No tasks."))
	}
	for i, t := range in.Tasks {
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, taskMark(t.Status), t.Title)
		if t.Description != "" {
			fmt.Fprintf(w, "     %s\n", dim.Sprint(t.Description))
		}
		if result, ok := t.LastResult(); ok {
			for _, line := range strings.Split(strings.TrimSpace(result), "\n") {
				fmt.Fprintf(w, "     %s\n", line)
			}
		}
	}

	if in.CollatedOutput != "" {
		fmt.Fprintf(w, "\n%s\n%s\n", bold.Sprint("Results"), in.CollatedOutput)
	}
}

func taskMark(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusCompleted:
		return color.New(colorOK).Sprint("✓")
	case models.TaskStatusExecuting:
		return color.New(color.FgCyan).Sprint("…")
	default:
		return color.New(color.Faint).Sprint("○")
	}
}

// printEvents prints task lifecycle events until the stream closes.
func printEvents(w io.Writer, events <-chan orchestrator.OrchestratorEvent) {
	for e := range events {
		switch e.Type {
		case orchestrator.EventTaskCreated:
			fmt.Fprintf(w, "%s %s\n", color.New(color.FgCyan).Sprint("+"), e.TaskTitle)
		case orchestrator.EventTaskCompleted:
			fmt.Fprintf(w, "%s %s\n", color.New(colorOK).Sprint("✓"), e.TaskTitle)
		case orchestrator.EventTaskFailed:
			fmt.Fprintf(w, "%s %s: %s\n", color.New(colorErr).Sprint("✗"), e.TaskTitle, e.Message)
		}
	}
}
