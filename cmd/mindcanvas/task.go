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

// sessionAPI is the part of *session.Session the editing commands use.
type sessionAPI interface {
	AddUserContext(intentionID, text string) (*models.Intention, error)
	SetCollatedOutput(intentionID, output string) (*models.Intention, error)
	Fulfill(intentionID string) (*models.Intention, error)
	UpdateTaskWithContext(ctx context.Context, taskID, newContext string) (*models.Task, error)
}

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Edit stored tasks",
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <task-id> <context>",
	Short: "Revise a task from new context",
	Long: `Send a task and new context to the model and store the revised
description and status.

Without a configured API key the command fails and the task is left
unchanged.`,
	Example: `  mindcanvas task update 9c1e "the movers need a parking permit"`,
	Args:    cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStoredSession(func(ctx context.Context, s sessionAPI) error {
			return updateTask(ctx, s, os.Stdout, args[0], strings.Join(args[1:], " "))
		})
	},
}

func init() {
	taskCmd.AddCommand(taskUpdateCmd)
}

func updateTask(ctx context.Context, s sessionAPI, w io.Writer, id, newContext string) error {
	newContext = strings.TrimSpace(newContext)
	if newContext == "" {
		return fmt.Errorf("context text is empty")
	}
	t, err := s.UpdateTaskWithContext(ctx, id, newContext)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	fmt.Fprintf(w, "%s %s [%s]\n", taskMark(t.Status), t.Title, t.Status)
	if t.Description != "" {
		fmt.Fprintf(w, "  %s\n", t.Description)
	}
	return nil
}
