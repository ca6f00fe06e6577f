package decompose

import (
	"fmt"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// fallbackTasks are offered whenever intention analysis fails.
var fallbackTasks = []SuggestedTask{
	{
		Title:       "Research and Planning",
		Description: "Gather information and create a plan for your intention",
		Reasoning:   "Good planning is essential for successful execution",
	},
	{
		Title:       "First Action Step",
		Description: "Take the first concrete action towards your goal",
		Reasoning:   "Starting is often the hardest part",
	},
	{
		Title:       "Review and Adjust",
		Description: "Evaluate progress and make necessary adjustments",
		Reasoning:   "Regular review ensures you stay on track",
	},
}

// FallbackProgressEstimate is the progress estimate of FallbackAnalysis.
const FallbackProgressEstimate = 10

// FallbackAnalysis returns the analysis used when the model cannot be
// reached or its reply is unusable. It depends only on input.
func FallbackAnalysis(input string) *Analysis {
	tasks := make([]SuggestedTask, len(fallbackTasks))
	copy(tasks, fallbackTasks)
	return &Analysis{
		IntentionAnalysis: fmt.Sprintf("I heard: \"%s\". Let me help you break this down into actionable steps.", input),
		SuggestedTasks:    tasks,
		ProgressEstimate:  FallbackProgressEstimate,
	}
}

// FallbackSuggestions returns an empty suggestion list.
func FallbackSuggestions() *Suggestions {
	return &Suggestions{NewTasks: []SuggestedTask{}}
}

// FallbackTaskUpdate appends the new context to the description and moves a
// spawning task to executing. Other statuses are kept.
func FallbackTaskUpdate(task TaskBrief, newContext string) *TaskUpdate {
	status := task.Status
	if status == models.TaskStatusSpawning {
		status = models.TaskStatusExecuting
	}
	return &TaskUpdate{
		UpdatedDescription: fmt.Sprintf("%s (Updated with: %s)", task.Description, newContext),
		Status:             status,
	}
}

// FallbackResult is the result text used when result generation fails.
func FallbackResult(task TaskBrief) string {
	return fmt.Sprintf("Task %q was worked through without AI assistance.\n\n%s\n\nReview this task and record the outcome manually.",
		task.Title, task.Description)
}

// ManualDescription is the intention description used when processing fails
// outside the model client, so the user can continue without AI.
func ManualDescription(input string) string {
	return fmt.Sprintf("I heard: \"%s\". AI processing failed, but you can still work with this intention manually.", input)
}
