package decompose

import (
	"fmt"
	"strings"
)

// Prompt is a role-structured request: a system instruction plus one user turn.
type Prompt struct {
	System string
	User   string
	// MaxTokens overrides the client's default completion budget when > 0.
	MaxTokens int
}

// Per-contract completion budgets.
const (
	taskUpdateMaxTokens  = 500
	suggestionsMaxTokens = 800
	resultMaxTokens      = 1000
)

const analysisSystemPrompt = `You are an AI assistant that helps users fulfill their intentions by breaking them down into actionable tasks.

Analyze the user's spoken intention and:
1. Provide a clear interpretation of what they want to achieve
2. Generate 3-5 specific, actionable tasks that would help fulfill this intention
3. Estimate overall progress (0-100) that can be made immediately
4. For each task, provide reasoning for why it's important

Return ONLY valid JSON in this exact format (no other text):
{
  "intentionAnalysis": "Clear interpretation of the user's goal",
  "suggestedTasks": [
    {
      "title": "Task title (max 50 characters)",
      "description": "Detailed task description (max 200 characters)",
      "reasoning": "Why this task is important for the intention (max 150 characters)"
    }
  ],
  "progressEstimate": 25
}

Keep descriptions concise and actionable. Focus on immediate next steps the user can take.`

const suggestionsSystemPrompt = `Generate additional helpful tasks for an intention, avoiding duplication with existing tasks.

Return 2-3 new tasks as valid JSON (no other text):
{
  "newTasks": [
    {
      "title": "Task title",
      "description": "Task description",
      "reasoning": "Why this task helps"
    }
  ]
}`

const taskUpdateSystemPrompt = `You are helping update a task based on new context or information.

Analyze the current task and new context, then provide:
1. An updated task description that incorporates the new information
2. An appropriate status for the task: "spawning", "executing", or "completed"

Return ONLY valid JSON:
{
  "updatedDescription": "Updated task description",
  "status": "executing"
}`

const resultSystemPrompt = `You are carrying out a task on behalf of a user.

Produce the concrete outcome of the task: a short plan, a checklist, a draft or an answer, whichever fits best.
Write plain text or light Markdown. Be specific and practical. Do not describe what you are about to do; do it.`

// AnalysisPrompt builds the intention-analysis request. userContext is
// appended as "Additional context" when non-empty.
func AnalysisPrompt(input string, userContext []string) Prompt {
	user := fmt.Sprintf("User's intention: \"%s\"", input)
	if len(userContext) > 0 {
		user += "\nAdditional context: " + strings.Join(userContext, ", ")
	}
	return Prompt{System: analysisSystemPrompt, User: user}
}

// SuggestionsPrompt builds the task-suggestion request with existing titles
// as de-duplication context.
func SuggestionsPrompt(intentionTitle string, existingTitles []string) Prompt {
	existing := "(none)"
	if len(existingTitles) > 0 {
		existing = strings.Join(existingTitles, ", ")
	}
	return Prompt{
		System:    suggestionsSystemPrompt,
		User:      fmt.Sprintf("Intention: %s\nExisting tasks: %s", intentionTitle, existing),
		MaxTokens: suggestionsMaxTokens,
	}
}

// TaskUpdatePrompt builds the task-update request.
func TaskUpdatePrompt(task TaskBrief, newContext string) Prompt {
	return Prompt{
		System: taskUpdateSystemPrompt,
		User: fmt.Sprintf("Current task: \"%s\" - %s\nCurrent status: %s\nNew context: %s",
			task.Title, task.Description, task.Status, newContext),
		MaxTokens: taskUpdateMaxTokens,
	}
}

// ResultPrompt builds the result-generation request for a task.
func ResultPrompt(task TaskBrief) Prompt {
	return Prompt{
		System:    resultSystemPrompt,
		User:      fmt.Sprintf("Task: %s\nDetails: %s", task.Title, task.Description),
		MaxTokens: resultMaxTokens,
	}
}
