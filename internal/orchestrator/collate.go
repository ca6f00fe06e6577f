package orchestrator

import (
	"fmt"
	"strings"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// NoResultsText is the collated output when no completed task has results.
const NoResultsText = "No results yet - tasks are still in progress."

// CollateResults joins the result outputs of completed tasks, one bold-titled
// block per task, blocks separated by a horizontal rule.
func CollateResults(tasks []*models.Task) string {
	var blocks []string
	for _, t := range tasks {
		if t.Status != models.TaskStatusCompleted {
			continue
		}
		var results []string
		for _, out := range t.Results() {
			results = append(results, out.Content)
		}
		if len(results) == 0 {
			continue
		}
		blocks = append(blocks, fmt.Sprintf("**%s**\n%s", t.Title, strings.Join(results, "\n\n")))
	}
	if len(blocks) == 0 {
		return NoResultsText
	}
	return strings.Join(blocks, "\n\n---\n\n")
}

// Collate stores the collated results of an intention's tasks as its
// CollatedOutput. When every task is completed the intention is fulfilled.
func (o *Orchestrator) Collate(intentionID string) (*models.Intention, error) {
	in, err := o.store.GetIntention(intentionID)
	if err != nil {
		return nil, fmt.Errorf("load intention: %w", err)
	}
	output := CollateResults(in.Tasks)
	fulfilled := in.AllTasksCompleted()

	updated, err := o.store.UpdateIntention(intentionID, func(i *models.Intention) {
		i.CollatedOutput = output
		if fulfilled {
			i.Status = models.IntentionFulfilled
		}
		i.UpdatedAt = o.clock.Now()
	})
	if err != nil {
		return nil, fmt.Errorf("store collated output: %w", err)
	}

	o.emit(OrchestratorEvent{Type: EventIntentionUpdated, IntentionID: intentionID, Message: "collated"})
	if fulfilled {
		o.logger.Log("[orchestrator] intention %s fulfilled", intentionID)
		o.emit(OrchestratorEvent{Type: EventIntentionFulfilled, IntentionID: intentionID})
	}
	return updated, nil
}

// SetCollatedOutput replaces an intention's collated output with edited text.
func (o *Orchestrator) SetCollatedOutput(intentionID, output string) (*models.Intention, error) {
	updated, err := o.store.UpdateIntention(intentionID, func(i *models.Intention) {
		i.CollatedOutput = output
		i.UpdatedAt = o.clock.Now()
	})
	if err != nil {
		return nil, fmt.Errorf("store collated output: %w", err)
	}
	o.emit(OrchestratorEvent{Type: EventIntentionUpdated, IntentionID: intentionID, Message: "collated output edited"})
	return updated, nil
}

// Fulfill marks an intention fulfilled regardless of its tasks.
func (o *Orchestrator) Fulfill(intentionID string) (*models.Intention, error) {
	updated, err := o.store.UpdateIntention(intentionID, func(i *models.Intention) {
		i.Status = models.IntentionFulfilled
		i.UpdatedAt = o.clock.Now()
	})
	if err != nil {
		return nil, fmt.Errorf("fulfill intention: %w", err)
	}
	o.emit(OrchestratorEvent{Type: EventIntentionFulfilled, IntentionID: intentionID})
	return updated, nil
}
