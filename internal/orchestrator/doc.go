// Package orchestrator drives an intention through analysis and task
// materialization.
//
// ProcessIntention moves a shared ProcessingState through fixed phases:
//
//	idle -> analyzing (0) -> requesting (25) -> task-generation (60)
//	     -> materializing (80) -> complete (100) -> idle (after settle delay)
//
// Suggested tasks are handed to a Scheduler as one ordered batch, task i at
// i x StaggerInterval from submission, each starting in spawning status at
// a position derived from its index. The orchestrator does not wait for the
// batch; Wait does.
//
// Failures the model client cannot absorb (client unavailable, rate limit,
// store errors) revert the intention to active with a manual-fallback
// description and surface in ProcessingState.Error. Retry re-runs the last
// request from the start.
//
// Example usage:
//
//	orch := orchestrator.New(orchestrator.RequiredConfig{
//		Client: client,
//		Store:  store,
//	})
//	err := orch.ProcessIntention(ctx, intention.ID, "organize my move", nil)
package orchestrator
