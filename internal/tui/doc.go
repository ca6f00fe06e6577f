// Package tui provides the terminal dashboard for mindcanvas.
//
// The dashboard takes the place of the canvas: an input line for
// utterances, the intentions with their tasks and execution progress, and a
// resource monitor fed by the governor. It renders snapshots read from a
// Backend and refreshes whenever the session publishes an event.
//
// Keys:
//
//	enter        submit the input line as a new intention
//	tab / esc    move focus between the input line and the canvas; esc
//	             also cancels a u or e prompt
//	up / down    select an intention or task
//	x            execute the selected task
//	a            execute every open task of the selected intention
//	f            force-complete the selected task
//	m            generate more tasks for the selected intention
//	u            add context: revises the selected task, or is remembered
//	             for the selected intention's next analysis
//	c            collate results of the selected intention
//	e            replace the collated output of the selected intention
//	d            mark the selected intention fulfilled
//	r            retry the last failed processing
//	q / ctrl+c   quit
package tui
