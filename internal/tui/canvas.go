package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// canvasRow is one selectable line: an intention, or one of its tasks.
type canvasRow struct {
	intention *models.Intention
	task      *models.Task
}

func (r canvasRow) id() string {
	if r.task != nil {
		return r.task.ID
	}
	return r.intention.ID
}

// Canvas lists intentions with their tasks and execution progress.
type Canvas struct {
	rows       []canvasRow
	selected   int
	selectedID string
	width      int
	height     int
	focused    bool
	bar        progress.Model

	titleStyle    lipgloss.Style
	dimStyle      lipgloss.Style
	selectedStyle lipgloss.Style
	emptyStyle    lipgloss.Style
}

// NewCanvas creates a new Canvas.
func NewCanvas() *Canvas {
	return &Canvas{
		width:  80,
		height: 20,
		bar:    progress.New(progress.WithDefaultGradient(), progress.WithWidth(16), progress.WithoutPercentage()),

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")),

		selectedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		emptyStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("243")).
			Italic(true),
	}
}

// SetSize sets the view dimensions.
func (c *Canvas) SetSize(width, height int) {
	c.width = width
	c.height = height
}

// SetFocused toggles the selection highlight.
func (c *Canvas) SetFocused(focused bool) {
	c.focused = focused
}

// SetIntentions replaces the content, keeping the selected row when it
// still exists.
func (c *Canvas) SetIntentions(intentions []*models.Intention) {
	c.rows = c.rows[:0]
	for _, in := range intentions {
		c.rows = append(c.rows, canvasRow{intention: in})
		for _, t := range in.Tasks {
			c.rows = append(c.rows, canvasRow{intention: in, task: t})
		}
	}

	c.selected = min(c.selected, max(len(c.rows)-1, 0))
	for i, r := range c.rows {
		if r.id() == c.selectedID {
			c.selected = i
			break
		}
	}
	c.remember()
}

// Up moves the selection up.
func (c *Canvas) Up() {
	if c.selected > 0 {
		c.selected--
		c.remember()
	}
}

// Down moves the selection down.
func (c *Canvas) Down() {
	if c.selected < len(c.rows)-1 {
		c.selected++
		c.remember()
	}
}

// Select selects the row with the given intention or task ID.
func (c *Canvas) Select(id string) {
	for i, r := range c.rows {
		if r.id() == id {
			c.selected = i
			c.remember()
			return
		}
	}
}

func (c *Canvas) remember() {
	if c.selected < len(c.rows) {
		c.selectedID = c.rows[c.selected].id()
	}
}

// SelectedTask returns the selected task, or nil when an intention row is
// selected.
func (c *Canvas) SelectedTask() *models.Task {
	if c.selected >= len(c.rows) {
		return nil
	}
	return c.rows[c.selected].task
}

// SelectedIntention returns the intention of the selected row.
func (c *Canvas) SelectedIntention() *models.Intention {
	if c.selected >= len(c.rows) {
		return nil
	}
	return c.rows[c.selected].intention
}

// View renders the canvas.
func (c *Canvas) View() string {
	if len(c.rows) == 0 {
		return c.emptyStyle.Render("No intentions yet. Type one below.")
	}

	lines := make([]string, 0, len(c.rows))
	for i, r := range c.rows {
		var line string
		if r.task == nil {
			line = c.intentionLine(r.intention)
		} else {
			line = c.taskLine(r.task)
		}
		cursor := "  "
		if i == c.selected && c.focused {
			cursor = c.selectedStyle.Render("▸ ")
		}
		lines = append(lines, cursor+line)
	}

	// Scroll so the selection stays visible.
	start := 0
	if c.height > 0 && len(lines) > c.height {
		start = c.selected - c.height/2
		start = max(0, min(start, len(lines)-c.height))
		lines = lines[start : start+c.height]
	}
	return strings.Join(lines, "\n")
}

func (c *Canvas) intentionLine(in *models.Intention) string {
	glyph := map[models.IntentionStatus]string{
		models.IntentionListening:  "◌",
		models.IntentionProcessing: "◍",
		models.IntentionActive:     "◉",
		models.IntentionFulfilled:  "✔",
	}[in.Status]

	done := 0
	for _, t := range in.Tasks {
		if t.Status == models.TaskStatusCompleted {
			done++
		}
	}
	meta := c.dimStyle.Render(fmt.Sprintf("  %s · %d/%d tasks · %d%%", in.Status, done, len(in.Tasks), in.AIProgress))
	return glyph + " " + c.titleStyle.Render(truncate(in.Title, c.width-40)) + meta
}

func (c *Canvas) taskLine(t *models.Task) string {
	var glyph string
	switch t.Status {
	case models.TaskStatusCompleted:
		glyph = lipgloss.NewStyle().Foreground(lipgloss.Color("34")).Render("●")
	case models.TaskStatusExecuting:
		glyph = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render("◐")
	default:
		glyph = c.dimStyle.Render("○")
	}

	line := fmt.Sprintf("    %s %-32s %s %3d%%", glyph, truncate(t.Title, 32), c.bar.ViewAs(float64(t.Progress)/100), t.Progress)
	if t.Status == models.TaskStatusExecuting && t.CurrentStep != "" {
		line += c.dimStyle.Render("  " + t.CurrentStep)
	}
	if n := len(t.Outputs); n > 0 && t.Outputs[n-1].Type == models.OutputError {
		line += lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("  failed: " + truncate(t.Outputs[n-1].Content, 40))
	}
	return line
}

// truncate shortens s to n runes, marking the cut.
func truncate(s string, n int) string {
	if n < 4 {
		n = 4
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
