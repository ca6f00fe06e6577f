package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/mindcanvas/internal/orchestrator"
)

// Header renders the title bar and the processing state.
type Header struct {
	width    int
	provider string
	state    orchestrator.ProcessingState
	spinner  spinner.Model
}

// NewHeader creates a new Header.
func NewHeader(provider string) *Header {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return &Header{
		width:    80,
		provider: provider,
		spinner:  s,
	}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// SetState sets the processing state shown on the right.
func (h *Header) SetState(s orchestrator.ProcessingState) {
	h.state = s
}

// Tick starts the spinner.
func (h *Header) Tick() tea.Cmd {
	return h.spinner.Tick
}

// Update advances the spinner.
func (h *Header) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	h.spinner, cmd = h.spinner.Update(msg)
	return cmd
}

// View renders the header.
func (h *Header) View() string {
	// Gradient colors for the title
	colors := []string{"#FF6B6B", "#FF8E53", "#FFC857", "#4ECDC4", "#45B7D1", "#96E6A1"}
	title := ""
	for i, r := range "mindcanvas" {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(colors[i%len(colors)])).Bold(true)
		title += style.Render(string(r))
	}

	subtitle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("243")).
		Italic(true).
		Render(fmt.Sprintf("  intentions into tasks · %s", h.provider))

	left := title + subtitle
	right := h.stateView()

	gap := h.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	line := left + lipgloss.NewStyle().Width(gap).Render("") + right

	return lipgloss.NewStyle().
		Width(h.width).
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(lipgloss.Color("238")).
		Render(line)
}

func (h *Header) stateView() string {
	switch {
	case h.state.Error != "":
		return lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗ " + h.state.Error + " (r to retry)")
	case h.state.IsProcessing:
		return fmt.Sprintf("%s %s %d%%", h.spinner.View(), h.state.CurrentStep, h.state.Progress)
	default:
		return lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Render("idle")
	}
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 2
}
