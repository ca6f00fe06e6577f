package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/mindcanvas/internal/governor"
	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

// usageLevel classifies a usage snapshot for coloring.
type usageLevel int

const (
	levelIdle usageLevel = iota
	levelActive
	levelBusy
	levelLimited
)

// busyRequestsPerMinute is the rate above which the monitor turns yellow.
const busyRequestsPerMinute = 40

func levelOf(u models.ResourceUsage) usageLevel {
	switch {
	case u.RateLimitReached:
		return levelLimited
	case u.RequestsPerMinute > busyRequestsPerMinute:
		return levelBusy
	case u.CurrentRequests > 0:
		return levelActive
	default:
		return levelIdle
	}
}

var levelColors = map[usageLevel]lipgloss.Color{
	levelIdle:    lipgloss.Color("34"),
	levelActive:  lipgloss.Color("39"),
	levelBusy:    lipgloss.Color("214"),
	levelLimited: lipgloss.Color("196"),
}

var levelLabels = map[usageLevel]string{
	levelIdle:    "Ready",
	levelActive:  "Working",
	levelBusy:    "Busy",
	levelLimited: "Rate limited",
}

// ResourceMonitor displays the governor's counters.
type ResourceMonitor struct {
	usage models.ResourceUsage
	limit int
	now   func() time.Time
	width int

	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	headerStyle   lipgloss.Style
	progressEmpty lipgloss.Style
}

// NewResourceMonitor creates a new ResourceMonitor.
func NewResourceMonitor() *ResourceMonitor {
	return &ResourceMonitor{
		limit: governor.DefaultMaxRequestsPerMinute,
		now:   time.Now,
		width: 36,

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
	}
}

// SetUsage sets the snapshot to display.
func (m *ResourceMonitor) SetUsage(u models.ResourceUsage) {
	m.usage = u
}

// SetLimit sets the requests-per-minute ceiling the bar is drawn against.
func (m *ResourceMonitor) SetLimit(limit int) {
	if limit > 0 {
		m.limit = limit
	}
}

// SetWidth sets the panel width.
func (m *ResourceMonitor) SetWidth(width int) {
	m.width = width
}

// View renders the monitor.
func (m *ResourceMonitor) View() string {
	var b strings.Builder
	u := m.usage
	level := levelOf(u)
	levelStyle := lipgloss.NewStyle().Foreground(levelColors[level]).Bold(true)

	b.WriteString(m.headerStyle.Render("AI Resources"))
	b.WriteString("\n")

	b.WriteString(m.renderRow("Status:", levelStyle.Render(levelLabels[level])))
	b.WriteString("\n")
	b.WriteString(m.renderRow("In flight:", m.valueStyle.Render(fmt.Sprintf("%d", u.CurrentRequests))))
	b.WriteString("\n")
	b.WriteString(m.renderRow("Requests:", m.valueStyle.Render(formatNumber(int64(u.TotalRequests)))))
	b.WriteString("\n")
	b.WriteString(m.renderRow("Per minute:", m.valueStyle.Render(fmt.Sprintf("%d / %d", u.RequestsPerMinute, m.limit))))
	b.WriteString("\n")

	pct := float64(0)
	if m.limit > 0 {
		pct = float64(u.RequestsPerMinute) / float64(m.limit) * 100
	}
	b.WriteString(m.renderProgressBar(pct, 24, levelStyle))
	b.WriteString("\n\n")

	b.WriteString(m.renderRow("Tokens:", m.valueStyle.Render(formatNumber(u.TokensUsed))))
	b.WriteString("\n")
	b.WriteString(m.renderRow("Cost:", m.valueStyle.Render(fmt.Sprintf("$%.4f", u.EstimatedCost))))

	if u.RateLimitReached && u.ResetTime != nil {
		wait := u.ResetTime.Sub(m.now()).Round(time.Second)
		if wait < 0 {
			wait = 0
		}
		b.WriteString("\n")
		b.WriteString(m.renderRow("Resets in:", levelStyle.Render(wait.String())))
	}

	return b.String()
}

// renderRow renders a label-value pair.
func (m *ResourceMonitor) renderRow(label, value string) string {
	return m.labelStyle.Render(label) + " " + value
}

// renderProgressBar renders a progress bar.
func (m *ResourceMonitor) renderProgressBar(pct float64, width int, fullStyle lipgloss.Style) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := fullStyle.Render(strings.Repeat("█", filled)) +
		m.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  [%s]", bar)
}

// formatNumber formats a number with comma separators.
func formatNumber(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 {
		str = str[1:]
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}

	if n < 0 {
		result = "-" + result
	}
	return result
}
