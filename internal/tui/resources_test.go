package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

func TestLevelOf(t *testing.T) {
	tests := []struct {
		name  string
		usage models.ResourceUsage
		want  usageLevel
	}{
		{"idle", models.ResourceUsage{}, levelIdle},
		{"in flight", models.ResourceUsage{CurrentRequests: 1}, levelActive},
		{"busy", models.ResourceUsage{CurrentRequests: 1, RequestsPerMinute: 41}, levelBusy},
		{"at threshold", models.ResourceUsage{RequestsPerMinute: 40}, levelIdle},
		{"limited", models.ResourceUsage{RequestsPerMinute: 61, RateLimitReached: true}, levelLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := levelOf(tt.usage); got != tt.want {
				t.Errorf("levelOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4500, "-4,500"},
	}
	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestResourceMonitor_RateLimited(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	reset := now.Add(42 * time.Second)

	m := NewResourceMonitor()
	m.now = func() time.Time { return now }
	m.SetUsage(models.ResourceUsage{
		TotalRequests:     61,
		RequestsPerMinute: 61,
		TokensUsed:        12500,
		RateLimitReached:  true,
		ResetTime:         &reset,
	})

	view := m.View()
	for _, want := range []string{"Rate limited", "61 / 60", "12,500", "42s"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}
