package tui

import (
	"strings"
	"testing"

	"github.com/ShayCichocki/mindcanvas/pkg/models"
)

func TestCanvas_Selection(t *testing.T) {
	b := newFakeBackend()
	c := NewCanvas()
	c.SetIntentions(b.intentions)

	if c.SelectedTask() != nil {
		t.Error("first row should be the intention")
	}
	c.Down()
	if got := c.SelectedTask(); got == nil || got.ID != "t-1" {
		t.Fatalf("selected task = %+v", got)
	}

	// A refresh with a new task in front keeps the selection on t-1.
	in := b.intentions[0].Clone()
	in.Tasks = append([]*models.Task{{ID: "t-0", Title: "Sort closet"}}, in.Tasks...)
	c.SetIntentions([]*models.Intention{in})
	if got := c.SelectedTask(); got == nil || got.ID != "t-1" {
		t.Errorf("selection moved to %+v", got)
	}

	c.Select("t-2")
	if got := c.SelectedTask(); got == nil || got.ID != "t-2" {
		t.Errorf("Select(t-2) selected %+v", got)
	}
	c.Down()
	if got := c.SelectedTask(); got.ID != "t-2" {
		t.Error("Down past the last row should stay put")
	}
}

func TestCanvas_View(t *testing.T) {
	c := NewCanvas()
	if !strings.Contains(c.View(), "No intentions yet") {
		t.Error("expected empty state")
	}

	c.SetIntentions(newFakeBackend().intentions)
	view := c.View()
	for _, want := range []string{"Move apartments", "0/2 tasks", "Book movers", "40%", "Planning execution approach"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate kept = %q", got)
	}
	if got := truncate("a rather long title", 8); got != "a rathe…" {
		t.Errorf("truncate cut = %q", got)
	}
}
