package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestInputField_Update_Enter(t *testing.T) {
	field := NewInputField()

	if _, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter}); cmd != nil {
		t.Error("no command expected for empty input")
	}

	field.input.SetValue("  organize my move  ")
	field, cmd := field.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected command from enter with text")
	}
	submitted, ok := cmd().(IntentionSubmittedMsg)
	if !ok {
		t.Fatalf("expected IntentionSubmittedMsg, got %T", cmd())
	}
	if submitted.Text != "organize my move" {
		t.Errorf("Text = %q", submitted.Text)
	}
	if field.input.Value() != "" {
		t.Errorf("input should be cleared, got %q", field.input.Value())
	}
}

func TestInputField_Update_Typing(t *testing.T) {
	field := NewInputField()
	for _, char := range "hello" {
		field, _ = field.Update(runes(string(char)))
	}
	if field.input.Value() != "hello" {
		t.Errorf("Input value = %q, want %q", field.input.Value(), "hello")
	}
}

func TestInputField_SetWidth(t *testing.T) {
	field := NewInputField()
	field.SetWidth(120)
	if field.input.Width != 116 {
		t.Errorf("Input width = %d, want 116", field.input.Width)
	}
}
