package components

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestParseSlashCommand(t *testing.T) {
	tests := []struct {
		in       string
		wantCmd  string
		wantArgs []string
		wantOK   bool
	}{
		{"/help", "/help", []string{}, true},
		{"/REGISTER", "/register", []string{}, true},
		{"  /speed  fast ", "/speed", []string{"fast"}, true},
		{"hello", "", nil, false},
		{"not /a command", "", nil, false},
	}
	for _, tt := range tests {
		cmd, args, ok := ParseSlashCommand(tt.in)
		if ok != tt.wantOK || cmd != tt.wantCmd {
			t.Errorf("ParseSlashCommand(%q) = %q, %v, %v", tt.in, cmd, args, ok)
			continue
		}
		if ok && len(args) != len(tt.wantArgs) {
			t.Errorf("ParseSlashCommand(%q) args = %v, want %v", tt.in, args, tt.wantArgs)
		}
	}
}

func TestInputSubmitTrimsAndResets(t *testing.T) {
	m := NewInputArea()
	m.Textarea.SetValue("  hello there  ")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("expected a submit command")
	}
	msg, ok := cmd().(InputSubmitMsg)
	if !ok {
		t.Fatalf("expected InputSubmitMsg, got %T", cmd())
	}
	if msg.Value != "hello there" {
		t.Errorf("value = %q, want trimmed", msg.Value)
	}
	if m.Value() != "" {
		t.Error("field should reset on submit")
	}
}

func TestInputEmptySubmitIgnored(t *testing.T) {
	m := NewInputArea()
	m.Textarea.SetValue("   ")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("blank input should not submit")
	}
}

func TestInputDisabledIgnoresKeys(t *testing.T) {
	m := NewInputArea()
	m.SetEnabled(false)
	m.Textarea.SetValue("queued")

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd != nil {
		t.Error("disabled input should not submit")
	}
}

func TestInputEmailModeSwapsPrompt(t *testing.T) {
	m := NewInputArea()
	m.SetEmailMode(true)
	if m.Textarea.Placeholder != "your@email.com" {
		t.Errorf("placeholder = %q", m.Textarea.Placeholder)
	}
	m.SetEmailMode(false)
	if m.Textarea.Placeholder != "Type your message..." {
		t.Errorf("placeholder = %q", m.Textarea.Placeholder)
	}
}
