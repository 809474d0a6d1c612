package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"maitred/internal/adapter/tui/theme"
)

// InputSubmitMsg is sent when the user presses Enter to submit input.
type InputSubmitMsg struct {
	Value string
}

// InputAreaModel wraps a textarea with submit handling. The same field
// doubles as the email-capture input while the drawer waits for an
// address; the Placeholder and Prompt change to signal the mode.
type InputAreaModel struct {
	Textarea textarea.Model
	Enabled  bool
	width    int
}

// NewInputArea creates an input area with sensible defaults.
func NewInputArea() InputAreaModel {
	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.CharLimit = 0 // no limit
	ta.SetHeight(3)
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = theme.InputPrompt
	ta.FocusedStyle.Placeholder = theme.InputPlaceholder
	ta.Focus()

	return InputAreaModel{
		Textarea: ta,
		Enabled:  true,
	}
}

// SetWidth updates the textarea width.
func (m *InputAreaModel) SetWidth(w int) {
	m.width = w
	m.Textarea.SetWidth(w - 2) // account for border/padding
}

// SetEnabled enables or disables input (e.g. while waiting for response).
func (m *InputAreaModel) SetEnabled(enabled bool) {
	m.Enabled = enabled
	if enabled {
		m.Textarea.Focus()
	} else {
		m.Textarea.Blur()
	}
}

// SetEmailMode switches the field between chat input and email capture.
func (m *InputAreaModel) SetEmailMode(on bool) {
	if on {
		m.Textarea.Placeholder = "your@email.com"
		m.Textarea.Prompt = theme.SymbolMail + " "
	} else {
		m.Textarea.Placeholder = "Type your message..."
		m.Textarea.Prompt = "> "
	}
}

// Reset clears the input.
func (m *InputAreaModel) Reset() {
	m.Textarea.Reset()
}

// Value returns the current input text.
func (m InputAreaModel) Value() string {
	return m.Textarea.Value()
}

// ParseSlashCommand extracts command and args from slash command input.
func ParseSlashCommand(input string) (cmd string, args []string, ok bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return "", nil, false
	}
	parts := strings.Fields(input)
	return strings.ToLower(parts[0]), parts[1:], true
}

// Update handles key events. Enter submits; Alt+Enter inserts a newline
// via the textarea.
func (m InputAreaModel) Update(msg tea.Msg) (InputAreaModel, tea.Cmd) {
	if !m.Enabled {
		return m, nil
	}

	// The textarea should never receive mouse events.
	if _, ok := msg.(tea.MouseMsg); ok {
		return m, nil
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEnter {
		value := strings.TrimSpace(m.Textarea.Value())
		if value == "" {
			return m, nil
		}
		m.Textarea.Reset()
		return m, func() tea.Msg {
			return InputSubmitMsg{Value: value}
		}
	}

	var cmd tea.Cmd
	m.Textarea, cmd = m.Textarea.Update(msg)
	return m, cmd
}

// View renders the input area.
func (m InputAreaModel) View() string {
	return m.Textarea.View()
}
