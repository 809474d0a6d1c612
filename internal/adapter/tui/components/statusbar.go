package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"maitred/internal/adapter/tui/theme"
)

// KeyHint represents a single keybinding hint shown in the status bar.
type KeyHint struct {
	Key  string // e.g. "Enter"
	Desc string // e.g. "Send"
}

// StatusBarModel renders a bottom status bar with keybinding hints and
// the widget name.
type StatusBarModel struct {
	Hints      []KeyHint
	WidgetName string
	Extra      string // transient status text (e.g. "Thinking...")
	width      int
}

// NewStatusBar creates an empty status bar.
func NewStatusBar() StatusBarModel {
	return StatusBarModel{}
}

// SetWidth updates the available width.
func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

// View renders the status bar as a single line.
func (m StatusBarModel) View() string {
	var hints []string
	for _, h := range m.Hints {
		hints = append(hints, theme.StatusKey.Render(h.Key)+": "+h.Desc)
	}
	left := strings.Join(hints, "  "+theme.Dim.Render("|")+"  ")

	var right string
	if m.WidgetName != "" {
		right = theme.TextMuted.Render(m.WidgetName)
	}
	if m.Extra != "" {
		if right != "" {
			right += "  "
		}
		right += theme.TextInfo.Render(m.Extra)
	}

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}

	return theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}
