package components

import (
	"github.com/charmbracelet/lipgloss"

	"maitred/internal/adapter/tui/theme"
	"maitred/internal/domain"
)

// DrawerModel renders the registration drawer that slides up over the
// chat input. It is a pure view: all state lives in the drawer store and
// arrives here as a snapshot.
type DrawerModel struct {
	width int
}

// NewDrawer creates a drawer renderer.
func NewDrawer() DrawerModel {
	return DrawerModel{}
}

// SetWidth updates the available width.
func (m *DrawerModel) SetWidth(w int) {
	m.width = w
}

// Height returns the rendered height for the given snapshot, so the
// layout can reserve rows. Zero when the drawer is closed.
func (m DrawerModel) Height(snap domain.DrawerSnapshot) int {
	if !snap.Open {
		return 0
	}
	return lipgloss.Height(m.View(snap))
}

// View renders the drawer for the given snapshot. Empty when closed.
func (m DrawerModel) View(snap domain.DrawerSnapshot) string {
	if !snap.Open {
		return ""
	}

	var body string
	switch {
	case snap.Success:
		body = theme.TextSuccess.Render(theme.SymbolSuccess+" You're in!") + "\n" +
			"Thanks for subscribing to our newsletter."
	case snap.WaitingForEmail:
		body = theme.DrawerTitle.Render(theme.SymbolMail+" Almost there") + "\n" +
			"Type your email address in the field below and press " +
			theme.DrawerKey.Render("Enter") + "."
	default:
		body = theme.DrawerTitle.Render("Stay in the loop?") + "\n" +
			"Join our newsletter for updates.  " +
			theme.DrawerKey.Render("y") + " yes  " +
			theme.DrawerKey.Render("n") + " no thanks"
	}

	w := m.width - 4
	if w < 20 {
		w = 20
	}
	return theme.DrawerBorder.Width(w).Render(body)
}
