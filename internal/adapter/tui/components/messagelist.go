package components

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"maitred/internal/adapter/tui/theme"
)

// MessageRole identifies the sender of a chat message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
	RoleError     MessageRole = "error"
)

// ChatMessage represents a single message in the chat history.
type ChatMessage struct {
	Role      MessageRole
	Content   string
	Rendered  string // cached glamour output; empty means not yet rendered
	Timestamp time.Time
}

// MessageListModel manages an ordered list of chat messages with an
// optional ring buffer.
type MessageListModel struct {
	Messages    []ChatMessage
	MaxMessages int // 0 = unlimited; positive = ring buffer cap
	trimCount   int // number of messages trimmed so far
	width       int
	mdRenderer  *glamour.TermRenderer
}

// NewMessageList creates an empty message list.
func NewMessageList() MessageListModel {
	return MessageListModel{}
}

// SetWidth updates the rendering width and clears cached renders.
func (m *MessageListModel) SetWidth(w int) {
	if w == m.width {
		return
	}
	m.width = w
	m.mdRenderer = nil // force re-creation with new width
	for i := range m.Messages {
		m.Messages[i].Rendered = ""
	}
}

// SetMaxMessages sets the ring buffer capacity. 0 means unlimited.
func (m *MessageListModel) SetMaxMessages(max int) {
	m.MaxMessages = max
}

// Add appends a message. If MaxMessages is set, trims oldest messages.
func (m *MessageListModel) Add(msg ChatMessage) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	m.Messages = append(m.Messages, msg)
	if m.MaxMessages > 0 && len(m.Messages) > m.MaxMessages {
		excess := len(m.Messages) - m.MaxMessages
		m.Messages = m.Messages[excess:]
		m.trimCount += excess
	}
}

// Clear removes all messages.
func (m *MessageListModel) Clear() {
	m.Messages = nil
}

// UpdateLast replaces the content of the last message (for streaming).
func (m *MessageListModel) UpdateLast(content string) {
	if len(m.Messages) == 0 {
		return
	}
	m.Messages[len(m.Messages)-1].Content = content
	m.Messages[len(m.Messages)-1].Rendered = "" // invalidate cache
}

// View renders all messages as a single string.
func (m *MessageListModel) View() string {
	if len(m.Messages) == 0 {
		return theme.TextMuted.Render("  No messages yet. Start a conversation!")
	}

	contentWidth := ContentWidth(m.width)

	var sb strings.Builder
	if m.trimCount > 0 {
		sb.WriteString(theme.TextMuted.Render(
			fmt.Sprintf("  (%d older messages trimmed)", m.trimCount)) + "\n\n")
	}
	for i := range m.Messages {
		msg := &m.Messages[i]
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.renderMessage(msg, contentWidth))
	}
	return sb.String()
}

func (m *MessageListModel) renderMessage(msg *ChatMessage, width int) string {
	label := roleLabel(msg.Role)
	ts := RelativeTime(msg.Timestamp)
	header := label + " " + theme.Timestamp.Render(ts)
	headerWidth := lipgloss.Width(header)

	var body string
	switch msg.Role {
	case RoleAssistant:
		if msg.Rendered == "" {
			msg.Rendered = m.renderMarkdown(msg.Content, width)
		}
		body = strings.TrimSpace(msg.Rendered)
	case RoleError:
		body = theme.TextError.Render(wrapText(msg.Content, width-2))
	default:
		inlineW := width - headerWidth - 2
		if inlineW < 20 {
			inlineW = width - 2
		}
		body = wrapText(msg.Content, inlineW)
	}

	if body == "" {
		return header
	}

	// Inline: header and first line of body share a line when there is room.
	if width-headerWidth-2 < 20 {
		return header + "\n  " + body
	}

	lines := strings.SplitN(body, "\n", 2)
	result := header + "  " + strings.TrimSpace(lines[0])
	if len(lines) > 1 {
		result += "\n" + lines[1]
	}
	return result
}

func roleLabel(role MessageRole) string {
	switch role {
	case RoleUser:
		return theme.UserLabel.Render(theme.SymbolUser)
	case RoleAssistant:
		return theme.BotLabel.Render(theme.SymbolBot)
	case RoleSystem:
		return theme.SystemLabel.Render("System")
	case RoleError:
		return theme.ErrorLabel.Render(theme.SymbolError + " Error")
	default:
		return theme.TextMuted.Render(string(role))
	}
}

func (m *MessageListModel) renderMarkdown(content string, width int) string {
	if m.mdRenderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "  " + content
		}
		m.mdRenderer = r
	}
	rendered, err := m.mdRenderer.Render(content)
	if err != nil {
		return "  " + content
	}
	return rendered
}

// RelativeTime returns a human-readable relative time string.
func RelativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2 15:04")
	}
}

// wrapText wraps text to the given width with a 2-space indent on
// continuation lines. Rune-based indexing handles multibyte UTF-8.
func wrapText(s string, width int) string {
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	var lines []string
	for len(runes) > width {
		idx := -1
		for i := width - 1; i > 0; i-- {
			if runes[i] == ' ' {
				idx = i
				break
			}
		}
		if idx <= 0 {
			idx = width
		}
		lines = append(lines, string(runes[:idx]))
		runes = runes[idx:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		lines = append(lines, string(runes))
	}
	return strings.Join(lines, "\n  ")
}

// ContentWidth calculates the content width respecting MaxContentWidth.
func ContentWidth(termWidth int) int {
	w := termWidth - 4
	if w > theme.MaxContentWidth {
		w = theme.MaxContentWidth
	}
	if w < 40 {
		w = 40
	}
	return w
}

// Divider renders a horizontal line at the given width.
func Divider(width int) string {
	return lipgloss.NewStyle().
		Foreground(theme.ColorBorder).
		Render(strings.Repeat("─", width))
}
