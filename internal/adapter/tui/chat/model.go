package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"maitred/internal/adapter/tui/components"
	"maitred/internal/adapter/tui/theme"
	"maitred/internal/domain"
	"maitred/internal/usecase"
)

// DefaultSessionID is the session identifier used by the TUI channel.
const DefaultSessionID = "cli-default"

// ChatModelDeps are dependencies injected into the chat model.
type ChatModelDeps struct {
	Handler    domain.MessageHandler
	Store      *usecase.DrawerStore
	Controller *usecase.RegistrationController
	OnClear    func()
	OnGenBump  func(gen uint64)          // notifies the channel of a new request generation
	OnStatus   func(domain.ChatStatus)   // notifies the channel of turn status changes
	Logger     *slog.Logger
	WidgetName string
	Greeting   string
}

// ChatModel is the root Bubble Tea model for the concierge chat TUI.
type ChatModel struct {
	deps ChatModelDeps

	// Sub-models
	chatView  components.ChatViewModel
	input     components.InputAreaModel
	statusBar components.StatusBarModel
	drawer    components.DrawerModel
	spinner   spinner.Model

	// State
	waiting   bool   // true while waiting for handler response
	streaming bool   // true during simulated streaming
	streamBuf []rune // full response to stream (runes for Unicode safety)
	streamPos int    // current rune position in streamBuf
	status    domain.ChatStatus
	width     int
	height    int
	quitting  bool

	// history mirrors the visible transcript with role information so
	// intent detection can inspect the latest user message after each
	// completed turn.
	history []domain.Message

	// Streaming config.
	streamCfg StreamConfig

	// Request lifecycle: gen is incremented on every new request.
	// Stale OutboundMsg / HandlerDoneMsg with an older gen are discarded.
	gen      uint64
	cancelFn context.CancelFunc // cancels the in-flight handler goroutine
}

// NewChatModel creates the root chat model.
func NewChatModel(deps ChatModelDeps) ChatModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.ColorInfo)

	name := deps.WidgetName
	if name == "" {
		name = theme.SymbolBot
	}

	sb := components.NewStatusBar()
	sb.WidgetName = name
	sb.Hints = defaultHints()

	chatView := components.NewChatView()
	chatView.SetMaxMessages(1000)

	if deps.Greeting != "" {
		chatView.AddMessage(components.ChatMessage{
			Role:      components.RoleAssistant,
			Content:   deps.Greeting,
			Timestamp: time.Now(),
		})
	}

	return ChatModel{
		deps:      deps,
		chatView:  chatView,
		input:     components.NewInputArea(),
		statusBar: sb,
		drawer:    components.NewDrawer(),
		spinner:   s,
		status:    domain.StatusReady,
		streamCfg: DefaultStreamConfig(),
	}
}

// Init initializes sub-models.
func (m ChatModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles all incoming messages.
func (m ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case components.InputSubmitMsg:
		return m.handleSubmit(msg.Value)

	case OutboundMsg:
		// Discard responses from a stale (cancelled) request.
		if msg.Gen != 0 && msg.Gen != m.gen {
			return m, nil
		}
		return m.handleOutbound(msg)

	case HandlerDoneMsg:
		// Discard completion from a stale (cancelled) request.
		if msg.Gen != m.gen {
			return m, nil
		}
		if msg.Err != nil {
			// Ignore context.Canceled: the user already saw "Request cancelled."
			if msg.Err != context.Canceled {
				m.chatView.AddMessage(components.ChatMessage{
					Role:    components.RoleError,
					Content: humanizeError(msg.Err),
				})
			}
			m.finishTurn(domain.StatusError, "", true)
		}
		return m, nil

	case StreamTickMsg:
		return m.handleStreamTick()

	case DrawerChangedMsg:
		// A store timer fired; re-read the snapshot, resize the chat area
		// and keep the input's email mode in step.
		m.syncDrawer()
		return m, nil

	case EmailSubmittedMsg:
		m.syncDrawer()
		if msg.Consumed {
			return m, nil
		}
		// Invalid address or persistence failure: the typed text becomes a
		// normal chat message.
		return m.submitChat(msg.Value)

	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Update sub-models (filter mouse events from reaching the input).
	if !m.waiting {
		if _, isMouse := msg.(tea.MouseMsg); !isMouse {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	var cmd tea.Cmd
	m.chatView, cmd = m.chatView.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// View renders the entire chat UI.
func (m ChatModel) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 {
		return "  Initializing..."
	}

	snap := m.snapshot()

	inputView := m.input.View()
	if m.waiting {
		spinnerStr := m.spinner.View() + " " + m.statusBar.Extra
		inputView = lipgloss.NewStyle().Faint(true).Render("> waiting for reply...") +
			"\n" + spinnerStr
	}

	parts := []string{m.chatView.View(), components.Divider(m.width)}
	if snap.Open {
		parts = append(parts, m.drawer.View(snap))
	}
	parts = append(parts, inputView, m.statusBar.View())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// layout recalculates sizes for all sub-models. The chat area shrinks by
// the drawer's rendered height while it is open.
func (m *ChatModel) layout() {
	inputH := 3
	statusH := 1
	dividerH := 1
	drawerH := 0
	if snap := m.snapshot(); snap.Open {
		m.drawer.SetWidth(m.width)
		drawerH = m.drawer.Height(snap)
	}
	contentH := m.height - inputH - statusH - dividerH - drawerH
	if contentH < 5 {
		contentH = 5
	}

	m.statusBar.SetWidth(m.width)
	m.chatView.SetSize(m.width, contentH)
	m.input.SetWidth(m.width)
}

// snapshot reads the current drawer state, tolerating a nil store in tests.
func (m ChatModel) snapshot() domain.DrawerSnapshot {
	if m.deps.Store == nil {
		return domain.DrawerSnapshot{}
	}
	return m.deps.Store.Snapshot()
}

// syncDrawer resizes around the drawer and mirrors its capture sub-mode
// into the input field.
func (m *ChatModel) syncDrawer() {
	snap := m.snapshot()
	m.input.SetEmailMode(snap.WaitingForEmail)
	if snap.Open && !snap.WaitingForEmail && !snap.Success {
		m.statusBar.Hints = promptHints()
	} else {
		m.statusBar.Hints = defaultHints()
	}
	m.layout()
}

// handleKey processes keyboard input.
func (m ChatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if isMouseEscapeLeak(msg.String()) {
		return m, nil
	}

	switch msg.Type {
	case tea.KeyCtrlC:
		if m.waiting {
			m.cancelRequest("Request cancelled.")
			return m, nil
		}
		m.quitting = true
		return m, tea.Quit

	case tea.KeyCtrlG:
		if m.deps.Store != nil {
			m.deps.Store.Toggle()
			m.syncDrawer()
		}
		return m, nil

	case tea.KeyCtrlL:
		return m.handleSlashCommand("/clear", nil)

	case tea.KeyEsc:
		if snap := m.snapshot(); snap.Open {
			if m.inPromptState(snap) && m.deps.Controller != nil {
				m.deps.Controller.Decline()
			} else if m.deps.Store != nil {
				m.deps.Store.Close()
			}
			m.syncDrawer()
			return m, nil
		}

	case tea.KeyPgUp, tea.KeyPgDown:
		var cmd tea.Cmd
		m.chatView, cmd = m.chatView.Update(msg)
		return m, cmd
	}

	// While the prompt is showing and the input is empty, a bare y/n
	// answers it. Anything else types into the chat field as usual.
	if snap := m.snapshot(); m.inPromptState(snap) && m.input.Value() == "" {
		switch msg.String() {
		case "y", "Y":
			if m.deps.Controller != nil {
				m.deps.Controller.Accept()
			}
			m.syncDrawer()
			return m, nil
		case "n", "N":
			if m.deps.Controller != nil {
				m.deps.Controller.Decline()
			}
			m.syncDrawer()
			return m, nil
		}
	}

	// Forward to input area.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// inPromptState reports whether the drawer is open showing the yes/no
// prompt rather than the capture or success panes.
func (m ChatModel) inPromptState(snap domain.DrawerSnapshot) bool {
	return snap.Open && !snap.WaitingForEmail && !snap.Success
}

// handleSubmit processes user input submission. Submissions route through
// the registration flow first while the capture sub-mode is active.
func (m ChatModel) handleSubmit(value string) (tea.Model, tea.Cmd) {
	if cmd, args, ok := components.ParseSlashCommand(value); ok {
		return m.handleSlashCommand(cmd, args)
	}

	if m.snapshot().WaitingForEmail && m.deps.Controller != nil {
		return m, submitEmailCmd(m.deps.Controller, value)
	}

	return m.submitChat(value)
}

// submitChat sends value to the message handler as a normal chat turn.
func (m ChatModel) submitChat(value string) (tea.Model, tea.Cmd) {
	// Cancel any in-flight request before starting a new one.
	if m.cancelFn != nil {
		m.cancelFn()
	}

	m.chatView.AddMessage(components.ChatMessage{
		Role:      components.RoleUser,
		Content:   value,
		Timestamp: time.Now(),
	})
	m.history = append(m.history, domain.Message{
		Role:      domain.RoleUser,
		Content:   value,
		Timestamp: time.Now(),
	})

	// Bump generation so stale responses are discarded.
	m.gen++
	if m.deps.OnGenBump != nil {
		m.deps.OnGenBump(m.gen)
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelFn = cancel

	m.waiting = true
	m.streaming = false
	m.setStatus(domain.StatusSubmitted)
	m.input.SetEnabled(false)
	m.statusBar.Extra = theme.SymbolSpinner + " Thinking..."

	inbound := domain.InboundMessage{
		SessionID: DefaultSessionID,
		Content:   value,
	}

	return m, sendMessageCmd(ctx, m.deps.Handler, inbound, m.gen)
}

// handleOutbound processes an assistant reply.
func (m ChatModel) handleOutbound(msg OutboundMsg) (tea.Model, tea.Cmd) {
	content := msg.Message.Content
	role := components.RoleAssistant
	if msg.Message.IsError {
		role = components.RoleError
	}

	m.chatView.AddMessage(components.ChatMessage{
		Role:      role,
		Timestamp: time.Now(),
	})

	if m.streamCfg.Speed == StreamInstant {
		m.chatView.UpdateLastMessage(content)
		status := domain.StatusReady
		if msg.Message.IsError {
			status = domain.StatusError
		}
		m.finishTurn(status, content, msg.Message.IsError)
		return m, nil
	}

	// Start simulated streaming using runes for Unicode safety.
	m.streamBuf = []rune(content)
	m.streamPos = 0
	m.streaming = true
	m.setStatus(domain.StatusStreaming)

	return m, streamTickCmd(m.streamCfg.TickRate)
}

// handleStreamTick progressively renders the response.
func (m ChatModel) handleStreamTick() (tea.Model, tea.Cmd) {
	if !m.streaming {
		return m, nil
	}

	// Advance by a chunk of runes (not bytes) for Unicode safety.
	end := m.streamPos + m.streamCfg.ChunkSize
	if end >= len(m.streamBuf) {
		end = len(m.streamBuf)
	}

	m.streamPos = end
	m.chatView.UpdateLastMessage(string(m.streamBuf[:m.streamPos]))

	if m.streamPos >= len(m.streamBuf) {
		m.finishTurn(domain.StatusReady, string(m.streamBuf), false)
		return m, nil
	}

	return m, streamTickCmd(m.streamCfg.TickRate)
}

// finishTurn resets the turn state and runs intent detection. Detection
// sees the history as it stood at submit time, ending with the user's
// message; the assistant reply is appended afterwards.
func (m *ChatModel) finishTurn(status domain.ChatStatus, assistantContent string, isErr bool) {
	m.streaming = false
	m.waiting = false
	m.input.SetEnabled(true)
	m.statusBar.Extra = ""
	m.setStatus(status)

	if m.deps.Controller != nil {
		m.deps.Controller.ObserveTurn(status, m.history)
	}

	if assistantContent != "" && !isErr {
		m.history = append(m.history, domain.Message{
			Role:      domain.RoleAssistant,
			Content:   assistantContent,
			Timestamp: time.Now(),
		})
	}

	m.syncDrawer()
}

// setStatus records the turn status locally and mirrors it to the channel
// so the drawer store's busy probe sees it.
func (m *ChatModel) setStatus(s domain.ChatStatus) {
	m.status = s
	if m.deps.OnStatus != nil {
		m.deps.OnStatus(s)
	}
}

// handleSlashCommand processes a slash command.
func (m ChatModel) handleSlashCommand(cmd string, _ []string) (tea.Model, tea.Cmd) {
	switch cmd {
	case "/help":
		m.chatView.AddMessage(components.ChatMessage{
			Role: components.RoleSystem,
			Content: `Available commands:
  /help      - Show this help
  /clear     - Clear conversation
  /register  - Open the newsletter signup
  /quit      - Exit maitred
  /cancel    - Cancel active request
  /speed     - Cycle streaming speed (normal/fast/instant)

Keybindings:
  Enter      - Send message
  Ctrl+G     - Toggle the signup drawer
  y / n      - Answer the signup prompt (empty input)
  Esc        - Dismiss the drawer
  Ctrl+L     - Clear conversation
  Ctrl+C     - Cancel/Quit
  PgUp/PgDn  - Scroll chat`,
		})
		return m, nil

	case "/quit", "/exit":
		m.quitting = true
		return m, tea.Quit

	case "/clear":
		m.chatView.Clear()
		m.history = nil
		if m.deps.OnClear != nil {
			m.deps.OnClear()
		}
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: theme.SymbolSuccess + " Session cleared.",
		})
		return m, nil

	case "/cancel":
		if m.waiting {
			m.cancelRequest("Request cancelled.")
		} else {
			m.chatView.AddMessage(components.ChatMessage{
				Role:    components.RoleSystem,
				Content: "No active request to cancel.",
			})
		}
		return m, nil

	case "/register":
		if m.deps.Store == nil || m.deps.Controller == nil {
			return m, nil
		}
		if snap := m.snapshot(); snap.Open {
			m.deps.Controller.Accept()
			m.syncDrawer()
			return m, nil
		}
		if !m.deps.Store.Open(domain.OriginManual) {
			m.chatView.AddMessage(components.ChatMessage{
				Role:    components.RoleSystem,
				Content: "Signup is unavailable right now, try again in a moment.",
			})
			return m, nil
		}
		m.deps.Controller.Accept()
		m.syncDrawer()
		return m, nil

	case "/speed":
		newSpeed := CycleStreamSpeed(m.streamCfg.Speed)
		m.streamCfg = StreamConfigForSpeed(newSpeed)
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: fmt.Sprintf("Streaming speed: %s", newSpeed),
		})
		return m, nil

	default:
		m.chatView.AddMessage(components.ChatMessage{
			Role:    components.RoleSystem,
			Content: fmt.Sprintf("Unknown command: %s. Type /help for available commands.", cmd),
		})
		return m, nil
	}
}

// cancelRequest cancels the in-flight handler goroutine, bumps the
// generation counter so any stale responses are discarded, and resets the
// UI state.
func (m *ChatModel) cancelRequest(reason string) {
	if m.cancelFn != nil {
		m.cancelFn()
		m.cancelFn = nil
	}
	m.gen++ // ensure stale OutboundMsg / HandlerDoneMsg are ignored
	m.waiting = false
	m.streaming = false
	m.input.SetEnabled(true)
	m.statusBar.Extra = ""
	m.setStatus(domain.StatusReady)
	m.chatView.AddMessage(components.ChatMessage{
		Role:    components.RoleSystem,
		Content: reason,
	})
}

func defaultHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "Enter", Desc: "Send"},
		{Key: "Ctrl+G", Desc: "Signup"},
		{Key: "?", Desc: "/help"},
		{Key: "Ctrl+C", Desc: "Quit"},
	}
}

func promptHints() []components.KeyHint {
	return []components.KeyHint{
		{Key: "y", Desc: "Yes"},
		{Key: "n", Desc: "No thanks"},
		{Key: "Esc", Desc: "Dismiss"},
	}
}

// isSGRMouseSequence detects SGR mouse escape sequences that may leak
// through as key input (e.g. "<65;38;21M") when mouse cell motion
// tracking is enabled.
func isSGRMouseSequence(s string) bool {
	if len(s) < 5 || s[0] != '<' {
		return false
	}
	last := s[len(s)-1]
	if last != 'M' && last != 'm' {
		return false
	}
	for _, r := range s[1 : len(s)-1] {
		if r != ';' && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// isMouseEscapeLeak detects mouse escape sequences that leaked through
// as key input instead of tea.MouseMsg. Covers SGR, X11 basic, and
// URXVT formats that appear during rapid trackpad scrolling.
func isMouseEscapeLeak(s string) bool {
	if isSGRMouseSequence(s) {
		return true
	}
	if len(s) >= 2 && s[0] == '[' && (s[1] == 'M' || s[1] == 'm') {
		return true
	}
	if len(s) >= 5 && s[0] == '[' && s[len(s)-1] == 'M' {
		allValid := true
		for _, r := range s[1 : len(s)-1] {
			if r != ';' && (r < '0' || r > '9') {
				allValid = false
				break
			}
		}
		if allValid {
			return true
		}
	}
	return false
}

// humanizeError turns handler errors into a short user-facing line.
func humanizeError(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, domain.ErrTimeout):
		return "The assistant took too long to reply. Please try again."
	case errors.Is(err, domain.ErrRateLimit):
		return "The assistant is rate limited right now. Give it a few seconds."
	case errors.Is(err, domain.ErrBackend):
		return "The assistant service is having trouble. Please try again."
	default:
		return "Something went wrong: " + err.Error()
	}
}
