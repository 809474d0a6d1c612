package chat

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"maitred/internal/domain"
	"maitred/internal/usecase"
)

// TUIChannel implements domain.Channel using a Bubble Tea program. It owns
// the drawer store and registration controller for the lifetime of the
// session view: both are created when the program starts and disposed when
// it exits.
type TUIChannel struct {
	logger     *slog.Logger
	program    *tea.Program
	persister  domain.EmailPersister
	bus        domain.EventBus
	onClear    func()
	widgetName string
	greeting   string

	timings       usecase.DrawerTimings
	cooldown      time.Duration
	extraKeywords []string

	gen    atomic.Uint64 // current request generation, set by ChatModel via SetGen
	status atomic.Int32  // current domain.ChatStatus, set by ChatModel via SetStatus

	store *usecase.DrawerStore
	ctrl  *usecase.RegistrationController
}

// NewTUIChannel creates a new TUI-based CLI channel.
func NewTUIChannel(logger *slog.Logger) *TUIChannel {
	return &TUIChannel{
		logger:  logger,
		timings: usecase.DefaultDrawerTimings(),
	}
}

// SetPersister injects the email persister the registration flow submits to.
func (c *TUIChannel) SetPersister(p domain.EmailPersister) {
	c.persister = p
}

// SetOnClear registers a callback invoked when the user runs /clear.
func (c *TUIChannel) SetOnClear(fn func()) {
	c.onClear = fn
}

// SetWidgetInfo sets the widget name and greeting line for display.
func (c *TUIChannel) SetWidgetInfo(name, greeting string) {
	c.widgetName = name
	c.greeting = greeting
}

// SetEventBus enables publishing drawer and registration events.
func (c *TUIChannel) SetEventBus(bus domain.EventBus) {
	c.bus = bus
}

// SetDrawerTimings overrides the default drawer timer windows.
func (c *TUIChannel) SetDrawerTimings(t usecase.DrawerTimings) {
	c.timings = t
}

// SetPromptCooldown overrides the automatic-prompt suppression window.
func (c *TUIChannel) SetPromptCooldown(d time.Duration) {
	c.cooldown = d
}

// SetExtraKeywords extends the built-in registration intent keyword set.
func (c *TUIChannel) SetExtraKeywords(words []string) {
	c.extraKeywords = words
}

// Start creates the drawer store, the registration controller and the
// Bubble Tea program, then blocks until the program exits.
func (c *TUIChannel) Start(ctx context.Context, handler domain.MessageHandler) error {
	c.store = usecase.NewDrawerStore(usecase.DrawerStoreConfig{
		Timings: c.timings,
		Busy: func() bool {
			return domain.ChatStatus(c.status.Load()).Busy()
		},
		OnChange: func() {
			// Timer fires mutate the store off the update loop; push a
			// message so the view re-renders with the fresh snapshot.
			if c.program != nil {
				c.program.Send(DrawerChangedMsg{})
			}
		},
		Logger: c.logger,
		Bus:    c.bus,
	})
	defer c.store.Dispose()

	c.ctrl = usecase.NewRegistrationController(usecase.RegistrationControllerConfig{
		Store:         c.store,
		Persister:     c.persister,
		Bus:           c.bus,
		Logger:        c.logger,
		Cooldown:      c.cooldown,
		ExtraKeywords: c.extraKeywords,
	})

	model := NewChatModel(ChatModelDeps{
		Handler:    handler,
		Store:      c.store,
		Controller: c.ctrl,
		OnClear:    c.onClear,
		OnGenBump:  c.SetGen,
		OnStatus:   c.SetStatus,
		Logger:     c.logger,
		WidgetName: c.widgetName,
		Greeting:   c.greeting,
	})

	c.program = tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	// Monitor context cancellation to quit the program.
	go func() {
		<-ctx.Done()
		if c.program != nil {
			c.program.Send(QuitMsg{})
		}
	}()

	_, err := c.program.Run()
	return err
}

// Stop signals the Bubble Tea program to quit.
func (c *TUIChannel) Stop(_ context.Context) error {
	if c.program != nil {
		c.program.Send(QuitMsg{})
	}
	return nil
}

// SetGen updates the current request generation. Called by ChatModel when
// a new request is submitted so Send() can tag outbound messages.
func (c *TUIChannel) SetGen(gen uint64) {
	c.gen.Store(gen)
}

// SetStatus records the current turn status. The drawer store's busy probe
// reads it, so open requests racing a submit see the submitted state.
func (c *TUIChannel) SetStatus(s domain.ChatStatus) {
	c.status.Store(int32(s))
}

// Send pushes an outbound message into the Bubble Tea update loop.
// Called from the Router goroutine - this is the bridge between
// the domain layer and the TUI. The current gen is tagged so the UI
// can discard responses from cancelled requests.
func (c *TUIChannel) Send(_ context.Context, msg domain.OutboundMessage) error {
	if c.program != nil {
		c.program.Send(OutboundMsg{Message: msg, Gen: c.gen.Load()})
	}
	return nil
}

// Name implements domain.Channel.
func (c *TUIChannel) Name() string { return "cli" }
