package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"maitred/internal/domain"
)

// defaultPromptCooldown is how long after a decline or a completed
// registration the automatic prompt stays suppressed. Independent of the
// store's reopen-suppression window: both must clear before an automatic
// open succeeds. Manual opens are only subject to the store's window.
const defaultPromptCooldown = 10 * time.Second

// registrationKeywords are matched by lowercase substring containment
// against the latest user message. Substring matching is intentional:
// false positives are acceptable, missed intent is the failure to avoid.
var registrationKeywords = []string{
	"register",
	"signup",
	"sign up",
	"subscribe",
	"account",
	"create account",
	"newsletter",
	"inscrire",
	"m'inscrire",
	"inscription",
}

// emailPattern accepts local@domain with a dot in the domain. Looser than
// RFC 5322 on purpose; anything it rejects is sent as a chat message.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// MatchesRegistrationIntent reports whether text contains a registration
// keyword, using case-insensitive substring containment.
func MatchesRegistrationIntent(text string, extra ...string) bool {
	lowered := strings.ToLower(text)
	for _, kw := range registrationKeywords {
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	for _, kw := range extra {
		if kw != "" && strings.Contains(lowered, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// ValidEmail reports whether text parses as an email address for the
// purposes of the capture flow.
func ValidEmail(text string) bool {
	return emailPattern.MatchString(strings.TrimSpace(text))
}

// RegistrationControllerConfig configures a RegistrationController.
type RegistrationControllerConfig struct {
	Store     *DrawerStore
	Persister domain.EmailPersister
	Bus       domain.EventBus
	Logger    *slog.Logger
	// Cooldown overrides the 10 s automatic-prompt suppression window.
	Cooldown time.Duration
	// ExtraKeywords extends the built-in intent keyword set.
	ExtraKeywords []string
	now           func() time.Time // test hook
}

// RegistrationController decides when to auto-open the drawer and drives
// the email capture flow: prompt, capture through the chat input field,
// persist, success display.
type RegistrationController struct {
	store     *DrawerStore
	persister domain.EmailPersister
	bus       domain.EventBus
	logger    *slog.Logger
	cooldown  time.Duration
	extra     []string
	now       func() time.Time

	mu            sync.Mutex
	cooldownUntil time.Time
}

// NewRegistrationController creates a controller bound to one drawer store.
func NewRegistrationController(cfg RegistrationControllerConfig) *RegistrationController {
	if cfg.Store == nil {
		panic("usecase: RegistrationController requires a DrawerStore")
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = defaultPromptCooldown
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	return &RegistrationController{
		store:     cfg.Store,
		persister: cfg.Persister,
		bus:       cfg.Bus,
		logger:    logger,
		cooldown:  cooldown,
		extra:     cfg.ExtraKeywords,
		now:       now,
	}
}

// ObserveTurn runs intent detection once per completed turn. It is a no-op
// mid-stream, while the drawer is open, during the prompt cooldown, or
// when the latest message is not from the user.
func (c *RegistrationController) ObserveTurn(status domain.ChatStatus, messages []domain.Message) {
	if !status.Completed() {
		return
	}
	if c.InCooldown() {
		return
	}
	snap := c.store.Snapshot()
	if snap.Open {
		return
	}
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]
	if last.Role != domain.RoleUser {
		return
	}
	if !MatchesRegistrationIntent(last.Content, c.extra...) {
		return
	}

	if c.store.Open(domain.OriginAutomatic) {
		c.logger.Info("registration intent detected, drawer opened")
		c.publish(domain.EventRegistrationPrompted, nil)
	}
}

// Accept handles the user answering yes to the prompt: the drawer switches
// to the email-capture sub-mode and the chat input doubles as the email
// field until the next submit.
func (c *RegistrationController) Accept() {
	c.store.SetWaitingForEmail(true)
}

// Decline handles the user answering no: the drawer closes and the
// automatic prompt enters its cooldown.
func (c *RegistrationController) Decline() {
	c.store.Close()
	c.startCooldown()
	c.publish(domain.EventRegistrationDeclined, nil)
}

// SubmitInput intercepts a chat-input submission while the capture
// sub-mode is active. It reports whether the text was consumed as an email
// address; false means the caller must fall through to normal chat
// submission. Invalid addresses and persistence failures both fall
// through: registration never blocks the user's ability to send what
// they typed.
func (c *RegistrationController) SubmitInput(ctx context.Context, text string) bool {
	if !c.store.Snapshot().WaitingForEmail {
		return false
	}
	email := strings.TrimSpace(text)
	if !ValidEmail(email) {
		return false
	}
	c.publish(domain.EventRegistrationCaptured, map[string]string{"email": email})

	if c.persister != nil {
		if err := c.persister.SubmitEmail(ctx, email); err != nil {
			c.logger.Warn("email persistence failed, falling through to chat submit", "error", err)
			c.publish(domain.EventRegistrationFailed, map[string]string{"error": err.Error()})
			return false
		}
	}

	c.store.SetRegistrationSuccess(true)
	c.store.Close()
	c.startCooldown()
	c.logger.Info("registration completed")
	c.publish(domain.EventRegistrationCompleted, nil)
	return true
}

// InCooldown reports whether the automatic prompt is suppressed.
func (c *RegistrationController) InCooldown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.cooldownUntil)
}

func (c *RegistrationController) startCooldown() {
	c.mu.Lock()
	c.cooldownUntil = c.now().Add(c.cooldown)
	c.mu.Unlock()
}

func (c *RegistrationController) publish(t domain.EventType, payload any) {
	if c.bus != nil {
		c.bus.Publish(context.Background(), domain.NewEvent(t, payload))
	}
}
