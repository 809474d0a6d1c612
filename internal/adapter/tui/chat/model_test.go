package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"maitred/internal/adapter/tui/components"
	"maitred/internal/domain"
	"maitred/internal/usecase"
)

// recordingPersister captures submitted emails.
type recordingPersister struct {
	mu     sync.Mutex
	emails []string
	err    error
}

func (p *recordingPersister) SubmitEmail(_ context.Context, email string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.emails = append(p.emails, email)
	return nil
}

func (p *recordingPersister) Emails() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(p.emails))
	copy(cp, p.emails)
	return cp
}

type modelFixture struct {
	model     ChatModel
	store     *usecase.DrawerStore
	ctrl      *usecase.RegistrationController
	persister *recordingPersister
	statuses  []domain.ChatStatus
	gens      []uint64
}

func newModelFixture(t *testing.T) *modelFixture {
	t.Helper()
	f := &modelFixture{persister: &recordingPersister{}}

	f.store = usecase.NewDrawerStore(usecase.DrawerStoreConfig{
		Timings: usecase.DrawerTimings{
			AutoClose:      time.Minute, // out of the way for these tests
			ReopenSuppress: time.Millisecond,
			SuccessReset:   time.Minute,
			CloseReassert:  time.Microsecond,
		},
	})
	t.Cleanup(f.store.Dispose)

	f.ctrl = usecase.NewRegistrationController(usecase.RegistrationControllerConfig{
		Store:     f.store,
		Persister: f.persister,
	})

	handler := func(context.Context, domain.InboundMessage) error { return nil }
	f.model = NewChatModel(ChatModelDeps{
		Handler:    handler,
		Store:      f.store,
		Controller: f.ctrl,
		OnGenBump:  func(g uint64) { f.gens = append(f.gens, g) },
		OnStatus:   func(s domain.ChatStatus) { f.statuses = append(f.statuses, s) },
		WidgetName: "Maitred",
	})
	f.model.width = 80
	f.model.height = 24
	f.model.streamCfg = StreamConfigForSpeed(StreamInstant)
	return f
}

// update runs one Update cycle and keeps the typed model.
func (f *modelFixture) update(msg tea.Msg) tea.Cmd {
	m, cmd := f.model.Update(msg)
	f.model = m.(ChatModel)
	return cmd
}

func TestSubmitBumpsGenerationAndStatus(t *testing.T) {
	f := newModelFixture(t)

	cmd := f.update(components.InputSubmitMsg{Value: "hello"})
	if cmd == nil {
		t.Fatal("expected handler command")
	}
	if len(f.gens) != 1 || f.gens[0] != 1 {
		t.Errorf("gens = %v, want [1]", f.gens)
	}
	if len(f.statuses) == 0 || f.statuses[len(f.statuses)-1] != domain.StatusSubmitted {
		t.Errorf("statuses = %v, want trailing submitted", f.statuses)
	}
	if !f.model.waiting {
		t.Error("model should be waiting")
	}
}

func TestIntentOpensDrawerAfterCompletedTurn(t *testing.T) {
	f := newModelFixture(t)

	f.update(components.InputSubmitMsg{Value: "I'd like to subscribe"})
	f.update(OutboundMsg{
		Message: domain.OutboundMessage{SessionID: DefaultSessionID, Content: "Sure thing!"},
		Gen:     1,
	})

	snap := f.store.Snapshot()
	if !snap.Open {
		t.Fatal("drawer should open after the turn completes")
	}
	if snap.Origin != domain.OriginAutomatic {
		t.Errorf("origin = %v, want automatic", snap.Origin)
	}
}

func TestNoIntentNoDrawer(t *testing.T) {
	f := newModelFixture(t)

	f.update(components.InputSubmitMsg{Value: "what's on the menu"})
	f.update(OutboundMsg{
		Message: domain.OutboundMessage{SessionID: DefaultSessionID, Content: "Soup."},
		Gen:     1,
	})

	if f.store.Snapshot().Open {
		t.Error("drawer should stay closed without intent")
	}
}

func TestStaleOutboundDiscarded(t *testing.T) {
	f := newModelFixture(t)

	f.update(components.InputSubmitMsg{Value: "please sign me up"})
	// Response tagged with a superseded generation.
	f.update(OutboundMsg{
		Message: domain.OutboundMessage{SessionID: DefaultSessionID, Content: "old reply"},
		Gen:     99,
	})

	if !f.model.waiting {
		t.Error("stale response must not complete the turn")
	}
	if f.store.Snapshot().Open {
		t.Error("stale response must not trigger detection")
	}
}

func TestYesKeyEntersCaptureMode(t *testing.T) {
	f := newModelFixture(t)
	f.store.Open(domain.OriginAutomatic)

	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'y'}})

	if !f.store.Snapshot().WaitingForEmail {
		t.Error("y should switch the drawer to email capture")
	}
}

func TestNoKeyDeclines(t *testing.T) {
	f := newModelFixture(t)
	f.store.Open(domain.OriginAutomatic)

	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})

	if f.store.Snapshot().Open {
		t.Error("n should close the drawer")
	}
	if !f.ctrl.InCooldown() {
		t.Error("decline should start the prompt cooldown")
	}
}

func TestEmailSubmissionConsumed(t *testing.T) {
	f := newModelFixture(t)
	f.store.Open(domain.OriginAutomatic)
	f.ctrl.Accept()

	cmd := f.update(components.InputSubmitMsg{Value: "user@example.com"})
	if cmd == nil {
		t.Fatal("expected email submit command")
	}
	msg, ok := cmd().(EmailSubmittedMsg)
	if !ok {
		t.Fatalf("expected EmailSubmittedMsg, got %T", cmd())
	}
	if !msg.Consumed {
		t.Fatal("valid email should be consumed")
	}
	if got := f.persister.Emails(); len(got) != 1 || got[0] != "user@example.com" {
		t.Errorf("persisted = %v", got)
	}

	f.update(msg)
	if f.model.waiting {
		t.Error("consumed email must not start a chat turn")
	}
}

func TestInvalidEmailFallsThroughToChat(t *testing.T) {
	f := newModelFixture(t)
	f.store.Open(domain.OriginAutomatic)
	f.ctrl.Accept()

	cmd := f.update(components.InputSubmitMsg{Value: "actually, a question"})
	msg := cmd().(EmailSubmittedMsg)
	if msg.Consumed {
		t.Fatal("non-email input must not be consumed")
	}

	f.update(msg)
	if !f.model.waiting {
		t.Error("fallthrough should submit the text as a chat message")
	}
	if len(f.model.history) == 0 || f.model.history[len(f.model.history)-1].Content != "actually, a question" {
		t.Error("fallthrough text should land in the transcript")
	}
}

func TestRegisterCommandOpensCapture(t *testing.T) {
	f := newModelFixture(t)

	f.update(components.InputSubmitMsg{Value: "/register"})

	snap := f.store.Snapshot()
	if !snap.Open || snap.Origin != domain.OriginManual {
		t.Fatalf("expected manual open, got %+v", snap)
	}
	if !snap.WaitingForEmail {
		t.Error("/register should jump straight to email capture")
	}
}

func TestClearCommandResetsHistory(t *testing.T) {
	f := newModelFixture(t)

	f.update(components.InputSubmitMsg{Value: "hello"})
	f.update(OutboundMsg{
		Message: domain.OutboundMessage{SessionID: DefaultSessionID, Content: "hi"},
		Gen:     1,
	})
	f.update(components.InputSubmitMsg{Value: "/clear"})

	if len(f.model.history) != 0 {
		t.Errorf("history should be empty after /clear, got %d entries", len(f.model.history))
	}
}

func TestHandlerErrorCompletesTurnWithErrorStatus(t *testing.T) {
	f := newModelFixture(t)

	f.update(components.InputSubmitMsg{Value: "please register me"})
	f.update(HandlerDoneMsg{Err: domain.ErrBackend, Gen: 1})

	if f.model.waiting {
		t.Error("error should complete the turn")
	}
	if f.statuses[len(f.statuses)-1] != domain.StatusError {
		t.Errorf("statuses = %v, want trailing error", f.statuses)
	}
	// Detection still runs after a failed turn.
	if !f.store.Snapshot().Open {
		t.Error("drawer should open on intent even when the turn failed")
	}
}
