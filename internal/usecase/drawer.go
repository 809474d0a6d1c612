package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"maitred/internal/domain"
)

// Default drawer timings.
const (
	defaultAutoClose      = 8000 * time.Millisecond
	defaultReopenSuppress = 2000 * time.Millisecond
	defaultSuccessReset   = 500 * time.Millisecond
	defaultCloseReassert  = 50 * time.Millisecond
)

// DrawerTimings holds the timer windows of the drawer state machine.
type DrawerTimings struct {
	// AutoClose is how long an automatically opened drawer stays up
	// before closing itself.
	AutoClose time.Duration
	// ReopenSuppress is the window after any close during which open
	// requests are rejected. Expressed as a timestamp comparison, not an
	// active timer, so it survives view remounts.
	ReopenSuppress time.Duration
	// SuccessReset is how long after the drawer closes the success
	// sub-mode is cleared, letting a closing animation finish.
	SuccessReset time.Duration
	// CloseReassert is the delay before the closed state is re-asserted
	// once, guaranteeing the transition is observed under redundant
	// concurrent close requests.
	CloseReassert time.Duration
}

// DefaultDrawerTimings returns the production timer windows.
func DefaultDrawerTimings() DrawerTimings {
	return DrawerTimings{
		AutoClose:      defaultAutoClose,
		ReopenSuppress: defaultReopenSuppress,
		SuccessReset:   defaultSuccessReset,
		CloseReassert:  defaultCloseReassert,
	}
}

// DrawerStoreConfig configures a DrawerStore. Zero-valued fields get
// defaults; Busy defaults to "never busy".
type DrawerStoreConfig struct {
	Timings DrawerTimings
	// Busy reports whether the assistant is currently producing output.
	// Open requests are rejected while it returns true.
	Busy func() bool
	// OnChange is invoked (outside the store lock) after every state
	// transition, including timer-driven ones. The TUI uses it to push a
	// redraw into the update loop.
	OnChange func()
	Logger   *slog.Logger
	Bus      domain.EventBus
	now      func() time.Time // test hook
}

// DrawerStore holds the shared drawer state for one chat session view and
// owns every timer that mutates it. One instance per session view; create
// it on mount, Dispose it on unmount. Any operation after Dispose panics:
// that is a programming-contract violation, not a runtime condition.
type DrawerStore struct {
	mu      sync.Mutex
	timings DrawerTimings
	busy    func() bool
	now     func() time.Time
	logger  *slog.Logger
	bus     domain.EventBus
	onChange func()

	open         bool
	origin       domain.DrawerOrigin
	waitingEmail bool
	success      bool
	lastClose    time.Time

	// gen is bumped on every transition so a timer armed for a superseded
	// state discards itself when it fires.
	gen uint64

	autoCloseTimer *time.Timer
	reassertTimer  *time.Timer
	successTimer   *time.Timer

	disposed bool
}

// NewDrawerStore creates a drawer store with the given configuration.
func NewDrawerStore(cfg DrawerStoreConfig) *DrawerStore {
	t := cfg.Timings
	if t.AutoClose <= 0 {
		t.AutoClose = defaultAutoClose
	}
	if t.ReopenSuppress <= 0 {
		t.ReopenSuppress = defaultReopenSuppress
	}
	if t.SuccessReset <= 0 {
		t.SuccessReset = defaultSuccessReset
	}
	if t.CloseReassert <= 0 {
		t.CloseReassert = defaultCloseReassert
	}
	busy := cfg.Busy
	if busy == nil {
		busy = func() bool { return false }
	}
	now := cfg.now
	if now == nil {
		now = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &DrawerStore{
		timings:  t,
		busy:     busy,
		now:      now,
		logger:   logger,
		bus:      cfg.Bus,
		onChange: cfg.OnChange,
	}
}

// Open requests the drawer to open with the given origin. It reports
// whether the request was applied. The request is a no-op while the
// assistant is busy, while the reopen-suppression window after the last
// close is active, or when the drawer is already open (an automatic open
// superseded by a manual request only promotes the origin, which disarms
// the pending auto-close).
func (s *DrawerStore) Open(origin domain.DrawerOrigin) bool {
	if origin != domain.OriginManual && origin != domain.OriginAutomatic {
		return false
	}

	s.mu.Lock()
	s.ensureLive()

	if s.open {
		if origin == domain.OriginManual && s.origin == domain.OriginAutomatic {
			// Promote to manual: the user claimed the drawer, so the
			// automatic auto-close no longer applies.
			s.origin = domain.OriginManual
			s.gen++
			s.stopTimerLocked(&s.autoCloseTimer)
			s.mu.Unlock()
			s.notify()
			return true
		}
		s.mu.Unlock()
		return false
	}

	if s.busy() {
		s.mu.Unlock()
		return false
	}
	if !s.lastClose.IsZero() && s.now().Sub(s.lastClose) < s.timings.ReopenSuppress {
		s.mu.Unlock()
		return false
	}

	s.open = true
	s.origin = origin
	s.gen++
	s.stopTimerLocked(&s.reassertTimer)

	if origin == domain.OriginAutomatic {
		gen := s.gen
		s.autoCloseTimer = time.AfterFunc(s.timings.AutoClose, func() {
			s.autoClose(gen)
		})
	}
	s.mu.Unlock()

	s.logger.Debug("drawer opened", "origin", origin.String())
	s.publish(domain.EventDrawerOpened, map[string]string{"origin": origin.String()})
	s.notify()
	return true
}

// Close closes the drawer, clears the waiting-for-email sub-mode, records
// the close timestamp that drives reopen suppression, cancels any pending
// auto-close, and schedules a single idempotent re-assert of the closed
// state shortly after. Close is idempotent.
func (s *DrawerStore) Close() {
	s.mu.Lock()
	s.ensureLive()
	if !s.open {
		// Idempotent: a redundant close must not refresh lastClose and
		// stretch the suppression window.
		s.waitingEmail = false
		s.mu.Unlock()
		s.notify()
		return
	}
	s.closeLocked()
	s.mu.Unlock()

	s.logger.Debug("drawer closed")
	s.publish(domain.EventDrawerClosed, nil)
	s.notify()
}

// closeLocked applies the close transition. Caller holds s.mu.
func (s *DrawerStore) closeLocked() {
	s.open = false
	s.origin = domain.OriginNone
	s.waitingEmail = false
	s.lastClose = s.now()
	s.gen++
	s.stopTimerLocked(&s.autoCloseTimer)

	// Reopen suppression is enforced by the lastClose comparison in Open;
	// no timer is armed for it, so the window cannot double-apply.

	s.stopTimerLocked(&s.reassertTimer)
	s.reassertTimer = time.AfterFunc(s.timings.CloseReassert, s.reassertClosed)

	if s.success {
		s.armSuccessResetLocked()
	}
}

// Toggle flips the drawer. While the assistant is busy an open drawer may
// still be closed, but a closed drawer stays closed.
func (s *DrawerStore) Toggle() {
	s.mu.Lock()
	s.ensureLive()
	open := s.open
	s.mu.Unlock()

	if open {
		s.Close()
		return
	}
	if s.busy() {
		return
	}
	s.Open(domain.OriginManual)
}

// SetWaitingForEmail sets the email-capture sub-mode. Setting it true
// clears registration success: the two sub-modes are mutually exclusive.
func (s *DrawerStore) SetWaitingForEmail(v bool) {
	s.mu.Lock()
	s.ensureLive()
	s.waitingEmail = v
	if v {
		s.success = false
		s.stopTimerLocked(&s.successTimer)
	}
	s.gen++
	s.mu.Unlock()
	s.notify()
}

// SetRegistrationSuccess sets the success sub-mode. Setting it true clears
// waiting-for-email. If the drawer is already closed, the success reset
// timer is armed immediately; otherwise it is armed by the next Close.
func (s *DrawerStore) SetRegistrationSuccess(v bool) {
	s.mu.Lock()
	s.ensureLive()
	s.success = v
	if v {
		s.waitingEmail = false
		if !s.open {
			s.armSuccessResetLocked()
		}
	} else {
		s.stopTimerLocked(&s.successTimer)
	}
	s.gen++
	s.mu.Unlock()
	s.notify()
}

// Snapshot returns a consistent read view of the drawer state.
func (s *DrawerStore) Snapshot() domain.DrawerSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLive()
	return domain.DrawerSnapshot{
		Open:            s.open,
		Origin:          s.origin,
		WaitingForEmail: s.waitingEmail,
		Success:         s.success,
		LastClose:       s.lastClose,
	}
}

// Dispose cancels all timers and invalidates the store. Called when the
// session view unmounts. Any further operation panics.
func (s *DrawerStore) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return
	}
	s.disposed = true
	s.stopTimerLocked(&s.autoCloseTimer)
	s.stopTimerLocked(&s.reassertTimer)
	s.stopTimerLocked(&s.successTimer)
}

// autoClose fires for an automatic open left untouched. A bumped gen means
// the open was superseded (closed, or promoted to manual) and the timer
// discards itself.
func (s *DrawerStore) autoClose(gen uint64) {
	s.mu.Lock()
	if s.disposed || s.gen != gen || !s.open || s.origin != domain.OriginAutomatic {
		s.mu.Unlock()
		return
	}
	s.closeLocked()
	s.mu.Unlock()

	s.logger.Debug("drawer auto-closed")
	s.publish(domain.EventDrawerClosed, nil)
	s.notify()
}

// reassertClosed re-sets the closed state once. Idempotent: reopening is
// impossible inside the reassert delay because the reopen-suppression
// window is strictly longer.
func (s *DrawerStore) reassertClosed() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.open = false
	s.waitingEmail = false
	s.mu.Unlock()
	s.notify()
}

// armSuccessResetLocked schedules the success sub-mode to clear after the
// drawer has stayed closed for the reset delay. Caller holds s.mu.
func (s *DrawerStore) armSuccessResetLocked() {
	s.stopTimerLocked(&s.successTimer)
	s.successTimer = time.AfterFunc(s.timings.SuccessReset, func() {
		s.mu.Lock()
		if s.disposed || s.open || !s.success {
			s.mu.Unlock()
			return
		}
		s.success = false
		s.mu.Unlock()
		s.notify()
	})
}

func (s *DrawerStore) stopTimerLocked(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

// ensureLive panics when the store is used after Dispose. Caller holds s.mu.
func (s *DrawerStore) ensureLive() {
	if s.disposed {
		panic("usecase: DrawerStore used after Dispose")
	}
}

func (s *DrawerStore) notify() {
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *DrawerStore) publish(t domain.EventType, payload any) {
	if s.bus != nil {
		s.bus.Publish(context.Background(), domain.NewEvent(t, payload))
	}
}
