package domain

import "time"

// DrawerOrigin records how the registration drawer was last opened.
// It governs auto-close eligibility: only automatic opens auto-close.
type DrawerOrigin int

const (
	OriginNone      DrawerOrigin = iota // drawer closed
	OriginManual                        // opened by user action
	OriginAutomatic                     // opened by intent detection
)

// String returns a human-readable label for the origin.
func (o DrawerOrigin) String() string {
	switch o {
	case OriginManual:
		return "manual"
	case OriginAutomatic:
		return "automatic"
	default:
		return "none"
	}
}

// DrawerSnapshot is a consistent read view of the drawer state, handed to
// the presentation layer. Mutations go through the store's operations only.
type DrawerSnapshot struct {
	Open            bool
	Origin          DrawerOrigin
	WaitingForEmail bool
	Success         bool
	LastClose       time.Time
}
