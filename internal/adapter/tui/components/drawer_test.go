package components

import (
	"strings"
	"testing"

	"maitred/internal/domain"
)

func TestDrawerClosedRendersNothing(t *testing.T) {
	d := NewDrawer()
	d.SetWidth(80)

	if got := d.View(domain.DrawerSnapshot{}); got != "" {
		t.Errorf("closed drawer should render empty, got %q", got)
	}
	if got := d.Height(domain.DrawerSnapshot{}); got != 0 {
		t.Errorf("closed drawer height = %d, want 0", got)
	}
}

func TestDrawerPromptState(t *testing.T) {
	d := NewDrawer()
	d.SetWidth(80)

	view := d.View(domain.DrawerSnapshot{Open: true, Origin: domain.OriginAutomatic})
	if !strings.Contains(view, "Stay in the loop?") {
		t.Errorf("prompt state missing headline:\n%s", view)
	}
	if !strings.Contains(view, "no thanks") {
		t.Errorf("prompt state missing decline hint:\n%s", view)
	}
}

func TestDrawerCaptureState(t *testing.T) {
	d := NewDrawer()
	d.SetWidth(80)

	view := d.View(domain.DrawerSnapshot{Open: true, WaitingForEmail: true})
	if !strings.Contains(view, "Almost there") {
		t.Errorf("capture state missing headline:\n%s", view)
	}
}

func TestDrawerSuccessState(t *testing.T) {
	d := NewDrawer()
	d.SetWidth(80)

	view := d.View(domain.DrawerSnapshot{Open: true, Success: true})
	if !strings.Contains(view, "You're in!") {
		t.Errorf("success state missing headline:\n%s", view)
	}
	// Success wins over a stale capture flag in rendering.
	view = d.View(domain.DrawerSnapshot{Open: true, Success: true, WaitingForEmail: true})
	if !strings.Contains(view, "You're in!") {
		t.Errorf("success should take precedence:\n%s", view)
	}
}

func TestDrawerHeightReservesRows(t *testing.T) {
	d := NewDrawer()
	d.SetWidth(80)

	h := d.Height(domain.DrawerSnapshot{Open: true})
	if h < 3 {
		t.Errorf("open drawer height = %d, want bordered box of at least 3 rows", h)
	}
}
