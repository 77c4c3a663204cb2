// Package tray shows the live mudra session in the system tray.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/session"
)

// Tray represents the system tray application. It implements the
// pipeline's Presenter.
type Tray struct {
	onToggle    func(enabled bool)
	onDashboard func()
	onQuit      func()
	enabled     bool
	view        view
	mu          sync.RWMutex

	// Menu items stored for later updates
	menuToggle  *systray.MenuItem
	menuLabel   *systray.MenuItem
	menuFingers *systray.MenuItem
	menuCounts  *systray.MenuItem
	menuElapsed *systray.MenuItem
}

// view is the text the tray shows for one snapshot.
type view struct {
	Title   string
	Label   string
	Fingers string
	Counts  string
	Elapsed string
}

func render(snap session.Snapshot) view {
	label := snap.Label
	if label == "" {
		label = gesture.LabelNoHand
	}
	return view{
		Title:   fmt.Sprintf("Open %d | Closed %d", snap.OpenCount, snap.ClosedCount),
		Label:   "Gesture: " + string(label),
		Fingers: fmt.Sprintf("Fingers raised: %d", snap.FingersRaised),
		Counts:  fmt.Sprintf("Hand Open Count: %d  Hand Closed Count: %d", snap.OpenCount, snap.ClosedCount),
		Elapsed: "Time Elapsed: " + session.FormatElapsed(snap.Elapsed),
	}
}

// New creates a new Tray instance with enabled state set to true by default.
func New() *Tray {
	return &Tray{
		enabled: true,
		view:    render(session.Snapshot{}),
	}
}

// OnToggle sets the callback for the pause/resume menu item.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnDashboard sets the callback for the dashboard menu item.
func (t *Tray) OnDashboard(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDashboard = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application.
// This function blocks until systray.Quit() is called.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray from outside the menu, e.g. on a signal.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	t.mu.Lock()
	v := t.view
	systray.SetTitle(v.Title)
	systray.SetTooltip("mudra hand gesture counter")

	t.menuToggle = systray.AddMenuItem("● Running", "Pause or resume detection")
	systray.AddSeparator()

	t.menuLabel = systray.AddMenuItem(v.Label, "Current gesture")
	t.menuFingers = systray.AddMenuItem(v.Fingers, "Fingers raised")
	t.menuCounts = systray.AddMenuItem(v.Counts, "Transition counts")
	t.menuElapsed = systray.AddMenuItem(v.Elapsed, "Session time")
	for _, item := range []*systray.MenuItem{t.menuLabel, t.menuFingers, t.menuCounts, t.menuElapsed} {
		item.Disable()
	}
	systray.AddSeparator()

	menuDashboard := systray.AddMenuItem("Open Dashboard...", "Open the dashboard in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit mudra")
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-menuDashboard.ClickedCh:
				t.handleDashboard()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled

	if enabled {
		t.menuToggle.SetTitle("● Running")
	} else {
		t.menuToggle.SetTitle("○ Paused")
	}

	callback := t.onToggle
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleDashboard() {
	t.mu.RLock()
	callback := t.onDashboard
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// Present updates the menu from snap. Only lines whose text changed are
// pushed to the tray.
func (t *Tray) Present(snap session.Snapshot) {
	next := render(snap)

	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.view
	t.view = next

	if t.menuLabel == nil {
		return
	}
	if next.Title != prev.Title {
		systray.SetTitle(next.Title)
	}
	if next.Label != prev.Label {
		t.menuLabel.SetTitle(next.Label)
	}
	if next.Fingers != prev.Fingers {
		t.menuFingers.SetTitle(next.Fingers)
	}
	if next.Counts != prev.Counts {
		t.menuCounts.SetTitle(next.Counts)
	}
	if next.Elapsed != prev.Elapsed {
		t.menuElapsed.SetTitle(next.Elapsed)
	}
}

// IsEnabled returns the current enabled state.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}
