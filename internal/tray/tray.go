// Package tray provides the system tray menu for handcursor.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/handcursor/internal/gesture"
	"github.com/ayusman/handcursor/internal/logger"
)

// Tray is the system tray menu: detection and control toggles, the live
// hand states, settings and quit.
type Tray struct {
	onToggle   func(enabled bool)
	onControl  func(enabled bool)
	onSettings func()
	onQuit     func()
	enabled    bool
	control    bool
	hands      string
	mu         sync.RWMutex

	menuToggle  *systray.MenuItem
	menuControl *systray.MenuItem
	menuHands   *systray.MenuItem
}

// New creates a Tray showing the given initial states.
func New(enabled, control bool) *Tray {
	return &Tray{
		enabled: enabled,
		control: control,
		hands:   HandLine(gesture.Snapshot{}),
	}
}

// OnToggle sets the callback for the detection toggle.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnControl sets the callback for the "enable control" toggle.
func (t *Tray) OnControl(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onControl = fn
}

// OnSettings sets the callback for the settings item.
func (t *Tray) OnSettings(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSettings = fn
}

// OnQuit sets the callback for the quit item.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray. It blocks until Quit is called and must run
// on the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit closes the tray, making Run return.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("handcursor")
	systray.SetTooltip("Hand-driven pointer control")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(enabledTitle(t.enabled), "Toggle hand detection")
	t.menuControl = systray.AddMenuItemCheckbox("Enable control", "Let gestures move the pointer", t.control)
	systray.AddSeparator()
	t.menuHands = systray.AddMenuItem(t.hands, "Current hand states")
	t.menuHands.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuSettings := systray.AddMenuItem("Open Settings...", "Open settings in browser")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit handcursor")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.handleToggle()
			case <-t.menuControl.ClickedCh:
				t.handleControl()
			case <-menuSettings.ClickedCh:
				t.handleSettings()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	logger.WithComponent("tray").Debug().Msg("tray closed")
}

func enabledTitle(enabled bool) string {
	if enabled {
		return "● Enabled"
	}
	return "○ Disabled"
}

func (t *Tray) handleToggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(enabledTitle(enabled))
	}
	callback := t.onToggle
	t.mu.Unlock()

	if callback != nil {
		callback(enabled)
	}
}

func (t *Tray) handleControl() {
	t.mu.Lock()
	t.control = !t.control
	control := t.control
	if t.menuControl != nil {
		if control {
			t.menuControl.Check()
		} else {
			t.menuControl.Uncheck()
		}
	}
	callback := t.onControl
	t.mu.Unlock()

	if callback != nil {
		callback(control)
	}
}

func (t *Tray) handleSettings() {
	t.mu.RLock()
	callback := t.onSettings
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

// SetControl updates the "enable control" checkbox without calling the
// callback, for changes made outside the tray.
func (t *Tray) SetControl(control bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.control == control {
		return
	}
	t.control = control
	if t.menuControl != nil {
		if control {
			t.menuControl.Check()
		} else {
			t.menuControl.Uncheck()
		}
	}
}

// ShowSnapshot updates the hand-state line. The menu is only touched when
// the text changes.
func (t *Tray) ShowSnapshot(s gesture.Snapshot) {
	line := HandLine(s)

	t.mu.Lock()
	defer t.mu.Unlock()
	if line == t.hands {
		return
	}
	t.hands = line
	if t.menuHands != nil {
		t.menuHands.SetTitle(line)
	}
}

// HandLine formats the hand states of a snapshot, e.g. "L: Open / R: Closed".
func HandLine(s gesture.Snapshot) string {
	if s.Bodies == 0 {
		return "No hands"
	}
	line := fmt.Sprintf("L: %s / R: %s", s.Left.State, s.Right.State)
	if s.Wheel {
		line += " (scroll)"
	}
	return line
}

// IsEnabled returns the detection state shown in the menu.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// ControlEnabled returns the control state shown in the menu.
func (t *Tray) ControlEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.control
}

// HandsText returns the current hand-state line.
func (t *Tray) HandsText() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.hands
}
