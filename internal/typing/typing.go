// Package typing debounces local composition activity into typing start and
// stop signals, and tracks the remote contact's typing indicator.
//
// The local side is a two-state machine. The first keystroke emits a start
// signal immediately; each keystroke re-arms a trailing timer and the stop
// signal fires only after a full quiet interval. A contact switch cancels
// any pending timer and closes out the old contact's signal so the previous
// conversation never shows a dangling indicator.
package typing

import (
	"sync"
	"time"
)

// DebounceInterval is the quiet period after the last keystroke before a
// stop signal is emitted.
const DebounceInterval = 1000 * time.Millisecond

// Coordinator turns raw keystrokes into at most one start and one stop
// signal per burst of typing. All methods are goroutine-safe.
type Coordinator struct {
	emit     func(receiver string, isTyping bool)
	interval time.Duration

	mu        sync.Mutex
	active    string
	signaling bool
	timer     *time.Timer
}

// NewCoordinator creates a Coordinator that reports typing transitions for
// the active contact through emit. The interval controls how long after the
// last keystroke the stop signal fires; production callers pass
// DebounceInterval, tests may shorten it.
func NewCoordinator(emit func(receiver string, isTyping bool), interval time.Duration) *Coordinator {
	return &Coordinator{emit: emit, interval: interval}
}

// Keystroke records one unit of composition activity. Without an active
// contact it is a no-op. The first keystroke of a burst emits a start
// signal; every keystroke pushes the trailing stop timer out by the full
// interval.
func (c *Coordinator) Keystroke() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == "" {
		return
	}

	if !c.signaling {
		c.signaling = true
		c.emit(c.active, true)
	}

	if c.timer != nil {
		c.timer.Stop()
	}
	receiver := c.active
	c.timer = time.AfterFunc(c.interval, func() { c.expire(receiver) })
}

// expire fires when a burst has been quiet for the full interval. The
// receiver check guards against a timer that raced with a contact switch.
func (c *Coordinator) expire(receiver string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.signaling || c.active != receiver {
		return
	}
	c.signaling = false
	c.timer = nil
	c.emit(receiver, false)
}

// SetActiveContact switches the coordinator to a new contact. Any pending
// stop timer is cancelled, and if a start signal is outstanding for the
// previous contact a stop is emitted for it immediately.
func (c *Coordinator) SetActiveContact(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.signaling && c.active != "" {
		c.emit(c.active, false)
	}
	c.signaling = false
	c.active = code
}

// Flush closes out the current burst immediately. Sending a message ends
// composition, so the stop signal should not wait for the timer.
func (c *Coordinator) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.signaling && c.active != "" {
		c.emit(c.active, false)
	}
	c.signaling = false
}

// ---------------------------------------------------------------------------
// Remote indicator
// ---------------------------------------------------------------------------

// Indicator tracks whether the remote contact's typing notice is currently
// shown. Show and hide callbacks fire only on transitions, so repeated
// signals from the server never stack.
type Indicator struct {
	mu      sync.Mutex
	visible bool
	show    func()
	hide    func()
}

// NewIndicator creates an Indicator driving the given show and hide
// callbacks.
func NewIndicator(show, hide func()) *Indicator {
	return &Indicator{show: show, hide: hide}
}

// Set applies a remote typing signal. Redundant signals are absorbed.
func (i *Indicator) Set(isTyping bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if isTyping == i.visible {
		return
	}
	i.visible = isTyping
	if isTyping {
		i.show()
	} else {
		i.hide()
	}
}

// Clear hides the indicator regardless of its current state, emitting hide
// only if it was visible. Used on contact switches.
func (i *Indicator) Clear() {
	i.Set(false)
}

// Visible reports whether the indicator is currently shown.
func (i *Indicator) Visible() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.visible
}
