// Package display renders notifications as short-lived toasts.
//
// A Container holds the toasts that are currently on screen and redraws its
// Renderer on every change. A Notifier drives each toast through its
// lifecycle: fade in, stay visible for the notification's duration, fade
// out, and leave the container.
package display

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/Veraticus/http-notify/pkg/notification"
)

// Phase is the lifecycle stage of a toast.
type Phase int

const (
	PhaseFadingIn Phase = iota
	PhaseVisible
	PhaseFadingOut
)

func (p Phase) String() string {
	switch p {
	case PhaseFadingIn:
		return "fading-in"
	case PhaseVisible:
		return "visible"
	case PhaseFadingOut:
		return "fading-out"
	default:
		return "unknown"
	}
}

// Toast is a notification while it is attached to a container.
type Toast struct {
	ID           uint64
	Notification notification.Notification
	Phase        Phase
}

// Renderer draws the current toast stack, oldest first.
type Renderer interface {
	Render(toasts []Toast) error
}

// Container is the shared list of live toasts. Toasts are only ever
// appended or removed; each removal happens at most once.
type Container struct {
	mu       sync.Mutex
	toasts   []Toast
	nextID   uint64
	renderer Renderer
	log      zerolog.Logger
}

// NewContainer creates a container drawing to renderer. A nil renderer
// keeps the container headless.
func NewContainer(renderer Renderer, log zerolog.Logger) *Container {
	return &Container{
		renderer: renderer,
		log:      log,
	}
}

func (c *Container) add(n notification.Notification) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextID++
	c.toasts = append(c.toasts, Toast{ID: c.nextID, Notification: n, Phase: PhaseFadingIn})
	c.render()
	return c.nextID
}

func (c *Container) setPhase(id uint64, phase Phase) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.toasts {
		if c.toasts[i].ID == id {
			c.toasts[i].Phase = phase
			c.render()
			return true
		}
	}
	return false
}

func (c *Container) remove(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.toasts {
		if c.toasts[i].ID == id {
			c.toasts = append(c.toasts[:i], c.toasts[i+1:]...)
			c.render()
			return true
		}
	}
	return false
}

// Clear detaches every toast at once. Only used on shutdown; pending
// timers find their toast gone and do nothing.
func (c *Container) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.toasts = nil
	c.render()
}

// Snapshot returns a copy of the live toasts, oldest first.
func (c *Container) Snapshot() []Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Toast, len(c.toasts))
	copy(out, c.toasts)
	return out
}

// Len returns the number of live toasts.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.toasts)
}

// render must be called with c.mu held.
func (c *Container) render() {
	if c.renderer == nil {
		return
	}

	snapshot := make([]Toast, len(c.toasts))
	copy(snapshot, c.toasts)

	// Best effort - a failed draw never affects the toast lifecycle
	if err := c.renderer.Render(snapshot); err != nil {
		c.log.Debug().Err(err).Int("toasts", len(snapshot)).Msg("render failed")
	}
}
