package display

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Veraticus/http-notify/pkg/notification"
)

var (
	// ErrNoContainer is returned by New when no container is attached.
	ErrNoContainer = errors.New("display: no notification container attached")
	// ErrNegativeDuration is returned by Send for a negative display duration.
	ErrNegativeDuration = errors.New("display: negative notification duration")
)

// DefaultFade is the length of the fade-in and fade-out transitions.
const DefaultFade = 200 * time.Millisecond

// Notifier shows each notification as a toast in a container for the
// notification's duration. Toasts run independently and cannot be
// dismissed early.
type Notifier struct {
	container *Container
	fade      time.Duration
	afterFunc func(time.Duration, func())
	now       func() time.Time

	active sync.WaitGroup
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithFade sets the fade transition length.
func WithFade(d time.Duration) Option {
	return func(n *Notifier) {
		if d >= 0 {
			n.fade = d
		}
	}
}

// WithAfterFunc replaces time.AfterFunc for scheduling lifecycle steps.
func WithAfterFunc(fn func(time.Duration, func())) Option {
	return func(n *Notifier) {
		n.afterFunc = fn
	}
}

// New creates a notifier bound to container.
func New(container *Container, opts ...Option) (*Notifier, error) {
	if container == nil {
		return nil, ErrNoContainer
	}

	n := &Notifier{
		container: container,
		fade:      DefaultFade,
		afterFunc: func(d time.Duration, f func()) { time.AfterFunc(d, f) },
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Send appends a toast for the notification and schedules its removal.
// It returns immediately.
func (n *Notifier) Send(note notification.Notification) error {
	if note.Duration < 0 {
		return fmt.Errorf("%w: %v", ErrNegativeDuration, note.Duration)
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = n.now()
	}

	n.active.Add(1)
	id := n.container.add(note)

	n.afterFunc(n.fade, func() {
		n.container.setPhase(id, PhaseVisible)
		n.afterFunc(note.Duration, func() {
			n.container.setPhase(id, PhaseFadingOut)
			n.afterFunc(n.fade, func() {
				n.container.remove(id)
				n.active.Done()
			})
		})
	})

	return nil
}

// Wait blocks until every toast sent so far has left the container or
// ctx is done.
func (n *Notifier) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		n.active.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ensure Notifier implements notification.Notifier
var _ notification.Notifier = (*Notifier)(nil)
