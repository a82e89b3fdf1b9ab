package notification

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Veraticus/http-notify/pkg/config"
	"github.com/Veraticus/http-notify/pkg/interfaces"
)

// Manager delivers every notification to the display and optionally forwards
// it to a remote notifier. Rate limiting and batching apply to the remote
// leg only; the display always sees every notification.
type Manager struct {
	quiet       bool
	display     Notifier
	remote      Notifier
	rateLimiter interfaces.RateLimiter
	batcher     *Batcher
	log         zerolog.Logger

	inflight sync.WaitGroup
	mu       sync.Mutex
	closed   bool
}

// NewManager creates a new notification manager. remote and rateLimiter may be nil.
func NewManager(cfg *config.Config, display, remote Notifier, rateLimiter interfaces.RateLimiter, log zerolog.Logger) *Manager {
	m := &Manager{
		quiet:       cfg.Quiet,
		display:     display,
		remote:      remote,
		rateLimiter: rateLimiter,
		log:         log,
	}

	// Create batcher if batch window is configured
	if remote != nil && cfg.BatchWindow > 0 {
		m.batcher = NewBatcher(cfg.BatchWindow, m.sendBatch)
	}

	return m
}

// Send shows the notification and forwards it to the remote notifier.
// Only display errors are returned; remote delivery is best effort.
func (m *Manager) Send(notification Notification) error {
	if m.quiet {
		return nil
	}

	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now()
	}

	var err error
	if m.display != nil {
		err = m.display.Send(notification)
	}

	m.forward(notification)
	return err
}

func (m *Manager) forward(notification Notification) {
	if m.remote == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	if m.rateLimiter != nil && !m.rateLimiter.Allow() {
		m.log.Debug().Str("message", notification.Message).Msg("remote notification dropped by rate limit")
		return
	}

	if m.batcher != nil {
		m.batcher.Add(notification)
		return
	}

	// Publishing must not hold up the response that triggered it
	m.inflight.Add(1)
	go func() {
		defer m.inflight.Done()
		m.sendRemote(notification)
	}()
}

func (m *Manager) sendRemote(notification Notification) {
	if err := m.remote.Send(notification); err != nil {
		m.log.Warn().Err(err).Str("style", notification.Style.String()).Msg("remote notification failed")
	}
}

// sendBatch sends a batch of notifications as a single notification
func (m *Manager) sendBatch(notifications []Notification) {
	if len(notifications) == 0 {
		return
	}

	if len(notifications) == 1 {
		m.sendRemote(notifications[0])
		return
	}

	m.sendRemote(Notification{
		Message:   formatBatchMessage(notifications),
		Style:     batchStyle(notifications),
		CreatedAt: time.Now(),
	})
}

// Close flushes pending batches and waits for in-flight remote sends.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	if m.batcher != nil {
		if n := m.batcher.Pending(); n > 0 {
			m.log.Debug().Int("pending", n).Msg("flushing remote batch")
		}
		m.batcher.Flush()
	}
	m.inflight.Wait()

	return nil
}

// formatBatchMessage formats multiple notifications into a single message
func formatBatchMessage(notifications []Notification) string {
	parts := make([]string, 0, len(notifications))
	for _, n := range notifications {
		parts = append(parts, n.Style.String()+": "+n.Message)
	}
	return strings.Join(parts, "\n---\n")
}

// batchStyle picks the most severe style in the batch.
func batchStyle(notifications []Notification) Style {
	style := StyleSuccess
	for _, n := range notifications {
		switch n.Style {
		case StyleError:
			return StyleError
		case StyleValidationError:
			style = StyleValidationError
		}
	}
	return style
}
