// Package testutil holds test doubles shared across packages.
package testutil

import (
	"sync"

	"github.com/Veraticus/http-notify/pkg/notification"
)

// MockNotifier is a thread-safe mock implementation of notification.Notifier for testing
type MockNotifier struct {
	mu            sync.Mutex
	notifications []notification.Notification
	attempts      []notification.Notification // Track all send attempts
	sendErr       error
	panicValue    any
}

// NewMockNotifier creates a new mock notifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{
		notifications: []notification.Notification{},
		attempts:      []notification.Notification{},
	}
}

// Send implements the Notifier interface
func (m *MockNotifier) Send(n notification.Notification) error {
	m.mu.Lock()
	m.attempts = append(m.attempts, n)
	sendErr, panicValue := m.sendErr, m.panicValue
	if sendErr == nil && panicValue == nil {
		m.notifications = append(m.notifications, n)
	}
	m.mu.Unlock()

	if panicValue != nil {
		panic(panicValue)
	}
	return sendErr
}

// GetNotifications returns a copy of successfully sent notifications
func (m *MockNotifier) GetNotifications() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.notifications))
	copy(result, m.notifications)
	return result
}

// GetAttempts returns a copy of all attempted sends (including failures)
func (m *MockNotifier) GetAttempts() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]notification.Notification, len(m.attempts))
	copy(result, m.attempts)
	return result
}

// Messages returns the texts of the successfully sent notifications in order
func (m *MockNotifier) Messages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]string, 0, len(m.notifications))
	for _, n := range m.notifications {
		result = append(result, n.Message)
	}
	return result
}

// SetError sets the error to return on Send calls
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// SetPanic makes Send panic with v; nil turns it off
func (m *MockNotifier) SetPanic(v any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicValue = v
}

// Clear resets the mock state
func (m *MockNotifier) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = []notification.Notification{}
	m.attempts = []notification.Notification{}
	m.sendErr = nil
	m.panicValue = nil
}

// MockRateLimiter is a mock implementation of interfaces.RateLimiter for testing
type MockRateLimiter struct {
	mu          sync.Mutex
	allowResult bool
	allowCount  int
}

// NewMockRateLimiter creates a new mock rate limiter
func NewMockRateLimiter(allowResult bool) *MockRateLimiter {
	return &MockRateLimiter{
		allowResult: allowResult,
	}
}

// Allow implements the RateLimiter interface
func (m *MockRateLimiter) Allow() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowCount++
	return m.allowResult
}

// SetAllowResult sets the result that Allow() will return
func (m *MockRateLimiter) SetAllowResult(allow bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.allowResult = allow
}

// GetAllowCount returns how many times Allow was called
func (m *MockRateLimiter) GetAllowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.allowCount
}
