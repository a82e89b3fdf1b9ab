// Package notification provides notification functionality.
package notification

import "time"

// Style selects how a notification is presented.
type Style int

const (
	StyleSuccess Style = iota
	StyleError
	StyleValidationError
)

// Class returns the presentation class name of the style.
func (s Style) Class() string {
	switch s {
	case StyleSuccess:
		return "http-success-message"
	case StyleValidationError:
		return "http-error-validation-message"
	default:
		return "http-error-message"
	}
}

// String returns a short name for the style.
func (s Style) String() string {
	switch s {
	case StyleSuccess:
		return "success"
	case StyleValidationError:
		return "validation-error"
	default:
		return "error"
	}
}

// Notification represents a transient message shown to the user.
type Notification struct {
	Message   string
	Style     Style
	Duration  time.Duration
	CreatedAt time.Time
}

// Notifier sends notifications.
type Notifier interface {
	Send(notification Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(Notification) error

// Send calls f(n).
func (f NotifierFunc) Send(n Notification) error {
	return f(n)
}
