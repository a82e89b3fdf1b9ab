// Package interceptor turns settled HTTP round trips into user notifications.
//
// The Interceptor holds the policy: which outcome produces which messages.
// The Transport wires any number of interceptors into an http.Client. Both
// observe outcomes only; callers always receive the original response or
// error.
package interceptor

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Veraticus/http-notify/pkg/notification"
)

// Fixed notification texts.
const (
	MessageSuccess      = "Success"
	MessageUnauthorized = "Authentication Required"
	MessageForbidden    = "You have insufficient privileges to do what you want to do!"
)

const (
	DefaultSuccessDuration = 5 * time.Second
	DefaultErrorDuration   = 6 * time.Second
)

// Interceptor notifies about non-GET successes and about every failure.
type Interceptor struct {
	notifier        notification.Notifier
	successDuration time.Duration
	errorDuration   time.Duration
	log             zerolog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithDurations sets how long success and error notifications stay visible.
func WithDurations(success, failure time.Duration) Option {
	return func(i *Interceptor) {
		i.successDuration = success
		i.errorDuration = failure
	}
}

// WithLogger sets the logger used for notifier failures.
func WithLogger(log zerolog.Logger) Option {
	return func(i *Interceptor) {
		i.log = log
	}
}

// New creates an interceptor that reports to notifier.
func New(notifier notification.Notifier, opts ...Option) *Interceptor {
	i := &Interceptor{
		notifier:        notifier,
		successDuration: DefaultSuccessDuration,
		errorDuration:   DefaultErrorDuration,
		log:             zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// OnSettled notifies about o and returns it unchanged.
func (i *Interceptor) OnSettled(o Outcome) Outcome {
	switch o.Kind {
	case KindSuccess:
		if !isGet(o.Method) {
			i.notify(MessageSuccess, notification.StyleSuccess, i.successDuration)
		}
	case KindFailure:
		i.onFailure(o)
	}
	return o
}

func (i *Interceptor) onFailure(o Outcome) {
	body := o.ErrorBody()

	switch o.StatusCode {
	case http.StatusBadRequest:
		i.notify(body.Message, notification.StyleError, i.errorDuration)
		for _, entry := range body.Errors {
			i.notify(entry, notification.StyleValidationError, i.errorDuration)
		}
	case http.StatusUnauthorized:
		i.notify(MessageUnauthorized, notification.StyleError, i.errorDuration)
	case http.StatusForbidden:
		i.notify(MessageForbidden, notification.StyleError, i.errorDuration)
	case http.StatusInternalServerError:
		i.notify("Internal server error: "+body.Message, notification.StyleError, i.errorDuration)
	default:
		i.notify("Error "+strconv.Itoa(o.StatusCode)+": "+body.Message, notification.StyleError, i.errorDuration)
	}
}

// notify is best effort: a failing or panicking notifier is logged and skipped.
func (i *Interceptor) notify(text string, style notification.Style, d time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			i.log.Error().Interface("panic", r).Str("text", text).Msg("notifier panicked")
		}
	}()

	err := i.notifier.Send(notification.Notification{
		Message:   text,
		Style:     style,
		Duration:  d,
		CreatedAt: time.Now(),
	})
	if err != nil {
		i.log.Warn().Err(err).Str("text", text).Str("style", style.String()).Msg("notification failed")
	}
}

// isGet treats the empty method as GET, like net/http does.
func isGet(method string) bool {
	return method == "" || strings.EqualFold(method, http.MethodGet)
}

// Ensure Interceptor implements ResponseInterceptor
var _ ResponseInterceptor = (*Interceptor)(nil)
