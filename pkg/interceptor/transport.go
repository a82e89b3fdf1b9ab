package interceptor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// DefaultMaxErrorBody caps how much of a failure body is buffered.
const DefaultMaxErrorBody int64 = 1 << 20

// ResponseInterceptor observes every settled round trip.
type ResponseInterceptor interface {
	OnSettled(o Outcome) Outcome
}

// ResponseInterceptorFunc adapts a function to ResponseInterceptor.
type ResponseInterceptorFunc func(Outcome) Outcome

// OnSettled calls f(o).
func (f ResponseInterceptorFunc) OnSettled(o Outcome) Outcome {
	return f(o)
}

// Transport is an http.RoundTripper that passes each settled round trip
// through its interceptors in registration order.
//
// Responses with a 2xx status are successes; every other final status, and
// every transport error except context.Canceled, is a failure. 1xx
// responses pass through untouched. Failure bodies are
// buffered up to MaxErrorBody bytes and put back so the caller still reads
// the whole body.
type Transport struct {
	Base         http.RoundTripper
	MaxErrorBody int64
	Log          zerolog.Logger

	mu           sync.RWMutex
	interceptors []ResponseInterceptor
}

// NewTransport wraps base; a nil base means http.DefaultTransport.
func NewTransport(base http.RoundTripper, interceptors ...ResponseInterceptor) *Transport {
	return &Transport{
		Base:         base,
		MaxErrorBody: DefaultMaxErrorBody,
		Log:          zerolog.Nop(),
		interceptors: interceptors,
	}
}

// Use appends an interceptor to the chain.
func (t *Transport) Use(ri ResponseInterceptor) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.interceptors = append(t.interceptors, ri)
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)

	outcome, ok := t.settle(req, resp, err)
	if !ok {
		return resp, err
	}

	t.Log.Debug().
		Str("method", outcome.Method).
		Str("url", req.URL.Redacted()).
		Int("status", outcome.StatusCode).
		Str("kind", outcome.Kind.String()).
		Msg("request settled")

	for _, ri := range t.chain() {
		outcome = ri.OnSettled(outcome)
	}

	return outcome.Response, outcome.Err
}

func (t *Transport) settle(req *http.Request, resp *http.Response, err error) (Outcome, bool) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if err != nil {
		// The caller gave up on purpose; there is nothing to tell them
		if errors.Is(err, context.Canceled) {
			return Outcome{}, false
		}
		return Outcome{Kind: KindFailure, Method: method, Response: resp, Err: err}, true
	}

	// Informational responses, 101 upgrades included, are not settled yet
	// from the caller's point of view; the body may be a live stream.
	if resp.StatusCode < 200 {
		return Outcome{}, false
	}

	outcome := Outcome{
		Method:     method,
		StatusCode: resp.StatusCode,
		Response:   resp,
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		outcome.Kind = KindSuccess
		return outcome, true
	}

	outcome.Kind = KindFailure
	outcome.Body = t.captureBody(req, resp)
	return outcome, true
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) chain() []ResponseInterceptor {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]ResponseInterceptor, len(t.interceptors))
	copy(out, t.interceptors)
	return out
}

// replayBody serves the buffered prefix, then the rest of the original body.
type replayBody struct {
	io.Reader
	io.Closer
}

// captureBody buffers up to MaxErrorBody bytes of a failure body. Streams
// the caller may write to are left alone.
func (t *Transport) captureBody(req *http.Request, resp *http.Response) []byte {
	limit := t.MaxErrorBody
	if resp.Body == nil || resp.Body == http.NoBody || limit <= 0 {
		return nil
	}
	if _, ok := resp.Body.(io.ReadWriteCloser); ok {
		return nil
	}

	orig := resp.Body
	buf, err := io.ReadAll(io.LimitReader(orig, limit))
	if err != nil {
		t.Log.Debug().Err(err).
			Str("url", req.URL.Redacted()).
			Int("captured", len(buf)).
			Msg("failed to read error body")
	}
	resp.Body = &replayBody{
		Reader: io.MultiReader(bytes.NewReader(buf), orig),
		Closer: orig,
	}
	return buf
}

// Register installs interceptors on client, wrapping its current transport.
// If the client already uses a Transport, the interceptors join its chain.
func Register(client *http.Client, interceptors ...ResponseInterceptor) *Transport {
	if t, ok := client.Transport.(*Transport); ok {
		for _, ri := range interceptors {
			t.Use(ri)
		}
		return t
	}

	t := NewTransport(client.Transport, interceptors...)
	client.Transport = t
	return t
}
