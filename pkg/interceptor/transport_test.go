package interceptor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/http-notify/pkg/notification"
	"github.com/Veraticus/http-notify/pkg/testutil"
)

func newClient(t *testing.T) (*http.Client, *testutil.MockNotifier) {
	t.Helper()
	mock := testutil.NewMockNotifier()
	client := &http.Client{}
	Register(client, New(mock))
	return client, mock
}

func TestTransport_EndToEnd(t *testing.T) {
	server := testutil.NewAPIServer(map[string]testutil.Reply{
		"/items":      {Status: http.StatusCreated, Body: `{"id":1}`},
		"/validate":   {Status: http.StatusBadRequest, Body: `{"message":"Bad input","errors":["name required","age invalid"]}`},
		"/private":    {Status: http.StatusUnauthorized, Body: `{"message":"ignored"}`},
		"/admin":      {Status: http.StatusForbidden},
		"/boom":       {Status: http.StatusInternalServerError, Body: `{"message":"db down"}`},
		"/no-content": {Status: http.StatusNoContent},
	})
	defer server.Close()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		want       []string
		wantStyles []notification.Style
	}{
		{
			name:       "post succeeds",
			method:     http.MethodPost,
			path:       "/items",
			wantStatus: http.StatusCreated,
			want:       []string{"Success"},
			wantStyles: []notification.Style{notification.StyleSuccess},
		},
		{
			name:       "get succeeds quietly",
			method:     http.MethodGet,
			path:       "/items",
			wantStatus: http.StatusCreated,
		},
		{
			name:       "delete with no content",
			method:     http.MethodDelete,
			path:       "/no-content",
			wantStatus: http.StatusNoContent,
			want:       []string{"Success"},
			wantStyles: []notification.Style{notification.StyleSuccess},
		},
		{
			name:       "get fails validation",
			method:     http.MethodGet,
			path:       "/validate",
			wantStatus: http.StatusBadRequest,
			want:       []string{"Bad input", "name required", "age invalid"},
			wantStyles: []notification.Style{
				notification.StyleError,
				notification.StyleValidationError,
				notification.StyleValidationError,
			},
		},
		{
			name:       "unauthorized",
			method:     http.MethodGet,
			path:       "/private",
			wantStatus: http.StatusUnauthorized,
			want:       []string{MessageUnauthorized},
			wantStyles: []notification.Style{notification.StyleError},
		},
		{
			name:       "forbidden",
			method:     http.MethodPut,
			path:       "/admin",
			wantStatus: http.StatusForbidden,
			want:       []string{MessageForbidden},
			wantStyles: []notification.Style{notification.StyleError},
		},
		{
			name:       "server error",
			method:     http.MethodGet,
			path:       "/boom",
			wantStatus: http.StatusInternalServerError,
			want:       []string{"Internal server error: db down"},
			wantStyles: []notification.Style{notification.StyleError},
		},
		{
			name:       "not found",
			method:     http.MethodGet,
			path:       "/missing",
			wantStatus: http.StatusNotFound,
			want:       []string{"Error 404: Not Found"},
			wantStyles: []notification.Style{notification.StyleError},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, mock := newClient(t)

			req, err := http.NewRequest(tt.method, server.URL+tt.path, nil)
			require.NoError(t, err)

			resp, err := client.Do(req)
			require.NoError(t, err, "HTTP failures reach the caller as responses")
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			var styles []notification.Style
			for _, n := range mock.GetNotifications() {
				styles = append(styles, n.Style)
			}
			if tt.want == nil {
				assert.Empty(t, mock.Messages())
			} else {
				assert.Equal(t, tt.want, mock.Messages())
				assert.Equal(t, tt.wantStyles, styles)
			}
		})
	}
}

func TestTransport_CallerStillReadsFailureBody(t *testing.T) {
	body := `{"message":"Bad input","errors":["name required"]}`
	server := testutil.NewAPIServer(map[string]testutil.Reply{
		"/validate": {Status: http.StatusBadRequest, Body: body},
	})
	defer server.Close()

	client, mock := newClient(t)

	resp, err := client.Get(server.URL + "/validate")
	require.NoError(t, err)
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, body, string(got))
	assert.Len(t, mock.Messages(), 2)
}

func TestTransport_BodyBeyondCaptureLimit(t *testing.T) {
	long := `{"message":"` + strings.Repeat("x", 64) + `"}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, long)
	}))
	defer server.Close()

	mock := testutil.NewMockNotifier()
	client := &http.Client{}
	transport := Register(client, New(mock))
	transport.MaxErrorBody = 16

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, long, string(got), "caller sees the whole body")

	// Only a truncated prefix was parsed, so the message is unreadable
	assert.Equal(t, []string{"Error 418: "}, mock.Messages())
}

func TestTransport_CaptureDisabled(t *testing.T) {
	server := testutil.NewAPIServer(nil)
	defer server.Close()

	mock := testutil.NewMockNotifier()
	client := &http.Client{}
	Register(client, New(mock)).MaxErrorBody = 0

	resp, err := client.Get(server.URL + "/gone")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []string{"Error 404: "}, mock.Messages())
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestTransport_TransportError(t *testing.T) {
	dialErr := errors.New("connection refused")
	mock := testutil.NewMockNotifier()
	transport := NewTransport(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, dialErr
	}), New(mock))

	req, err := http.NewRequest(http.MethodPost, "http://example.invalid/items", nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, dialErr, "transport errors reach the caller unchanged")
	assert.Equal(t, []string{"Error 0: connection refused"}, mock.Messages())
}

func TestTransport_CanceledRequestIsSilent(t *testing.T) {
	mock := testutil.NewMockNotifier()
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		<-r.Context().Done()
		return nil, r.Context().Err()
	}), New(mock))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.GetAttempts())
}

func TestTransport_DeadlineIsReported(t *testing.T) {
	mock := testutil.NewMockNotifier()
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return nil, context.DeadlineExceeded
	}), New(mock))

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []string{"Error 0: " + context.DeadlineExceeded.Error()}, mock.Messages())
}

func TestTransport_ChainOrder(t *testing.T) {
	var mu sync.Mutex
	var order []string
	record := func(name string) ResponseInterceptor {
		return ResponseInterceptorFunc(func(o Outcome) Outcome {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return o
		})
	}

	server := testutil.NewAPIServer(map[string]testutil.Reply{"/": {Status: http.StatusOK}})
	defer server.Close()

	client := &http.Client{}
	first := Register(client, record("first"))
	second := Register(client, record("second"), record("third"))
	assert.Same(t, first, second, "registering twice joins the existing chain")

	resp, err := client.Get(server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestTransport_InterceptorCanReplaceOutcome(t *testing.T) {
	server := testutil.NewAPIServer(map[string]testutil.Reply{"/": {Status: http.StatusOK, Body: "ok"}})
	defer server.Close()

	replaced := errors.New("replaced")
	client := &http.Client{}
	Register(client, ResponseInterceptorFunc(func(o Outcome) Outcome {
		o.Response.Body.Close()
		o.Response = nil
		o.Err = replaced
		return o
	}))

	_, err := client.Get(server.URL + "/")
	assert.ErrorIs(t, err, replaced)
}

// streamBody is an upgraded connection: a few bytes, then it blocks until closed.
type streamBody struct {
	first  []byte
	closed chan struct{}
}

func newStreamBody(first string) *streamBody {
	return &streamBody{first: []byte(first), closed: make(chan struct{})}
}

func (s *streamBody) Read(p []byte) (int, error) {
	if len(s.first) > 0 {
		n := copy(p, s.first)
		s.first = s.first[n:]
		return n, nil
	}
	<-s.closed
	return 0, io.EOF
}

func (s *streamBody) Write(p []byte) (int, error) { return len(p), nil }

func (s *streamBody) Close() error {
	close(s.closed)
	return nil
}

func TestTransport_SwitchingProtocolsPassesThrough(t *testing.T) {
	body := newStreamBody("hello")
	defer body.Close()

	mock := testutil.NewMockNotifier()
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusSwitchingProtocols, Body: body, Request: r}, nil
	}), New(mock))

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid/ws", nil)
	require.NoError(t, err)

	done := make(chan *http.Response, 1)
	go func() {
		resp, _ := transport.RoundTrip(req)
		done <- resp
	}()

	select {
	case resp := <-done:
		require.NotNil(t, resp)
		_, ok := resp.Body.(io.ReadWriteCloser)
		assert.True(t, ok, "upgraded body must stay writable")
		assert.Same(t, body, resp.Body)
	case <-time.After(2 * time.Second):
		t.Fatal("RoundTrip blocked on an upgraded connection")
	}
	assert.Empty(t, mock.GetAttempts())
}

func TestTransport_WritableFailureBodyIsNotCaptured(t *testing.T) {
	body := newStreamBody(`{"message":"never read"}`)
	defer body.Close()

	mock := testutil.NewMockNotifier()
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusBadGateway, Body: body, Request: r}, nil
	}), New(mock))

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)

	resp, err := transport.RoundTrip(req)
	require.NoError(t, err)
	assert.Same(t, body, resp.Body)
	assert.Equal(t, []string{"Error 502: "}, mock.Messages())
}

// brokenBody yields a prefix and then fails.
type brokenBody struct {
	r io.Reader
}

func (b *brokenBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	if err == io.EOF {
		return n, errors.New("connection reset")
	}
	return n, err
}

func (b *brokenBody) Close() error { return nil }

func TestTransport_LogsFailureBodyReadErrors(t *testing.T) {
	var logs bytes.Buffer
	mock := testutil.NewMockNotifier()
	transport := NewTransport(roundTripFunc(func(r *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       &brokenBody{r: strings.NewReader(`{"message":"db`)},
			Request:    r,
		}, nil
	}), New(mock))
	transport.Log = zerolog.New(&logs).Level(zerolog.DebugLevel)

	req, err := http.NewRequest(http.MethodGet, "http://example.invalid/boom", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "failed to read error body")
	assert.Contains(t, logs.String(), "connection reset")
	assert.Equal(t, []string{"Internal server error: "}, mock.Messages())
}

func TestRegister_WrapsExistingTransport(t *testing.T) {
	var called bool
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusOK, Body: http.NoBody, Request: r}, nil
	})

	client := &http.Client{Transport: base}
	transport := Register(client)

	require.IsType(t, &Transport{}, client.Transport)
	req, err := http.NewRequest(http.MethodGet, "http://example.invalid", nil)
	require.NoError(t, err)

	_, err = transport.RoundTrip(req)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestTransport_ConcurrentRequests(t *testing.T) {
	server := testutil.NewAPIServer(map[string]testutil.Reply{
		"/ok":  {Status: http.StatusOK},
		"/bad": {Status: http.StatusBadRequest, Body: `{"message":"bad","errors":["e"]}`},
	})
	defer server.Close()

	client, mock := newClient(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			resp, err := client.Post(server.URL+"/ok", "application/json", nil)
			if err == nil {
				resp.Body.Close()
			}
		}()
		go func() {
			defer wg.Done()
			resp, err := client.Get(server.URL + "/bad")
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, mock.GetNotifications(), 10+10*2)
}
