package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/http-notify/pkg/config"
	"github.com/Veraticus/http-notify/pkg/display"
	"github.com/Veraticus/http-notify/pkg/interceptor"
	"github.com/Veraticus/http-notify/pkg/interfaces"
	"github.com/Veraticus/http-notify/pkg/logging"
	"github.com/Veraticus/http-notify/pkg/notification"
)

// maxParallel bounds how many requests are in flight at once.
const maxParallel = 8

// Dependencies holds all the dependencies for the application
type Dependencies struct {
	Config              *config.Config
	Container           *display.Container
	Display             *display.Notifier
	Remote              notification.Notifier
	RateLimiter         interfaces.RateLimiter
	NotificationManager *notification.Manager
	Interceptor         *interceptor.Interceptor
	Transport           *interceptor.Transport
	Client              *http.Client
}

// NewDependencies creates all dependencies with the given configuration.
// Toasts are drawn on out: as a live stack when it is a terminal, as plain
// lines otherwise.
func NewDependencies(cfg *config.Config, out io.Writer, base http.RoundTripper) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg}

	var renderer display.Renderer
	if tty, width := terminalWidth(out); tty {
		renderer = display.NewTerminalRenderer(out, width)
	} else {
		renderer = display.NewLineRenderer(out)
	}

	deps.Container = display.NewContainer(renderer, logging.Component("display"))

	var err error
	deps.Display, err = display.New(deps.Container, display.WithFade(cfg.Durations.Fade))
	if err != nil {
		return nil, fmt.Errorf("failed to create display: %w", err)
	}

	// Remote forwarding is only wired when a topic is configured
	if cfg.NtfyTopic != "" {
		deps.Remote = notification.NewNtfyClient(cfg.NtfyServer, cfg.NtfyTopic)
		if cfg.RateLimit.MaxMessages > 0 {
			deps.RateLimiter = notification.NewTokenBucketRateLimiter(cfg.RateLimit.MaxMessages, cfg.RateLimit.Window)
		}
	}
	deps.NotificationManager = notification.NewManager(cfg, deps.Display, deps.Remote, deps.RateLimiter, logging.Component("notify"))

	deps.Interceptor = interceptor.New(deps.NotificationManager,
		interceptor.WithDurations(cfg.Durations.Success, cfg.Durations.Error),
		interceptor.WithLogger(logging.Component("interceptor")),
	)

	deps.Client = &http.Client{Transport: base, Timeout: cfg.RequestTimeout}
	deps.Transport = interceptor.Register(deps.Client, deps.Interceptor)
	deps.Transport.MaxErrorBody = cfg.MaxErrorBody
	deps.Transport.Log = logging.Component("transport")

	return deps, nil
}

// Close waits for visible toasts to expire, then flushes remote delivery.
// A done ctx drops whatever is still on screen.
func (d *Dependencies) Close(ctx context.Context) error {
	var err error
	if d.Display != nil {
		if err = d.Display.Wait(ctx); err != nil {
			d.Container.Clear()
		}
	}
	if d.NotificationManager != nil {
		err = errors.Join(err, d.NotificationManager.Close())
	}
	return err
}

// Request is one HTTP call issued by the application.
type Request struct {
	Method string
	URL    string
	Body   string
	Header http.Header
}

// Application represents the main application
type Application struct {
	deps   *Dependencies
	stdout io.Writer
	log    zerolog.Logger

	failed atomic.Int32
}

// NewApplication creates a new application with the given dependencies
func NewApplication(deps *Dependencies, stdout io.Writer) *Application {
	return &Application{
		deps:   deps,
		stdout: stdout,
		log:    logging.Component("app"),
	}
}

// Run issues every request concurrently and copies each response body to
// stdout in request order. Failed requests are counted, not returned.
func (a *Application) Run(ctx context.Context, requests []Request) error {
	bodies := make([][]byte, len(requests))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for i, r := range requests {
		g.Go(func() error {
			body, err := a.do(ctx, r)
			if err != nil {
				a.failed.Add(1)
				a.log.Info().Err(err).Str("method", r.Method).Str("url", r.URL).Msg("request failed")
			}
			bodies[i] = body
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for _, body := range bodies {
		if len(body) == 0 {
			continue
		}
		if _, err := a.stdout.Write(body); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if body[len(body)-1] != '\n' {
			_, _ = io.WriteString(a.stdout, "\n")
		}
	}
	return nil
}

func (a *Application) do(ctx context.Context, r Request) ([]byte, error) {
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for key, values := range r.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if r.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.deps.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return data, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return data, fmt.Errorf("unexpected status %s", resp.Status)
	}
	return data, nil
}

// ExitCode is 0 when every request succeeded and 1 otherwise.
func (a *Application) ExitCode() int {
	if a.failed.Load() > 0 {
		return exitFailure
	}
	return exitOK
}
