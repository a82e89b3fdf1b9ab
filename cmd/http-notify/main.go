package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/Veraticus/http-notify/pkg/config"
	"github.com/Veraticus/http-notify/pkg/logging"
)

const (
	exitOK          = 0
	exitFailure     = 1
	exitUsage       = 2
	exitInterrupted = 130
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	method     string
	data       string
	headers    []string
	configPath string
	quiet      bool
	logLevel   string
	help       bool
	urls       []string
}

func parseFlags(args []string, stderr io.Writer) (*options, *flag.FlagSet, error) {
	opts := &options{}

	fs := flag.NewFlagSet("http-notify", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&opts.method, "method", "X", "", "HTTP method (default GET, or POST with --data)")
	fs.StringVarP(&opts.data, "data", "d", "", "Request body")
	fs.StringArrayVarP(&opts.headers, "header", "H", nil, "Request header as 'Name: value' (repeatable)")
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.BoolVar(&opts.quiet, "quiet", false, "Disable all notifications")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level: trace, debug, info, warn, error, disabled")
	fs.BoolVar(&opts.help, "help", false, "Show help message")
	fs.Usage = func() { printUsage(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return nil, fs, err
	}
	opts.urls = fs.Args()
	return opts, fs, nil
}

// run is main without the process exit, so tests can drive it.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if opts.help {
		printUsage(stdout, fs)
		return exitOK
	}
	if len(opts.urls) == 0 {
		_, _ = fmt.Fprintln(stderr, "Error: at least one URL is required")
		printUsage(stderr, fs)
		return exitUsage
	}

	requests, err := buildRequests(opts)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitUsage
	}

	// The config path must be in place before loading
	if opts.configPath != "" {
		if err := os.Setenv("HTTP_NOTIFY_CONFIG", opts.configPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error setting config path: %v\n", err)
			return exitUsage
		}
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading config: %v\n", err)
		return exitUsage
	}
	if opts.quiet {
		cfg.Quiet = true
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	logger, closeLog, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error creating logger: %v\n", err)
		return exitUsage
	}
	defer closeLog()
	log.Logger = logger

	deps, err := NewDependencies(cfg, stderr, http.DefaultTransport)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error creating dependencies: %v\n", err)
		return exitUsage
	}

	app := NewApplication(deps, stdout)

	logger.Debug().
		Int("requests", len(requests)).
		Bool("quiet", cfg.Quiet).
		Str("topic", cfg.NtfyTopic).
		Msg("starting")

	runErr := app.Run(ctx, requests)

	// Toasts stay up until they expire or the user interrupts
	if err := deps.Close(ctx); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("shutdown incomplete")
	}

	if ctx.Err() != nil {
		return exitInterrupted
	}
	if runErr != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return exitFailure
	}
	return app.ExitCode()
}

func buildRequests(opts *options) ([]Request, error) {
	header := http.Header{}
	for _, h := range opts.headers {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		header.Add(name, strings.TrimSpace(value))
	}

	method := strings.ToUpper(opts.method)
	if method == "" {
		method = http.MethodGet
		if opts.data != "" {
			method = http.MethodPost
		}
	}

	requests := make([]Request, 0, len(opts.urls))
	for _, u := range opts.urls {
		requests = append(requests, Request{
			Method: method,
			URL:    u,
			Body:   opts.data,
			Header: header,
		})
	}
	return requests, nil
}

func printUsage(w io.Writer, fs *flag.FlagSet) {
	_, _ = fmt.Fprintln(w, "http-notify - HTTP client that shows request outcomes as notifications")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage: http-notify [OPTIONS] URL...")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Options:")
	_, _ = fmt.Fprint(w, fs.FlagUsages())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Environment Variables:")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_TOPIC             Ntfy topic to forward notifications to")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_SERVER            Ntfy server URL (default: https://ntfy.sh)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_QUIET             Disable notifications (true/false)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_SUCCESS_DURATION  How long success notifications stay (default: 5s)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_ERROR_DURATION    How long error notifications stay (default: 6s)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_FADE_DURATION     Fade in/out length (default: 200ms)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_TIMEOUT           Request timeout (default: 30s)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_LOG_LEVEL         Log level (default: warn)")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_LOG_FILE          Write JSON logs to this file")
	_, _ = fmt.Fprintln(w, "  HTTP_NOTIFY_CONFIG            Path to config file")
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Configuration file: ~/.config/http-notify/config.yaml")
}
