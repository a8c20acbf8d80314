// Command hublink-console is an interactive client for the hub's service
// endpoints.
//
// It connects with a service connection string, sends cloud-to-device
// messages and prints delivery feedback and file upload notifications.
//
// Usage:
//
//	hublink-console [flags]
//
// Flags:
//
//	-config string           YAML configuration file
//	-connection-string str   Connection string (overrides the config file)
//	-log-level string        Log level: debug, info, warn, error (default "info")
//	-protocol-log string     Write a CBOR protocol capture to this file
//	-metrics-addr string     Serve Prometheus metrics on this address
//	-auto-reconnect          Reconnect with backoff after a connection loss
//	-interactive             Run the command prompt (default true)
//
// Examples:
//
//	# Connect using a config file and expose metrics
//	hublink-console -config /etc/hublink/console.yaml -metrics-addr :9102
//
//	# Quick start with a connection string from the environment
//	hublink-console -connection-string "$HUB_CONNECTION_STRING" -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hublink/hublink-go/cmd/hublink-console/interactive"
	"github.com/hublink/hublink-go/pkg/config"
	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/metrics"
	"github.com/hublink/hublink-go/pkg/retry"
	"github.com/hublink/hublink-go/pkg/session"
	"github.com/hublink/hublink-go/pkg/transport/amqp"
)

// Flags holds the command-line settings.
type Flags struct {
	ConfigFile       string
	ConnectionString string
	LogLevel         string
	ProtocolLog      string
	MetricsAddr      string
	AutoReconnect    bool
	Interactive      bool
}

var flags Flags

func init() {
	flag.StringVar(&flags.ConfigFile, "config", "", "YAML configuration file")
	flag.StringVar(&flags.ConnectionString, "connection-string", "", "Connection string (overrides the config file)")
	flag.StringVar(&flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.StringVar(&flags.ProtocolLog, "protocol-log", "", "Write a CBOR protocol capture to this file")
	flag.StringVar(&flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.BoolVar(&flags.AutoReconnect, "auto-reconnect", false, "Reconnect with backoff after a connection loss")
	flag.BoolVar(&flags.Interactive, "interactive", true, "Run the command prompt")
}

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "hublink-console: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// Log output moves to the prompt-aware writer once the console runs.
	logOut := &switchWriter{w: os.Stderr}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: cfg.Level()}))

	host, cred, err := cfg.SessionCredential(time.Now())
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	plog, closeCapture, err := protocolLogger(cfg.ProtocolLog, logger)
	if err != nil {
		return err
	}
	defer closeCapture()

	tr := amqp.New(amqp.Config{Logger: logger})
	sessCfg := session.DefaultConfig()
	sessCfg.Host = host
	sessCfg.Credential = cred
	sessCfg.Transport = tr
	sessCfg.IdleTimeout = cfg.IdleTimeout
	sessCfg.RenewalMargin = cfg.RenewalMargin
	sessCfg.ProtocolLogger = plog
	sessCfg.Metrics = m

	sessCfg.Logger = logger

	s, err := session.New(sessCfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MetricsAddr != "" {
		go serveMetrics(ctx, cfg.MetricsAddr, reg, logger)
	}

	if flags.AutoReconnect {
		s.OnDisconnected(func(err error) {
			logger.Warn("connection lost, reconnecting", "error", err)
			go reconnect(ctx, s, logger)
		})
	}

	logger.Info("hub console started", "host", host, "session_id", s.ID())

	if flags.Interactive {
		console, err := interactive.New(s, newCredential(cfg.TokenTTL))
		if err != nil {
			return err
		}
		logOut.set(console.Stdout())
		go console.Run(ctx, cancel)
	} else {
		go reconnect(ctx, s, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("received signal", "signal", sig)
	case <-ctx.Done():
	}

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	if err := s.Close(closeCtx); err != nil {
		logger.Warn("close failed", "error", err)
	}
	return nil
}

// loadConfig reads the config file, or starts from defaults, and applies
// flag overrides.
func loadConfig(f Flags) (config.Config, error) {
	cfg := config.Defaults()
	if f.ConfigFile != "" {
		loaded, err := config.Load(f.ConfigFile)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	if f.ConnectionString != "" {
		cfg.ConnectionString = f.ConnectionString
	}
	if f.LogLevel != "" {
		cfg.LogLevel = f.LogLevel
	}
	if f.ProtocolLog != "" {
		cfg.ProtocolLog = f.ProtocolLog
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// switchWriter is an io.Writer whose target can be replaced.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *switchWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func (s *switchWriter) set(w io.Writer) {
	s.mu.Lock()
	s.w = w
	s.mu.Unlock()
}

// protocolLogger opens the capture file when path is set. At debug level
// protocol events are also written to the operational log.
func protocolLogger(path string, logger *slog.Logger) (log.Logger, func(), error) {
	var debug log.Logger
	if logger.Enabled(context.Background(), slog.LevelDebug) {
		debug = log.NewSlogAdapter(logger)
	}
	if path == "" {
		if debug == nil {
			return log.NoopLogger{}, func() {}, nil
		}
		return debug, func() {}, nil
	}

	fl, err := log.NewFileLogger(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open protocol log: %w", err)
	}
	closeFn := func() {
		if n := fl.Dropped(); n > 0 {
			logger.Warn("protocol events dropped", "count", n)
		}
		_ = fl.Close()
	}
	return log.NewMultiLogger(fl, debug), closeFn, nil
}

func newCredential(ttl time.Duration) interactive.CredentialFunc {
	return func(connectionString string) (credential.Credential, error) {
		cs, err := credential.ParseConnectionString(connectionString)
		if err != nil {
			return nil, err
		}
		return cs.Credential(ttl, time.Now())
	}
}

// reconnect connects with backoff until it succeeds, fails permanently,
// or ctx is done.
func reconnect(ctx context.Context, s *session.Session, logger *slog.Logger) {
	err := retry.Do(ctx, retry.Config{Logger: logger}, s.Connect)
	switch {
	case err == nil:
		logger.Info("connected", "state", s.State())
	case ctx.Err() != nil:
	default:
		logger.Error("connect failed", "error", err)
	}
}

func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
