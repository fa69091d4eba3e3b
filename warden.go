package warden

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warden-app/warden/internal/auditlog"
	cfg "github.com/warden-app/warden/internal/config"
	"github.com/warden-app/warden/internal/handshake"
	"github.com/warden-app/warden/internal/history"
	historysqlite "github.com/warden-app/warden/internal/history/sqlite"
	"github.com/warden-app/warden/internal/lifecycle"
	"github.com/warden-app/warden/internal/logger"
	"github.com/warden-app/warden/internal/metrics"
	iapi "github.com/warden-app/warden/internal/server"
	"github.com/warden-app/warden/internal/service"
	"github.com/warden-app/warden/internal/singleinstance"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type ServiceInfo = handshake.ServiceInfo

type Phase = lifecycle.Phase

type Status = lifecycle.Status

type HistorySink = history.Sink

// ErrServiceNotReady is returned by ServiceURL while the backend service has
// not yet advertised itself.
var ErrServiceNotReady = lifecycle.ErrServiceNotReady

// Supervisor is a thin facade over the internal lifecycle orchestrator.
// It provides a stable public API for embedding the supervisor in an
// application shell.
type Supervisor struct {
	inner *lifecycle.Orchestrator
	guard *singleinstance.Guard
	sink  history.Sink
}

// New assembles a Supervisor from configuration. The optional history sink
// is opened here when configured; Close releases it.
func New(c *Config) (*Supervisor, error) {
	if err := c.EnsureDataDir(); err != nil {
		return nil, err
	}
	var sink history.Sink
	if c.History != nil && c.History.DSN != "" {
		s, err := historysqlite.New(c.History.DSN)
		if err != nil {
			return nil, err
		}
		sink = s
	}
	orch := lifecycle.New(lifecycle.Options{
		Controller: service.NewController(c.Service),
		Handshake:  handshake.File{Path: c.HandshakeFile},
		Audit:      auditlog.Writer{Path: c.AuditLog},
		QueryRetry: c.QueryRetry,
		Sink:       sink,
		Alive:      service.Alive,
	})
	return &Supervisor{
		inner: orch,
		guard: &singleinstance.Guard{SocketPath: c.InstanceSocket},
		sink:  sink,
	}, nil
}

// AcquireInstance makes this process the primary application instance, or
// reports false when another instance already runs (after asking it to focus
// its window). onFocus runs whenever a later launch pings this instance.
func (s *Supervisor) AcquireInstance(onFocus func()) (bool, error) {
	ok, err := s.guard.Acquire(onFocus)
	if err != nil {
		return false, err
	}
	if !ok {
		_ = s.guard.NotifyExisting()
	}
	return ok, nil
}

// HandleReady reacts to the application-ready event (fire-and-forget spawn).
func (s *Supervisor) HandleReady(ctx context.Context) { s.inner.HandleReady(ctx) }

// HandleExitRequest runs the cleanup sequence and exits the process.
func (s *Supervisor) HandleExitRequest(ctx context.Context) { s.inner.HandleExitRequest(ctx) }

// ServiceURL returns the backend service's advertised URL.
func (s *Supervisor) ServiceURL(ctx context.Context) (string, error) { return s.inner.ServiceURL(ctx) }

// ServiceStatus reports the service as currently discoverable.
func (s *Supervisor) ServiceStatus() (Status, error) { return s.inner.ServiceStatus() }

// Phase returns the current lifecycle phase.
func (s *Supervisor) Phase() Phase { return s.inner.Phase() }

// Close releases the instance socket and the history sink. It does not stop
// the backend service; that is HandleExitRequest's job.
func (s *Supervisor) Close() {
	s.guard.Release()
	if s.sink != nil {
		_ = s.sink.Close()
	}
}

// DefaultConfig returns the configuration used when no config file is given.
func DefaultConfig() *Config { return cfg.Default() }

// LoadConfig reads a TOML config file.
func LoadConfig(path string) (*Config, error) { return cfg.Load(path) }

// SetupLogging installs the process-wide slog default per the config.
func SetupLogging(c *Config) { logger.Setup(c.Log) }

// NewHTTPServer starts the control API server the UI layer queries.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	return iapi.NewServer(addr, basePath, s.inner)
}

// NewHTTPHandler returns the control API as an http.Handler for mounting in
// an existing server or framework.
func NewHTTPHandler(basePath string, s *Supervisor) http.Handler {
	return iapi.NewRouter(s.inner, basePath).Handler()
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
