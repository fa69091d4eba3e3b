package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/warden-app/warden/internal/handshake"
	"github.com/warden-app/warden/internal/history"
	"github.com/warden-app/warden/internal/metrics"
)

// Phase is the orchestrator's lifecycle state.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseLaunching   Phase = "launching"
	PhaseRunning     Phase = "running"
	PhaseTerminating Phase = "terminating"
	PhaseTerminated  Phase = "terminated"
)

// Phases lists every phase, for metrics labeling.
func Phases() []string {
	return []string{string(PhaseIdle), string(PhaseLaunching), string(PhaseRunning), string(PhaseTerminating), string(PhaseTerminated)}
}

// ErrServiceNotReady is returned by ServiceURL when the handshake file has
// not appeared within the query retry window. The presentation layer is
// expected to handle it (show a "starting..." state, retry later).
var ErrServiceNotReady = errors.New("service not ready")

// Controller abstracts platform process control. Satisfied by
// service.Controller.
type Controller interface {
	Spawn() error
	Terminate(ctx context.Context, pid int) error
}

// AuditWriter appends the supervisor-side termination entry. Satisfied by
// auditlog.Writer.
type AuditWriter interface {
	AppendTermination(pid int) error
}

// Options configures an Orchestrator.
type Options struct {
	Controller Controller
	Handshake  handshake.File
	Audit      AuditWriter
	QueryRetry time.Duration // how long ServiceURL waits for a late handshake
	Sink       history.Sink  // optional lifecycle event store
	Exit       func(code int)
	Alive      func(pid int) bool
}

// Orchestrator drives the backend service's lifecycle in response to the
// application shell's events. It never holds a direct handle to the service
// process; identity is re-read from the handshake file each time it is
// needed so a stale PID is never acted on.
type Orchestrator struct {
	mu    sync.Mutex
	phase Phase

	ctrl       Controller
	hs         handshake.File
	audit      AuditWriter
	queryRetry time.Duration
	sink       history.Sink
	exit       func(code int)
	alive      func(pid int) bool
}

func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		phase:      PhaseIdle,
		ctrl:       opts.Controller,
		hs:         opts.Handshake,
		audit:      opts.Audit,
		queryRetry: opts.QueryRetry,
		sink:       opts.Sink,
		exit:       opts.Exit,
		alive:      opts.Alive,
	}
	if o.exit == nil {
		o.exit = os.Exit
	}
	if o.queryRetry <= 0 {
		o.queryRetry = 3 * time.Second
	}
	return o
}

// Phase returns the current lifecycle phase.
func (o *Orchestrator) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

func (o *Orchestrator) setPhase(p Phase) {
	o.mu.Lock()
	from := o.phase
	o.phase = p
	o.mu.Unlock()
	slog.Debug("lifecycle transition", "from", from, "to", p)
	metrics.SetPhase(string(p), Phases())
}

// HandleReady reacts to the application's "ready" event: it fires the
// spawn and moves on. Launch errors are swallowed here on purpose; the shell
// stays usable without a confirmed-running service and the user may retry.
func (o *Orchestrator) HandleReady(ctx context.Context) {
	o.setPhase(PhaseLaunching)
	if err := o.ctrl.Spawn(); err != nil {
		slog.Warn("service launch failed, continuing without service", "error", err)
		metrics.IncLaunch("error")
		o.record(ctx, history.Event{Type: history.EventLaunch, OccurredAt: time.Now(), Detail: err.Error()})
	} else {
		metrics.IncLaunch("ok")
		o.record(ctx, history.Event{Type: history.EventLaunch, OccurredAt: time.Now()})
	}
	o.setPhase(PhaseRunning)
}

// ServiceURL returns the service's advertised URL, waiting up to the query
// retry window for the handshake file to appear. This covers the startup
// race where the UI asks for the URL before the service finished writing it.
func (o *Orchestrator) ServiceURL(ctx context.Context) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, o.queryRetry)
	defer cancel()
	info, err := o.hs.WaitReady(wctx)
	if err != nil {
		metrics.IncHandshakeReadFailure()
		if errors.Is(err, handshake.ErrNotFound) {
			return "", fmt.Errorf("%w: %v", ErrServiceNotReady, err)
		}
		return "", err
	}
	return info.URL, nil
}

// Status describes the service as currently discoverable.
type Status struct {
	Phase Phase  `json:"phase"`
	URL   string `json:"url,omitempty"`
	PID   int    `json:"pid,omitempty"`
	Alive bool   `json:"alive"`
}

// ServiceStatus reads the handshake file and probes the advertised PID.
// A missing handshake is not an error: it reports a not-yet-discoverable
// service.
func (o *Orchestrator) ServiceStatus() (Status, error) {
	st := Status{Phase: o.Phase()}
	info, err := o.hs.Read()
	if err != nil {
		if errors.Is(err, handshake.ErrNotFound) {
			return st, nil
		}
		metrics.IncHandshakeReadFailure()
		return st, err
	}
	st.URL = info.URL
	st.PID = info.PID
	if o.alive != nil {
		st.Alive = o.alive(info.PID)
	}
	return st, nil
}

// HandleExitRequest runs the cleanup sequence and exits the process. The
// caller must already have suppressed the default immediate exit so the
// sequence is guaranteed to run. Each step is best-effort: a failed step is
// logged and the sequence continues, always reaching the terminal phase.
//
// Order is fixed: read handshake, signal terminate, append audit entry,
// remove handshake, exit.
func (o *Orchestrator) HandleExitRequest(ctx context.Context) {
	o.setPhase(PhaseTerminating)
	defer func() {
		o.setPhase(PhaseTerminated)
		o.exit(0)
	}()

	info, err := o.hs.Read()
	if err != nil {
		// Nothing to kill: the service never started or already cleaned up.
		if !errors.Is(err, handshake.ErrNotFound) {
			metrics.IncHandshakeReadFailure()
		}
		slog.Info("no running service found on exit", "reason", err)
		return
	}

	termErr := o.ctrl.Terminate(ctx, info.PID)
	if termErr != nil {
		slog.Error("service termination failed", "pid", info.PID, "error", termErr)
		metrics.IncTermination("error")
	} else {
		metrics.IncTermination("ok")
	}

	// The service was killed externally and cannot log its own shutdown;
	// write the audit entry on its behalf even when termination reported an
	// error, so the trail never silently ends.
	if err := o.audit.AppendTermination(info.PID); err != nil {
		slog.Warn("audit log write failed", "pid", info.PID, "error", err)
		metrics.IncAuditWriteFailure()
	}

	if termErr == nil {
		if err := o.hs.Remove(); err != nil {
			// Absence is the desired end state; tolerate the failure.
			slog.Warn("handshake file removal failed", "error", err)
		}
	}

	o.record(ctx, history.Event{
		Type:       history.EventTerminate,
		OccurredAt: time.Now(),
		PID:        info.PID,
		URL:        info.URL,
		Detail:     detailOf(termErr),
	})
	slog.Info("service shutdown sequence complete", "pid", info.PID)
}

func (o *Orchestrator) record(ctx context.Context, e history.Event) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Send(ctx, e); err != nil {
		slog.Warn("history sink write failed", "event", e.Type, "error", err)
	}
}

func detailOf(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
