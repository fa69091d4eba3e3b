package lifecycle

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/warden-app/warden/internal/handshake"
	"github.com/warden-app/warden/internal/service"
)

// recorder collects the observable side effects of the exit sequence so
// tests can assert on their order.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(e string) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type fakeController struct {
	rec      *recorder
	spawnErr error
	termErr  error
}

func (f *fakeController) Spawn() error {
	f.rec.add("spawn")
	return f.spawnErr
}

func (f *fakeController) Terminate(_ context.Context, pid int) error {
	f.rec.add("terminate:" + strconv.Itoa(pid))
	return f.termErr
}

type fakeAudit struct {
	rec *recorder
	err error
}

func (f *fakeAudit) AppendTermination(pid int) error {
	f.rec.add("audit:" + strconv.Itoa(pid))
	return f.err
}

func newTestOrchestrator(t *testing.T, ctrl Controller, audit AuditWriter, exited *int) (*Orchestrator, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "service.info")
	o := New(Options{
		Controller: ctrl,
		Handshake:  handshake.File{Path: path},
		Audit:      audit,
		QueryRetry: 300 * time.Millisecond,
		Exit:       func(code int) { *exited = code + 1 }, // +1 distinguishes "called with 0" from "not called"
		Alive:      service.Alive,
	})
	return o, path
}

func writeHandshake(t *testing.T, path string, pid int) {
	t.Helper()
	if err := os.WriteFile(path, []byte("url=http://127.0.0.1:8721\npid="+strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		t.Fatalf("write handshake: %v", err)
	}
}

func TestHandleReadyReachesRunning(t *testing.T) {
	rec := &recorder{}
	var exited int
	o, _ := newTestOrchestrator(t, &fakeController{rec: rec}, &fakeAudit{rec: rec}, &exited)
	if o.Phase() != PhaseIdle {
		t.Fatalf("initial phase: %s", o.Phase())
	}
	o.HandleReady(context.Background())
	if o.Phase() != PhaseRunning {
		t.Fatalf("phase after ready: %s", o.Phase())
	}
	if got := rec.list(); len(got) != 1 || got[0] != "spawn" {
		t.Fatalf("events: %v", got)
	}
}

func TestHandleReadySwallowsSpawnError(t *testing.T) {
	rec := &recorder{}
	var exited int
	ctrl := &fakeController{rec: rec, spawnErr: service.ErrSpawnFailed}
	o, _ := newTestOrchestrator(t, ctrl, &fakeAudit{rec: rec}, &exited)
	o.HandleReady(context.Background())
	if o.Phase() != PhaseRunning {
		t.Fatalf("launch failure must not block the shell, phase: %s", o.Phase())
	}
}

func TestExitSequenceOrder(t *testing.T) {
	for _, auditFails := range []bool{false, true} {
		name := "audit_ok"
		if auditFails {
			name = "audit_fails"
		}
		t.Run(name, func(t *testing.T) {
			rec := &recorder{}
			var exited int
			audit := &fakeAudit{rec: rec}
			if auditFails {
				audit.err = errors.New("disk full")
			}
			o, path := newTestOrchestrator(t, &fakeController{rec: rec}, audit, &exited)
			writeHandshake(t, path, 4242)

			o.HandleExitRequest(context.Background())

			want := []string{"terminate:4242", "audit:4242"}
			got := rec.list()
			if len(got) != len(want) {
				t.Fatalf("events: %v", got)
			}
			for i := range want {
				if got[i] != want[i] {
					t.Fatalf("event %d: got %q want %q (all: %v)", i, got[i], want[i], got)
				}
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Fatalf("handshake file not removed (err=%v)", err)
			}
			if exited != 1 {
				t.Fatalf("expected exit(0), marker=%d", exited)
			}
			if o.Phase() != PhaseTerminated {
				t.Fatalf("phase: %s", o.Phase())
			}
		})
	}
}

func TestExitWithoutHandshake(t *testing.T) {
	rec := &recorder{}
	var exited int
	o, _ := newTestOrchestrator(t, &fakeController{rec: rec}, &fakeAudit{rec: rec}, &exited)

	o.HandleExitRequest(context.Background())

	if got := rec.list(); len(got) != 0 {
		t.Fatalf("no terminate or audit expected, got %v", got)
	}
	if exited != 1 {
		t.Fatalf("expected exit(0), marker=%d", exited)
	}
	if o.Phase() != PhaseTerminated {
		t.Fatalf("phase: %s", o.Phase())
	}
}

func TestExitKeepsHandshakeWhenTerminateFails(t *testing.T) {
	rec := &recorder{}
	var exited int
	ctrl := &fakeController{rec: rec, termErr: service.ErrTerminateFailed}
	o, path := newTestOrchestrator(t, ctrl, &fakeAudit{rec: rec}, &exited)
	writeHandshake(t, path, 99)

	o.HandleExitRequest(context.Background())

	// Audit still written, handshake left in place, process still exits.
	want := []string{"terminate:99", "audit:99"}
	if got := rec.list(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("events: %v", rec.list())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("handshake should remain when termination failed: %v", err)
	}
	if exited != 1 || o.Phase() != PhaseTerminated {
		t.Fatalf("sequence must still complete: exit=%d phase=%s", exited, o.Phase())
	}
}

func TestServiceURLReturnsExactURL(t *testing.T) {
	rec := &recorder{}
	var exited int
	o, path := newTestOrchestrator(t, &fakeController{rec: rec}, &fakeAudit{rec: rec}, &exited)
	writeHandshake(t, path, 4242)

	url, err := o.ServiceURL(context.Background())
	if err != nil {
		t.Fatalf("ServiceURL: %v", err)
	}
	if url != "http://127.0.0.1:8721" {
		t.Fatalf("url: %q", url)
	}
}

func TestServiceURLNotReady(t *testing.T) {
	rec := &recorder{}
	var exited int
	o, _ := newTestOrchestrator(t, &fakeController{rec: rec}, &fakeAudit{rec: rec}, &exited)

	_, err := o.ServiceURL(context.Background())
	if !errors.Is(err, ErrServiceNotReady) {
		t.Fatalf("expected ErrServiceNotReady, got %v", err)
	}
}

func TestServiceURLToleratesLateHandshake(t *testing.T) {
	rec := &recorder{}
	var exited int
	o, path := newTestOrchestrator(t, &fakeController{rec: rec}, &fakeAudit{rec: rec}, &exited)

	go func() {
		time.Sleep(100 * time.Millisecond)
		writeHandshake(t, path, 4242)
	}()
	url, err := o.ServiceURL(context.Background())
	if err != nil {
		t.Fatalf("ServiceURL with late handshake: %v", err)
	}
	if url != "http://127.0.0.1:8721" {
		t.Fatalf("url: %q", url)
	}
}

func TestServiceStatus(t *testing.T) {
	rec := &recorder{}
	var exited int
	o, path := newTestOrchestrator(t, &fakeController{rec: rec}, &fakeAudit{rec: rec}, &exited)

	st, err := o.ServiceStatus()
	if err != nil {
		t.Fatalf("ServiceStatus without handshake: %v", err)
	}
	if st.URL != "" || st.PID != 0 || st.Alive {
		t.Fatalf("expected empty status, got %+v", st)
	}

	writeHandshake(t, path, os.Getpid())
	st, err = o.ServiceStatus()
	if err != nil {
		t.Fatalf("ServiceStatus: %v", err)
	}
	if st.PID != os.Getpid() || st.URL != "http://127.0.0.1:8721" {
		t.Fatalf("status: %+v", st)
	}
	if !st.Alive {
		t.Fatalf("own pid must be reported alive")
	}
}
