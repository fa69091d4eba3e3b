package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

var (
	// ErrSpawnFailed is returned when the platform shell could not be started.
	ErrSpawnFailed = errors.New("service spawn failed")
	// ErrTerminateFailed is returned when the termination command could not
	// be started. A nonzero exit of the command itself is not an error: the
	// signal send is best-effort and its effect is not verified here.
	ErrTerminateFailed = errors.New("service terminate failed")
)

// Config describes how the backend service is started and stopped.
type Config struct {
	Script           string        `mapstructure:"script"`            // startup script run via the platform shell
	WorkDir          string        `mapstructure:"workdir"`           // working directory for the shell invocation
	TerminateTimeout time.Duration `mapstructure:"terminate_timeout"` // deadline for the termination command
	VerifyExitWait   time.Duration `mapstructure:"verify_exit_wait"`  // post-signal liveness poll window, 0 disables
}

// Controller starts and stops the backend service using platform process
// commands. The service is spawned through a shell wrapper, so no direct
// child handle is retained; the PID used for termination comes from the
// handshake file.
type Controller struct {
	cfg Config
}

func NewController(cfg Config) *Controller { return &Controller{cfg: cfg} }

// Spawn launches the startup script detached and returns as soon as the
// shell has been started. It never waits for the service itself; the service
// becomes discoverable later through the handshake file.
func (c *Controller) Spawn() error {
	cmd := spawnCommand(c.cfg.Script)
	if c.cfg.WorkDir != "" {
		cmd.Dir = c.cfg.WorkDir
	}
	null, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err == nil {
		cmd.Stdin = null
		cmd.Stdout = null
		cmd.Stderr = null
	}
	configureDetachedAttrs(cmd)
	if err := cmd.Start(); err != nil {
		if null != nil {
			_ = null.Close()
		}
		return fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	slog.Info("service spawn issued", "script", c.cfg.Script, "workdir", c.cfg.WorkDir, "shell_pid", cmd.Process.Pid)
	// Reap the shell wrapper so it does not linger as a zombie.
	go func() {
		_ = cmd.Wait()
		if null != nil {
			_ = null.Close()
		}
	}()
	return nil
}

// Terminate sends the platform termination command to pid and waits for the
// command itself to exit, bounded by cfg.TerminateTimeout via ctx layering.
// When VerifyExitWait is set it then polls briefly for the process to
// actually disappear; the outcome is logged but never blocks shutdown.
func (c *Controller) Terminate(ctx context.Context, pid int) error {
	if c.cfg.TerminateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.TerminateTimeout)
		defer cancel()
	}
	cmd := terminateCommand(ctx, pid)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("%w: %v", ErrTerminateFailed, err)
	}
	if err := cmd.Wait(); err != nil {
		// Exit status is informational only: the target may already be gone.
		slog.Warn("termination command exited with error", "pid", pid, "error", err)
	}
	if c.cfg.VerifyExitWait > 0 {
		if gone := waitGone(ctx, pid, c.cfg.VerifyExitWait); gone {
			slog.Info("service process exited", "pid", pid)
		} else {
			slog.Warn("service process still present after signal", "pid", pid, "waited", c.cfg.VerifyExitWait)
		}
	}
	return nil
}

// Alive reports whether pid refers to an existing process.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := gopsproc.PidExists(int32(pid))
	return err == nil && ok
}

func waitGone(ctx context.Context, pid int, window time.Duration) bool {
	deadline := time.Now().Add(window)
	for time.Now().Before(deadline) {
		if !Alive(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return !Alive(pid)
		case <-time.After(50 * time.Millisecond):
		}
	}
	return !Alive(pid)
}
