//go:build !windows

package service

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"
)

// spawnCommand runs the startup script through the POSIX shell
func spawnCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("/bin/sh", "-c", script)
}

// terminateCommand sends SIGTERM to pid via the kill command
func terminateCommand(ctx context.Context, pid int) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "kill", "-TERM", strconv.Itoa(pid))
}

// configureDetachedAttrs puts the shell in its own session so it outlives
// the supervisor's terminal and is not reached by its signals.
func configureDetachedAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
