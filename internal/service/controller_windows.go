//go:build windows

package service

import (
	"context"
	"os/exec"
	"strconv"
	"syscall"
)

// Windows creation flags
const (
	CREATE_NEW_PROCESS_GROUP = 0x00000200
	DETACHED_PROCESS         = 0x00000008
)

// spawnCommand runs the startup script through the native shell
func spawnCommand(script string) *exec.Cmd {
	// #nosec G204
	return exec.Command("cmd", "/C", script)
}

// terminateCommand forcefully terminates pid via taskkill
func terminateCommand(ctx context.Context, pid int) *exec.Cmd {
	// #nosec G204
	return exec.CommandContext(ctx, "taskkill", "/PID", strconv.Itoa(pid), "/F")
}

// configureDetachedAttrs detaches the shell from the supervisor's console so
// closing the application window does not tear the service down with it.
func configureDetachedAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: CREATE_NEW_PROCESS_GROUP | DETACHED_PROCESS,
	}
}
