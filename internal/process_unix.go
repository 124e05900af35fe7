//go:build !windows

package internal

import (
	"os/exec"
	"syscall"
)

// configureProcessGroup starts the child in its own process group so a timeout
// can take down anything it spawned.
func configureProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// killProcessGroup sends SIGKILL to the process group (negative PID).
func killProcessGroup(pid int) {
	// Best-effort; cmd.Process.Kill follows
	_ = syscall.Kill(-pid, syscall.SIGKILL)
}
