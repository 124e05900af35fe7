//go:build windows

package internal

import (
	"os/exec"
	"strconv"
)

func configureProcessGroup(cmd *exec.Cmd) {}

// killProcessGroup kills a process tree using taskkill.
// /F = force kill, /T = terminate child processes.
func killProcessGroup(pid int) {
	_ = exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid)).Run()
}
