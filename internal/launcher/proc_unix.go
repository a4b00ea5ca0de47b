// SPDX-License-Identifier: MPL-2.0

//go:build unix

package launcher

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// setProcessGroup starts the server as the leader of a new process group so
// signals reach the workers and pipeline members it spawns.
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// signalGroup delivers sig to the process group led by p.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	err := syscall.Kill(-p.Pid, sig)
	if errors.Is(err, syscall.ESRCH) {
		return os.ErrProcessDone
	}
	return err
}
