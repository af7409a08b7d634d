//go:build linux

package classifier

import (
	"os/exec"
	"syscall"
)

// setPlatformSpecificAttrs puts the predictor in its own process group so a
// timeout kills the interpreter and anything it spawned. Pdeathsig makes the
// kernel terminate the predictor if the chat endpoint dies first.
func setPlatformSpecificAttrs(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.Cancel = func() error {
		if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
			return cmd.Process.Kill()
		}
		return nil
	}
}
