//go:build !windows

package capabilities

import (
	"context"
	"os/exec"
	"syscall"
	"time"
)

// shellCommand runs command through /bin/sh in its own process group so that a timeout
// kills every process the command started, not just the shell.
func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = 2 * time.Second
	return cmd
}
