//go:build windows

package capabilities

import (
	"context"
	"os/exec"
	"time"
)

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, "cmd", "/C", command)
	cmd.WaitDelay = 2 * time.Second
	return cmd
}
