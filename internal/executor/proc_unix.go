//go:build !windows

package executor

import (
	"context"
	"os/exec"
	"syscall"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/osutil"
)

// shellCommand runs commandLine in its own process group so a timeout kills
// the shell together with everything it started
func shellCommand(ctx context.Context, commandLine string) *exec.Cmd {
	shell, flag := osutil.Shell()
	cmd := exec.CommandContext(ctx, shell, flag, commandLine)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	return cmd
}
