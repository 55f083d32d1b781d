//go:build windows

package executor

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"syscall"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/osutil"
)

// shellCommand passes commandLine to cmd.exe unescaped and kills the whole
// process tree on cancellation
func shellCommand(ctx context.Context, commandLine string) *exec.Cmd {
	shell, flag := osutil.Shell()
	cmd := exec.CommandContext(ctx, shell)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: fmt.Sprintf("%s %s %s", syscall.EscapeArg(shell), flag, commandLine),
	}
	cmd.Cancel = func() error {
		return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(cmd.Process.Pid)).Run()
	}
	return cmd
}
