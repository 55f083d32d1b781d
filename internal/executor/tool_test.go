//go:build !windows

package executor

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
)

type countingAcknowledger struct {
	calls int
	err   error
}

func (c *countingAcknowledger) Acknowledge(ctx context.Context, prompt string) error {
	c.calls++
	return c.err
}

func newTestTool(log *logger.Logger, ack Acknowledger) *Tool {
	return NewTool(log, ToolConfig{Timeout: 10 * time.Second, KillGrace: time.Second, Acknowledger: ack})
}

func TestToolCapturesOutput(t *testing.T) {
	log, logs := observedLogger()
	ectx := newTestContext(t)
	ectx.Variables.Set("Greeting", "hello")

	step := newStep("tool", "greet", "Command", "echo ${Greeting}", "Command", "echo oops 1>&2")
	result := newTestTool(log, &countingAcknowledger{}).Execute(context.Background(), step, ectx)
	require.True(t, result.Success, result.ErrorMessage())
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "hello")
	assert.Contains(t, result.Output, "oops")

	assert.Equal(t, 1, logs.FilterMessage("[CMD] hello").Len())
	warns := logs.FilterMessage("[CMD-ERROR] oops").All()
	require.Len(t, warns, 1)
	assert.Equal(t, zapcore.WarnLevel, warns[0].Level)
}

func TestToolRunsInSessionDirectory(t *testing.T) {
	ectx := newTestContext(t)
	writeFile(t, filepath.Join(ectx.SessionDir, "scripts", "flash.sh"), "echo flashed\n")

	step := newStep("tool", "run", "Command", "pwd", "Command", "sh scripts/flash.sh")
	result := newTestTool(logger.NewNop(), nil).Execute(context.Background(), step, ectx)
	require.True(t, result.Success, result.ErrorMessage())

	lines := strings.Split(strings.TrimSpace(result.Output), "\n")
	require.Len(t, lines, 2)
	want, err := filepath.EvalSymlinks(ectx.SessionDir)
	require.NoError(t, err)
	got, err := filepath.EvalSymlinks(lines[0])
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, "flashed", lines[1])
}

func TestToolNonZeroExitStopsStep(t *testing.T) {
	ectx := newTestContext(t)
	marker := filepath.Join(ectx.SessionDir, "marker")

	step := newStep("tool", "fail", "Command", "echo one", "Command", "exit 3", "Command", "touch "+marker)
	result := newTestTool(logger.NewNop(), nil).Execute(context.Background(), step, ectx)
	require.False(t, result.Success)
	assert.Equal(t, 3, result.ExitCode)
	assert.Equal(t, errors.KindProcess, result.Error.Kind)
	assert.Contains(t, result.Output, "one")
	assert.NoFileExists(t, marker)
}

func TestToolTimeoutKillsProcess(t *testing.T) {
	tool := NewTool(logger.NewNop(), ToolConfig{Timeout: 300 * time.Millisecond, KillGrace: time.Second})
	step := newStep("tool", "hang", "Command", "sleep 30", "Command", "echo never")

	start := time.Now()
	result := tool.Execute(context.Background(), step, newTestContext(t))
	elapsed := time.Since(start)

	require.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.Equal(t, errors.KindProcess, result.Error.Kind)
	assert.ErrorIs(t, result.Error, errors.ErrTimeout)
	assert.NotContains(t, result.Output, "never")
	assert.Less(t, elapsed, 10*time.Second)
}

func TestToolBackgroundChildDoesNotFailStep(t *testing.T) {
	tool := NewTool(logger.NewNop(), ToolConfig{Timeout: 10 * time.Second, KillGrace: 500 * time.Millisecond})
	step := newStep("tool", "daemon", "Command", "echo started; sleep 3 &", "Command", "echo next")

	start := time.Now()
	result := tool.Execute(context.Background(), step, newTestContext(t))
	elapsed := time.Since(start)

	require.True(t, result.Success, result.ErrorMessage())
	assert.Equal(t, 0, result.ExitCode)
	assert.Contains(t, result.Output, "started")
	assert.Contains(t, result.Output, "next")
	assert.Less(t, elapsed, 3*time.Second)
}

func TestToolBackgroundChildKeepsFailureCode(t *testing.T) {
	tool := NewTool(logger.NewNop(), ToolConfig{Timeout: 10 * time.Second, KillGrace: 500 * time.Millisecond})
	step := newStep("tool", "daemon", "Command", "sleep 3 & exit 4")

	result := tool.Execute(context.Background(), step, newTestContext(t))
	require.False(t, result.Success)
	assert.Equal(t, 4, result.ExitCode)
	assert.Equal(t, errors.KindProcess, result.Error.Kind)
}

func TestToolInteractiveCommandWaitsForAcknowledgement(t *testing.T) {
	ack := &countingAcknowledger{}
	step := newStep("tool", "confirm", "Command", "pause", "Command", "echo after")

	result := newTestTool(logger.NewNop(), ack).Execute(context.Background(), step, newTestContext(t))
	require.True(t, result.Success, result.ErrorMessage())
	assert.True(t, result.InteractiveWaiting)
	assert.Equal(t, 1, ack.calls)
	assert.Contains(t, result.Output, "after")
}

func TestToolAcknowledgementFailure(t *testing.T) {
	ack := &countingAcknowledger{err: context.Canceled}
	step := newStep("tool", "confirm", "Command", "choice /c yn", "Command", "echo after")

	result := newTestTool(logger.NewNop(), ack).Execute(context.Background(), step, newTestContext(t))
	require.False(t, result.Success)
	assert.True(t, result.InteractiveWaiting)
	assert.Equal(t, errors.KindIO, result.Error.Kind)
	assert.NotContains(t, result.Output, "after")
}

func TestToolWithoutCommands(t *testing.T) {
	tool := newTestTool(logger.NewNop(), nil)
	step := newStep("tool", "empty", "Command", "   ")

	result := tool.Execute(context.Background(), step, newTestContext(t))
	require.False(t, result.Success)
	assert.Equal(t, errors.KindConfiguration, result.Error.Kind)
	assert.Len(t, tool.Validate(step), 1)
}

func TestIsInteractive(t *testing.T) {
	tests := []struct {
		command string
		want    bool
	}{
		{"pause", true},
		{"  PAUSE  ", true},
		{"pause >nul", true},
		{"choice /c yn /m Continue", true},
		{"read -p 'Continue?' answer", true},
		{"set /p x=Input please", true},
		{"paused.exe", false},
		{"fastboot flash boot boot.img", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsInteractive(tt.command), tt.command)
	}
}

func TestBuildCommandLine(t *testing.T) {
	assert.Equal(t, `cd "/tmp/session" && ./tools/flash.sh`, BuildCommandLine("./tools/flash.sh", "/tmp/session"))
	assert.Equal(t, "/usr/bin/fastboot devices", BuildCommandLine("/usr/bin/fastboot devices", "/tmp/session"))
	assert.Equal(t, `"my tool" --x`, BuildCommandLine(`"my tool" --x`, "/tmp/session"))
}

func TestLineWriterFlushesPartialLine(t *testing.T) {
	capture := &outputCapture{}
	var emitted []string
	w := &lineWriter{capture: capture, emit: func(line string) { emitted = append(emitted, line) }}

	_, _ = w.Write([]byte("first\r\nsec"))
	_, _ = w.Write([]byte("ond\nthi"))
	w.flush()

	assert.Equal(t, []string{"first", "second", "thi"}, emitted)
	assert.Equal(t, "first\nsecond\nthi\n", capture.String())
}
