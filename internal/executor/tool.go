package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/osutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

const (
	DefaultToolTimeout = 30 * time.Minute
	DefaultKillGrace   = 5 * time.Second

	acknowledgePrompt = "Press any key to continue..."
)

// Tool runs the Command parameters of a step one after another through the
// platform shell, inside the session directory.
type Tool struct {
	log       *logger.Logger
	timeout   time.Duration
	killGrace time.Duration
	ack       Acknowledger
}

// NewTool creates the tool executor
func NewTool(log *logger.Logger, cfg ToolConfig) *Tool {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultToolTimeout
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultKillGrace
	}
	if cfg.Acknowledger == nil {
		cfg.Acknowledger = NewKeyPressAcknowledger()
	}
	return &Tool{
		log:       log,
		timeout:   cfg.Timeout,
		killGrace: cfg.KillGrace,
		ack:       cfg.Acknowledger,
	}
}

func (t *Tool) Type() string { return "tool" }

// Validate implements Validator
func (t *Tool) Validate(step workflow.Step) []error {
	for _, c := range step.Parameters.All("Command") {
		if strings.TrimSpace(c) != "" {
			return nil
		}
	}
	return []error{fmt.Errorf("%w: tool step requires at least one Command", errors.ErrMissingParameter)}
}

func (t *Tool) Execute(ctx context.Context, step workflow.Step, ectx *workflow.ExecutionContext) *workflow.StepResult {
	log := t.log.WithStep(step.Name)

	var commands []string
	for _, raw := range step.Parameters.All("Command") {
		if c := strings.TrimSpace(ectx.Resolve(raw)); c != "" {
			commands = append(commands, c)
		}
	}
	if len(commands) == 0 {
		return configError("%w: tool step requires at least one Command", errors.ErrMissingParameter)
	}

	var output strings.Builder
	interactive := false

	for _, command := range commands {
		if IsInteractive(command) {
			log.LogWarn("Interactive command detected, waiting for operator", map[string]interface{}{"command": command})
			interactive = true
			if err := t.ack.Acknowledge(ctx, acknowledgePrompt); err != nil {
				result := workflow.Failed(errors.KindIO, fmt.Errorf("%w: waiting for acknowledgement: %s", errors.ErrIO, err.Error()))
				result.InteractiveWaiting = true
				result.Output = output.String()
				return result
			}
			continue
		}

		log.LogInfo("Executing command", map[string]interface{}{"command": command})
		exitCode, out, err := t.run(ctx, log, ectx.SessionDir, command)
		output.WriteString(out)
		if err != nil {
			log.LogError("Command failed", err, map[string]interface{}{"exit_code": exitCode})
			result := workflow.Failed("", err)
			result.ExitCode = exitCode
			result.Output = output.String()
			result.InteractiveWaiting = interactive
			return result
		}
	}

	log.LogSuccess("Tool step completed", nil)
	return &workflow.StepResult{
		Success:            true,
		Output:             output.String(),
		InteractiveWaiting: interactive,
	}
}

// run spawns one command and waits for it, bounded by the tool timeout
func (t *Tool) run(ctx context.Context, log *logger.Logger, sessionDir, command string) (int, string, error) {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := shellCommand(runCtx, BuildCommandLine(command, sessionDir))
	cmd.Dir = sessionDir
	cmd.WaitDelay = t.killGrace

	capture := &outputCapture{}
	stdout := &lineWriter{capture: capture, emit: func(line string) {
		log.LogInfo("[CMD] "+line, nil)
	}}
	stderr := &lineWriter{capture: capture, emit: func(line string) {
		log.LogWarn("[CMD-ERROR] "+line, nil)
	}}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	stdout.flush()
	stderr.flush()
	out := capture.String()

	if ctxErr := runCtx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded && ctx.Err() == nil {
			return -1, out, fmt.Errorf("%w: command exceeded %s and was terminated: %s", errors.ErrTimeout, t.timeout, command)
		}
		return -1, out, fmt.Errorf("%w: command cancelled: %s", errors.ErrProcess, command)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code := exitErr.ExitCode()
			return code, out, fmt.Errorf("%w: command failed with exit code %d", errors.ErrProcess, code)
		}
		if cmd.ProcessState == nil {
			return -1, out, fmt.Errorf("%w: failed to start command: %s", errors.ErrProcess, err.Error())
		}
		// The shell exited but a background child still holds its output pipes
		if errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState.Success() {
			log.LogDebug("Command exited with output still open", map[string]interface{}{"command": command})
			return 0, out, nil
		}
		code := cmd.ProcessState.ExitCode()
		return code, out, fmt.Errorf("%w: command exited with code %d: %s", errors.ErrProcess, code, err.Error())
	}
	return 0, out, nil
}

// IsInteractive reports whether a command waits for operator input
func IsInteractive(command string) bool {
	c := strings.ToLower(strings.TrimSpace(command))
	return c == "pause" ||
		strings.HasPrefix(c, "pause ") ||
		strings.Contains(c, "choice") ||
		strings.Contains(c, "read") ||
		strings.Contains(c, "input")
}

// BuildCommandLine prefixes a relative command with a cd into the session
// directory. Qualified or quoted commands are left alone.
func BuildCommandLine(command, sessionDir string) string {
	if fsutil.IsQualifiedPath(command) {
		return command
	}
	command = fsutil.ToOSSeparators(command)
	if osutil.IsWindows() {
		return fmt.Sprintf(`cd /d "%s" && %s`, sessionDir, command)
	}
	return fmt.Sprintf(`cd "%s" && %s`, sessionDir, command)
}

// outputCapture collects the lines of both streams of one process
type outputCapture struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (c *outputCapture) add(line string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buf.WriteString(line)
	c.buf.WriteByte('\n')
}

func (c *outputCapture) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String()
}

// lineWriter splits one output stream into lines. exec copies each stream
// from its own goroutine, so pending is never shared.
type lineWriter struct {
	capture *outputCapture
	emit    func(string)
	pending bytes.Buffer
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.pending.Write(p)
	for {
		i := bytes.IndexByte(w.pending.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := strings.TrimRight(string(w.pending.Next(i+1)), "\r\n")
		w.capture.add(line)
		w.emit(line)
	}
	return len(p), nil
}

// flush emits a trailing line that had no newline
func (w *lineWriter) flush() {
	if w.pending.Len() == 0 {
		return
	}
	line := strings.TrimRight(w.pending.String(), "\r\n")
	w.pending.Reset()
	w.capture.add(line)
	w.emit(line)
}
