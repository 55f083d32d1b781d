// Package engine runs a task bundle: it allocates a session directory,
// unpacks the bundle into it, parses the manifest and executes the steps in
// order, stopping at the first failure. The session directory is removed
// afterwards unless the caller asks to keep it.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	compression "github.com/deploymenttheory/go-flash-workflow/internal/common/compressionutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/executor"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/manifest"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// DefaultWorkflowFile is the manifest looked up inside a bundle
const DefaultWorkflowFile = "workflow.xml"

// Built-in variable names
const (
	VarSessionDir      = "SessionDir"
	VarOutputDir       = "OutputDir"
	VarTempDir         = "TempDir"
	VarWorkflowName    = "WorkflowName"
	VarWorkflowVersion = "WorkflowVersion"
)

// Extractor unpacks a bundle into a directory
type Extractor interface {
	Extract(archivePath, dst string) error
}

// ExtractorFunc adapts a function to the Extractor interface
type ExtractorFunc func(archivePath, dst string) error

func (f ExtractorFunc) Extract(archivePath, dst string) error {
	return f(archivePath, dst)
}

// ArchiveExtractor detects the bundle format and unpacks it
type ArchiveExtractor struct{}

func (ArchiveExtractor) Extract(archivePath, dst string) error {
	return compression.ExtractArchive(archivePath, dst, compression.FormatAuto)
}

// Options control a single run
type Options struct {
	// TempDir is the root under which the session directory is created
	TempDir string

	// OutputDir is created if missing and exposed as ${OutputDir}
	OutputDir string

	// WorkflowFile is the manifest name inside the bundle
	WorkflowFile string

	// KeepTemp leaves the session directory in place after the run
	KeepTemp bool

	// Variables override both built-in and manifest variables
	Variables map[string]string

	// MetricsFile, when set, receives the run's metrics in textfile format
	MetricsFile string
}

func (o Options) withDefaults() Options {
	if o.TempDir == "" {
		o.TempDir = os.TempDir()
	}
	if o.WorkflowFile == "" {
		o.WorkflowFile = DefaultWorkflowFile
	}
	if o.OutputDir == "" {
		o.OutputDir = filepath.Join(o.TempDir, "output")
	}
	return o
}

// Engine executes workflows. One engine may run several bundles, one at a time.
type Engine struct {
	log       *logger.Logger
	registry  *executor.Registry
	extractor Extractor
	parser    manifest.Parser
	metrics   *metrics.Recorder
	now       func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithExtractor replaces the bundle extractor
func WithExtractor(x Extractor) Option {
	return func(e *Engine) { e.extractor = x }
}

// WithParser replaces the manifest parser
func WithParser(p manifest.Parser) Option {
	return func(e *Engine) { e.parser = p }
}

// WithMetrics records run and step metrics
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used for session names
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine dispatching steps through registry
func New(log *logger.Logger, registry *executor.Registry, opts ...Option) *Engine {
	if log == nil {
		log = logger.NewNop()
	}
	e := &Engine{
		log:       log,
		registry:  registry,
		extractor: ArchiveExtractor{},
		parser:    manifest.FileParser{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes the bundle at archivePath. Every failure, including setup
// failures, is reported through the returned result.
func (e *Engine) Run(ctx context.Context, archivePath string, opts Options) *workflow.ExecutionResult {
	opts = opts.withDefaults()
	result := workflow.NewExecutionResult()
	defer e.finish(result, opts)

	sessionDir, err := e.createSession(opts.TempDir)
	if err != nil {
		result.ErrorMessage = err.Error()
		e.log.LogError("Failed to create session directory", err, nil)
		return result
	}
	defer e.cleanup(sessionDir, opts.KeepTemp)

	wf, ectx, err := e.prepare(archivePath, sessionDir, opts)
	if err != nil {
		result.ErrorMessage = err.Error()
		e.log.LogError("Failed to prepare workflow", err, nil)
		return result
	}

	e.execute(ctx, wf, ectx, result)
	return result
}

// Validate unpacks and parses a bundle and checks its steps without running
// any of them. The session directory is always removed.
func (e *Engine) Validate(archivePath string, opts Options) (*workflow.Workflow, []error, error) {
	opts = opts.withDefaults()

	sessionDir, err := e.createSession(opts.TempDir)
	if err != nil {
		return nil, nil, err
	}
	defer e.cleanup(sessionDir, false)

	wf, err := e.load(archivePath, sessionDir, opts.WorkflowFile)
	if err != nil {
		return nil, nil, err
	}
	return wf, ValidateWorkflow(wf, e.registry), nil
}

// createSession makes a uniquely named directory under root
func (e *Engine) createSession(root string) (string, error) {
	name := fmt.Sprintf("session_%s_%s", e.now().Format("20060102_150405"), strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	dir := filepath.Join(root, name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("%w: failed to create session directory %s: %s", errors.ErrIO, dir, err.Error())
	}
	e.log.LogInfo("Created session directory", map[string]interface{}{"session_dir": dir})
	return dir, nil
}

// cleanup removes the session directory. Failures are only logged.
func (e *Engine) cleanup(sessionDir string, keep bool) {
	if keep {
		e.log.LogInfo("Keeping session directory", map[string]interface{}{"session_dir": sessionDir})
		return
	}
	if err := fsutil.DeleteDirRecursive(sessionDir); err != nil {
		e.log.LogWarn("Failed to clean up session directory", map[string]interface{}{
			"session_dir": sessionDir,
			"error":       err.Error(),
		})
		return
	}
	e.log.LogDebug("Removed session directory", map[string]interface{}{"session_dir": sessionDir})
}

// load extracts the bundle and parses its manifest
func (e *Engine) load(archivePath, sessionDir, workflowFile string) (*workflow.Workflow, error) {
	e.log.LogInfo("Extracting archive", map[string]interface{}{"archive": archivePath})
	if err := e.extractor.Extract(archivePath, sessionDir); err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	manifestPath := filepath.Join(sessionDir, workflowFile)
	e.log.LogInfo("Parsing workflow file", map[string]interface{}{"file": manifestPath})
	wf, err := e.parser.Parse(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("failed to parse workflow: %w", err)
	}
	return wf, nil
}

// prepare loads the workflow and builds the execution context
func (e *Engine) prepare(archivePath, sessionDir string, opts Options) (*workflow.Workflow, *workflow.ExecutionContext, error) {
	wf, err := e.load(archivePath, sessionDir, opts.WorkflowFile)
	if err != nil {
		return nil, nil, err
	}

	ectx := NewExecutionContext(wf, sessionDir, opts)

	if err := fsutil.CreateDirIfNotExists(opts.OutputDir); err != nil {
		return nil, nil, fmt.Errorf("%w: failed to create output directory %s: %s", errors.ErrIO, opts.OutputDir, err.Error())
	}
	return wf, ectx, nil
}

// NewExecutionContext layers built-in, workflow and caller variables, each
// layer overriding names set by the previous one
func NewExecutionContext(wf *workflow.Workflow, sessionDir string, opts Options) *workflow.ExecutionContext {
	vars := workflow.NewVariables()
	vars.SetAll(map[string]string{
		VarSessionDir:      sessionDir,
		VarOutputDir:       opts.OutputDir,
		VarTempDir:         opts.TempDir,
		VarWorkflowName:    wf.Name,
		VarWorkflowVersion: wf.Version,
	})
	for _, v := range wf.Variables {
		vars.Set(v.Name, v.Value)
	}
	vars.SetAll(opts.Variables)

	return &workflow.ExecutionContext{
		SessionDir: sessionDir,
		OutputDir:  opts.OutputDir,
		Variables:  vars,
	}
}

// execute runs the step loop, recording into result
func (e *Engine) execute(ctx context.Context, wf *workflow.Workflow, ectx *workflow.ExecutionContext, result *workflow.ExecutionResult) {
	e.log.LogInfo("Starting workflow execution", map[string]interface{}{
		"workflow": wf.Name,
		"version":  wf.Version,
		"steps":    len(wf.Steps),
	})

	total := len(wf.Steps)
	for i, step := range wf.Steps {
		if err := ctx.Err(); err != nil {
			result.ErrorMessage = fmt.Sprintf("workflow cancelled before step %s: %s", step.Name, err.Error())
			e.log.LogError("Workflow cancelled", err, nil)
			return
		}

		if step.Condition != "" && !workflow.EvaluateCondition(step.Condition, ectx.Variables) {
			e.log.LogInfo(fmt.Sprintf("Skipping step %d/%d: %s (condition not met)", i+1, total, step.Name), map[string]interface{}{
				"condition": step.Condition,
			})
			e.metrics.StepSkipped(step.Type)
			continue
		}

		handler, ok := e.registry.Lookup(step.Type)
		if !ok {
			err := fmt.Errorf("%w: %q in step %s", errors.ErrUnknownStepType, step.Type, step.Name)
			result.ErrorMessage = err.Error()
			e.log.LogError("Unsupported step type", err, nil)
			return
		}

		e.log.LogInfo(fmt.Sprintf("Executing step %d/%d: %s", i+1, total, step.Name), map[string]interface{}{
			"type": handler.Type(),
		})

		started := time.Now()
		stepResult := handler.Execute(ctx, step, ectx)
		if stepResult == nil {
			stepResult = workflow.Failed(errors.KindProcess, fmt.Errorf("%w: executor returned no result", errors.ErrProcess))
		}
		e.metrics.StepFinished(handler.Type(), stepResult.Success, time.Since(started))
		result.Record(step.Name, stepResult)

		if !stepResult.Success {
			result.ErrorMessage = fmt.Sprintf("step %s failed: %s", step.Name, stepResult.ErrorMessage())
			var stepErr error
			if stepResult.Error != nil {
				stepErr = stepResult.Error
			}
			e.log.LogError(fmt.Sprintf("Step failed: %s", step.Name), stepErr, nil)
			return
		}
		e.log.LogInfo(fmt.Sprintf("Completed step %d/%d: %s", i+1, total, step.Name), nil)
	}

	result.Success = true
	e.log.LogSuccess("Workflow execution completed", map[string]interface{}{"workflow": wf.Name})
}

// finish records run metrics and writes the textfile when requested
func (e *Engine) finish(result *workflow.ExecutionResult, opts Options) {
	e.metrics.RunFinished(result.Success)
	if opts.MetricsFile == "" || e.metrics == nil {
		return
	}
	if err := fsutil.EnsureParentDir(opts.MetricsFile); err != nil {
		e.log.LogWarn("Failed to create metrics directory", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := e.metrics.WriteTextfile(opts.MetricsFile); err != nil {
		e.log.LogWarn("Failed to write metrics file", map[string]interface{}{
			"file":  opts.MetricsFile,
			"error": err.Error(),
		})
	}
}
