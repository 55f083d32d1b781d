// Package executor implements the step types a workflow can dispatch to.
package executor

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	download "github.com/deploymenttheory/go-flash-workflow/internal/common/netutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// Executor performs one step type. Execute never panics or returns a bare
// error: every fault is reported through the StepResult.
type Executor interface {
	Type() string
	Execute(ctx context.Context, step workflow.Step, ectx *workflow.ExecutionContext) *workflow.StepResult
}

// Validator is implemented by executors that can check a step's parameters
// before anything runs
type Validator interface {
	Validate(step workflow.Step) []error
}

// Registry maps step type names to executors. Lookups ignore case.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry creates a registry holding the given executors
func NewRegistry(executors ...Executor) *Registry {
	r := &Registry{executors: make(map[string]Executor)}
	for _, e := range executors {
		r.Register(e)
	}
	return r
}

// Register adds or replaces the executor for e.Type()
func (r *Registry) Register(e Executor) {
	r.executors[strings.ToLower(e.Type())] = e
}

// Lookup finds the executor for a step type
func (r *Registry) Lookup(stepType string) (Executor, bool) {
	e, ok := r.executors[strings.ToLower(strings.TrimSpace(stepType))]
	return e, ok
}

// Types lists the registered type names
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.executors))
	for _, e := range r.executors {
		types = append(types, e.Type())
	}
	sort.Strings(types)
	return types
}

// DownloadConfig tunes the Download executor
type DownloadConfig struct {
	RetryCount   int
	Backoff      time.Duration
	ChunkSize    int
	Timeout      time.Duration
	BucketOpener download.BucketOpener

	// Sleep waits between attempts; nil uses a timer bound to ctx
	Sleep func(ctx context.Context, d time.Duration) error
}

// ToolConfig tunes the tool executor
type ToolConfig struct {
	Timeout      time.Duration
	KillGrace    time.Duration
	Acknowledger Acknowledger
}

// ScanConfig configures VirusTotal lookups for Scan steps
type ScanConfig struct {
	APIKey        string
	Host          string
	MaxDetections int
}

// Options carries what the built-in executors need
type Options struct {
	Logger   *logger.Logger
	Metrics  *metrics.Recorder
	Download DownloadConfig
	Tool     ToolConfig
	Scan     ScanConfig
}

// NewDefaultRegistry registers every built-in step type
func NewDefaultRegistry(opts Options) *Registry {
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return NewRegistry(
		NewTool(opts.Logger, opts.Tool),
		NewDownload(opts.Logger, opts.Metrics, opts.Download),
		NewFileOperation(opts.Logger),
		NewExtract(opts.Logger),
		NewScan(opts.Logger, opts.Scan),
	)
}

// configError builds a failed result for a bad or missing parameter
func configError(format string, args ...interface{}) *workflow.StepResult {
	return workflow.Failed(errors.KindConfiguration, fmt.Errorf(format, args...))
}

// requireParams reports every listed parameter that is absent or blank
func requireParams(step workflow.Step, keys ...string) []error {
	var errs []error
	for _, key := range keys {
		if !step.Parameters.Has(key) {
			errs = append(errs, fmt.Errorf("%w: %s step requires %s", errors.ErrMissingParameter, step.Type, key))
		}
	}
	return errs
}

// sessionPath resolves a step path parameter against the session directory
func sessionPath(ectx *workflow.ExecutionContext, raw string) string {
	resolved := ectx.Resolve(raw)
	if resolved == "" {
		return ""
	}
	return fsutil.ResolvePath(ectx.SessionDir, resolved)
}
