package workflow

import (
	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
)

// Defaults applied when a manifest omits the workflow attributes
const (
	DefaultName    = "Unnamed Workflow"
	DefaultVersion = "1.0"
)

// Workflow is a parsed manifest. It is not modified after parsing.
type Workflow struct {
	// Name of the workflow
	Name string

	// Version of the workflow definition
	Version string

	// Variables declared by the manifest, in declaration order
	Variables []Variable

	// Ordered list of steps to execute
	Steps []Step
}

// Variable is a single name/value declaration
type Variable struct {
	Name  string
	Value string
}

// Step is a single entry of the step list
type Step struct {
	// Type selects the executor
	Type string

	// Display name, also the key of the step's result
	Name string

	// Optional condition expression, evaluated before dispatch
	Condition string

	// Parameters keep manifest order and may repeat a key
	Parameters Params
}

// StepResult is what an executor reports for one step
type StepResult struct {
	Success            bool
	ExitCode           int
	Output             string
	Error              *errors.StepError
	InteractiveWaiting bool
}

// Succeeded builds a successful result
func Succeeded(output string) *StepResult {
	return &StepResult{Success: true, Output: output}
}

// Failed builds a failed result from err, classifying it when kind is empty
func Failed(kind errors.ErrorKind, err error) *StepResult {
	return &StepResult{Success: false, Error: errors.NewStepError(kind, err)}
}

// ErrorMessage returns the failure message or an empty string
func (r *StepResult) ErrorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return r.Error.Message
}

// ExecutionResult summarises a whole run
type ExecutionResult struct {
	Success      bool
	ErrorMessage string

	// StepResults is keyed by step name; a repeated name keeps the last result
	StepResults map[string]*StepResult

	// StepOrder lists executed step names in execution order
	StepOrder []string

	InteractiveWaiting bool
}

// NewExecutionResult creates an empty, not yet successful result
func NewExecutionResult() *ExecutionResult {
	return &ExecutionResult{StepResults: make(map[string]*StepResult)}
}

// Record stores a step's result and propagates its interactive flag
func (r *ExecutionResult) Record(name string, result *StepResult) {
	if _, seen := r.StepResults[name]; !seen {
		r.StepOrder = append(r.StepOrder, name)
	}
	r.StepResults[name] = result
	if result.InteractiveWaiting {
		r.InteractiveWaiting = true
	}
}

// ExecutionContext is shared by all steps of a run. Variables must not be
// modified once the first step has started.
type ExecutionContext struct {
	SessionDir string
	OutputDir  string
	Variables  *Variables
}

// Resolve substitutes variables into text
func (c *ExecutionContext) Resolve(text string) string {
	return c.Variables.Resolve(text)
}
