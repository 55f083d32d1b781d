package engine

import (
	"fmt"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/executor"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// ValidateWorkflow checks the workflow structure and the parameters of each
// step, collecting every problem instead of stopping at the first
func ValidateWorkflow(wf *workflow.Workflow, registry *executor.Registry) []error {
	var errs []error

	if len(wf.Steps) == 0 {
		errs = append(errs, fmt.Errorf("%w: workflow must contain at least one step", errors.ErrInvalidManifest))
	}

	for _, v := range wf.Variables {
		if v.Name == "" {
			errs = append(errs, fmt.Errorf("%w: variable without a name", errors.ErrInvalidManifest))
		}
	}

	for i, step := range wf.Steps {
		handler, ok := registry.Lookup(step.Type)
		if !ok {
			errs = append(errs, fmt.Errorf("step %d (%s): %w: %q", i+1, step.Name, errors.ErrUnknownStepType, step.Type))
			continue
		}

		validator, ok := handler.(executor.Validator)
		if !ok {
			continue
		}
		for _, err := range validator.Validate(step) {
			errs = append(errs, fmt.Errorf("step %d (%s): %w", i+1, step.Name, err))
		}
	}

	return errs
}
