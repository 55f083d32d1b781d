package executor

import (
	"context"
	"fmt"

	compression "github.com/deploymenttheory/go-flash-workflow/internal/common/compressionutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// Extract unpacks an archive that a previous step placed in the session
type Extract struct {
	log *logger.Logger
}

// NewExtract creates the Extract executor
func NewExtract(log *logger.Logger) *Extract {
	return &Extract{log: log}
}

func (e *Extract) Type() string { return "Extract" }

// Validate implements Validator
func (e *Extract) Validate(step workflow.Step) []error {
	errs := requireParams(step, "Source", "Destination")
	if raw, ok := step.Parameters.Get("Format"); ok {
		if _, err := compression.ParseFormat(raw); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s", errors.ErrInvalidParameter, err.Error()))
		}
	}
	return errs
}

func (e *Extract) Execute(ctx context.Context, step workflow.Step, ectx *workflow.ExecutionContext) *workflow.StepResult {
	src := sessionPath(ectx, step.Parameters.Value("Source"))
	if src == "" {
		return configError("%w: Extract step requires Source", errors.ErrMissingParameter)
	}
	dst := sessionPath(ectx, step.Parameters.Value("Destination"))
	if dst == "" {
		return configError("%w: Extract step requires Destination", errors.ErrMissingParameter)
	}
	format, err := compression.ParseFormat(ectx.Resolve(step.Parameters.Value("Format")))
	if err != nil {
		return configError("%w: %s", errors.ErrInvalidParameter, err.Error())
	}

	log := e.log.WithStep(step.Name)
	log.LogInfo("Extracting archive", map[string]interface{}{
		"source":      src,
		"destination": dst,
		"format":      string(format),
	})

	if err := compression.ExtractArchive(src, dst, format); err != nil {
		return workflow.Failed("", err)
	}

	log.LogSuccess("Archive extracted", nil)
	return workflow.Succeeded("")
}
