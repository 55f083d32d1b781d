package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/executor"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

func TestValidateWorkflow(t *testing.T) {
	registry := executor.NewDefaultRegistry(executor.Options{Logger: logger.NewNop()})

	download := workflow.Step{Type: "download", Name: "fetch"}
	download.Parameters.Add("Url", "https://example.com/fw.bin")

	tool := workflow.Step{Type: "Tool", Name: "flash"}

	wf := &workflow.Workflow{
		Variables: []workflow.Variable{{Name: "", Value: "x"}},
		Steps:     []workflow.Step{download, tool, {Type: "Unknown", Name: "mystery"}},
	}

	errs := ValidateWorkflow(wf, registry)
	assert.Len(t, errs, 4)
	for _, err := range errs {
		assert.ErrorIs(t, err, errors.ErrConfiguration)
	}
}

func TestValidateEmptyWorkflow(t *testing.T) {
	errs := ValidateWorkflow(&workflow.Workflow{}, executor.NewRegistry())
	assert.Len(t, errs, 1)
}
