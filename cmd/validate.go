package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-flash-workflow/internal/engine"
)

// validateCmd checks a bundle without running it
var validateCmd = &cobra.Command{
	Use:   "validate <archive>",
	Short: "Check a workflow bundle without running its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := engine.NewFromConfig(appConfig, appLog, nil, nil)

		wf, problems, err := eng.Validate(args[0], engine.OptionsFromConfig(appConfig))
		if err != nil {
			return err
		}

		for _, problem := range problems {
			appLog.LogError("Workflow validation error", problem, nil)
		}
		if len(problems) > 0 {
			return fmt.Errorf("workflow validation failed with %d errors", len(problems))
		}

		appLog.LogSuccess("Workflow is valid", map[string]interface{}{
			"workflow": wf.Name,
			"version":  wf.Version,
			"steps":    len(wf.Steps),
		})
		return nil
	},
}
