package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/config"
	"github.com/deploymenttheory/go-flash-workflow/internal/engine"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

var (
	cfgFile   string
	appConfig *config.AppConfig
	appLog    *logger.Logger
)

// Run flags shared by the root and validate commands
var (
	outputDir    string
	workflowFile string
	tempDir      string
	verbose      bool
	keepTemp     bool
	logFormat    string
	metricsFile  string
	variables    []string
)

// rootCmd runs a bundle
var rootCmd = &cobra.Command{
	Use:   "flashwf <archive>",
	Short: "Run a flash workflow bundle",
	Long: `flashwf unpacks a workflow bundle into a fresh session directory and
executes the steps of its manifest in order: downloads, file operations,
archive extraction, scans and external tools.

The run stops at the first failing step and the session directory is
removed afterwards unless --keep-temp is given.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return applyFlags(cmd)
	},
	RunE: runBundle,
}

// Execute runs the command tree and returns the process exit status
func Execute(cfg *config.AppConfig, log *logger.Logger, args []string) int {
	appConfig, appLog = cfg, log

	normalized, err := NormalizeArgs(args)
	if err != nil {
		appLog.LogError("Invalid arguments", err, nil)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetArgs(normalized)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		appLog.LogError("Command execution failed", err, nil)
		return 1
	}
	return 0
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is search in standard locations)")
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output", "o", "", "output directory exposed as ${OutputDir}")
	rootCmd.PersistentFlags().StringVarP(&workflowFile, "workflow", "w", "", "manifest file name inside the bundle")
	rootCmd.PersistentFlags().StringVarP(&tempDir, "temp", "t", "", "root directory for session directories")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or human")

	rootCmd.Flags().BoolVar(&keepTemp, "keep-temp", false, "keep the session directory after the run")
	rootCmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write run metrics to this textfile")
	rootCmd.Flags().StringArrayVar(&variables, "var", nil, "variable override Name=Value (also --var:Name=Value)")

	rootCmd.AddCommand(validateCmd, packCmd, versionCmd)
}

// applyFlags reloads the config file when one was named and lets explicit
// flags override configured values
func applyFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("config") && cfgFile != "" {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		appConfig = cfg
	}
	if appConfig == nil {
		appConfig = config.Default()
	}

	if flags.Changed("output") {
		appConfig.Paths.OutputDir = outputDir
	}
	if flags.Changed("workflow") {
		appConfig.Workflow.FileName = workflowFile
	}
	if flags.Changed("temp") {
		appConfig.Paths.TempDir = tempDir
	}
	if flags.Changed("metrics-file") {
		appConfig.Metrics.File = metricsFile
	}

	rebuildLogger := flags.Changed("config")
	if flags.Changed("verbose") {
		appConfig.Debug = verbose
		rebuildLogger = true
	}
	if flags.Changed("log-format") {
		appConfig.LogFormat = logFormat
		rebuildLogger = true
	}

	if err := appConfig.Validate(); err != nil {
		return err
	}

	if rebuildLogger || appLog == nil {
		log, err := logger.New(logger.Config{
			Debug:     appConfig.Debug,
			LogFormat: appConfig.LogFormat,
			LogFile:   appConfig.LogFile,
		})
		if err != nil {
			return err
		}
		appLog = log
	}
	return nil
}

func runBundle(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		_ = cmd.Usage()
		return fmt.Errorf("%w: an archive path is required", errors.ErrMissingParameter)
	}

	vars, err := ParseVars(variables)
	if err != nil {
		return err
	}

	rec := metrics.NewRecorder()
	eng := engine.NewFromConfig(appConfig, appLog, rec, nil)

	opts := engine.OptionsFromConfig(appConfig)
	opts.KeepTemp = keepTemp
	opts.Variables = vars

	appLog.LogInfo("Running workflow bundle", map[string]interface{}{
		"archive":    args[0],
		"output_dir": opts.OutputDir,
		"temp_dir":   opts.TempDir,
	})

	result := eng.Run(cmd.Context(), args[0], opts)
	reportResult(result)

	if !result.Success {
		return fmt.Errorf("workflow failed: %s", result.ErrorMessage)
	}
	return nil
}

// reportResult logs one line per executed step and the overall verdict
func reportResult(result *workflow.ExecutionResult) {
	for _, name := range result.StepOrder {
		sr := result.StepResults[name]
		fields := map[string]interface{}{"step": name, "success": sr.Success}
		if sr.ExitCode != 0 {
			fields["exit_code"] = sr.ExitCode
		}
		if sr.Error != nil {
			fields["error_kind"] = string(sr.Error.Kind)
		}
		appLog.LogDebug("Step result", fields)
	}

	if result.InteractiveWaiting {
		appLog.LogInfo("Workflow contained interactive commands", nil)
	}

	if result.Success {
		appLog.LogSuccess("Execution finished: success", nil)
	} else {
		appLog.LogError("Execution finished: failure", nil, map[string]interface{}{"reason": result.ErrorMessage})
	}
}
