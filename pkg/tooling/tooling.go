// Package tooling embeds the flashwf engine in other Go programs.
package tooling

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-flash-workflow/internal/config"
	"github.com/deploymenttheory/go-flash-workflow/internal/engine"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// InitOptions contains options for initializing the tooling API
type InitOptions struct {
	ConfigFile  string // Path to configuration file
	Debug       bool   // Enable debug logging
	LogFormat   string // Log format: "human" or "json"
	LogFile     string // Path to log file
	SuppressLog bool   // Suppress all logging
}

// RunOptions override the configured paths for a single run
type RunOptions struct {
	OutputDir    string
	TempDir      string
	WorkflowFile string
	KeepTemp     bool
	Variables    map[string]string

	// Acknowledger answers interactive commands; nil waits for a key press
	Acknowledger Acknowledger
}

// Acknowledger blocks until an operator confirms an interactive command
type Acknowledger interface {
	Acknowledge(ctx context.Context, prompt string) error
}

// StepSummary is the outcome of one executed step
type StepSummary struct {
	Name               string
	Success            bool
	ExitCode           int
	Output             string
	ErrorKind          string
	ErrorMessage       string
	InteractiveWaiting bool
}

// WorkflowResult contains the results of a workflow execution
type WorkflowResult struct {
	Success            bool          // Whether the workflow completed successfully
	ErrorMessage       string        // Error message if any
	Steps              []StepSummary // Executed steps in order
	InteractiveWaiting bool          // Whether any step waited for the operator
}

var (
	mu          sync.Mutex
	initialized bool
	appConfig   *config.AppConfig
	appLog      *logger.Logger
)

// Initialize initializes the tooling API with the given options
func Initialize(options InitOptions) error {
	mu.Lock()
	defer mu.Unlock()
	return initLocked(options)
}

func initLocked(options InitOptions) error {
	if initialized {
		return nil
	}

	cfg, err := config.Load(options.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if options.Debug {
		cfg.Debug = true
	}
	if options.LogFormat != "" {
		cfg.LogFormat = options.LogFormat
	}
	if options.LogFile != "" {
		cfg.LogFile = options.LogFile
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.NewNop()
	if !options.SuppressLog {
		log, err = logger.New(logger.Config{
			Debug:     cfg.Debug,
			LogFormat: cfg.LogFormat,
			LogFile:   cfg.LogFile,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	log.LogInfo("Tooling API initialized", map[string]interface{}{
		"config_file": cfg.ConfigFile,
		"debug":       cfg.Debug,
		"log_format":  cfg.LogFormat,
	})

	appConfig, appLog = cfg, log
	initialized = true
	return nil
}

// DefaultOptions returns the default initialization options
func DefaultOptions() InitOptions {
	return InitOptions{
		LogFormat: "human",
	}
}

// ensure initializes with defaults when the caller did not
func ensure() (*config.AppConfig, *logger.Logger, error) {
	mu.Lock()
	defer mu.Unlock()
	if err := initLocked(DefaultOptions()); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tooling API: %w", err)
	}
	return appConfig, appLog, nil
}

// RunBundle executes the bundle at archivePath. A failed run returns both
// the partial result and an error.
func RunBundle(ctx context.Context, archivePath string, options RunOptions) (*WorkflowResult, error) {
	cfg, log, err := ensure()
	if err != nil {
		return nil, err
	}

	eng := engine.NewFromConfig(cfg, log, metrics.NewRecorder(), options.Acknowledger)
	result := eng.Run(ctx, archivePath, runOptions(cfg, options))

	summary := summarize(result)
	if !summary.Success {
		return summary, fmt.Errorf("workflow execution failed: %s", summary.ErrorMessage)
	}
	return summary, nil
}

// ValidateBundle checks a bundle without running it
func ValidateBundle(archivePath string, options RunOptions) error {
	cfg, log, err := ensure()
	if err != nil {
		return err
	}

	eng := engine.NewFromConfig(cfg, log, nil, nil)
	_, problems, err := eng.Validate(archivePath, runOptions(cfg, options))
	if err != nil {
		return err
	}
	if len(problems) == 0 {
		return nil
	}

	messages := make([]string, 0, len(problems))
	for _, p := range problems {
		messages = append(messages, p.Error())
	}
	return fmt.Errorf("workflow validation failed with %d errors: %s", len(problems), strings.Join(messages, "; "))
}

func runOptions(cfg *config.AppConfig, options RunOptions) engine.Options {
	opts := engine.OptionsFromConfig(cfg)
	if options.OutputDir != "" {
		opts.OutputDir = options.OutputDir
	}
	if options.TempDir != "" {
		opts.TempDir = options.TempDir
	}
	if options.WorkflowFile != "" {
		opts.WorkflowFile = options.WorkflowFile
	}
	opts.KeepTemp = options.KeepTemp
	opts.Variables = options.Variables
	return opts
}

func summarize(result *workflow.ExecutionResult) *WorkflowResult {
	summary := &WorkflowResult{
		Success:            result.Success,
		ErrorMessage:       result.ErrorMessage,
		InteractiveWaiting: result.InteractiveWaiting,
	}
	for _, name := range result.StepOrder {
		sr := result.StepResults[name]
		step := StepSummary{
			Name:               name,
			Success:            sr.Success,
			ExitCode:           sr.ExitCode,
			Output:             sr.Output,
			InteractiveWaiting: sr.InteractiveWaiting,
		}
		if sr.Error != nil {
			step.ErrorKind = string(sr.Error.Kind)
			step.ErrorMessage = sr.Error.Message
		}
		summary.Steps = append(summary.Steps, step)
	}
	return summary
}

// GetVersion returns the current version of the tooling API
func GetVersion() string {
	return "0.1.0"
}

// Shutdown flushes the logger
func Shutdown() error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		appLog.LogInfo("Tooling API shutting down", nil)
		_ = appLog.Sync()
	}
	return nil
}
