package engine

import (
	"github.com/deploymenttheory/go-flash-workflow/internal/config"
	"github.com/deploymenttheory/go-flash-workflow/internal/executor"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
)

// NewFromConfig builds an engine with every built-in executor configured
// from cfg. rec may be nil.
func NewFromConfig(cfg *config.AppConfig, log *logger.Logger, rec *metrics.Recorder, ack executor.Acknowledger) *Engine {
	registry := executor.NewDefaultRegistry(executor.Options{
		Logger:  log,
		Metrics: rec,
		Download: executor.DownloadConfig{
			RetryCount: cfg.Download.RetryCount,
			Backoff:    cfg.Download.Backoff,
			ChunkSize:  cfg.Download.ChunkSize,
			Timeout:    cfg.Download.Timeout,
		},
		Tool: executor.ToolConfig{
			Timeout:      cfg.Tool.Timeout,
			KillGrace:    cfg.Tool.KillGrace,
			Acknowledger: ack,
		},
		Scan: executor.ScanConfig{
			APIKey:        cfg.Scan.APIKey,
			Host:          cfg.Scan.Host,
			MaxDetections: cfg.Scan.MaxDetections,
		},
	})
	return New(log, registry, WithMetrics(rec))
}

// OptionsFromConfig maps the configured paths onto run options
func OptionsFromConfig(cfg *config.AppConfig) Options {
	return Options{
		TempDir:      cfg.Paths.TempDir,
		OutputDir:    cfg.Paths.OutputDir,
		WorkflowFile: cfg.Workflow.FileName,
		MetricsFile:  cfg.Metrics.File,
	}
}
