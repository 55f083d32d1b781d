package main

import (
	"fmt"
	"os"

	"github.com/deploymenttheory/go-flash-workflow/cmd"
	"github.com/deploymenttheory/go-flash-workflow/internal/config"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	// A --config flag reloads this later; the environment variable lets the
	// logger pick up a config file before flags are parsed
	cfg, err := config.Load(os.Getenv("FLASHWF_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing configuration: %v\n", err)
		return 1
	}

	log, err := logger.New(logger.Config{
		Debug:     cfg.Debug,
		LogFormat: cfg.LogFormat,
		LogFile:   cfg.LogFile,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		return 1
	}
	defer log.Sync()

	log.LogDebug("Application started", map[string]interface{}{
		"version":     cmd.Version,
		"config_file": cfg.ConfigFile,
	})

	return cmd.Execute(cfg, log, os.Args[1:])
}
