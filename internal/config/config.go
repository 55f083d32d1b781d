package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/osutil"
)

const (
	// AppName is the application name used for config files and directories
	AppName = "flashwf"

	// EnvPrefix is the prefix for environment variables
	EnvPrefix = "FLASHWF"
)

// AppConfig holds the application configuration
type AppConfig struct {
	// Core settings
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`
	LogFile   string `mapstructure:"log_file"`

	Paths struct {
		TempDir   string `mapstructure:"temp_dir"`
		OutputDir string `mapstructure:"output_dir"`
	} `mapstructure:"paths"`

	Workflow struct {
		FileName string `mapstructure:"file_name"`
	} `mapstructure:"workflow"`

	Download struct {
		RetryCount int           `mapstructure:"retry_count"`
		Backoff    time.Duration `mapstructure:"backoff"`
		ChunkSize  int           `mapstructure:"chunk_size"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"download"`

	Tool struct {
		Timeout   time.Duration `mapstructure:"timeout"`
		KillGrace time.Duration `mapstructure:"kill_grace"`
	} `mapstructure:"tool"`

	// VirusTotal lookups for Scan steps
	Scan struct {
		APIKey        string `mapstructure:"api_key"`
		Host          string `mapstructure:"host"`
		MaxDetections int    `mapstructure:"max_detections"`
	} `mapstructure:"scan"`

	Metrics struct {
		File string `mapstructure:"file"`
	} `mapstructure:"metrics"`

	// ConfigFile is the file the settings were read from, empty when only
	// defaults and environment were used
	ConfigFile string `mapstructure:"-"`
}

// Load reads configuration from defaults, an optional file and the environment.
// An explicit cfgFile must exist; otherwise a missing file is not an error.
func Load(cfgFile string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(AppName)
		v.SetConfigType("yaml")
		addSearchPaths(v)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}
	cfg.ConfigFile = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration produced by defaults alone
func Default() *AppConfig {
	v := viper.New()
	setDefaults(v)

	var cfg AppConfig
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate checks value ranges that viper cannot express
func (c *AppConfig) Validate() error {
	switch c.LogFormat {
	case "human", "json":
	default:
		return fmt.Errorf("invalid log_format %q: expected human or json", c.LogFormat)
	}
	if c.Download.RetryCount < 1 {
		return fmt.Errorf("download.retry_count must be at least 1, got %d", c.Download.RetryCount)
	}
	if c.Download.ChunkSize < 1 {
		return fmt.Errorf("download.chunk_size must be positive, got %d", c.Download.ChunkSize)
	}
	if c.Tool.Timeout <= 0 {
		return fmt.Errorf("tool.timeout must be positive, got %s", c.Tool.Timeout)
	}
	return nil
}

// setDefaults sets default values for configuration
func setDefaults(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "human")

	if logDir, err := fsutil.GetLogDir(AppName); err == nil {
		v.SetDefault("log_file", filepath.Join(logDir, "flashwf.log"))
	} else {
		v.SetDefault("log_file", "")
	}

	v.SetDefault("paths.temp_dir", fsutil.GetTempDir(AppName))
	v.SetDefault("paths.output_dir", fsutil.GetOutputDir(AppName))

	v.SetDefault("workflow.file_name", "workflow.xml")

	v.SetDefault("download.retry_count", 3)
	v.SetDefault("download.backoff", 2*time.Second)
	v.SetDefault("download.chunk_size", 8192)
	v.SetDefault("download.timeout", 10*time.Minute)

	v.SetDefault("tool.timeout", 30*time.Minute)
	v.SetDefault("tool.kill_grace", 5*time.Second)

	v.SetDefault("scan.api_key", "")
	v.SetDefault("scan.host", "")
	v.SetDefault("scan.max_detections", 0)

	v.SetDefault("metrics.file", "")
}

// addSearchPaths adds config search paths
func addSearchPaths(v *viper.Viper) {
	v.AddConfigPath(".")

	if osutil.IsDevEnvironment() {
		if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
			v.AddConfigPath(configDir)
		}
		return
	}

	if osutil.IsRunningInPipeline() {
		v.AddConfigPath(fsutil.GetSystemConfigDir(AppName))
		return
	}

	if configDir, err := fsutil.GetConfigDir(AppName); err == nil {
		v.AddConfigPath(configDir)
	}
	v.AddConfigPath(fsutil.GetSystemConfigDir(AppName))
}
