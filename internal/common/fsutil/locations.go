// fsutil/locations.go
package fsutil

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/osutil"
)

// GetHomeDir returns the user's home directory
func GetHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine home directory: %w", err)
	}
	return home, nil
}

// GetConfigDir returns the per-user configuration directory for the application
func GetConfigDir(appName string) (string, error) {
	if osutil.IsDevEnvironment() {
		return "config", nil
	}

	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}

	switch osutil.GetOSType() {
	case osutil.Windows:
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return filepath.Join(appData, appName), nil

	case osutil.MacOS:
		return filepath.Join(home, "Library", "Application Support", appName), nil

	default:
		configHome := os.Getenv("XDG_CONFIG_HOME")
		if configHome == "" {
			configHome = filepath.Join(home, ".config")
		}
		return filepath.Join(configHome, appName), nil
	}
}

// GetSystemConfigDir returns the system-wide configuration directory
func GetSystemConfigDir(appName string) string {
	switch osutil.GetOSType() {
	case osutil.Windows:
		return filepath.Join(programData(), appName)
	case osutil.MacOS:
		return filepath.Join("/Library", "Application Support", appName)
	default:
		return filepath.Join("/etc", appName)
	}
}

// GetLogDir returns the appropriate log directory for the application
func GetLogDir(appName string) (string, error) {
	if osutil.IsDevEnvironment() {
		return "logs", nil
	}

	home, err := GetHomeDir()
	if err != nil {
		return "", err
	}

	switch osutil.GetOSType() {
	case osutil.Windows:
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(home, "AppData", "Local")
		}
		return filepath.Join(localAppData, appName, "Logs"), nil

	case osutil.MacOS:
		return filepath.Join(home, "Library", "Logs", appName), nil

	default:
		if stateHome := os.Getenv("XDG_STATE_HOME"); stateHome != "" {
			return filepath.Join(stateHome, appName, "logs"), nil
		}
		dataHome := os.Getenv("XDG_DATA_HOME")
		if dataHome == "" {
			dataHome = filepath.Join(home, ".local", "share")
		}
		return filepath.Join(dataHome, appName, "logs"), nil
	}
}

// GetTempDir returns the root under which session directories are created
func GetTempDir(appName string) string {
	if osutil.IsWindows() {
		// Flashing stations keep scratch space on the system drive
		return filepath.Join(systemDrive()+`\`, "FWF", "temp")
	}
	return filepath.Join(os.TempDir(), appName, "temp")
}

// GetOutputDir returns the default output directory for workflow artifacts
func GetOutputDir(appName string) string {
	if osutil.IsWindows() {
		return filepath.Join(systemDrive()+`\`, "FWF", "output")
	}
	return filepath.Join(os.TempDir(), appName, "output")
}

func programData() string {
	if pd := os.Getenv("ProgramData"); pd != "" {
		return pd
	}
	return filepath.Join(systemDrive()+`\`, "ProgramData")
}

func systemDrive() string {
	if drive := os.Getenv("SystemDrive"); drive != "" {
		return drive
	}
	return "C:"
}
