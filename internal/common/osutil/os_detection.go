package osutil

import (
	"os"
	"runtime"
)

const (
	Windows = "windows"
	MacOS   = "darwin"
)

// GetOSType returns runtime.GOOS
func GetOSType() string {
	return runtime.GOOS
}

// IsWindows reports whether commands run under cmd.exe and paths use drive letters
func IsWindows() bool {
	return GetOSType() == Windows
}

// IsDevEnvironment reports whether FLASHWF_ENV=development or FLASHWF_DEV=true.
// Development runs keep configuration and logs under the working directory.
func IsDevEnvironment() bool {
	return os.Getenv("FLASHWF_ENV") == "development" ||
		os.Getenv("FLASHWF_DEV") == "true"
}

// IsRunningInPipeline reports whether a CI system is driving the run, in
// which case only the system-wide configuration directory is searched.
func IsRunningInPipeline() bool {
	return os.Getenv("CI") == "true" ||
		os.Getenv("GITHUB_ACTIONS") == "true" ||
		os.Getenv("JENKINS_URL") != ""
}

// Shell returns the command interpreter Tool steps run under and the flag
// that makes it execute a single command line.
func Shell() (string, string) {
	if IsWindows() {
		if comspec := os.Getenv("ComSpec"); comspec != "" {
			return comspec, "/c"
		}
		return "cmd.exe", "/c"
	}
	return "/bin/sh", "-c"
}
