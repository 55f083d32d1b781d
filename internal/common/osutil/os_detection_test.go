package osutil

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShell(t *testing.T) {
	shell, flag := Shell()
	if runtime.GOOS == Windows {
		assert.Equal(t, "/c", flag)
		return
	}
	assert.Equal(t, "/bin/sh", shell)
	assert.Equal(t, "-c", flag)
}

func TestEnvironmentDetection(t *testing.T) {
	t.Setenv("FLASHWF_ENV", "")
	t.Setenv("FLASHWF_DEV", "true")
	assert.True(t, IsDevEnvironment())

	t.Setenv("FLASHWF_DEV", "")
	assert.False(t, IsDevEnvironment())

	t.Setenv("CI", "")
	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("JENKINS_URL", "http://jenkins.local")
	assert.True(t, IsRunningInPipeline())
}
