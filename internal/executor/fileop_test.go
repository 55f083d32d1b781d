package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func listNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestCopyDirectoryReplacesDestination(t *testing.T) {
	ectx := newTestContext(t)
	writeFile(t, filepath.Join(ectx.SessionDir, "src", "a.txt"), "a")
	writeFile(t, filepath.Join(ectx.SessionDir, "src", "nested", "c.txt"), "c")
	writeFile(t, filepath.Join(ectx.SessionDir, "dst", "b.txt"), "b")

	step := newStep("FileOperation", "copy", "Operation", "CopyDirectory", "Source", "src", "Destination", "dst")
	result := NewFileOperation(logger.NewNop()).Execute(context.Background(), step, ectx)
	require.True(t, result.Success, result.ErrorMessage())

	assert.Equal(t, []string{"a.txt", "nested"}, listNames(t, filepath.Join(ectx.SessionDir, "dst")))
	assert.FileExists(t, filepath.Join(ectx.SessionDir, "dst", "nested", "c.txt"))
}

func TestCopyDirectoryIntoItselfRejected(t *testing.T) {
	ectx := newTestContext(t)
	writeFile(t, filepath.Join(ectx.SessionDir, "src", "a.txt"), "a")

	step := newStep("FileOperation", "copy", "Operation", "CopyDirectory", "Source", "src", "Destination", "src/inner")
	result := NewFileOperation(logger.NewNop()).Execute(context.Background(), step, ectx)
	require.False(t, result.Success)
	assert.Equal(t, errors.KindConfiguration, result.Error.Kind)
}

func TestDeleteFileMissingIsSuccess(t *testing.T) {
	log, logs := observedLogger()
	ectx := newTestContext(t)

	step := newStep("FileOperation", "delete", "Operation", "DeleteFile", "Source", "gone.txt")
	result := NewFileOperation(log).Execute(context.Background(), step, ectx)
	assert.True(t, result.Success)
	assert.Equal(t, 1, logs.FilterLevelExact(zapcore.WarnLevel).Len())
}

func TestCreateDirectoryExistingIsSuccess(t *testing.T) {
	ectx := newTestContext(t)
	require.NoError(t, os.Mkdir(filepath.Join(ectx.SessionDir, "out"), 0755))

	step := newStep("FileOperation", "mkdir", "Operation", "createdirectory", "Source", "out")
	result := NewFileOperation(logger.NewNop()).Execute(context.Background(), step, ectx)
	assert.True(t, result.Success)
}

func TestFileOperations(t *testing.T) {
	fo := NewFileOperation(logger.NewNop())

	t.Run("copy file creates parent", func(t *testing.T) {
		ectx := newTestContext(t)
		writeFile(t, filepath.Join(ectx.SessionDir, "a.txt"), "a")
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "CopyFile", "Source", "a.txt", "Destination", "deep/er/b.txt"), ectx)
		require.True(t, result.Success, result.ErrorMessage())
		assert.FileExists(t, filepath.Join(ectx.SessionDir, "a.txt"))
		assert.FileExists(t, filepath.Join(ectx.SessionDir, "deep", "er", "b.txt"))
	})

	t.Run("move file", func(t *testing.T) {
		ectx := newTestContext(t)
		writeFile(t, filepath.Join(ectx.SessionDir, "a.txt"), "a")
		dst := filepath.Join(ectx.OutputDir, "sub", "a.txt")
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "MoveFile", "Source", "a.txt", "Destination", dst), ectx)
		require.True(t, result.Success, result.ErrorMessage())
		assert.NoFileExists(t, filepath.Join(ectx.SessionDir, "a.txt"))
		assert.FileExists(t, dst)
	})

	t.Run("delete file", func(t *testing.T) {
		ectx := newTestContext(t)
		writeFile(t, filepath.Join(ectx.SessionDir, "a.txt"), "a")
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "DeleteFile", "Source", "a.txt"), ectx)
		require.True(t, result.Success)
		assert.NoFileExists(t, filepath.Join(ectx.SessionDir, "a.txt"))
	})

	t.Run("move directory", func(t *testing.T) {
		ectx := newTestContext(t)
		writeFile(t, filepath.Join(ectx.SessionDir, "src", "a.txt"), "a")
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "MoveDirectory", "Source", "src", "Destination", "moved/src"), ectx)
		require.True(t, result.Success, result.ErrorMessage())
		assert.NoDirExists(t, filepath.Join(ectx.SessionDir, "src"))
		assert.FileExists(t, filepath.Join(ectx.SessionDir, "moved", "src", "a.txt"))
	})

	t.Run("delete directory", func(t *testing.T) {
		ectx := newTestContext(t)
		writeFile(t, filepath.Join(ectx.SessionDir, "src", "a.txt"), "a")
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "DeleteDirectory", "Source", "src"), ectx)
		require.True(t, result.Success)
		assert.NoDirExists(t, filepath.Join(ectx.SessionDir, "src"))
	})

	t.Run("delete missing directory", func(t *testing.T) {
		ectx := newTestContext(t)
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "DeleteDirectory", "Source", "nothing"), ectx)
		assert.True(t, result.Success)
	})

	t.Run("create directory", func(t *testing.T) {
		ectx := newTestContext(t)
		result := fo.Execute(context.Background(), newStep("FileOperation", "x", "Operation", "CreateDirectory", "Source", "a/b/c"), ectx)
		require.True(t, result.Success)
		assert.DirExists(t, filepath.Join(ectx.SessionDir, "a", "b", "c"))
	})
}

func TestFileOperationFailures(t *testing.T) {
	fo := NewFileOperation(logger.NewNop())

	tests := []struct {
		name string
		kv   []string
		kind errors.ErrorKind
	}{
		{"missing source file", []string{"Operation", "CopyFile", "Source", "nope.txt", "Destination", "b.txt"}, errors.KindNotFound},
		{"missing source directory", []string{"Operation", "MoveDirectory", "Source", "nope", "Destination", "b"}, errors.KindNotFound},
		{"move directory onto existing", []string{"Operation", "MoveDirectory", "Source", "src", "Destination", "dst"}, errors.KindIO},
		{"move file onto existing", []string{"Operation", "MoveFile", "Source", "src/a.txt", "Destination", "dst/b.txt"}, errors.KindIO},
		{"unknown operation", []string{"Operation", "Shred", "Source", "a.txt"}, errors.KindConfiguration},
		{"missing operation", []string{"Source", "a.txt"}, errors.KindConfiguration},
		{"missing source", []string{"Operation", "DeleteFile"}, errors.KindConfiguration},
		{"missing destination", []string{"Operation", "CopyFile", "Source", "a.txt"}, errors.KindConfiguration},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ectx := newTestContext(t)
			writeFile(t, filepath.Join(ectx.SessionDir, "src", "a.txt"), "a")
			writeFile(t, filepath.Join(ectx.SessionDir, "dst", "b.txt"), "b")

			result := fo.Execute(context.Background(), newStep("FileOperation", "x", tt.kv...), ectx)
			require.False(t, result.Success)
			assert.Equal(t, tt.kind, result.Error.Kind)
		})
	}
}

func TestFileOperationValidate(t *testing.T) {
	fo := NewFileOperation(logger.NewNop())

	assert.Empty(t, fo.Validate(newStep("FileOperation", "x", "Operation", "DeleteFile", "Source", "a")))
	assert.Len(t, fo.Validate(newStep("FileOperation", "x", "Operation", "CopyFile", "Source", "a")), 1)
	assert.Len(t, fo.Validate(newStep("FileOperation", "x", "Operation", "Shred", "Source", "a")), 1)
	assert.Empty(t, fo.Validate(newStep("FileOperation", "x", "Operation", "${Op}", "Source", "a")))
}
