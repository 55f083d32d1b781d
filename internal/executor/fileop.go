package executor

import (
	"context"
	"fmt"
	"strings"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// File operations understood by the FileOperation step
const (
	OpCopyFile        = "CopyFile"
	OpMoveFile        = "MoveFile"
	OpDeleteFile      = "DeleteFile"
	OpCopyDirectory   = "CopyDirectory"
	OpMoveDirectory   = "MoveDirectory"
	OpDeleteDirectory = "DeleteDirectory"
	OpCreateDirectory = "CreateDirectory"
)

type fileOpFunc func(f *FileOperation, src, dst string) error

type fileOpSpec struct {
	name     string
	needsDst bool
	run      fileOpFunc
}

var fileOps = map[string]fileOpSpec{}

func init() {
	for _, op := range []fileOpSpec{
		{OpCopyFile, true, (*FileOperation).copyFile},
		{OpMoveFile, true, (*FileOperation).moveFile},
		{OpDeleteFile, false, (*FileOperation).deleteFile},
		{OpCopyDirectory, true, (*FileOperation).copyDirectory},
		{OpMoveDirectory, true, (*FileOperation).moveDirectory},
		{OpDeleteDirectory, false, (*FileOperation).deleteDirectory},
		{OpCreateDirectory, false, (*FileOperation).createDirectory},
	} {
		fileOps[strings.ToLower(op.name)] = op
	}
}

// FileOperation performs filesystem mutations selected by the Operation
// parameter. Relative paths resolve against the session directory.
type FileOperation struct {
	log *logger.Logger
}

// NewFileOperation creates the FileOperation executor
func NewFileOperation(log *logger.Logger) *FileOperation {
	return &FileOperation{log: log}
}

func (f *FileOperation) Type() string { return "FileOperation" }

// Validate implements Validator
func (f *FileOperation) Validate(step workflow.Step) []error {
	errs := requireParams(step, "Operation", "Source")
	raw := step.Parameters.Value("Operation")
	if raw == "" || strings.Contains(raw, "$") {
		return errs
	}
	op, ok := lookupFileOp(raw)
	if !ok {
		return append(errs, fmt.Errorf("%w: unknown file operation %q", errors.ErrInvalidParameter, raw))
	}
	if op.needsDst {
		errs = append(errs, requireParams(step, "Destination")...)
	}
	return errs
}

func (f *FileOperation) Execute(ctx context.Context, step workflow.Step, ectx *workflow.ExecutionContext) *workflow.StepResult {
	rawOp := strings.TrimSpace(ectx.Resolve(step.Parameters.Value("Operation")))
	if rawOp == "" {
		return configError("%w: FileOperation step requires Operation", errors.ErrMissingParameter)
	}
	op, ok := lookupFileOp(rawOp)
	if !ok {
		return configError("%w: unknown file operation %q", errors.ErrInvalidParameter, rawOp)
	}

	src := sessionPath(ectx, step.Parameters.Value("Source"))
	if src == "" {
		return configError("%w: %s requires Source", errors.ErrMissingParameter, op.name)
	}

	var dst string
	if op.needsDst {
		dst = sessionPath(ectx, step.Parameters.Value("Destination"))
		if dst == "" {
			return configError("%w: %s requires Destination", errors.ErrMissingParameter, op.name)
		}
	}

	log := f.log.WithStep(step.Name)
	log.LogInfo(fmt.Sprintf("Executing file operation: %s", op.name), map[string]interface{}{
		"source":      src,
		"destination": dst,
	})

	if err := op.run(f.withLogger(log), src, dst); err != nil {
		return workflow.Failed("", err)
	}
	return workflow.Succeeded("")
}

func (f *FileOperation) withLogger(log *logger.Logger) *FileOperation {
	return &FileOperation{log: log}
}

func lookupFileOp(name string) (fileOpSpec, bool) {
	op, ok := fileOps[strings.ToLower(strings.TrimSpace(name))]
	return op, ok
}

func (f *FileOperation) copyFile(src, dst string) error {
	if !fsutil.FileExists(src) {
		return fmt.Errorf("%w: source file %s", errors.ErrNotFound, src)
	}
	if err := fsutil.CopyFile(src, dst); err != nil {
		return ioError(err)
	}
	f.log.LogSuccess(fmt.Sprintf("Copied file: %s -> %s", src, dst), nil)
	return nil
}

func (f *FileOperation) moveFile(src, dst string) error {
	if !fsutil.FileExists(src) {
		return fmt.Errorf("%w: source file %s", errors.ErrNotFound, src)
	}
	if err := fsutil.EnsureParentDir(dst); err != nil {
		return ioError(err)
	}
	if err := fsutil.MoveFile(src, dst); err != nil {
		return ioError(err)
	}
	f.log.LogSuccess(fmt.Sprintf("Moved file: %s -> %s", src, dst), nil)
	return nil
}

func (f *FileOperation) deleteFile(src, _ string) error {
	removed, err := fsutil.DeleteFile(src)
	if err != nil {
		return ioError(err)
	}
	if !removed {
		f.log.LogWarn(fmt.Sprintf("File not found for deletion: %s", src), nil)
		return nil
	}
	f.log.LogSuccess(fmt.Sprintf("Deleted file: %s", src), nil)
	return nil
}

func (f *FileOperation) copyDirectory(src, dst string) error {
	if !fsutil.DirExists(src) {
		return fmt.Errorf("%w: source directory %s", errors.ErrNotFound, src)
	}
	if fsutil.IsWithin(src, dst) {
		return fmt.Errorf("%w: destination %s lies inside source %s", errors.ErrInvalidParameter, dst, src)
	}
	if err := fsutil.ReplaceDir(src, dst); err != nil {
		return ioError(err)
	}
	f.log.LogSuccess(fmt.Sprintf("Copied directory: %s -> %s", src, dst), nil)
	return nil
}

func (f *FileOperation) moveDirectory(src, dst string) error {
	if !fsutil.DirExists(src) {
		return fmt.Errorf("%w: source directory %s", errors.ErrNotFound, src)
	}
	if err := fsutil.MoveDir(src, dst); err != nil {
		return ioError(err)
	}
	f.log.LogSuccess(fmt.Sprintf("Moved directory: %s -> %s", src, dst), nil)
	return nil
}

func (f *FileOperation) deleteDirectory(src, _ string) error {
	if !fsutil.DirExists(src) {
		f.log.LogWarn(fmt.Sprintf("Directory not found for deletion: %s", src), nil)
		return nil
	}
	if err := fsutil.DeleteDirRecursive(src); err != nil {
		return ioError(err)
	}
	f.log.LogSuccess(fmt.Sprintf("Deleted directory: %s", src), nil)
	return nil
}

func (f *FileOperation) createDirectory(src, _ string) error {
	if fsutil.DirExists(src) {
		f.log.LogWarn(fmt.Sprintf("Directory already exists: %s", src), nil)
		return nil
	}
	if err := fsutil.CreateDirIfNotExists(src); err != nil {
		return ioError(err)
	}
	f.log.LogSuccess(fmt.Sprintf("Created directory: %s", src), nil)
	return nil
}

// ioError tags a filesystem failure as IO unless it is already classified
func ioError(err error) error {
	if errors.KindOf(err) != errors.KindIO {
		return err
	}
	return fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
}
