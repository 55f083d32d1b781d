// fsutil/files.go
package fsutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileExists checks if a file exists and is not a directory
func FileExists(path string) bool {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// PathExists checks if anything exists at path
func PathExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// EnsureParentDir creates the parent directory of path if it is missing
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return CreateDirIfNotExists(dir)
}

// CopyFile copies a file from source to destination, overwriting the destination
func CopyFile(src, dst string) error {
	// Lock both source and destination to prevent concurrent modifications
	unlock := acquireMutexes(src, dst)
	defer unlock()

	return copyFileLocked(src, dst)
}

func copyFileLocked(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer sourceFile.Close()

	sourceInfo, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("error getting source file info: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("error creating destination directory: %w", err)
	}

	destFile, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, sourceInfo.Mode().Perm())
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}

	if _, err = io.Copy(destFile, sourceFile); err != nil {
		destFile.Close()
		return fmt.Errorf("error copying file: %w", err)
	}
	if err := destFile.Close(); err != nil {
		return fmt.Errorf("error closing destination file: %w", err)
	}

	// Set the same permissions
	if err = os.Chmod(dst, sourceInfo.Mode().Perm()); err != nil {
		return fmt.Errorf("error setting file permissions: %w", err)
	}

	return nil
}

// MoveFile moves a file to dst, which must not exist yet. A rename across
// devices falls back to copy and delete.
func MoveFile(src, dst string) error {
	unlock := acquireMutexes(src, dst)
	defer unlock()

	if PathExists(dst) {
		return fmt.Errorf("cannot move %s: destination %s: %w", src, dst, fs.ErrExist)
	}

	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}

	if err := copyFileLocked(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

// DeleteFile deletes a file. It reports whether a file was actually removed.
func DeleteFile(path string) (bool, error) {
	mu := GetPathMutex(path)
	mu.Lock()
	defer mu.Unlock()

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, nil
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return true, nil
}
