package fsutil

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// DirExists reports whether path names an existing directory
func DirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// CreateDirIfNotExists creates path and any missing parents with 0755
func CreateDirIfNotExists(path string) error {
	if DirExists(path) {
		return nil
	}
	return os.MkdirAll(path, 0755)
}

// DeleteDirRecursive removes a directory tree. A missing tree is not an error.
func DeleteDirRecursive(path string) error {
	if !DirExists(path) {
		return nil
	}
	return os.RemoveAll(path)
}

// CopyDir copies the tree rooted at src into dst, overwriting files that
// share a relative path. Files only present in dst are left alone.
func CopyDir(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	return filepath.WalkDir(src, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case d.IsDir():
			dirInfo, err := d.Info()
			if err != nil {
				return err
			}
			return os.MkdirAll(target, dirInfo.Mode().Perm()|0700)
		case d.Type()&fs.ModeSymlink != 0:
			return CopySymlink(path, target)
		default:
			return CopyFile(path, target)
		}
	})
}

// ReplaceDir makes dst an exact copy of src: anything already in dst is
// deleted first. A failure midway leaves a partial tree.
func ReplaceDir(src, dst string) error {
	if err := DeleteDirRecursive(dst); err != nil {
		return fmt.Errorf("error removing existing destination: %w", err)
	}
	return CopyDir(src, dst)
}

// MoveDir renames src to dst, which must not exist yet. A rename across
// devices falls back to copy and delete.
func MoveDir(src, dst string) error {
	if PathExists(dst) {
		return fmt.Errorf("cannot move %s: destination %s: %w", src, dst, fs.ErrExist)
	}
	if err := EnsureParentDir(dst); err != nil {
		return err
	}

	err := os.Rename(src, dst)
	if err == nil || !isCrossDevice(err) {
		return err
	}

	if err := CopyDir(src, dst); err != nil {
		return err
	}
	return DeleteDirRecursive(src)
}

// CopySymlink recreates the link at src as dst, pointing at the same target
func CopySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}
	if err := EnsureParentDir(dst); err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return err
	}
	return os.Symlink(target, dst)
}
