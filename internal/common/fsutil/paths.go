// fsutil/paths.go
package fsutil

import (
	"os"
	"path/filepath"
	"strings"
)

// PathSeparator returns the OS-specific path separator character
func PathSeparator() string {
	return string(os.PathSeparator)
}

// CleanPath cleans a path by removing redundant separators and resolving ".." and "."
func CleanPath(path string) string {
	return filepath.Clean(path)
}

// ToOSSeparators rewrites forward slashes to the OS separator without cleaning
func ToOSSeparators(path string) string {
	return strings.ReplaceAll(path, "/", PathSeparator())
}

// IsWindowsPath checks if a path appears to be a Windows-style path
func IsWindowsPath(path string) bool {
	// Drive letter (e.g., C:)
	if len(path) >= 2 && path[1] == ':' {
		c := path[0]
		return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}

	// UNC path (e.g., \\server\share)
	return len(path) >= 2 && path[0] == '\\' && path[1] == '\\'
}

// IsQualifiedPath reports whether path is absolute, drive-qualified or quoted
func IsQualifiedPath(path string) bool {
	path = strings.TrimSpace(path)
	if path == "" {
		return false
	}
	if path[0] == '"' || path[0] == '\'' {
		return true
	}
	return filepath.IsAbs(path) || IsWindowsPath(path) || strings.HasPrefix(path, "/")
}

// ResolvePath joins a relative path onto base; absolute paths are returned cleaned
func ResolvePath(base, path string) string {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(path) || IsWindowsPath(path) || base == "" {
		return CleanPath(path)
	}
	return filepath.Join(base, path)
}

// IsWithin reports whether target lies inside (or equals) base after cleaning
func IsWithin(base, target string) bool {
	rel, err := filepath.Rel(CleanPath(base), CleanPath(target))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+PathSeparator())
}
