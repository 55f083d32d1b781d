// Package compression unpacks task bundles into a session directory and
// packs directories back into bundles.
package compression

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
)

// Format identifies a bundle container format
type Format string

const (
	FormatAuto   Format = "auto"
	FormatZIP    Format = "zip"
	FormatTAR    Format = "tar"
	FormatTarGZ  Format = "tar.gz"
	FormatTarBZ2 Format = "tar.bz2"
	FormatTarXZ  Format = "tar.xz"
)

// Compressed streams are assumed to wrap a tar archive.
var magicNumbers = []struct {
	format Format
	offset int
	magic  []byte
}{
	{FormatZIP, 0, []byte{0x50, 0x4B, 0x03, 0x04}},
	{FormatZIP, 0, []byte{0x50, 0x4B, 0x05, 0x06}}, // empty zip
	{FormatTarGZ, 0, []byte{0x1F, 0x8B}},
	{FormatTarBZ2, 0, []byte{0x42, 0x5A, 0x68}},
	{FormatTarXZ, 0, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
	{FormatTAR, 257, []byte("ustar")},
}

const headerSize = 262

// ParseFormat maps a user supplied format name onto a Format
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto":
		return FormatAuto, nil
	case "zip":
		return FormatZIP, nil
	case "tar":
		return FormatTAR, nil
	case "tar.gz", "tgz", "gzip", "gz":
		return FormatTarGZ, nil
	case "tar.bz2", "tbz2", "bzip2", "bz2":
		return FormatTarBZ2, nil
	case "tar.xz", "txz", "xz":
		return FormatTarXZ, nil
	default:
		return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedArchive, name)
	}
}

// FormatFromName guesses the format from a file name's extension
func FormatFromName(filename string) (Format, bool) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return FormatZIP, true
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return FormatTarGZ, true
	case strings.HasSuffix(lower, ".tar.bz2"), strings.HasSuffix(lower, ".tbz2"):
		return FormatTarBZ2, true
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return FormatTarXZ, true
	case strings.HasSuffix(lower, ".tar"):
		return FormatTAR, true
	default:
		return "", false
	}
}

// DetectArchiveFormat determines the archive format using magic numbers and file extension
func DetectArchiveFormat(filename string) (Format, error) {
	file, err := os.Open(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: archive %s", errors.ErrNotFound, filename)
		}
		return "", fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}
	defer file.Close()

	header := make([]byte, headerSize)
	n, err := io.ReadFull(file, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}
	header = header[:n]

	for _, m := range magicNumbers {
		end := m.offset + len(m.magic)
		if len(header) >= end && bytes.Equal(header[m.offset:end], m.magic) {
			return m.format, nil
		}
	}

	if format, ok := FormatFromName(filename); ok {
		return format, nil
	}
	return "", fmt.Errorf("%w: %s", errors.ErrUnsupportedArchive, filepath.Base(filename))
}

// ExtractArchive unpacks src into dst. FormatAuto (or "") detects the format.
// Entries that would land outside dst are rejected.
func ExtractArchive(src, dst string, format Format) error {
	if !fsutil.FileExists(src) {
		return fmt.Errorf("%w: archive %s", errors.ErrNotFound, src)
	}

	if format == "" || format == FormatAuto {
		detected, err := DetectArchiveFormat(src)
		if err != nil {
			return err
		}
		format = detected
	}

	if err := fsutil.CreateDirIfNotExists(dst); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}

	var err error
	switch format {
	case FormatZIP:
		err = ExtractZIP(src, dst)
	case FormatTAR:
		err = ExtractTAR(src, dst)
	case FormatTarGZ:
		err = ExtractTarGZ(src, dst)
	case FormatTarBZ2:
		err = ExtractTarBZ2(src, dst)
	case FormatTarXZ:
		err = ExtractTarXZ(src, dst)
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedArchive, format)
	}
	if err != nil {
		if errors.Is(err, errors.ErrUnsafeArchivePath) || errors.Is(err, errors.ErrIO) {
			return err
		}
		return fmt.Errorf("%w: %s", errors.ErrInvalidArchive, err.Error())
	}
	return nil
}

// CompressArchive packs the contents of directory src into dst
func CompressArchive(src, dst string, format Format) error {
	if !fsutil.DirExists(src) {
		return fmt.Errorf("%w: directory %s", errors.ErrNotFound, src)
	}
	if format == "" || format == FormatAuto {
		guessed, ok := FormatFromName(dst)
		if !ok {
			return fmt.Errorf("%w: cannot infer format from %s", errors.ErrUnsupportedArchive, filepath.Base(dst))
		}
		format = guessed
	}
	if err := fsutil.EnsureParentDir(dst); err != nil {
		return err
	}

	switch format {
	case FormatZIP:
		return CompressZIP(src, dst)
	case FormatTAR:
		return CompressTAR(src, dst)
	case FormatTarGZ:
		return CompressTarGZ(src, dst)
	case FormatTarBZ2:
		return CompressTarBZ2(src, dst)
	case FormatTarXZ:
		return CompressTarXZ(src, dst)
	default:
		return fmt.Errorf("%w: %s", errors.ErrUnsupportedArchive, format)
	}
}

// entryPath resolves an archive entry name beneath dst
func entryPath(dst, name string) (string, error) {
	name = strings.ReplaceAll(name, "\\", "/")
	target := filepath.Join(dst, filepath.FromSlash(name))
	if !fsutil.IsWithin(dst, target) {
		return "", fmt.Errorf("%w: %s", errors.ErrUnsafeArchivePath, name)
	}
	return target, nil
}

// writeEntry streams r into a new file at target
func writeEntry(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}
	if mode.Perm() == 0 {
		mode = 0644
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, mode.Perm())
	if err != nil {
		return fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// walkFiles calls fn for every regular file under src with its slash-separated relative path
func walkFiles(src string, fn func(path, rel string, info os.FileInfo) error) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		return fn(path, filepath.ToSlash(rel), info)
	})
}
