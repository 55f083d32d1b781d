package compression

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
)

// CompressZIP creates a ZIP archive from the contents of directory src
func CompressZIP(src, dst string) error {
	zipFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create zip file: %w", err)
	}
	defer zipFile.Close()

	zipWriter := zip.NewWriter(zipFile)

	err = walkFiles(src, func(path, rel string, info os.FileInfo) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = rel
		header.Method = zip.Deflate

		zipEntry, err := zipWriter.CreateHeader(header)
		if err != nil {
			return err
		}
		_, err = io.Copy(zipEntry, file)
		return err
	})
	if err != nil {
		zipWriter.Close()
		return err
	}
	return zipWriter.Close()
}

// ExtractZIP extracts a ZIP archive to the given destination
func ExtractZIP(src, dst string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return err
	}
	defer r.Close()

	for _, f := range r.File {
		target, err := entryPath(dst, f.Name)
		if err != nil {
			return err
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
			continue
		}

		if err := extractZIPEntry(f, target); err != nil {
			return err
		}
	}

	return nil
}

func extractZIPEntry(f *zip.File, target string) error {
	zippedFile, err := f.Open()
	if err != nil {
		return err
	}
	defer zippedFile.Close()

	return writeEntry(target, zippedFile, f.Mode())
}
