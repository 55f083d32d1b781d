package compression

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
)

// CompressTAR creates an uncompressed TAR archive from directory src
func CompressTAR(src, dst string) error {
	return compressFile(dst, func(w io.Writer) (io.WriteCloser, error) {
		return nopWriteCloser{w}, nil
	}, src)
}

// ExtractTAR extracts an uncompressed TAR archive to the given destination
func ExtractTAR(src, dst string) error {
	return extractFile(src, dst, func(r io.Reader) (io.Reader, error) {
		return r, nil
	})
}

// compressFile writes a tar stream of src through the writer produced by wrap
func compressFile(dst string, wrap func(io.Writer) (io.WriteCloser, error), src string) error {
	outFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer outFile.Close()

	compressor, err := wrap(outFile)
	if err != nil {
		return err
	}

	if err := writeTarStream(compressor, src); err != nil {
		compressor.Close()
		return err
	}
	if err := compressor.Close(); err != nil {
		return err
	}
	return outFile.Close()
}

// extractFile unpacks a tar stream read through the reader produced by wrap
func extractFile(src, dst string, wrap func(io.Reader) (io.Reader, error)) error {
	file, err := os.Open(src)
	if err != nil {
		return err
	}
	defer file.Close()

	r, err := wrap(file)
	if err != nil {
		return err
	}
	return ExtractTARStream(r, dst)
}

func writeTarStream(w io.Writer, src string) error {
	tw := tar.NewWriter(w)

	err := walkFiles(src, func(path, rel string, info os.FileInfo) error {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = rel
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		return err
	}
	return tw.Close()
}

// ExtractTARStream extracts a tar stream into dst. Symlinks are only
// recreated when their target stays inside dst.
func ExtractTARStream(r io.Reader, dst string) error {
	tr := tar.NewReader(r)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		target, err := entryPath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg, tar.TypeRegA:
			if err := writeEntry(target, tr, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeSymlink:
			if filepath.IsAbs(hdr.Linkname) || !fsutil.IsWithin(dst, filepath.Join(filepath.Dir(target), hdr.Linkname)) {
				return fmt.Errorf("%w: link %s -> %s", errors.ErrUnsafeArchivePath, hdr.Name, hdr.Linkname)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			_ = os.Remove(target)
			if err := os.Symlink(hdr.Linkname, target); err != nil {
				return err
			}
		}
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
