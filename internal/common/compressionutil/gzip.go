package compression

import (
	"compress/gzip"
	"io"
)

// CompressTarGZ packs directory src into a gzip-compressed tarball
func CompressTarGZ(src, dst string) error {
	return compressFile(dst, func(w io.Writer) (io.WriteCloser, error) {
		return gzip.NewWriter(w), nil
	}, src)
}

// ExtractTarGZ unpacks a gzip-compressed tarball into dst
func ExtractTarGZ(src, dst string) error {
	return extractFile(src, dst, func(r io.Reader) (io.Reader, error) {
		return gzip.NewReader(r)
	})
}
