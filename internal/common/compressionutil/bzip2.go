package compression

import (
	"io"

	"github.com/dsnet/compress/bzip2"
)

// CompressTarBZ2 packs directory src into a bzip2-compressed tarball
func CompressTarBZ2(src, dst string) error {
	return compressFile(dst, func(w io.Writer) (io.WriteCloser, error) {
		return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	}, src)
}

// ExtractTarBZ2 unpacks a bzip2-compressed tarball into dst
func ExtractTarBZ2(src, dst string) error {
	return extractFile(src, dst, func(r io.Reader) (io.Reader, error) {
		return bzip2.NewReader(r, nil)
	})
}
