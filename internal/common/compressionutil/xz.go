package compression

import (
	"io"

	"github.com/ulikunitz/xz"
)

// CompressTarXZ packs directory src into an xz-compressed tarball
func CompressTarXZ(src, dst string) error {
	return compressFile(dst, func(w io.Writer) (io.WriteCloser, error) {
		return xz.NewWriter(w)
	}, src)
}

// ExtractTarXZ unpacks an xz-compressed tarball into dst
func ExtractTarXZ(src, dst string) error {
	return extractFile(src, dst, func(r io.Reader) (io.Reader, error) {
		return xz.NewReader(r)
	})
}
