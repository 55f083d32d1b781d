package compression

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
)

func makeBundleDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "workflow.xml"), []byte("<Workflow/>"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tools", "bin"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools", "bin", "flash.sh"), []byte("echo hi"), 0755))
	return dir
}

func TestRoundTripAllFormats(t *testing.T) {
	src := makeBundleDir(t)

	for _, name := range []string{"bundle.zip", "bundle.tar", "bundle.tar.gz", "bundle.tar.bz2", "bundle.tar.xz"} {
		t.Run(name, func(t *testing.T) {
			archive := filepath.Join(t.TempDir(), name)
			require.NoError(t, CompressArchive(src, archive, FormatAuto))

			out := t.TempDir()
			require.NoError(t, ExtractArchive(archive, out, FormatAuto))

			data, err := os.ReadFile(filepath.Join(out, "tools", "bin", "flash.sh"))
			require.NoError(t, err)
			assert.Equal(t, "echo hi", string(data))
			assert.FileExists(t, filepath.Join(out, "workflow.xml"))
		})
	}
}

func TestDetectArchiveFormatPrefersMagic(t *testing.T) {
	src := makeBundleDir(t)
	dir := t.TempDir()

	archive := filepath.Join(dir, "bundle.tar.gz")
	require.NoError(t, CompressArchive(src, archive, FormatAuto))

	renamed := filepath.Join(dir, "bundle.bin")
	require.NoError(t, os.Rename(archive, renamed))

	format, err := DetectArchiveFormat(renamed)
	require.NoError(t, err)
	assert.Equal(t, FormatTarGZ, format)
}

func TestExtractArchiveMissing(t *testing.T) {
	err := ExtractArchive(filepath.Join(t.TempDir(), "missing.zip"), t.TempDir(), FormatAuto)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}

func TestExtractArchiveCorrupt(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "broken.zip")
	require.NoError(t, os.WriteFile(archive, []byte("PK\x03\x04 definitely not a zip"), 0644))

	err := ExtractArchive(archive, t.TempDir(), FormatAuto)
	assert.ErrorIs(t, err, errors.ErrInvalidArchive)
}

func TestExtractZIPRejectsTraversal(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "evil.zip")
	f, err := os.Create(archive)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	w, err := zw.Create("../escape.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("x"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())

	out := filepath.Join(t.TempDir(), "out")
	err = ExtractArchive(archive, out, FormatZIP)
	assert.ErrorIs(t, err, errors.ErrUnsafeArchivePath)
	assert.NoFileExists(t, filepath.Join(filepath.Dir(out), "escape.txt"))
}

func TestParseFormat(t *testing.T) {
	format, err := ParseFormat("TGZ")
	require.NoError(t, err)
	assert.Equal(t, FormatTarGZ, format)

	_, err = ParseFormat("rar")
	assert.ErrorIs(t, err, errors.ErrUnsupportedArchive)
}
