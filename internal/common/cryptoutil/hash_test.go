package cryptoutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
)

// Digests of "hello"
const (
	helloMD5    = "5d41402abc4b2a76b9719d911017c592"
	helloSHA1   = "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d"
	helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
)

func writeHello(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hello.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))
	return path
}

func TestParseChecksum(t *testing.T) {
	sum, err := ParseChecksum("SHA256:" + "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824")
	require.NoError(t, err)
	assert.Equal(t, SHA256, sum.Algorithm)
	assert.Equal(t, helloSHA256, sum.Digest)

	sum, err = ParseChecksum("md5:" + helloMD5)
	require.NoError(t, err)
	assert.Equal(t, MD5, sum.Algorithm)
}

func TestParseChecksumRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		helloSHA256,
		"CRC32:deadbeef",
		"SHA256:nothex",
		"SHA1:" + helloMD5,
		"SHA256:a:b",
	} {
		_, err := ParseChecksum(raw)
		assert.ErrorIs(t, err, errors.ErrConfiguration, raw)
	}
}

func TestVerifyFile(t *testing.T) {
	path := writeHello(t)

	for _, raw := range []string{"MD5:" + helloMD5, "sha1:" + helloSHA1, "Sha256:" + helloSHA256} {
		sum, err := ParseChecksum(raw)
		require.NoError(t, err)
		assert.NoError(t, VerifyFile(path, sum), raw)
	}

	sum, err := ParseChecksum("MD5:00000000000000000000000000000000")
	require.NoError(t, err)
	err = VerifyFile(path, sum)
	assert.ErrorIs(t, err, errors.ErrChecksumMismatch)
	assert.ErrorIs(t, err, errors.ErrVerification)
}

func TestExtendedAlgorithms(t *testing.T) {
	path := writeHello(t)
	for _, alg := range []HashAlgorithm{SHA512, SHA3256, BLAKE2B} {
		digest, err := CalculateFileChecksum(path, alg)
		require.NoError(t, err)

		sum, err := ParseChecksum(string(alg) + ":" + digest)
		require.NoError(t, err)
		assert.NoError(t, VerifyFile(path, sum))
	}
}

func TestHashFileMissing(t *testing.T) {
	_, err := CalculateFileChecksum(filepath.Join(t.TempDir(), "nope"), SHA256)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
