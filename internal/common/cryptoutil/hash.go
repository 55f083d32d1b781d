// Package cryptoutil provides file hashing and checksum verification for
// downloaded and bundled artifacts.
package cryptoutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
)

// HashAlgorithm represents supported hash algorithms
type HashAlgorithm string

const (
	MD5     HashAlgorithm = "md5"
	SHA1    HashAlgorithm = "sha1"
	SHA256  HashAlgorithm = "sha256"
	SHA512  HashAlgorithm = "sha512"
	SHA3256 HashAlgorithm = "sha3-256"
	BLAKE2B HashAlgorithm = "blake2b"
)

var constructors = map[HashAlgorithm]func() hash.Hash{
	MD5:     md5.New,
	SHA1:    sha1.New,
	SHA256:  sha256.New,
	SHA512:  sha512.New,
	SHA3256: sha3.New256,
	BLAKE2B: newBlake2b256,
}

func newBlake2b256() hash.Hash {
	// blake2b.New256 only fails for keys longer than 64 bytes
	h, _ := blake2b.New256(nil)
	return h
}

// Checksum is a parsed "ALGORITHM:hexdigest" declaration
type Checksum struct {
	Algorithm HashAlgorithm
	Digest    string
}

func (c Checksum) String() string {
	return fmt.Sprintf("%s:%s", strings.ToUpper(string(c.Algorithm)), c.Digest)
}

// Hasher computes digests with a single algorithm
type Hasher struct {
	algorithm HashAlgorithm
	newHash   func() hash.Hash
}

// NewHasher creates a new Hasher for the specified algorithm (case-insensitive)
func NewHasher(algorithm HashAlgorithm) (*Hasher, error) {
	normalized := HashAlgorithm(strings.ToLower(string(algorithm)))
	newHashFunc, ok := constructors[normalized]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported hash algorithm '%s'", errors.ErrInvalidChecksum, algorithm)
	}
	return &Hasher{algorithm: normalized, newHash: newHashFunc}, nil
}

// Algorithm returns the normalized algorithm name
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// HashReader hashes data from a reader and returns the lowercase hex digest
func (h *Hasher) HashReader(reader io.Reader) (string, error) {
	hasher := h.newHash()
	if _, err := io.Copy(hasher, reader); err != nil {
		return "", fmt.Errorf("%w: hash operation failed: %s", errors.ErrIO, err.Error())
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// HashFile hashes the content of a file
func (h *Hasher) HashFile(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", errors.ErrNotFound, path)
		}
		return "", fmt.Errorf("%w: failed to open file: %s", errors.ErrIO, err.Error())
	}
	defer file.Close()

	return h.HashReader(file)
}

// ParseChecksum parses "ALGORITHM:hexdigest". The algorithm is matched
// case-insensitively and the digest is normalised to lowercase hex.
func ParseChecksum(raw string) (Checksum, error) {
	algorithm, digest, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || strings.Contains(digest, ":") {
		return Checksum{}, fmt.Errorf("%w: %q, expected ALGORITHM:hexdigest", errors.ErrInvalidChecksum, raw)
	}

	hasher, err := NewHasher(HashAlgorithm(strings.TrimSpace(algorithm)))
	if err != nil {
		return Checksum{}, err
	}

	digest = strings.ToLower(strings.TrimSpace(digest))
	decoded, err := hex.DecodeString(digest)
	if err != nil || len(decoded) != hasher.newHash().Size() {
		return Checksum{}, fmt.Errorf("%w: %q is not a %s hex digest", errors.ErrInvalidChecksum, digest, hasher.algorithm)
	}

	return Checksum{Algorithm: hasher.algorithm, Digest: digest}, nil
}

// VerifyFile re-hashes path and compares it to the declared checksum.
// A mismatch is reported as errors.ErrChecksumMismatch.
func VerifyFile(path string, sum Checksum) error {
	hasher, err := NewHasher(sum.Algorithm)
	if err != nil {
		return err
	}

	actual, err := hasher.HashFile(path)
	if err != nil {
		return err
	}

	if actual != sum.Digest {
		return fmt.Errorf("%w: expected %s, got %s", errors.ErrChecksumMismatch, sum.Digest, actual)
	}
	return nil
}

// CalculateFileChecksum calculates a file's checksum using the specified algorithm
func CalculateFileChecksum(path string, algorithm HashAlgorithm) (string, error) {
	hasher, err := NewHasher(algorithm)
	if err != nil {
		return "", err
	}
	return hasher.HashFile(path)
}
