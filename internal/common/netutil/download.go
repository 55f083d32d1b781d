// Package download streams remote artifacts to local files over HTTP(S) or
// any gocloud.dev blob scheme.
package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
)

const (
	DefaultChunkSize = 8192
	DefaultTimeout   = 10 * time.Minute
)

// ProgressFunc receives the running byte count and the total, which is -1
// when the source did not report a length.
type ProgressFunc func(received, total int64)

// BucketOpener opens the bucket that holds a non-HTTP source
type BucketOpener func(ctx context.Context, bucketURL string) (*blob.Bucket, error)

// Fetcher copies a single source URL to a local file in fixed-size chunks
type Fetcher struct {
	client     *http.Client
	chunkSize  int
	openBucket BucketOpener
}

// Option configures a Fetcher
type Option func(*Fetcher)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(f *Fetcher) { f.client = client }
}

// WithTimeout sets the per-attempt HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(f *Fetcher) {
		if timeout > 0 {
			f.client.Timeout = timeout
		}
	}
}

// WithChunkSize sets the copy buffer size
func WithChunkSize(size int) Option {
	return func(f *Fetcher) {
		if size > 0 {
			f.chunkSize = size
		}
	}
}

// WithBucketOpener overrides how blob buckets are opened
func WithBucketOpener(opener BucketOpener) Option {
	return func(f *Fetcher) { f.openBucket = opener }
}

// NewFetcher creates a Fetcher with a 10 minute HTTP timeout and 8 KiB chunks
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:     &http.Client{Timeout: DefaultTimeout},
		chunkSize:  DefaultChunkSize,
		openBucket: blob.OpenBucket,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch writes the content at rawURL to dest, truncating any existing file.
// Transport failures wrap errors.ErrNetwork and local write failures wrap
// errors.ErrIO.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, dest string, progress ProgressFunc) (int64, error) {
	body, total, err := f.open(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := fsutil.EnsureParentDir(dest); err != nil {
		return 0, fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to create %s: %s", errors.ErrIO, dest, err.Error())
	}

	written, copyErr := f.copyChunks(out, body, total, progress)
	closeErr := out.Close()
	if copyErr != nil {
		return written, copyErr
	}
	if closeErr != nil {
		return written, fmt.Errorf("%w: %s", errors.ErrIO, closeErr.Error())
	}
	return written, nil
}

func (f *Fetcher) copyChunks(dst io.Writer, src io.Reader, total int64, progress ProgressFunc) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var written int64
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return written, fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
			}
			written += int64(n)
			if progress != nil {
				progress(written, total)
			}
		}
		if readErr == io.EOF {
			return written, nil
		}
		if readErr != nil {
			return written, fmt.Errorf("%w: read failed: %s", errors.ErrNetwork, readErr.Error())
		}
	}
}

func (f *Fetcher) open(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: invalid url %q: %s", errors.ErrInvalidParameter, rawURL, err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.openHTTP(ctx, rawURL)
	case "":
		return nil, 0, fmt.Errorf("%w: url %q has no scheme", errors.ErrInvalidParameter, rawURL)
	default:
		return f.openBlob(ctx, u)
	}
}

func (f *Fetcher) openHTTP(ctx context.Context, rawURL string) (io.ReadCloser, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s", errors.ErrInvalidParameter, err.Error())
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %s", errors.ErrNetwork, err.Error())
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, 0, fmt.Errorf("%w: %d %s", errors.ErrHTTPStatusFailed, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	return resp.Body, resp.ContentLength, nil
}

// blobCloser closes the object reader and then its bucket
type blobCloser struct {
	*blob.Reader
	bucket *blob.Bucket
}

func (b blobCloser) Close() error {
	err := b.Reader.Close()
	if cerr := b.bucket.Close(); err == nil {
		err = cerr
	}
	return err
}

func (f *Fetcher) openBlob(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	bucketURL, key := SplitBlobURL(u)
	if key == "" {
		return nil, 0, fmt.Errorf("%w: url %q names no object", errors.ErrInvalidParameter, u.String())
	}

	bucket, err := f.openBucket(ctx, bucketURL)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: open bucket %s: %s", errors.ErrNetwork, bucketURL, err.Error())
	}

	reader, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		bucket.Close()
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, 0, fmt.Errorf("%w: object %s not found in %s", errors.ErrNetwork, key, bucketURL)
		}
		return nil, 0, fmt.Errorf("%w: %s", errors.ErrNetwork, err.Error())
	}

	return blobCloser{Reader: reader, bucket: bucket}, reader.Size(), nil
}

// SplitBlobURL separates a source URL into a bucket URL and object key.
// For file:// the bucket is the containing directory; for every other
// scheme the host names the bucket and the path is the key.
func SplitBlobURL(u *url.URL) (string, string) {
	if strings.EqualFold(u.Scheme, "file") {
		p := u.Path
		if u.Host != "" {
			p = "/" + u.Host + p
		}
		dir, file := path.Split(filepath.ToSlash(p))
		bucket := url.URL{Scheme: "file", Path: strings.TrimSuffix(dir, "/"), RawQuery: u.RawQuery}
		if bucket.Path == "" {
			bucket.Path = "/"
		}
		return bucket.String(), file
	}

	bucket := url.URL{Scheme: u.Scheme, Host: u.Host, RawQuery: u.RawQuery}
	return bucket.String(), strings.TrimPrefix(u.Path, "/")
}

// ValidateURL checks that rawURL names something Fetch can open: an http(s)
// URL with a host, or a blob URL with an object key.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: invalid url %q: %s", errors.ErrInvalidParameter, rawURL, err.Error())
	}

	switch strings.ToLower(u.Scheme) {
	case "":
		return fmt.Errorf("%w: url %q has no scheme", errors.ErrInvalidParameter, rawURL)
	case "http", "https":
		if u.Host == "" {
			return fmt.Errorf("%w: url %q has no host", errors.ErrInvalidParameter, rawURL)
		}
	default:
		if _, key := SplitBlobURL(u); key == "" {
			return fmt.Errorf("%w: url %q names no object", errors.ErrInvalidParameter, rawURL)
		}
	}
	return nil
}
