package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func fastDownload(rec *metrics.Recorder) *Download {
	return NewDownload(logger.NewNop(), rec, DownloadConfig{Backoff: time.Millisecond})
}

func TestDownloadSucceedsAfterTransportFailures(t *testing.T) {
	payload := []byte("firmware image v2")
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	ectx := newTestContext(t)
	rec := metrics.NewRecorder()
	step := newStep("Download", "fetch",
		"Url", srv.URL+"/fw.bin",
		"Output", "images/fw.bin",
		"Checksum", "SHA256:"+sha256Hex(payload),
	)

	result := fastDownload(rec).Execute(context.Background(), step, ectx)
	require.True(t, result.Success, result.ErrorMessage())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))

	data, err := os.ReadFile(filepath.Join(ectx.SessionDir, "images", "fw.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	expected := fmt.Sprintf(`
# HELP flashwf_download_bytes_total Bytes written by Download steps, including failed attempts
# TYPE flashwf_download_bytes_total counter
flashwf_download_bytes_total %d
`, len(payload))
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "flashwf_download_bytes_total"))
}

func TestDownloadChecksumMismatchExhaustsRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte("tampered"))
	}))
	defer srv.Close()

	step := newStep("Download", "fetch",
		"Url", srv.URL,
		"Output", "fw.bin",
		"Checksum", "sha256:"+sha256Hex([]byte("genuine")),
		"RetryCount", "3",
	)

	result := fastDownload(nil).Execute(context.Background(), step, newTestContext(t))
	require.False(t, result.Success)
	assert.Equal(t, errors.KindVerification, result.Error.Kind)
	assert.ErrorIs(t, result.Error, errors.ErrChecksumMismatch)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDownloadTransportFailureCarriesLastError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	step := newStep("Download", "fetch", "Url", srv.URL, "Output", "fw.bin", "RetryCount", "2")
	result := fastDownload(nil).Execute(context.Background(), step, newTestContext(t))
	require.False(t, result.Success)
	assert.Equal(t, errors.KindNetwork, result.Error.Kind)
	assert.Contains(t, result.ErrorMessage(), "503")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestDownloadOverwritesExistingOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("fresh"))
	}))
	defer srv.Close()

	ectx := newTestContext(t)
	out := filepath.Join(ectx.SessionDir, "fw.bin")
	require.NoError(t, os.WriteFile(out, []byte("stale and much longer"), 0644))

	result := fastDownload(nil).Execute(context.Background(), newStep("Download", "fetch", "Url", srv.URL, "Output", out), ectx)
	require.True(t, result.Success, result.ErrorMessage())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestDownloadResolvesVariables(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v2/fw.bin", r.URL.Path)
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	ectx := newTestContext(t)
	ectx.Variables.Set("Server", srv.URL)
	ectx.Variables.Set("Version", "v2")

	step := newStep("Download", "fetch", "Url", "${Server}/$(Version)/fw.bin", "Output", "${OutputDir}/fw.bin")
	ectx.Variables.Set("OutputDir", ectx.OutputDir)

	result := fastDownload(nil).Execute(context.Background(), step, ectx)
	require.True(t, result.Success, result.ErrorMessage())
	assert.FileExists(t, filepath.Join(ectx.OutputDir, "fw.bin"))
}

func TestDownloadConfigurationErrors(t *testing.T) {
	d := fastDownload(nil)
	ectx := newTestContext(t)

	tests := []struct {
		name string
		step workflow.Step
	}{
		{"missing url", newStep("Download", "x", "Output", "fw.bin")},
		{"missing output", newStep("Download", "x", "Url", "https://example.com/fw.bin")},
		{"bad retry count", newStep("Download", "x", "Url", "https://example.com", "Output", "fw.bin", "RetryCount", "zero")},
		{"malformed checksum", newStep("Download", "x", "Url", "https://example.com", "Output", "fw.bin", "Checksum", "SHA256-abc")},
		{"unknown algorithm", newStep("Download", "x", "Url", "https://example.com", "Output", "fw.bin", "Checksum", "CRC32:deadbeef")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := d.Execute(context.Background(), tt.step, ectx)
			require.False(t, result.Success)
			assert.Equal(t, errors.KindConfiguration, result.Error.Kind)
		})
	}
}

func TestDownloadValidate(t *testing.T) {
	d := fastDownload(nil)

	assert.Empty(t, d.Validate(newStep("Download", "x", "Url", "https://example.com", "Output", "fw.bin", "Checksum", "md5:"+strings.Repeat("a", 32))))
	assert.Empty(t, d.Validate(newStep("Download", "x", "Url", "https://example.com", "Output", "fw.bin", "Checksum", "${Sum}")))
	assert.Len(t, d.Validate(newStep("Download", "x")), 2)
	assert.Len(t, d.Validate(newStep("Download", "x", "Url", "https://example.com/fw.bin", "Output", "o", "RetryCount", "0")), 1)
	assert.Len(t, d.Validate(newStep("Download", "x", "Url", "fw.bin", "Output", "o")), 1)
	assert.Empty(t, d.Validate(newStep("Download", "x", "Url", "${Mirror}/fw.bin", "Output", "o")))
}


type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return nil
}

func TestDownloadBackoffGrowsLinearly(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tests := []struct {
		retries string
		want    []time.Duration
	}{
		{"3", []time.Duration{2 * time.Second, 4 * time.Second}},
		{"5", []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second, 8 * time.Second}},
		{"1", nil},
	}

	for _, tt := range tests {
		t.Run("retries "+tt.retries, func(t *testing.T) {
			atomic.StoreInt32(&calls, 0)
			sleeps := &recordedSleeps{}
			d := NewDownload(logger.NewNop(), nil, DownloadConfig{Backoff: 2 * time.Second, Sleep: sleeps.sleep})

			step := newStep("Download", "fetch", "Url", srv.URL, "Output", "fw.bin", "RetryCount", tt.retries)
			result := d.Execute(context.Background(), step, newTestContext(t))

			require.False(t, result.Success)
			assert.Equal(t, errors.KindNetwork, result.Error.Kind)
			assert.Equal(t, tt.want, sleeps.delays)
			assert.Equal(t, int32(len(tt.want)+1), atomic.LoadInt32(&calls))
		})
	}
}

func TestDownloadStopsWhenBackoffInterrupted(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	interrupt := func(ctx context.Context, d time.Duration) error { return context.Canceled }
	d := NewDownload(logger.NewNop(), nil, DownloadConfig{Sleep: interrupt})

	result := d.Execute(context.Background(), newStep("Download", "fetch", "Url", srv.URL, "Output", "fw.bin"), newTestContext(t))
	require.False(t, result.Success)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Contains(t, result.ErrorMessage(), "cancelled")
}

func TestDownloadReportsProgressPerMebibyte(t *testing.T) {
	payload := make([]byte, 5*mebibyte/2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", fmt.Sprint(len(payload)))
		w.Write(payload)
	}))
	defer srv.Close()

	log, logs := observedLogger()
	d := NewDownload(log, nil, DownloadConfig{})
	ectx := newTestContext(t)

	result := d.Execute(context.Background(), newStep("Download", "fetch", "Url", srv.URL, "Output", "fw.bin"), ectx)
	require.True(t, result.Success, result.ErrorMessage())

	first := logs.FilterMessage("Downloaded 1MB").All()
	second := logs.FilterMessage("Downloaded 2MB").All()
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "40%", first[0].ContextMap()["progress"])
	assert.Equal(t, "80%", second[0].ContextMap()["progress"])
	assert.Equal(t, 0, logs.FilterMessage("Downloaded 3MB").Len())

	info, err := os.Stat(filepath.Join(ectx.SessionDir, "fw.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), info.Size())
}
