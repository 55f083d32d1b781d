package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/cryptoutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	download "github.com/deploymenttheory/go-flash-workflow/internal/common/netutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/metrics"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

const (
	DefaultRetryCount = 3
	DefaultBackoff    = 2 * time.Second

	mebibyte = 1 << 20
)

// Download fetches Url into Output, retrying transport and checksum
// failures with a linear backoff.
type Download struct {
	log        *logger.Logger
	metrics    *metrics.Recorder
	fetcher    *download.Fetcher
	retryCount int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewDownload creates the Download executor
func NewDownload(log *logger.Logger, rec *metrics.Recorder, cfg DownloadConfig) *Download {
	if cfg.RetryCount < 1 {
		cfg.RetryCount = DefaultRetryCount
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	opts := []download.Option{
		download.WithChunkSize(cfg.ChunkSize),
		download.WithTimeout(cfg.Timeout),
	}
	if cfg.BucketOpener != nil {
		opts = append(opts, download.WithBucketOpener(cfg.BucketOpener))
	}

	return &Download{
		log:        log,
		metrics:    rec,
		fetcher:    download.NewFetcher(opts...),
		retryCount: cfg.RetryCount,
		backoff:    cfg.Backoff,
		sleep:      cfg.Sleep,
	}
}

func (d *Download) Type() string { return "Download" }

// Validate implements Validator
func (d *Download) Validate(step workflow.Step) []error {
	errs := requireParams(step, "Url", "Output")
	if raw := step.Parameters.Value("Url"); raw != "" && !strings.Contains(raw, "$") {
		if err := download.ValidateURL(raw); err != nil {
			errs = append(errs, err)
		}
	}
	if raw, ok := step.Parameters.Get("RetryCount"); ok {
		if _, err := parseRetryCount(raw); err != nil {
			errs = append(errs, err)
		}
	}
	// Checksums that reference variables can only be checked at run time
	if raw := step.Parameters.Value("Checksum"); raw != "" && !strings.Contains(raw, "$") {
		if _, err := cryptoutil.ParseChecksum(raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (d *Download) Execute(ctx context.Context, step workflow.Step, ectx *workflow.ExecutionContext) *workflow.StepResult {
	log := d.log.WithStep(step.Name)

	url := strings.TrimSpace(ectx.Resolve(step.Parameters.Value("Url")))
	if url == "" {
		return configError("%w: Download step requires Url", errors.ErrMissingParameter)
	}
	output := sessionPath(ectx, step.Parameters.Value("Output"))
	if output == "" {
		return configError("%w: Download step requires Output", errors.ErrMissingParameter)
	}

	retryCount := d.retryCount
	if raw, ok := step.Parameters.Get("RetryCount"); ok {
		n, err := parseRetryCount(ectx.Resolve(raw))
		if err != nil {
			return workflow.Failed(errors.KindConfiguration, err)
		}
		retryCount = n
	}

	var checksum *cryptoutil.Checksum
	if raw := strings.TrimSpace(ectx.Resolve(step.Parameters.Value("Checksum"))); raw != "" {
		sum, err := cryptoutil.ParseChecksum(raw)
		if err != nil {
			return workflow.Failed(errors.KindConfiguration, err)
		}
		checksum = &sum
	}

	if err := fsutil.EnsureParentDir(output); err != nil {
		return workflow.Failed(errors.KindIO, fmt.Errorf("%w: %s", errors.ErrIO, err.Error()))
	}

	log.LogInfo("Starting download", map[string]interface{}{"url": url, "output": output})

	var lastErr error
	for attempt := 1; attempt <= retryCount; attempt++ {
		if attempt > 1 {
			log.LogInfo(fmt.Sprintf("Retrying download (%d/%d)", attempt, retryCount), nil)
		}

		err := d.attempt(ctx, log, step.Name, url, output, checksum)
		if err == nil {
			log.LogSuccess(fmt.Sprintf("Download complete: %s", filepath.Base(output)), nil)
			return workflow.Succeeded("")
		}

		lastErr = err
		if errors.KindOf(err) == errors.KindConfiguration {
			break
		}
		log.LogWarn(fmt.Sprintf("Download failed (attempt %d/%d)", attempt, retryCount), map[string]interface{}{
			"error": err.Error(),
		})

		if attempt < retryCount {
			if waitErr := d.sleep(ctx, d.backoff*time.Duration(attempt)); waitErr != nil {
				lastErr = fmt.Errorf("%w: download cancelled: %s", errors.ErrNetwork, waitErr.Error())
				break
			}
		}
	}

	log.LogError("Download failed after all retries", lastErr, nil)
	return workflow.Failed("", lastErr)
}

// attempt performs one full transfer and, when declared, verification
func (d *Download) attempt(ctx context.Context, log *logger.Logger, stepName, url, output string, checksum *cryptoutil.Checksum) error {
	var reportedMiB int64

	n, err := d.fetcher.Fetch(ctx, url, output, func(received, total int64) {
		mib := received / mebibyte
		if mib <= reportedMiB {
			return
		}
		reportedMiB = mib
		if total > 0 {
			log.LogProgress(stepName, int(received*100/total), fmt.Sprintf("Downloaded %dMB", mib))
		} else {
			log.LogDebug(fmt.Sprintf("Downloaded %dMB", mib), nil)
		}
	})
	d.metrics.AddDownloadBytes(n)
	if err != nil {
		return err
	}

	if checksum != nil {
		log.LogInfo("Verifying checksum", map[string]interface{}{"checksum": checksum.String()})
		if err := cryptoutil.VerifyFile(output, *checksum); err != nil {
			return err
		}
		log.LogSuccess("Checksum verified", nil)
	}
	return nil
}

func parseRetryCount(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: RetryCount %q must be a positive integer", errors.ErrInvalidParameter, raw)
	}
	return n, nil
}

// sleepContext waits for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
