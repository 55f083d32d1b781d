package executor

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/fsutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/vtutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// FileLookup fetches the reputation report of a local file
type FileLookup interface {
	LookupFile(ctx context.Context, path string) (*vtutil.FileReport, error)
}

// Scan checks a session file against VirusTotal before later steps use it
type Scan struct {
	log *logger.Logger
	cfg ScanConfig

	mu        sync.Mutex
	lookup    FileLookup
	newLookup func() (FileLookup, error)
}

// NewScan creates the Scan executor. The VirusTotal client is created on
// first use so workflows without Scan steps need no API key.
func NewScan(log *logger.Logger, cfg ScanConfig) *Scan {
	s := &Scan{log: log, cfg: cfg}
	s.newLookup = func() (FileLookup, error) {
		return vtutil.NewClient(vtutil.ClientConfig{
			APIKey:     cfg.APIKey,
			Host:       cfg.Host,
			RetryCount: vtutil.DefaultRetryCount,
		}, log)
	}
	return s
}

// NewScanWithLookup creates a Scan executor backed by an existing lookup
func NewScanWithLookup(log *logger.Logger, cfg ScanConfig, lookup FileLookup) *Scan {
	return &Scan{log: log, cfg: cfg, lookup: lookup}
}

func (s *Scan) Type() string { return "Scan" }

// Validate implements Validator
func (s *Scan) Validate(step workflow.Step) []error {
	errs := requireParams(step, "File")
	if raw, ok := step.Parameters.Get("MaxDetections"); ok && !strings.Contains(raw, "$") {
		if _, err := parseMaxDetections(raw); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

func (s *Scan) Execute(ctx context.Context, step workflow.Step, ectx *workflow.ExecutionContext) *workflow.StepResult {
	path := sessionPath(ectx, step.Parameters.Value("File"))
	if path == "" {
		return configError("%w: Scan step requires File", errors.ErrMissingParameter)
	}

	maxDetections := s.cfg.MaxDetections
	if raw, ok := step.Parameters.Get("MaxDetections"); ok {
		n, err := parseMaxDetections(ectx.Resolve(raw))
		if err != nil {
			return workflow.Failed(errors.KindConfiguration, err)
		}
		maxDetections = n
	}

	allowUnknown := true
	if raw, ok := step.Parameters.Get("AllowUnknown"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(ectx.Resolve(raw)))
		if err != nil {
			return configError("%w: AllowUnknown %q must be true or false", errors.ErrInvalidParameter, raw)
		}
		allowUnknown = b
	}

	if !fsutil.FileExists(path) {
		return workflow.Failed(errors.KindNotFound, fmt.Errorf("%w: file to scan %s", errors.ErrNotFound, path))
	}

	lookup, err := s.client()
	if err != nil {
		return workflow.Failed("", err)
	}

	log := s.log.WithStep(step.Name)
	log.LogInfo("Looking up file on VirusTotal", map[string]interface{}{"file": path})

	report, err := lookup.LookupFile(ctx, path)
	if err != nil {
		return workflow.Failed("", err)
	}

	if !report.Found {
		if !allowUnknown {
			return workflow.Failed(errors.KindVerification, fmt.Errorf("%w: %s is unknown to VirusTotal", errors.ErrVerification, report.SHA256))
		}
		log.LogWarn("File unknown to VirusTotal", map[string]interface{}{"sha256": report.SHA256})
		return workflow.Succeeded(fmt.Sprintf("%s: unknown", report.SHA256))
	}

	summary := fmt.Sprintf("%s: %d/%d detections", report.SHA256, report.Detections(), report.Total)
	if report.Detections() > maxDetections {
		err := fmt.Errorf("%w: %s exceeds limit of %d", errors.ErrVerification, summary, maxDetections)
		log.LogError("Scan rejected file", err, nil)
		result := workflow.Failed(errors.KindVerification, err)
		result.Output = summary
		return result
	}

	log.LogSuccess("Scan passed", map[string]interface{}{
		"sha256":     report.SHA256,
		"detections": report.Detections(),
		"total":      report.Total,
	})
	return workflow.Succeeded(summary)
}

func (s *Scan) client() (FileLookup, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lookup != nil {
		return s.lookup, nil
	}
	lookup, err := s.newLookup()
	if err != nil {
		return nil, err
	}
	s.lookup = lookup
	return lookup, nil
}

func parseMaxDetections(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: MaxDetections %q must be a non-negative integer", errors.ErrInvalidParameter, raw)
	}
	return n, nil
}
