// Package vtutil looks files up on VirusTotal by hash.
package vtutil

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	vt "github.com/VirusTotal/vt-go"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/cryptoutil"
	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/logger"
)

// Default settings
const (
	DefaultRetryCount = 2               // Additional attempts after the first
	DefaultRetryDelay = 5 * time.Second // Delay between attempts
)

// ClientConfig holds configuration for the VirusTotal client
type ClientConfig struct {
	APIKey     string        // VirusTotal API key
	Host       string        // Optional API host, e.g. a mirror or test server
	RetryCount int           // Number of retries for failed requests
	RetryDelay time.Duration // Delay between retries
}

// Client wraps the VirusTotal client with retries and a per-hash cache
type Client struct {
	vtClient *vt.Client
	config   ClientConfig
	log      *logger.Logger

	cacheMutex sync.RWMutex
	cache      map[string]*FileReport
}

// FileReport summarises the last analysis of a file
type FileReport struct {
	SHA256     string
	Name       string
	Found      bool
	Malicious  int
	Suspicious int
	Undetected int
	Harmless   int
	Total      int
}

// Detections is the number of engines flagging the file
func (r *FileReport) Detections() int {
	return r.Malicious + r.Suspicious
}

// vt-go keeps its API host in package state
var hostMutex sync.Mutex

// NewClient creates a client. An empty API key is a configuration error.
func NewClient(config ClientConfig, log *logger.Logger) (*Client, error) {
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("%w: VirusTotal API key is required", errors.ErrMissingParameter)
	}
	if config.RetryCount < 0 {
		config.RetryCount = DefaultRetryCount
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = DefaultRetryDelay
	}
	if log == nil {
		log = logger.NewNop()
	}

	if config.Host != "" {
		hostMutex.Lock()
		vt.SetHost(config.Host)
		hostMutex.Unlock()
	}

	return &Client{
		vtClient: vt.NewClient(config.APIKey),
		config:   config,
		log:      log,
		cache:    make(map[string]*FileReport),
	}, nil
}

// LookupFile hashes path with SHA256 and fetches its report
func (c *Client) LookupFile(ctx context.Context, path string) (*FileReport, error) {
	sum, err := cryptoutil.CalculateFileChecksum(path, cryptoutil.SHA256)
	if err != nil {
		return nil, err
	}
	return c.LookupHash(ctx, sum)
}

// LookupHash fetches the report for a file hash. A hash unknown to
// VirusTotal yields a report with Found=false and no error.
func (c *Client) LookupHash(ctx context.Context, hash string) (*FileReport, error) {
	hash = strings.ToLower(hash)

	if report, ok := c.getCached(hash); ok {
		return report, nil
	}

	var obj *vt.Object
	err := c.executeWithRetry(ctx, "file_lookup:"+hash, func() error {
		var lookupErr error
		obj, lookupErr = c.vtClient.GetObject(vt.URL("files/%s", hash))
		return lookupErr
	})

	if err != nil {
		if isNotFound(err) {
			c.log.LogInfo("File not found in VirusTotal database", map[string]interface{}{"hash": hash})
			report := &FileReport{SHA256: hash}
			c.putCached(hash, report)
			return report, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: VirusTotal lookup failed: %s", errors.ErrNetwork, err.Error())
	}

	report := parseFileObject(obj, hash)
	c.putCached(hash, report)
	return report, nil
}

// executeWithRetry runs fn until it succeeds, reports a not-found error,
// or the retries are exhausted
func (c *Client) executeWithRetry(ctx context.Context, operation string, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= c.config.RetryCount; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := fn()
		if err == nil || isNotFound(err) {
			return err
		}

		lastErr = err
		c.log.LogWarn(fmt.Sprintf("VirusTotal API request failed (attempt %d/%d): %s",
			attempt+1, c.config.RetryCount+1, operation), map[string]interface{}{
			"error": err.Error(),
		})

		if attempt < c.config.RetryCount {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}
	}

	return lastErr
}

func isNotFound(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "notfounderror")
}

func parseFileObject(obj *vt.Object, hash string) *FileReport {
	report := &FileReport{SHA256: hash, Found: true}

	if sha, err := obj.GetString("sha256"); err == nil && sha != "" {
		report.SHA256 = sha
	}
	name, _ := obj.GetString("meaningful_name")
	report.Name = name

	stats, err := obj.Get("last_analysis_stats")
	if err != nil {
		return report
	}
	counts, ok := stats.(map[string]interface{})
	if !ok {
		return report
	}

	for key, value := range counts {
		n := toInt(value)
		report.Total += n
		switch key {
		case "malicious":
			report.Malicious = n
		case "suspicious":
			report.Suspicious = n
		case "undetected":
			report.Undetected = n
		case "harmless":
			report.Harmless = n
		}
	}
	return report
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			f, _ := n.Float64()
			return int(f)
		}
		return int(i)
	}
	return 0
}

func (c *Client) getCached(hash string) (*FileReport, bool) {
	c.cacheMutex.RLock()
	defer c.cacheMutex.RUnlock()
	report, ok := c.cache[hash]
	return report, ok
}

func (c *Client) putCached(hash string, report *FileReport) {
	c.cacheMutex.Lock()
	defer c.cacheMutex.Unlock()
	c.cache[hash] = report
}
