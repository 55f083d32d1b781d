// Package manifest reads workflow definitions from a session directory.
// XML is the primary format; YAML and plist manifests map onto the same
// workflow model and are selected by file extension.
package manifest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// Format identifies a manifest encoding
type Format string

const (
	FormatXML   Format = "xml"
	FormatYAML  Format = "yaml"
	FormatPlist Format = "plist"
)

// Parser turns a manifest file into a workflow
type Parser interface {
	Parse(path string) (*workflow.Workflow, error)
}

// FileParser selects a decoder by extension
type FileParser struct{}

// Parse implements Parser
func (FileParser) Parse(path string) (*workflow.Workflow, error) {
	return ParseFile(path)
}

// FormatForPath picks a format from the file extension, defaulting to XML
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".plist":
		return FormatPlist
	default:
		return FormatXML
	}
}

// ParseFile reads and decodes the manifest at path. A missing file is
// reported as errors.ErrNotFound.
func ParseFile(path string) (*workflow.Workflow, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: workflow file %s", errors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}
	defer file.Close()

	return Parse(file, FormatForPath(path))
}

// Parse decodes a manifest of the given format
func Parse(r io.Reader, format Format) (*workflow.Workflow, error) {
	var (
		wf  *workflow.Workflow
		err error
	)

	switch format {
	case FormatXML:
		wf, err = ParseXML(r)
	case FormatYAML:
		wf, err = ParseYAML(r)
	case FormatPlist:
		wf, err = ParsePlist(r)
	default:
		return nil, fmt.Errorf("%w: unsupported manifest format %q", errors.ErrInvalidManifest, format)
	}
	if err != nil {
		return nil, err
	}

	applyDefaults(wf)
	return wf, nil
}

func applyDefaults(wf *workflow.Workflow) {
	if wf.Name == "" {
		wf.Name = workflow.DefaultName
	}
	if wf.Version == "" {
		wf.Version = workflow.DefaultVersion
	}
}

// newStep validates the fields every format shares
func newStep(index int, stepType, name, condition string) (workflow.Step, error) {
	if strings.TrimSpace(stepType) == "" {
		return workflow.Step{}, fmt.Errorf("%w: step %d (%s) has no Type", errors.ErrInvalidManifest, index+1, name)
	}
	return workflow.Step{Type: stepType, Name: name, Condition: condition}, nil
}
