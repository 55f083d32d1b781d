package manifest

import (
	"bytes"
	"fmt"
	"io"
	"sort"

	"howett.net/plist"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

type plistWorkflow struct {
	Name      string            `plist:"Name"`
	Version   string            `plist:"Version"`
	Variables map[string]string `plist:"Variables"`
	Steps     []plistStep       `plist:"Steps"`
}

type plistStep struct {
	Type       string                 `plist:"Type"`
	Name       string                 `plist:"Name"`
	Condition  string                 `plist:"Condition"`
	Parameters map[string]interface{} `plist:"Parameters"`
}

// ParsePlist decodes a property list manifest in any plist encoding.
// Dictionaries are unordered, so variables and parameters are applied in
// key order; an array value becomes a repeated parameter.
func ParsePlist(r io.Reader) (*workflow.Workflow, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrIO, err.Error())
	}

	var doc plistWorkflow
	if err := plist.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidManifest, err.Error())
	}

	wf := &workflow.Workflow{Name: doc.Name, Version: doc.Version}

	for _, name := range sortedKeys(doc.Variables) {
		wf.Variables = append(wf.Variables, workflow.Variable{Name: name, Value: doc.Variables[name]})
	}

	for i, s := range doc.Steps {
		step, err := newStep(i, s.Type, s.Name, s.Condition)
		if err != nil {
			return nil, err
		}

		keys := make([]string, 0, len(s.Parameters))
		for k := range s.Parameters {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, key := range keys {
			switch v := s.Parameters[key].(type) {
			case []interface{}:
				for _, item := range v {
					step.Parameters.Add(key, fmt.Sprint(item))
				}
			case string:
				if v != "" {
					step.Parameters.Add(key, v)
				}
			default:
				step.Parameters.Add(key, fmt.Sprint(v))
			}
		}

		wf.Steps = append(wf.Steps, step)
	}

	return wf, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
