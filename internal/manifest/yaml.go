package manifest

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// yamlWorkflow mirrors the XML layout. Mappings are kept as nodes so
// declaration order survives decoding.
type yamlWorkflow struct {
	Name      string     `yaml:"name"`
	Version   string     `yaml:"version"`
	Variables yaml.Node  `yaml:"variables"`
	Steps     []yamlStep `yaml:"steps"`
}

type yamlStep struct {
	Type       string    `yaml:"type"`
	Name       string    `yaml:"name"`
	Condition  string    `yaml:"condition"`
	Parameters yaml.Node `yaml:"parameters"`
}

// ParseYAML decodes a YAML manifest. A parameter given as a sequence
// becomes a repeated parameter.
func ParseYAML(r io.Reader) (*workflow.Workflow, error) {
	var doc yamlWorkflow
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("%w: empty document", errors.ErrInvalidManifest)
		}
		return nil, fmt.Errorf("%w: %s", errors.ErrInvalidManifest, err.Error())
	}

	wf := &workflow.Workflow{Name: doc.Name, Version: doc.Version}

	err := eachPair(&doc.Variables, "variables", func(key string, value *yaml.Node) error {
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("%w: variable %q must be a scalar", errors.ErrInvalidManifest, key)
		}
		wf.Variables = append(wf.Variables, workflow.Variable{Name: key, Value: value.Value})
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, s := range doc.Steps {
		step, err := newStep(i, s.Type, s.Name, s.Condition)
		if err != nil {
			return nil, err
		}

		err = eachPair(&s.Parameters, "parameters", func(key string, value *yaml.Node) error {
			switch value.Kind {
			case yaml.ScalarNode:
				if value.Value != "" {
					step.Parameters.Add(key, value.Value)
				}
			case yaml.SequenceNode:
				for _, item := range value.Content {
					if item.Kind != yaml.ScalarNode {
						return fmt.Errorf("%w: parameter %q must hold scalars", errors.ErrInvalidManifest, key)
					}
					step.Parameters.Add(key, item.Value)
				}
			default:
				return fmt.Errorf("%w: parameter %q must be a scalar or list", errors.ErrInvalidManifest, key)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}

		wf.Steps = append(wf.Steps, step)
	}

	return wf, nil
}

// eachPair walks a mapping node in document order. An absent node is empty.
func eachPair(node *yaml.Node, what string, fn func(key string, value *yaml.Node) error) error {
	if node.Kind == 0 {
		return nil
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: %s must be a mapping", errors.ErrInvalidManifest, what)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if err := fn(node.Content[i].Value, node.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}
