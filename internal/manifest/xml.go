package manifest

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/deploymenttheory/go-flash-workflow/internal/common/errors"
	"github.com/deploymenttheory/go-flash-workflow/internal/workflow"
)

// element is a namespace-agnostic view of one XML element
type element struct {
	name     string
	attrs    []xml.Attr
	children []*element
	text     strings.Builder
}

// attr looks an attribute up by local name, ignoring case
func (e *element) attr(name string) (string, bool) {
	for _, a := range e.attrs {
		if strings.EqualFold(a.Name.Local, name) {
			return a.Value, true
		}
	}
	return "", false
}

func (e *element) attrOr(name, fallback string) string {
	if v, ok := e.attr(name); ok {
		return v
	}
	return fallback
}

// innerText concatenates the character data of e and its descendants
func (e *element) innerText() string {
	var sb strings.Builder
	e.collectText(&sb)
	return sb.String()
}

func (e *element) collectText(sb *strings.Builder) {
	sb.WriteString(e.text.String())
	for _, c := range e.children {
		c.collectText(sb)
	}
}

// find returns the first element in document order, e included, whose
// local name matches
func (e *element) find(name string) *element {
	if strings.EqualFold(e.name, name) {
		return e
	}
	for _, c := range e.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}

// descendants returns every element below e whose local name matches
func (e *element) descendants(name string) []*element {
	var out []*element
	for _, c := range e.children {
		if strings.EqualFold(c.name, name) {
			out = append(out, c)
		}
		out = append(out, c.descendants(name)...)
	}
	return out
}

// readTree builds the element tree with a token walk
func readTree(r io.Reader) (*element, error) {
	decoder := xml.NewDecoder(r)
	decoder.Strict = true

	var root *element
	var stack []*element

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %s", errors.ErrInvalidManifest, err.Error())
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &element{name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("%w: multiple root elements", errors.ErrInvalidManifest)
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].text.Write(t)
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("%w: document has no elements", errors.ErrInvalidManifest)
	}
	return root, nil
}

// ParseXML decodes an XML manifest
func ParseXML(r io.Reader) (*workflow.Workflow, error) {
	doc, err := readTree(r)
	if err != nil {
		return nil, err
	}

	root := doc.find("Workflow")
	if root == nil {
		return nil, fmt.Errorf("%w: missing Workflow root element", errors.ErrInvalidManifest)
	}

	wf := &workflow.Workflow{
		Name:    root.attrOr("Name", workflow.DefaultName),
		Version: root.attrOr("Version", workflow.DefaultVersion),
	}

	if vars := firstDescendant(root, "Variables"); vars != nil {
		for _, v := range vars.descendants("Variable") {
			name := v.attrOr("Name", "")
			if name == "" {
				continue
			}
			wf.Variables = append(wf.Variables, workflow.Variable{Name: name, Value: v.attrOr("Value", "")})
		}
	}

	if steps := firstDescendant(root, "Steps"); steps != nil {
		for i, s := range steps.descendants("Step") {
			step, err := newStep(i, s.attrOr("Type", ""), s.attrOr("Name", ""), s.attrOr("Condition", ""))
			if err != nil {
				return nil, err
			}
			// Values are trimmed so indented multi-line elements yield clean
			// paths and commands; whitespace-only elements are dropped.
			for _, child := range s.children {
				value := strings.TrimSpace(child.innerText())
				if value == "" {
					continue
				}
				step.Parameters.Add(child.name, value)
			}
			wf.Steps = append(wf.Steps, step)
		}
	}

	return wf, nil
}

func firstDescendant(e *element, name string) *element {
	for _, c := range e.children {
		if found := c.find(name); found != nil {
			return found
		}
	}
	return nil
}
