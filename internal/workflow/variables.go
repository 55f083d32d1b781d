package workflow

import (
	"sort"
	"strings"
)

// Variables is the name to value store used for substitution. Names are
// case-sensitive.
type Variables struct {
	values map[string]string
}

// NewVariables creates an empty store
func NewVariables() *Variables {
	return &Variables{values: make(map[string]string)}
}

// Set binds name to value, replacing any previous binding
func (v *Variables) Set(name, value string) {
	v.values[name] = value
}

// SetAll applies every binding of layer, overwriting same-named entries
func (v *Variables) SetAll(layer map[string]string) {
	for name, value := range layer {
		v.values[name] = value
	}
}

// Get returns the bound value or an empty string
func (v *Variables) Get(name string) string {
	return v.values[name]
}

// Lookup returns the bound value and whether name is bound
func (v *Variables) Lookup(name string) (string, bool) {
	value, ok := v.values[name]
	return value, ok
}

// Names returns all bound names, sorted
func (v *Variables) Names() []string {
	names := make([]string, 0, len(v.values))
	for name := range v.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve replaces every ${name} and $(name) whose name is bound. Unbound
// references are kept verbatim and substituted text is never rescanned, so
// a value containing a token is emitted literally.
func (v *Variables) Resolve(template string) string {
	if template == "" || !strings.Contains(template, "$") {
		return template
	}

	var sb strings.Builder
	sb.Grow(len(template))

	for i := 0; i < len(template); {
		if template[i] == '$' && i+1 < len(template) {
			var closer byte
			switch template[i+1] {
			case '{':
				closer = '}'
			case '(':
				closer = ')'
			}
			if closer != 0 {
				if end := strings.IndexByte(template[i+2:], closer); end >= 0 {
					name := template[i+2 : i+2+end]
					if value, ok := v.values[name]; ok {
						sb.WriteString(value)
						i += end + 3
						continue
					}
				}
				sb.WriteString(template[i : i+2])
				i += 2
				continue
			}
		}
		sb.WriteByte(template[i])
		i++
	}

	return sb.String()
}
