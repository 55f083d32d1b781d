package workflow

import (
	"sort"
	"strings"
)

// Param is one parameter element of a step
type Param struct {
	Key   string
	Value string
}

// Params is an ordered parameter list. Keys compare case-insensitively and
// may repeat, so a step can carry several Command entries.
type Params []Param

// Add appends a parameter
func (p *Params) Add(key, value string) {
	*p = append(*p, Param{Key: key, Value: value})
}

// Get returns the last value stored under key
func (p Params) Get(key string) (string, bool) {
	for i := len(p) - 1; i >= 0; i-- {
		if strings.EqualFold(p[i].Key, key) {
			return p[i].Value, true
		}
	}
	return "", false
}

// Value returns the last value under key or an empty string
func (p Params) Value(key string) string {
	v, _ := p.Get(key)
	return v
}

// All returns every value under key in manifest order
func (p Params) All(key string) []string {
	var values []string
	for _, param := range p {
		if strings.EqualFold(param.Key, key) {
			values = append(values, param.Value)
		}
	}
	return values
}

// Has reports whether key is present with a non-blank value
func (p Params) Has(key string) bool {
	v, ok := p.Get(key)
	return ok && strings.TrimSpace(v) != ""
}

// ParamsFromMap builds Params from a map, sorted by key for stable output
func ParamsFromMap(m map[string]string) Params {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	params := make(Params, 0, len(m))
	for _, k := range keys {
		params.Add(k, m[k])
	}
	return params
}
