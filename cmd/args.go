package cmd

import (
	"fmt"
	"strings"
)

const varPrefix = "--var:"

// NormalizeArgs rewrites --var:Name=Value tokens into the --var Name=Value
// form cobra understands
func NormalizeArgs(args []string) ([]string, error) {
	out := make([]string, 0, len(args))
	for _, arg := range args {
		if !strings.HasPrefix(arg, varPrefix) {
			out = append(out, arg)
			continue
		}
		pair := strings.TrimPrefix(arg, varPrefix)
		if _, _, err := splitVar(pair); err != nil {
			return nil, fmt.Errorf("invalid variable argument %s: expected --var:Name=Value", arg)
		}
		out = append(out, "--var", pair)
	}
	return out, nil
}

// ParseVars turns Name=Value pairs into a map. Later pairs win.
func ParseVars(pairs []string) (map[string]string, error) {
	vars := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, err := splitVar(pair)
		if err != nil {
			return nil, err
		}
		vars[name] = value
	}
	return vars, nil
}

// splitVar splits at the first '='; the value may contain further '='
func splitVar(pair string) (string, string, error) {
	name, value, ok := strings.Cut(pair, "=")
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid variable %q: expected Name=Value", pair)
	}
	return name, value, nil
}
