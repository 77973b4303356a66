package config

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
)

// placeholder matches ${NAME}.
var placeholder = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// UndefinedVariableError lists placeholders that had no value.
type UndefinedVariableError struct {
	Names []string
}

func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// Expand replaces ${NAME} placeholders in string values, including those in
// nested sections and lists, with vars[NAME]. Placeholders without a value
// are left as written and reported together in an *UndefinedVariableError.
// c is not modified.
func (c Config) Expand(vars map[string]string) (Config, error) {
	missing := make(map[string]struct{})
	out := expandValue(c.data, vars, missing)

	data, _ := out.(map[string]any)
	expanded := New(data)
	if len(missing) > 0 {
		names := make([]string, 0, len(missing))
		for name := range missing {
			names = append(names, name)
		}
		slices.Sort(names)
		return expanded, &UndefinedVariableError{Names: names}
	}
	return expanded, nil
}

func expandValue(v any, vars map[string]string, missing map[string]struct{}) any {
	switch val := v.(type) {
	case string:
		return placeholder.ReplaceAllStringFunc(val, func(match string) string {
			name := match[2 : len(match)-1]
			if s, ok := vars[name]; ok {
				return s
			}
			missing[name] = struct{}{}
			return match
		})
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = expandValue(item, vars, missing)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = expandValue(item, vars, missing)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = expandValue(item, vars, missing).(string)
		}
		return out
	}
	return v
}

// EnvVars turns os.Environ-style KEY=value pairs into a map for Expand.
func EnvVars(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, kv := range environ {
		if name, value, ok := strings.Cut(kv, "="); ok {
			vars[name] = value
		}
	}
	return vars
}
