package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

// refPattern matches ${NAME} references.
var refPattern = regexp.MustCompile(`\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

// MissingAction specifies how to handle references to unknown variables.
type MissingAction int

const (
	// MissingKeep keeps the reference as-is.
	MissingKeep MissingAction = iota

	// MissingEmpty replaces the reference with an empty string.
	MissingEmpty

	// MissingError makes Expand fail.
	MissingError
)

// LookupFunc resolves a variable name.
type LookupFunc func(name string) (string, bool)

// Env resolves variables from the process environment.
var Env LookupFunc = os.LookupEnv

// Vars resolves variables from a map.
func Vars(m map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		v, ok := m[name]
		return v, ok
	}
}

// UndefinedVariableError is returned by Expand with MissingError when one
// or more variables are not defined.
type UndefinedVariableError struct {
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// Expand returns a copy of c with ${NAME} references in string values
// replaced through lookup. Nested maps and lists are expanded recursively.
//
// Example:
//
//	search:
//	  rng_seed: ${SEARCH_SEED}
//
//	cfg, err = cfg.Expand(config.Env, config.MissingError)
func (c Config) Expand(lookup LookupFunc, missing MissingAction) (Config, error) {
	var undefined []string
	out := expandValue(c.data, lookup, missing, &undefined)
	if len(undefined) > 0 {
		return Config{}, &UndefinedVariableError{Names: undefined}
	}
	return New(out.(map[string]any)), nil
}

func expandValue(v any, lookup LookupFunc, missing MissingAction, undefined *[]string) any {
	switch val := v.(type) {
	case string:
		return refPattern.ReplaceAllStringFunc(val, func(match string) string {
			name := match[2 : len(match)-1]
			if s, ok := lookup(name); ok {
				return s
			}
			switch missing {
			case MissingEmpty:
				return ""
			case MissingError:
				*undefined = append(*undefined, name)
			}
			return match
		})
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, item := range val {
			m[k] = expandValue(item, lookup, missing, undefined)
		}
		return m
	case []any:
		s := make([]any, len(val))
		for i, item := range val {
			s[i] = expandValue(item, lookup, missing, undefined)
		}
		return s
	default:
		return v
	}
}
