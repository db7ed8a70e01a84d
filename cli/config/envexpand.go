package config

import (
	"os"
	"regexp"
)

// envVarPattern matches ${VAR} and ${VAR:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// LookupFunc resolves a variable name, like os.LookupEnv.
type LookupFunc func(name string) (string, bool)

// ExpandEnv expands ${VAR} and ${VAR:-default} from the process environment.
func ExpandEnv(input string) string {
	return Expand(input, os.LookupEnv)
}

// Expand replaces ${VAR} and ${VAR:-default} using lookup. A variable that
// is unset or empty takes its default; without a default it expands to "".
func Expand(input string, lookup LookupFunc) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if value, ok := lookup(groups[1]); ok && value != "" {
			return value
		}
		return groups[2]
	})
}

// layered resolves names from the process environment first, then from
// fallback (values read from a .env file).
func layered(fallback map[string]string) LookupFunc {
	return func(name string) (string, bool) {
		if v, ok := os.LookupEnv(name); ok {
			return v, true
		}
		v, ok := fallback[name]
		return v, ok
	}
}
