// Package env resolves env(VAR) references in configuration values.
//
// A reference may carry a fallback, env(VAR:-fallback), used when VAR is
// unset. References to unset variables without a fallback are left in place
// so CheckResolved can name the missing variable once the value is needed.
package env

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml/ast"
)

var refPattern = regexp.MustCompile(`env\(([A-Za-z_][A-Za-z0-9_]*)(:-[^)]*)?\)`)

// Newlines and tabs are allowed for PEM blocks and multiline notes.
var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// SubstituteEnvVarsNode replaces references in the scalar values under node.
// Mapping keys are never rewritten.
func SubstituteEnvVarsNode(node ast.Node) error {
	if node == nil {
		return nil
	}
	s := &substituter{}
	ast.Walk(s, node)
	return s.err
}

type substituter struct {
	err error
}

func (s *substituter) Visit(node ast.Node) ast.Visitor {
	if s.err != nil {
		return nil
	}
	switch n := node.(type) {
	case *ast.MappingValueNode:
		if n != nil && n.Value != nil {
			ast.Walk(s, n.Value)
		}
		return nil
	case *ast.MappingKeyNode:
		return nil
	case *ast.StringNode:
		if n != nil {
			n.Value, s.err = Expand(n.Value)
		}
		return nil
	case *ast.LiteralNode:
		if n != nil && n.Value != nil {
			n.Value.Value, s.err = Expand(n.Value.Value)
		}
		return nil
	}
	return s
}

// Expand resolves every reference in value. Unset variables without a
// fallback are kept verbatim.
func Expand(value string) (string, error) {
	var err error
	out := refPattern.ReplaceAllStringFunc(value, func(ref string) string {
		m := refPattern.FindStringSubmatch(ref)
		v, ok := os.LookupEnv(m[1])
		if !ok {
			if m[2] == "" {
				return ref
			}
			v = strings.TrimPrefix(m[2], ":-")
		}
		if controlChars.MatchString(v) {
			err = fmt.Errorf("environment variable %s contains disallowed control characters", m[1])
		}
		return v
	})
	if err != nil {
		return "", err
	}
	return out, nil
}

// CheckResolved reports the variables value still references. field names
// the config key in the error, e.g.
// "credentials.api_key: environment variable ASC_KEY is not set".
func CheckResolved(value, field string) error {
	var missing []string
	for _, m := range refPattern.FindAllStringSubmatch(value, -1) {
		if m[2] == "" {
			missing = append(missing, m[1])
		}
	}
	switch len(missing) {
	case 0:
		return nil
	case 1:
		return fmt.Errorf("%s: environment variable %s is not set", field, missing[0])
	default:
		return fmt.Errorf("%s: environment variables %s are not set", field, strings.Join(missing, ", "))
	}
}

// FirstNonEmpty returns the value of the first set, non-empty variable
// among keys.
func FirstNonEmpty(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
