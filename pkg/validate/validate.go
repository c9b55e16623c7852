// Package validate holds the field checks shared by the configuration pipes.
// Every failure carries the INVALID_CONFIGURATION code.
package validate

import (
	"regexp"
	"sort"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// RequiredString validates that a string field is not empty
func RequiredString(value, field string) error {
	if strings.TrimSpace(value) == "" {
		return errs.Config("%s is required", field)
	}
	return nil
}

// RequiredTogether validates that either all or none of fields are set.
// fields maps config keys to values.
func RequiredTogether(fields map[string]string) error {
	var set, unset []string
	for name, value := range fields {
		if value == "" {
			unset = append(unset, name)
		} else {
			set = append(set, name)
		}
	}
	if len(set) > 0 && len(unset) > 0 {
		sort.Strings(set)
		sort.Strings(unset)
		return errs.Config("%s set but %s missing", strings.Join(set, ", "), strings.Join(unset, ", "))
	}
	return nil
}

// OneOf validates that a string is one of the allowed values. Empty values
// are accepted; use RequiredString for required fields.
func OneOf(value string, allowed []string, field string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return errs.Config("invalid value for %s: %s (allowed: %s)", field, value, strings.Join(allowed, ", "))
}

// Regexps validates that every pattern compiles.
func Regexps(patterns []string, field string) error {
	for _, p := range patterns {
		if _, err := regexp.Compile(p); err != nil {
			return errs.E(errs.CodeInvalidConfig, field+": invalid regex "+p, err)
		}
	}
	return nil
}

// Positive validates that a number is not negative.
func Positive(value int, field string) error {
	if value < 0 {
		return errs.Config("%s must be positive, got %d", field, value)
	}
	return nil
}
