// Package buildnumber reconciles a project's build number against the latest
// build number already known to App Store Connect.
//
// A build number is split into a prefix (everything up to and including the
// last ".") and a numeric suffix:
//
//	"42"     -> ("", 42)
//	"2.1.7"  -> ("2.1.", 7)
//
// Reconciliation only moves the suffix forward when the remote build would
// otherwise collide with or overtake the local one, so running it again
// against the same remote state is a no-op.
package buildnumber

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidFormat is returned when a build number has no numeric suffix.
var ErrInvalidFormat = errors.New("invalid build number format")

// Number is a decomposed build number.
type Number struct {
	Prefix string
	Suffix int
}

// Absent is the decomposition used when no remote build exists.
var Absent = Number{Suffix: -1}

// IsAbsent reports whether n represents a missing remote build.
func (n Number) IsAbsent() bool {
	return n.Prefix == "" && n.Suffix < 0
}

func (n Number) String() string {
	return n.Prefix + strconv.Itoa(n.Suffix)
}

// Decompose splits s into its prefix and numeric suffix.
func Decompose(s string) (Number, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Number{}, fmt.Errorf("%w: empty build number", ErrInvalidFormat)
	}

	prefix, digits := "", s
	if i := strings.LastIndex(s, "."); i >= 0 {
		prefix, digits = s[:i+1], s[i+1:]
	}

	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return Number{}, fmt.Errorf("%w: %q has no numeric suffix", ErrInvalidFormat, s)
	}

	suffix, err := strconv.Atoi(digits)
	if err != nil {
		return Number{}, fmt.Errorf("%w: %q: %v", ErrInvalidFormat, s, err)
	}

	return Number{Prefix: prefix, Suffix: suffix}, nil
}

// ReconcileNext computes the next build number for local given the latest
// remote build number. Pass Absent when no remote build exists.
func ReconcileNext(local, remote Number) Number {
	if remote.IsAbsent() {
		return local
	}

	next := local
	if local.Prefix != "" && local.Prefix != remote.Prefix && remote.Suffix > local.Suffix {
		next.Prefix = remote.Prefix
	}
	if local.Suffix <= remote.Suffix {
		next.Suffix = remote.Suffix + 1
	}
	return next
}

// Reconcile is the string form of ReconcileNext. An empty remote means no
// remote build exists. When nothing changes the local text is returned as-is,
// so zero padding in the project's own number survives.
func Reconcile(local, remote string) (string, error) {
	l, err := Decompose(local)
	if err != nil {
		return "", fmt.Errorf("project build number: %w", err)
	}

	r := Absent
	if strings.TrimSpace(remote) != "" {
		r, err = Decompose(remote)
		if err != nil {
			return "", fmt.Errorf("remote build number: %w", err)
		}
	}

	next := ReconcileNext(l, r)
	if next == l {
		return strings.TrimSpace(local), nil
	}
	return next.String(), nil
}
