// Package changelog turns commit metadata into TestFlight "what's new" text.
package changelog

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/macreleaser/xcdeploy/pkg/git"
)

// MaxWhatsNew is the longest "what's new" text TestFlight accepts.
const MaxWhatsNew = 4000

// Filters selects which commits contribute release notes.
type Filters struct {
	Include []string
	Exclude []string
}

// WhatsNew formats commits newest first as "<short sha>: <message>" lines,
// dropping those rejected by filters, and truncates the result to
// MaxWhatsNew characters.
func WhatsNew(commits []git.Commit, filters Filters) (string, error) {
	kept, err := filterCommits(commits, filters)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(kept))
	for _, c := range kept {
		msg := strings.TrimRight(c.Message, " \t\r\n")
		if msg == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", c.ShortHash(), msg))
	}
	return Truncate(strings.Join(lines, "\n"), MaxWhatsNew), nil
}

// Truncate shortens s to at most n characters without splitting a rune.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimRight(string(runes[:n]), " \t\r\n")
}

// filterCommits applies include/exclude regex filters to commit messages.
// If include patterns are set, only commits matching at least one are kept.
// Then any commits matching an exclude pattern are removed.
func filterCommits(commits []git.Commit, filters Filters) ([]git.Commit, error) {
	include, err := compile("include", filters.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compile("exclude", filters.Exclude)
	if err != nil {
		return nil, err
	}

	var result []git.Commit
	for _, c := range commits {
		if len(include) > 0 && !matchAny(include, c.Message) {
			continue
		}
		if matchAny(exclude, c.Message) {
			continue
		}
		result = append(result, c)
	}
	return result, nil
}

func compile(kind string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s filter %q: %w", kind, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func matchAny(res []*regexp.Regexp, s string) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}
