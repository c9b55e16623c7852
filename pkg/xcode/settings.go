package xcode

import (
	"bufio"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/shell"
)

// BuildSettings holds the output of `xcodebuild -showBuildSettings`.
type BuildSettings struct {
	Raw    string
	Values map[string]string
}

var settingLine = regexp.MustCompile(`^\s+([A-Za-z_][A-Za-z0-9_]*) = (.*)$`)

// ParseBuildSettings parses `KEY = value` lines. The first occurrence of a
// key wins, which is the first target's value.
func ParseBuildSettings(text string) *BuildSettings {
	s := &BuildSettings{Raw: text, Values: make(map[string]string)}
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		m := settingLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		if _, seen := s.Values[m[1]]; !seen {
			s.Values[m[1]] = strings.TrimSpace(m[2])
		}
	}
	return s
}

// Get returns the value of key.
func (s *BuildSettings) Get(key string) string {
	if s == nil {
		return ""
	}
	return s.Values[key]
}

// ShowBuildSettings runs `xcodebuild -showBuildSettings` for scheme.
func ShowBuildSettings(ctx context.Context, runner shell.Runner, project Located, scheme, configuration string) (*BuildSettings, error) {
	args := []string{project.Type.Flag(), project.Path, "-scheme", scheme, "-showBuildSettings"}
	if configuration != "" {
		args = append(args, "-configuration", configuration)
	}
	res, err := runner.Run(ctx, "xcodebuild", args, shell.Silent())
	if err != nil {
		return nil, fmt.Errorf("failed to read build settings: %w", err)
	}
	return ParseBuildSettings(res.Stdout), nil
}

// ResolvePlatform returns explicit when set, otherwise maps PLATFORM_NAME
// (falling back to SDKROOT) through the SDK table.
func ResolvePlatform(settings *BuildSettings, explicit string) (Platform, error) {
	if explicit != "" {
		return ParsePlatform(explicit)
	}
	sdk := settings.Get("PLATFORM_NAME")
	if sdk == "" {
		sdk = settings.Get("SDKROOT")
	}
	if sdk == "" {
		return "", errs.Config("no PLATFORM_NAME or SDKROOT in the build settings; set project.platform")
	}
	p, ok := PlatformForSDK(sdk)
	if !ok {
		return "", errs.Config("unsupported platform SDK %q; set project.platform", sdk)
	}
	return p, nil
}

var bundleIDPattern = regexp.MustCompile(`PRODUCT_BUNDLE_IDENTIFIER = (\S+)`)

// unsetValue is what xcodebuild prints for a setting that has no value.
const unsetValue = "NO"

// ResolveBundleIdentifier extracts PRODUCT_BUNDLE_IDENTIFIER from build
// settings text. An explicit id always wins.
func ResolveBundleIdentifier(settingsText, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	m := bundleIDPattern.FindStringSubmatch(settingsText)
	if m == nil || m[1] == unsetValue {
		return "", errs.Config("unable to resolve the bundle identifier from the build settings; set project.bundle_id")
	}
	return m[1], nil
}
