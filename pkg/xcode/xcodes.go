package xcode

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

var (
	// "16.1 (16B40) (Selected) /Applications/Xcode.app" or "14.3 Beta 2 (14E5207e)"
	availableLine   = regexp.MustCompile(`^(\d+\.\d+(?:\.\d+)?)(.*)$`)
	xcodeVersionOut = regexp.MustCompile(`(?m)^Xcode (\d+\.\d+(?:\.\d+)?)`)
)

// ParseXcodesList parses `xcodes installed` or `xcodes list` output into
// release versions. Betas and release candidates are dropped.
func ParseXcodesList(output string) []*semver.Version {
	var out []*semver.Version
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		m := availableLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rest := strings.TrimSpace(m[2])
		if strings.HasPrefix(rest, "Beta") || strings.HasPrefix(rest, "Release Candidate") {
			continue
		}
		v, err := semver.NewVersion(m[1])
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

// ParseXcodeVersion reads the version from `xcodebuild -version` output.
func ParseXcodeVersion(output string) (*semver.Version, error) {
	m := xcodeVersionOut.FindStringSubmatch(output)
	if m == nil {
		return nil, fmt.Errorf("unrecognized xcodebuild -version output: %q", strings.TrimSpace(output))
	}
	return semver.NewVersion(m[1])
}

// ResolveXcodeRequest picks the version matching request from available.
// request is "latest", an exact version such as "16.2", or a wildcard such
// as "16.x".
func ResolveXcodeRequest(request string, available []*semver.Version) (*semver.Version, error) {
	constraint := request
	switch {
	case request == "latest":
		constraint = "*"
	case !strings.Contains(request, "x"):
		v, err := semver.NewVersion(request)
		if err != nil {
			return nil, errs.Config("invalid xcode-version %q: %v", request, err)
		}
		constraint = "=" + v.String()
	}

	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, errs.Config("invalid xcode-version %q: %v", request, err)
	}
	var best *semver.Version
	for _, v := range available {
		if c.Check(v) && (best == nil || v.GreaterThan(best)) {
			best = v
		}
	}
	if best == nil {
		return nil, errs.E(errs.CodeNotFound, fmt.Sprintf("Xcode %s is not available", request), nil)
	}
	return best, nil
}

// xcodesName renders v the way xcodes expects: "16.0.0" becomes "16.0".
func xcodesName(v *semver.Version) string {
	if v.Patch() == 0 {
		return fmt.Sprintf("%d.%d", v.Major(), v.Minor())
	}
	return v.String()
}

// SelectXcode makes the requested Xcode the active one, installing it with
// xcodes when it is not yet on the machine.
func SelectXcode(ctx context.Context, runner shell.Runner, logger *logrus.Logger, request string) error {
	res, err := runner.Run(ctx, "xcodes", []string{"installed"}, shell.Silent())
	if err != nil {
		return fmt.Errorf("failed to list installed Xcode versions: %w", err)
	}
	installed := ParseXcodesList(res.Stdout)

	want, err := ResolveXcodeRequest(request, installed)
	if err != nil || request == "latest" {
		// Not installed, or the newest release may be newer than what is.
		listed, listErr := runner.Run(ctx, "xcodes", []string{"list"}, shell.Silent())
		if listErr != nil {
			return fmt.Errorf("failed to list available Xcode versions: %w", listErr)
		}
		want, err = ResolveXcodeRequest(request, ParseXcodesList(listed.Stdout))
		if err != nil {
			return err
		}
	}

	name := xcodesName(want)
	if !containsVersion(installed, want) {
		logger.Infof("Installing Xcode %s", name)
		if _, err := runner.Run(ctx, "xcodes", []string{"install", name}); err != nil {
			return fmt.Errorf("failed to install Xcode %s: %w", name, err)
		}
	}

	if _, err := runner.Run(ctx, "xcodes", []string{"select", name}); err != nil {
		return fmt.Errorf("failed to select Xcode %s: %w", name, err)
	}
	logger.Infof("Selected Xcode %s", name)
	return nil
}

func containsVersion(list []*semver.Version, v *semver.Version) bool {
	for _, x := range list {
		if x.Equal(v) {
			return true
		}
	}
	return false
}

// ActiveXcodeVersion returns the version of the selected Xcode.
func ActiveXcodeVersion(ctx context.Context, runner shell.Runner) (*semver.Version, error) {
	res, err := runner.Run(ctx, "xcodebuild", []string{"-version"})
	if err != nil {
		return nil, fmt.Errorf("failed to read Xcode version: %w", err)
	}
	return ParseXcodeVersion(res.Stdout)
}
