package xcode

import (
	"fmt"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// Platform is a build target platform as xcodebuild destinations name it.
type Platform string

const (
	PlatformIOS      Platform = "iOS"
	PlatformMacOS    Platform = "macOS"
	PlatformTVOS     Platform = "tvOS"
	PlatformWatchOS  Platform = "watchOS"
	PlatformVisionOS Platform = "visionOS"
)

var sdkPlatforms = map[string]Platform{
	"iphoneos":  PlatformIOS,
	"macosx":    PlatformMacOS,
	"appletvos": PlatformTVOS,
	"watchos":   PlatformWatchOS,
	"xros":      PlatformVisionOS,
}

var platformSDKs = map[Platform]string{
	PlatformIOS:      "iphoneos",
	PlatformMacOS:    "macosx",
	PlatformTVOS:     "appletvos",
	PlatformWatchOS:  "watchos",
	PlatformVisionOS: "xros",
}

// PlatformForSDK maps an SDK name such as "iphoneos" or "iphoneos17.2" to its
// platform.
func PlatformForSDK(sdk string) (Platform, bool) {
	name := strings.TrimRight(strings.ToLower(strings.TrimSpace(sdk)), "0123456789.")
	p, ok := sdkPlatforms[name]
	return p, ok
}

// ParsePlatform accepts a platform name in any case.
func ParsePlatform(s string) (Platform, error) {
	for p := range platformSDKs {
		if strings.EqualFold(string(p), strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return "", errs.Config("unsupported platform %q (supported: iOS, macOS, tvOS, watchOS, visionOS)", s)
}

// SDK returns the SDK name for p.
func (p Platform) SDK() string {
	return platformSDKs[p]
}

// Destination returns the generic archive destination for p.
func (p Platform) Destination() string {
	return "generic/platform=" + string(p)
}

// ASC returns the App Store Connect identifier for p.
func (p Platform) ASC() (asc.Platform, error) {
	switch p {
	case PlatformIOS:
		return asc.PlatformIOS, nil
	case PlatformMacOS:
		return asc.PlatformMacOS, nil
	case PlatformTVOS:
		return asc.PlatformTVOS, nil
	case PlatformVisionOS:
		return asc.PlatformVisionOS, nil
	}
	return "", fmt.Errorf("platform %s cannot be distributed through App Store Connect", p)
}

// AltoolType returns the -t value altool expects for p.
func (p Platform) AltoolType() (string, error) {
	switch p {
	case PlatformIOS:
		return "ios", nil
	case PlatformMacOS:
		return "macos", nil
	case PlatformTVOS:
		return "appletvos", nil
	case PlatformVisionOS:
		return "visionos", nil
	}
	return "", fmt.Errorf("platform %s cannot be uploaded with altool", p)
}
