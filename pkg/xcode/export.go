package xcode

import (
	"fmt"
	"os"

	"github.com/Masterminds/semver/v3"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/plist"
)

// Export options accepted on the command line and in config.
const (
	ExportAppStore    = "app-store"
	ExportAdHoc       = "ad-hoc"
	ExportDevelopment = "development"
	ExportDeveloperID = "developer-id"
	ExportSteam       = "steam"
)

// Export method names introduced by Xcode 15.3.
const (
	methodAppStoreConnect = "app-store-connect"
	methodReleaseTesting  = "release-testing"
	methodDebugging       = "debugging"
)

var renameThreshold = semver.MustParse("15.3.0")

// aliases lets the post-15.3 names be used as options too.
var aliases = map[string]string{
	methodAppStoreConnect: ExportAppStore,
	methodReleaseTesting:  ExportAdHoc,
	methodDebugging:       ExportDevelopment,
}

// ExportMethod maps an export option to the method name the running Xcode
// accepts. A nil xcodeVersion is treated as a current Xcode.
func ExportMethod(option string, platform Platform, xcodeVersion *semver.Version) (string, error) {
	if alias, ok := aliases[option]; ok {
		option = alias
	}
	renamed := xcodeVersion == nil || !xcodeVersion.LessThan(renameThreshold)

	var method string
	switch option {
	case ExportAppStore:
		method = ExportAppStore
	case ExportAdHoc:
		if platform == PlatformMacOS {
			method = ExportDevelopment
		} else {
			method = ExportAdHoc
		}
	case ExportDevelopment:
		method = ExportDevelopment
	case ExportDeveloperID:
		method = ExportDeveloperID
	case ExportSteam:
		if platform != PlatformMacOS {
			return "", errs.Config("export option %q is only valid for macOS", option)
		}
		method = ExportDeveloperID
	default:
		return "", errs.Config("unsupported export option %q (supported: app-store, ad-hoc, development, developer-id, steam)", option)
	}

	if !renamed {
		return method, nil
	}
	switch method {
	case ExportAppStore:
		return methodAppStoreConnect, nil
	case ExportAdHoc:
		return methodReleaseTesting, nil
	case ExportDevelopment:
		return methodDebugging, nil
	}
	return method, nil
}

// IsAppStoreMethod reports whether method exports for App Store Connect.
func IsAppStoreMethod(method string) bool {
	return method == ExportAppStore || method == methodAppStoreConnect
}

// ExportOptions is the generated -exportOptionsPlist document.
type ExportOptions struct {
	Method               string            `plist:"method"`
	SigningStyle         string            `plist:"signingStyle"`
	TeamID               string            `plist:"teamID,omitempty"`
	ProvisioningProfiles map[string]string `plist:"provisioningProfiles,omitempty"`
}

// NewExportOptions builds the options for method. Manual signing is used
// when a signing identity is available, pinning profileUUID to bundleID.
func NewExportOptions(method, teamID, signingIdentity, bundleID, profileUUID string) ExportOptions {
	opts := ExportOptions{Method: method, SigningStyle: "automatic", TeamID: teamID}
	if signingIdentity != "" {
		opts.SigningStyle = "manual"
		if bundleID != "" && profileUUID != "" {
			opts.ProvisioningProfiles = map[string]string{bundleID: profileUUID}
		}
	}
	return opts
}

// WriteExportOptions writes opts as an XML property list.
func WriteExportOptions(path string, opts ExportOptions) error {
	return plist.Write(path, opts, plist.XMLFormat)
}

// ReadExportMethod returns the method of an existing export options file.
func ReadExportMethod(path string) (string, error) {
	doc, _, err := plist.Load(path)
	if err != nil {
		return "", errs.E(errs.CodeInvalidConfig, "invalid export options plist", err)
	}
	method := doc.GetString("method")
	if method == "" {
		return "", errs.Config("export options plist %s has no method", path)
	}
	return method, nil
}

// DefaultEntitlements returns the entitlements a macOS build gets when none
// are supplied.
func DefaultEntitlements(method string) plist.Value {
	if IsAppStoreMethod(method) {
		return plist.NewDict(map[string]plist.Value{
			"com.apple.security.app-sandbox":                   plist.NewBool(true),
			"com.apple.security.files.user-selected.read-only": plist.NewBool(true),
		})
	}
	return plist.NewDict(map[string]plist.Value{
		"com.apple.security.cs.disable-library-validation":         plist.NewBool(true),
		"com.apple.security.cs.allow-dyld-environment-variables":   plist.NewBool(true),
		"com.apple.security.cs.disable-executable-page-protection": plist.NewBool(true),
	})
}

// EnsureEntitlements writes the defaults for method to path unless a file
// already exists there.
func EnsureEntitlements(path, method string) (created bool, err error) {
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	if err := plist.Write(path, DefaultEntitlements(method), plist.XMLFormat); err != nil {
		return false, fmt.Errorf("failed to write default entitlements: %w", err)
	}
	return true, nil
}
