package xcode

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/plist"
)

const (
	keyShortVersion = "CFBundleShortVersionString"
	keyBuildNumber  = "CFBundleVersion"

	settingMarketingVersion = "MARKETING_VERSION"
	settingProjectVersion   = "CURRENT_PROJECT_VERSION"
)

// ErrInvalidVersion reports a short version that is not dotted integers.
var ErrInvalidVersion = errs.E(errs.CodeInvalidConfig, "invalid short version", nil)

var settingRef = regexp.MustCompile(`^\$[({]([A-Za-z_][A-Za-z0-9_]*)(?::[^)}]*)?[)}]$`)

// NormalizeShortVersion returns v as exactly major.minor.patch: extra
// components are dropped and missing ones are zero.
func NormalizeShortVersion(v string) (string, error) {
	parts := strings.Split(strings.TrimSpace(v), ".")
	nums := make([]string, 3)
	for i := range nums {
		nums[i] = "0"
	}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return "", fmt.Errorf("%w %q", ErrInvalidVersion, v)
		}
		if i < 3 {
			nums[i] = strconv.Itoa(n)
		}
	}
	return strings.Join(nums, "."), nil
}

// VersionMetadata is the bundle version information of the product.
//
// Values the Info.plist takes from a build setting ($(MARKETING_VERSION) and
// the like) are never rewritten in the file; they are overridden on the
// xcodebuild command line instead.
type VersionMetadata struct {
	InfoPlistPath string
	ShortVersion  string
	BuildNumber   string

	ShortVersionSetting string
	BuildNumberSetting  string

	doc    plist.Value
	format int
}

// ReadVersionMetadata loads the version keys from the target's Info.plist,
// resolving setting references from settings, and normalizes a literal short
// version in place. Normalizing an already normalized file writes nothing.
func ReadVersionMetadata(projectDir string, settings *BuildSettings) (*VersionMetadata, error) {
	m := &VersionMetadata{}

	infoFile := settings.Get("INFOPLIST_FILE")
	if infoFile == "" {
		// Generated Info.plist: both values live in build settings.
		m.ShortVersionSetting = settingMarketingVersion
		m.BuildNumberSetting = settingProjectVersion
		m.ShortVersion = settings.Get(settingMarketingVersion)
		m.BuildNumber = settings.Get(settingProjectVersion)
	} else {
		if !filepath.IsAbs(infoFile) {
			infoFile = filepath.Join(projectDir, infoFile)
		}
		doc, format, err := plist.Load(infoFile)
		if err != nil {
			return nil, errs.E(errs.CodeInvalidConfig, "failed to read Info.plist", err)
		}
		if doc.Kind != plist.KindDict {
			return nil, errs.Config("%s is not a dictionary", infoFile)
		}
		m.InfoPlistPath, m.doc, m.format = infoFile, doc, format
		m.ShortVersion, m.ShortVersionSetting = resolveValue(doc.GetString(keyShortVersion), settings)
		m.BuildNumber, m.BuildNumberSetting = resolveValue(doc.GetString(keyBuildNumber), settings)
	}

	if m.ShortVersion == "" {
		return nil, errs.Config("no %s found for the product", keyShortVersion)
	}
	if m.BuildNumber == "" {
		return nil, errs.Config("no %s found for the product", keyBuildNumber)
	}

	normalized, err := NormalizeShortVersion(m.ShortVersion)
	if err != nil {
		return nil, err
	}
	if normalized != m.ShortVersion {
		m.ShortVersion = normalized
		if m.ShortVersionSetting == "" {
			if err := m.set(keyShortVersion, normalized); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

func resolveValue(raw string, settings *BuildSettings) (value, setting string) {
	if ref := settingRef.FindStringSubmatch(raw); ref != nil {
		return settings.Get(ref[1]), ref[1]
	}
	return raw, ""
}

// SetBuildNumber records a new build number, writing it to the Info.plist
// unless the plist reads it from a build setting.
func (m *VersionMetadata) SetBuildNumber(n string) error {
	if n == m.BuildNumber {
		return nil
	}
	m.BuildNumber = n
	if m.BuildNumberSetting != "" {
		return nil
	}
	return m.set(keyBuildNumber, n)
}

func (m *VersionMetadata) set(key, value string) error {
	if m.InfoPlistPath == "" {
		return nil
	}
	m.doc.Dict[key] = plist.NewString(value)
	return plist.Write(m.InfoPlistPath, m.doc, m.format)
}

// BuildSettingOverrides returns the command line settings that carry
// setting-backed values into the build.
func (m *VersionMetadata) BuildSettingOverrides() []string {
	var out []string
	if m.ShortVersionSetting != "" {
		out = append(out, m.ShortVersionSetting+"="+m.ShortVersion)
	}
	if m.BuildNumberSetting != "" {
		out = append(out, m.BuildNumberSetting+"="+m.BuildNumber)
	}
	return out
}
