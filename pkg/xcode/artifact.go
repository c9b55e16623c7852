package xcode

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// ArtifactSuffix returns the suffix of the exported artifact: .ipa for
// device platforms, .pkg for macOS App Store exports and .app otherwise.
func ArtifactSuffix(platform Platform, method string) string {
	switch {
	case platform != PlatformMacOS:
		return ".ipa"
	case IsAppStoreMethod(method):
		return ".pkg"
	default:
		return ".app"
	}
}

// FindArtifact returns the first entry with suffix directly inside exportPath.
func FindArtifact(exportPath, suffix string) (string, error) {
	matches, err := doublestar.Glob(os.DirFS(exportPath), "*"+suffix)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", errs.E(errs.CodeNotFound, fmt.Sprintf("no %s found in %s", suffix, exportPath), nil)
	}
	sort.Strings(matches)
	path := filepath.Join(exportPath, matches[0])
	if err := VerifyArtifact(path); err != nil {
		return "", err
	}
	return path, nil
}

// Expected content types by artifact suffix.
var artifactTypes = map[string]string{
	".ipa": "application/zip",
	".zip": "application/zip",
	".pkg": "application/x-xar",
	".dmg": "", // UDIF images have no reliable magic number at offset 0
}

// VerifyArtifact checks that path exists and that its content matches its
// suffix. An .app must be a bundle directory with an Info.plist.
func VerifyArtifact(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return errs.E(errs.CodeNotFound, "artifact not found", err)
	}

	ext := filepath.Ext(path)
	if ext == ".app" {
		if !info.IsDir() {
			return fmt.Errorf("%s is not an application bundle", path)
		}
		for _, p := range []string{"Contents/Info.plist", "Info.plist"} {
			if _, err := os.Stat(filepath.Join(path, p)); err == nil {
				return nil
			}
		}
		return fmt.Errorf("%s has no Info.plist", path)
	}

	want, known := artifactTypes[ext]
	if !known || want == "" {
		return nil
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return fmt.Errorf("failed to inspect %s: %w", path, err)
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is(want) {
			return nil
		}
	}
	return fmt.Errorf("%s is %s, expected %s", path, mt.String(), want)
}
