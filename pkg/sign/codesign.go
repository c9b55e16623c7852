// Package sign re-signs macOS bundles for direct distribution and builds
// signed installer packages.
package sign

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/plist"
	"github.com/macreleaser/xcdeploy/pkg/shell"
	"github.com/sirupsen/logrus"
)

// Signer drives codesign against a specific keychain.
type Signer struct {
	Runner   shell.Runner
	Logger   *logrus.Logger
	Keychain string
}

// StripAttributes removes extended attributes, which codesign rejects.
func (s *Signer) StripAttributes(ctx context.Context, path string) error {
	if _, err := s.Runner.Run(ctx, "xattr", []string{"-cr", path}); err != nil {
		return fmt.Errorf("failed to strip extended attributes: %w", err)
	}
	return nil
}

// Sign signs path with identity using the hardened runtime and a secure
// timestamp. entitlements may be empty.
func (s *Signer) Sign(ctx context.Context, path, identity, entitlements string) error {
	args := []string{"--force", "--options", "runtime", "--timestamp"}
	if entitlements != "" {
		args = append(args, "--entitlements", entitlements)
	}
	if s.Keychain != "" {
		args = append(args, "--keychain", s.Keychain)
	}
	args = append(args, "--sign", identity, path)

	_, err := s.Runner.Run(ctx, "codesign", args)
	if err != nil {
		if ee, ok := shell.AsExitError(err); ok && strings.Contains(ee.Output, "resource fork, Finder information, or similar detritus") {
			return fmt.Errorf("codesign failed due to extended attributes, remove them with: xattr -cr %s: %w", path, err)
		}
		return fmt.Errorf("codesign failed for %s: %w", filepath.Base(path), err)
	}
	return nil
}

// NestedCode returns the .dylib and .bundle payloads inside app, deepest
// first so every container is signed after its contents.
func NestedCode(app string) ([]string, error) {
	var nested []string
	err := filepath.WalkDir(app, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == app {
			return nil
		}
		switch filepath.Ext(path) {
		case ".dylib", ".bundle":
			nested = append(nested, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", app, err)
	}
	sort.SliceStable(nested, func(i, j int) bool {
		return strings.Count(nested[i], string(filepath.Separator)) > strings.Count(nested[j], string(filepath.Separator))
	})
	return nested, nil
}

// SignBundle signs every nested payload, then the bundle itself.
func (s *Signer) SignBundle(ctx context.Context, app, identity, entitlements string) error {
	nested, err := NestedCode(app)
	if err != nil {
		return err
	}
	for _, p := range nested {
		if err := s.Sign(ctx, p, identity, entitlements); err != nil {
			return err
		}
	}
	s.Logger.Debugf("Signed %d nested item(s) in %s", len(nested), filepath.Base(app))
	return s.Sign(ctx, app, identity, entitlements)
}

// Verify checks the signature of path strictly, including nested code.
func (s *Signer) Verify(ctx context.Context, path string) error {
	if _, err := s.Runner.Run(ctx, "codesign", []string{"--verify", "--deep", "--strict", "--verbose=2", path}); err != nil {
		return fmt.Errorf("signature verification failed for %s: %w", path, err)
	}
	return nil
}

// Entitlements returns the entitlements embedded in the signature of path.
func (s *Signer) Entitlements(ctx context.Context, path string) (plist.Value, error) {
	res, err := s.Runner.Run(ctx, "codesign", []string{"-d", "--entitlements", ":-", path}, shell.Silent())
	if err != nil {
		return plist.Value{}, fmt.Errorf("failed to read entitlements of %s: %w", path, err)
	}
	if strings.TrimSpace(res.Stdout) == "" {
		return plist.NewDict(nil), nil
	}
	v, _, err := plist.Decode([]byte(res.Stdout))
	if err != nil {
		return plist.Value{}, fmt.Errorf("failed to parse entitlements of %s: %w", path, err)
	}
	return v, nil
}

// VerifyEntitlements asserts that the entitlements signed into path equal
// the document at expectedPath.
func (s *Signer) VerifyEntitlements(ctx context.Context, path, expectedPath string) error {
	expected, _, err := plist.Load(expectedPath)
	if err != nil {
		return err
	}
	actual, err := s.Entitlements(ctx, path)
	if err != nil {
		return err
	}
	if !plist.Equal(expected, actual) {
		return fmt.Errorf("signed entitlements of %s do not match %s (differing keys: %s)",
			filepath.Base(path), expectedPath, strings.Join(plist.Diff(expected, actual), ", "))
	}
	s.Logger.Debug("Signed entitlements match")
	return nil
}
