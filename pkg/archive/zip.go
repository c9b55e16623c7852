// Package archive packages exported bundles for notarization and
// distribution.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/macreleaser/xcdeploy/pkg/shell"
)

// CreateZip creates a ZIP archive of appPath using ditto, which preserves
// macOS resource forks and extended attributes.
func CreateZip(ctx context.Context, runner shell.Runner, appPath, outputPath string) error {
	if _, err := runner.Run(ctx, "ditto", []string{"-c", "-k", "--sequesterRsrc", "--keepParent", appPath, outputPath}); err != nil {
		return fmt.Errorf("failed to create ZIP archive: %w", err)
	}
	return nil
}

// SHA256 returns the hex encoded SHA-256 digest of the file at path.
func SHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
