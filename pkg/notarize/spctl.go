package notarize

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/shell"
)

const notarizedSource = "source=Notarized Developer ID"

// assessArgs picks the Gatekeeper policy for the artifact kind. Disk images
// are only accepted under the open policy with their primary signature.
func assessArgs(path string) []string {
	switch filepath.Ext(path) {
	case ".pkg":
		return []string{"--assess", "--type", "install", "--verbose", path}
	case ".dmg":
		return []string{"--assess", "--type", "open", "--context", "context:primary-signature", "--verbose", path}
	default:
		return []string{"--assess", "--type", "execute", "--verbose", path}
	}
}

// Assess runs a Gatekeeper assessment of path and returns spctl's output.
func (n *Notary) Assess(ctx context.Context, path string) (string, error) {
	res, err := n.Runner.Run(ctx, "spctl", assessArgs(path), shell.Silent())
	if err != nil {
		if ee, ok := shell.AsExitError(err); ok && strings.Contains(ee.Output, "rejected") {
			return ee.Output, fmt.Errorf("Gatekeeper rejected %s, it may not be properly signed or notarized: %w", path, err) //nolint:staticcheck // proper noun
		}
		return "", fmt.Errorf("spctl assess failed: %w", err)
	}
	return res.Combined, nil
}

// IsNotarized reports whether path already carries a valid ticket, either
// stapled or recognised by Gatekeeper as notarized.
func (n *Notary) IsNotarized(ctx context.Context, path string) bool {
	if n.ValidateStaple(ctx, path) == nil {
		return true
	}
	out, err := n.Assess(ctx, path)
	return err == nil && strings.Contains(out, notarizedSource)
}
